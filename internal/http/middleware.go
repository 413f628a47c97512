package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/campus-roombook/internal/application"
	"github.com/example/campus-roombook/internal/logging"
)

const (
	requestIDHeader   = "X-Request-ID"
	requestIDMaxLen   = 64
	requestIDCtxKey   = "request_id"
	bearerTokenPrefix = "Bearer "
)

// ActorVerifier resolves a bearer token into an actor.
type ActorVerifier interface {
	Verify(token string) (application.Actor, error)
}

// RequestID propagates X-Request-ID, generating one when absent or oversized.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.NewString()
		}
		c.Set(requestIDCtxKey, rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}

// RequestLogger attaches a request scoped zap logger to the request context
// and logs one line per request.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	base = defaultLogger(base)

	return func(c *gin.Context) {
		logger := base.With(
			zap.String("request_id", c.GetString(requestIDCtxKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		ctx := logging.ContextWithLogger(c.Request.Context(), logger)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// Recovery turns panics into an enveloped 500.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	responder := newResponder(logger)
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		handlerLogger(c.Request.Context(), logger, "Recovery", "").Error("panic while serving request",
			zap.Any("panic", recovered),
		)
		responder.writeError(c, http.StatusInternalServerError, codeInternal, errInternal, nil)
	})
}

// Authenticate resolves the bearer token into an actor stored on the request context.
func Authenticate(verifier ActorVerifier, logger *zap.Logger) gin.HandlerFunc {
	responder := newResponder(logger)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, bearerTokenPrefix)
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			responder.writeError(c, http.StatusUnauthorized, codeUnauthorized, errMissingToken, nil)
			return
		}

		actor, err := verifier.Verify(token)
		if err != nil {
			handlerLogger(c.Request.Context(), logger, "Authenticate", "").Warn("bearer token rejected", zap.Error(err))
			responder.writeError(c, http.StatusUnauthorized, codeUnauthorized, errInvalidToken, nil)
			return
		}

		ctx := ContextWithActor(c.Request.Context(), actor)
		if l := logging.FromContext(ctx); l != nil {
			ctx = logging.ContextWithLogger(ctx, l.With(
				zap.String("actor_id", actor.UserID),
				zap.String("actor_role", string(actor.Role)),
			))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin rejects non-admin actors with 403.
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	responder := newResponder(logger)

	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c.Request.Context())
		if !ok {
			responder.writeError(c, http.StatusUnauthorized, codeUnauthorized, errUnauthenticated, nil)
			return
		}
		if !actor.IsAdmin() {
			responder.writeError(c, http.StatusForbidden, codeForbidden, errAdminRequired, nil)
			return
		}
		c.Next()
	}
}

// actorOf returns the actor placed on the request by Authenticate.
func actorOf(c *gin.Context) application.Actor {
	actor, _ := ActorFromContext(c.Request.Context())
	return actor
}
