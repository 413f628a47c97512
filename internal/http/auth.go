package http

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/campus-roombook/internal/application"
)

// ErrTokenInvalid is returned for malformed, expired, or mis-signed tokens.
var ErrTokenInvalid = errors.New("http: invalid token")

// ActorClaims are the JWT claims recognised by the API. Subject carries the user ID.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 bearer tokens issued by the campus identity provider.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenVerifier builds a verifier for secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify parses token and returns the actor it names.
func (v *TokenVerifier) Verify(token string) (application.Actor, error) {
	claims := &ActorClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return application.Actor{}, ErrTokenInvalid
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return application.Actor{}, ErrTokenInvalid
	}

	role := application.Role(claims.Role)
	switch role {
	case application.RoleStudent, application.RoleLecturer, application.RoleAdmin:
	default:
		return application.Actor{}, ErrTokenInvalid
	}
	return application.Actor{UserID: subject, Role: role}, nil
}
