package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// queryErrors collects malformed query parameters for a single response.
type queryErrors map[string]string

func (q queryErrors) empty() bool { return len(q) == 0 }

// timeParam parses an RFC 3339 query value. Missing values yield nil.
func timeParam(c *gin.Context, name string, errs queryErrors) *time.Time {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		errs[name] = "must be an RFC 3339 timestamp"
		return nil
	}
	return &ts
}

// requiredTimeParam is timeParam for mandatory values.
func requiredTimeParam(c *gin.Context, name string, errs queryErrors) time.Time {
	if strings.TrimSpace(c.Query(name)) == "" {
		errs[name] = "is required"
		return time.Time{}
	}
	ts := timeParam(c, name, errs)
	if ts == nil {
		return time.Time{}
	}
	return *ts
}

// minutesParam parses a non-negative whole number of minutes.
func minutesParam(c *gin.Context, name string, errs queryErrors) *time.Duration {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 0 {
		errs[name] = "must be a non-negative integer"
		return nil
	}
	d := time.Duration(minutes) * time.Minute
	return &d
}

func csvParam(c *gin.Context, name string) []string {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
