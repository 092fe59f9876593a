package logger

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// New builds the process logger and installs it as the zap global.
// Production uses JSON output; every other env uses the colored console encoder.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env != "production" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.InitialFields = map[string]any{"service": "xqor3-auth"}

	lg, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(lg)
	return lg, nil
}

// WithContext returns the global logger annotated with the request id carried by ctx.
func WithContext(ctx context.Context) *zap.Logger {
	lg := zap.L()
	if id := RequestIDFromContext(ctx); id != "" {
		return lg.With(zap.String("request_id", id))
	}
	return lg
}

// RequestIDFromContext extracts the request id placed by the HTTP middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// MaskEmail keeps up to three leading characters of the local part and the domain.
// Example: alice.smith@x.io -> ali***@x.io
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	switch {
	case email == "":
		return ""
	case !ok:
		return "***"
	case len(local) > 3:
		local = local[:3]
	}
	return local + "***@" + domain
}

// MaskIP hides the host part of an address: the last two IPv4 octets or all but four IPv6 groups.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	if parts := strings.Split(ip, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".*.*"
	}
	if parts := strings.Split(ip, ":"); len(parts) >= 4 {
		return strings.Join(parts[:4], ":") + ":*:*:*:*"
	}
	return "***"
}
