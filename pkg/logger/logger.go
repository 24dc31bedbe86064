package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/pkg/config"
	"github.com/noah-isme/edu-center-api/pkg/middleware/requestid"
)

// New builds the process logger; every line carries service and env.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("service", "edu-center-api"), zap.String("env", cfg.Env)), nil
}

// ClaimsFunc extracts the authenticated caller, if any, from a request.
type ClaimsFunc func(*gin.Context) (*models.JWTClaims, bool)

type middlewareOptions struct {
	claims ClaimsFunc
	quiet  map[string]struct{}
}

// MiddlewareOption customises GinMiddleware.
type MiddlewareOption func(*middlewareOptions)

// WithClaims adds user_id and role to each line once the JWT middleware has run.
func WithClaims(fn ClaimsFunc) MiddlewareOption {
	return func(o *middlewareOptions) { o.claims = fn }
}

// WithQuietPaths drops successful requests for probe endpoints.
func WithQuietPaths(paths ...string) MiddlewareOption {
	return func(o *middlewareOptions) {
		for _, p := range paths {
			o.quiet[p] = struct{}{}
		}
	}
}

// GinMiddleware logs one line per request; 4xx are warnings and 5xx errors.
func GinMiddleware(l *zap.Logger, opts ...MiddlewareOption) gin.HandlerFunc {
	o := middlewareOptions{quiet: map[string]struct{}{}}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if _, ok := o.quiet[c.Request.URL.Path]; ok && status < 400 {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if reqID := requestid.Value(c); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		if o.claims != nil {
			if claims, ok := o.claims(c); ok && claims != nil {
				fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
