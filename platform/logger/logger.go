// Package logger is the slog setup shared by every process in the repo.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type contextKey string

const (
	// RequestIDKey is set by httpkit.RequestID.
	RequestIDKey contextKey = "request_id"
	// IntegrationKey names the webhook integration whose token authenticated the request.
	IntegrationKey contextKey = "integration"
)

// Logger embeds *slog.Logger so call sites use Info/Warn/Error with key/value pairs.
type Logger struct {
	*slog.Logger
}

// New logs to stdout: text at debug level in development, JSON at info elsewhere.
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

func NewWithWriter(env string, w io.Writer) *Logger {
	if strings.EqualFold(env, "development") {
		return &Logger{Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))}
}

// Discard is for tests.
func Discard() *Logger {
	return NewWithWriter("production", io.Discard)
}

// WithContext tags the logger with the request id and integration stored in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	var attrs []any
	if id, _ := ctx.Value(RequestIDKey).(string); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if name, _ := ctx.Value(IntegrationKey).(string); name != "" {
		attrs = append(attrs, slog.String("integration", name))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

// HTTPRequest is the access log line written for every request.
func (l *Logger) HTTPRequest(method, path string, status int, latency time.Duration, clientIP string) {
	l.LogAttrs(context.Background(), levelFor(status), "http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Int64("latency_ms", latency.Milliseconds()),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError records the error behind a 5xx response.
func (l *Logger) HTTPError(method, path string, status int, err error) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}

// WebhookAuthFailed never logs the presented secret, only whether a header was sent.
func (l *Logger) WebhookAuthFailed(path, clientIP string, headerPresent bool) {
	l.Warn("webhook_auth_failed",
		slog.String("path", path),
		slog.String("client_ip", clientIP),
		slog.Bool("header_present", headerPresent),
	)
}

func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded", slog.String("client_ip", clientIP), slog.String("path", path))
}

// 4xx responses are expected traffic from misconfigured senders; 5xx are ours.
func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
