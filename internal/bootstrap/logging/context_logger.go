package logging

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
)

type ctxLoggerKey struct{}
type ctxAttrsKey struct{}

// fallback serves contexts that never got a logger, such as tests and the
// first lines of a command before config is loaded.
var fallback = sync.OnceValue(func() *slog.Logger {
	return New(os.Getenv("APIVIEW_LOG_LEVEL"), os.Getenv("APIVIEW_LOG_FORMAT"), os.Stderr)
})

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return fallback()
}

// WithAttrs adds attrs to every line logged through ctx. A later attr with
// the same key replaces the earlier one in place.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(attrs) == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxAttrsKey{}, mergeAttrs(Attrs(ctx), attrs))
}

// WithActor tags every log line of an operation with the acting principal.
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return WithAttrs(ctx)
	}
	return WithAttrs(ctx, slog.String("actor", actor))
}

// WithReview scopes log lines to one review and, when given, one revision.
func WithReview(ctx context.Context, reviewID string, revisionID string) context.Context {
	attrs := []slog.Attr{slog.String("review_id", reviewID)}
	if revisionID != "" {
		attrs = append(attrs, slog.String("revision_id", revisionID))
	}
	return WithAttrs(ctx, attrs...)
}

func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return slices.Clone(attrs)
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	log(ctx, slog.LevelError, msg, attrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	logger := Logger(ctx)
	if ctx == nil {
		ctx = context.Background()
	}
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, msg, mergeAttrs(Attrs(ctx), attrs)...)
}

func mergeAttrs(base []slog.Attr, extra []slog.Attr) []slog.Attr {
	merged := slices.Clone(base)
	for _, attr := range extra {
		if attr.Key != "" {
			idx := slices.IndexFunc(merged, func(existing slog.Attr) bool { return existing.Key == attr.Key })
			if idx >= 0 {
				merged[idx] = attr
				continue
			}
		}
		merged = append(merged, attr)
	}
	return merged
}
