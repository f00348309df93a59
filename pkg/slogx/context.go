package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithChat annotates the context logger with the chat id so every log line
// produced while handling an event can be traced back to its conversation.
func WithChat(ctx context.Context, chatID int64) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("chat_id", chatID))
}
