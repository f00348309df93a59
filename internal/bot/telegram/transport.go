package telegram

import (
	"context"
	"log/slog"
)

// Button is one inline keyboard entry. Data is echoed back verbatim in the
// resulting CallbackQuery.
type Button struct {
	Label string
	Data  string
}

// Sender is the outbound half of the chat transport. The router only ever
// talks to the transport through it; the wire protocol lives outside this
// module.
type Sender interface {
	// SendMessage sends plain text to the chat.
	SendMessage(ctx context.Context, chatID int64, text string) error

	// SendTyping signals a processing indicator. Best effort; the router
	// ignores failures.
	SendTyping(ctx context.Context, chatID int64) error

	// SendForceReply sends a prompt whose next message from the user is
	// flagged as a reply.
	SendForceReply(ctx context.Context, chatID int64, text string) error

	// SendKeyboard sends text with inline buttons attached.
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error
}

// LogSender writes outgoing traffic to the log instead of a wire. It is the
// default sender when no real transport is attached, and doubles as a way to
// run the bot headless.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.Logger.Info("outgoing message", "chat_id", chatID, "text", text)
	return nil
}

func (s *LogSender) SendTyping(ctx context.Context, chatID int64) error {
	s.Logger.Debug("outgoing typing indicator", "chat_id", chatID)
	return nil
}

func (s *LogSender) SendForceReply(ctx context.Context, chatID int64, text string) error {
	s.Logger.Info("outgoing force-reply prompt", "chat_id", chatID, "text", text)
	return nil
}

func (s *LogSender) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error {
	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, b := range row {
			labels = append(labels, b.Label)
		}
	}
	s.Logger.Info("outgoing keyboard", "chat_id", chatID, "text", text, "buttons", labels)
	return nil
}
