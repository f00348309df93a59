package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
	"github.com/aussiebroadwan/graphbot/internal/bot/service"
	"github.com/aussiebroadwan/graphbot/internal/bot/store"
	"github.com/aussiebroadwan/graphbot/pkg/graphsdk"
	"github.com/aussiebroadwan/graphbot/pkg/slogx"
	"golang.org/x/time/rate"
)

const (
	msgUnknownCommand     = "I don't know that command. Try /help."
	msgStaleContinuation  = "This action is no longer available. Start over with /help."
	msgTemporarilyDown    = "The directory service is temporarily unavailable. Please try again shortly."
	msgInternalError      = "Something went wrong on my end. Please try again."
	defaultPendingTTL     = 10 * time.Minute
	defaultChatEventRate  = rate.Limit(5) // events per second per chat
	defaultChatEventBurst = 10
)

// Router turns inbound chat events into calls on the binding and permission
// services. Each command maps to up to three stages: a direct invocation, a
// forced-reply continuation, and a button-callback continuation. Multi-stage
// state lives in an explicit per-chat pending-action row, not in the bot's
// own message history.
type Router struct {
	Bind   *service.BindingService
	Perms  *service.PermissionService
	Store  store.Store
	Sender Sender
	Tasks  TaskInvoker

	// PendingTTL bounds how long a multi-stage command waits for its
	// continuation.
	PendingTTL time.Duration

	table    map[string]handlerSet
	limiters *chatLimiters
}

// NewRouter wires the dispatch table. Tasks may be nil; a no-op invoker is
// substituted.
func NewRouter(bind *service.BindingService, perms *service.PermissionService, st store.Store, sender Sender, tasks TaskInvoker) *Router {
	r := &Router{
		Bind:       bind,
		Perms:      perms,
		Store:      st,
		Sender:     sender,
		Tasks:      tasks,
		PendingTTL: defaultPendingTTL,
		limiters:   newChatLimiters(defaultChatEventRate, defaultChatEventBurst),
	}
	if r.Tasks == nil {
		r.Tasks = NopInvoker{}
	}
	r.table = r.commandTable()
	return r
}

// HandleUpdate processes one inbound event. Errors are reported to the user
// and logged; they never propagate to the caller so one event's failure
// cannot affect another in flight.
func (r *Router) HandleUpdate(ctx context.Context, u Update) {
	chatID := u.ChatID()
	if chatID == 0 {
		return
	}

	ctx = slogx.WithChat(ctx, chatID)
	l := slogx.FromContext(ctx)

	if !r.limiters.Allow(chatID) {
		l.Warn("chat rate limit exceeded, dropping event")
		return
	}

	// Processing indicator is best effort.
	_ = r.Sender.SendTyping(ctx, chatID)

	var err error
	switch {
	case u.Callback != nil:
		err = r.dispatchCallback(ctx, u.Callback)
	case u.Message != nil && strings.HasPrefix(strings.TrimSpace(u.Message.Text), "/"):
		err = r.dispatchInvoke(ctx, u.Message)
	case u.Message != nil:
		err = r.dispatchReply(ctx, u.Message)
	default:
		return
	}

	if err != nil {
		l.Error("event handling failed", "error", err)
		if msg := userMessage(err); msg != "" {
			_ = r.Sender.SendMessage(ctx, chatID, msg)
		}
	}
}

// dispatchInvoke handles a fresh command message. A new command supersedes
// any pending continuation the chat had.
func (r *Router) dispatchInvoke(ctx context.Context, m *Message) error {
	fields := strings.Fields(m.Text)
	command := strings.ToLower(fields[0])

	// Strip a "@botname" suffix used in group chats.
	if i := strings.IndexByte(command, '@'); i > 0 {
		command = command[:i]
	}

	set, ok := r.table[command]
	if !ok || set.Invoke == nil {
		return r.Sender.SendMessage(ctx, m.ChatID, msgUnknownCommand)
	}

	if err := r.Store.PendingActions().DeletePendingAction(ctx, m.ChatID); err != nil {
		return err
	}

	return set.Invoke(ctx, event{
		ChatID:   m.ChatID,
		UserID:   m.UserID,
		Username: m.Username,
		Text:     m.Text,
		Args:     fields[1:],
	})
}

// dispatchReply handles a non-command message. It is a continuation only if
// the chat has a live pending action whose command supports a reply stage;
// anything else is reported explicitly instead of being guessed at.
func (r *Router) dispatchReply(ctx context.Context, m *Message) error {
	pending, err := r.pendingFor(ctx, m.ChatID)
	if err != nil {
		return err
	}
	if pending == nil {
		if m.IsReply {
			// A reply to a prompt we no longer remember.
			return r.unsupportedContinuation(ctx, m.ChatID, "reply", "")
		}
		return r.Sender.SendMessage(ctx, m.ChatID, msgUnknownCommand)
	}

	set, ok := r.table[pending.Command]
	if !ok || set.Reply == nil {
		return r.unsupportedContinuation(ctx, m.ChatID, "reply", pending.Command)
	}

	return set.Reply(ctx, event{
		ChatID:   m.ChatID,
		UserID:   m.UserID,
		Username: m.Username,
		Text:     m.Text,
		Pending:  pending,
	})
}

// dispatchCallback handles a button click, keyed by the chat's pending
// action.
func (r *Router) dispatchCallback(ctx context.Context, cb *CallbackQuery) error {
	pending, err := r.pendingFor(ctx, cb.ChatID)
	if err != nil {
		return err
	}
	if pending == nil {
		return r.unsupportedContinuation(ctx, cb.ChatID, "callback", "")
	}

	set, ok := r.table[pending.Command]
	if !ok || set.Callback == nil {
		return r.unsupportedContinuation(ctx, cb.ChatID, "callback", pending.Command)
	}

	return set.Callback(ctx, event{
		ChatID:   cb.ChatID,
		UserID:   cb.UserID,
		Username: cb.Username,
		Text:     cb.Data,
		Pending:  pending,
	})
}

// pendingFor loads the chat's live pending action, mapping absence to nil.
func (r *Router) pendingFor(ctx context.Context, chatID int64) (*pendingRef, error) {
	p, err := r.Store.PendingActions().GetPendingAction(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pendingRef{Command: p.Command, Param: p.Param}, nil
}

// setPending records the continuation the chat's next reply or callback
// belongs to.
func (r *Router) setPending(ctx context.Context, chatID int64, command, param string) error {
	return r.Store.PendingActions().UpsertPendingAction(ctx, domain.PendingAction{
		ChatID:    chatID,
		Command:   command,
		Param:     param,
		ExpiresAt: time.Now().UTC().Add(r.PendingTTL),
	})
}

// clearPending consumes the continuation once its stage has run.
func (r *Router) clearPending(ctx context.Context, chatID int64) {
	if err := r.Store.PendingActions().DeletePendingAction(ctx, chatID); err != nil {
		slogx.FromContext(ctx).Error("failed to clear pending action", "error", err)
	}
}

// unsupportedContinuation is the explicit branch for a reply or callback that
// has nowhere to go: no pending record, an expired one, or a command stage
// with no handler.
func (r *Router) unsupportedContinuation(ctx context.Context, chatID int64, stage, command string) error {
	slogx.FromContext(ctx).Warn("unsupported continuation", "stage", stage, "command", command)
	return r.Sender.SendMessage(ctx, chatID, msgStaleContinuation)
}

// userMessage maps a handler error to the text shown to the user. Unmapped
// errors get a generic line; the detail stays in the log.
func userMessage(err error) string {
	var apiErr *graphsdk.APIError
	switch {
	case errors.Is(err, service.ErrInvalidClientID):
		return "That client id is not a valid GUID."
	case errors.Is(err, service.ErrInvalidEmail):
		return "That email address doesn't look right."
	case errors.Is(err, service.ErrInvalidPayload):
		return "I couldn't parse that token payload. Paste the full OAuth response."
	case errors.Is(err, service.ErrAppNotFound):
		return "I don't know that application."
	case errors.Is(err, service.ErrAuthNotFound):
		return "I don't know that bound token."
	case errors.Is(err, service.ErrDuplicateApp):
		return "That client id is already registered."
	case errors.As(err, &apiErr) && apiErr.Transient():
		return msgTemporarilyDown
	case errors.As(err, &apiErr):
		return "The directory service rejected that: " + apiErr.Error()
	}
	return msgInternalError
}
