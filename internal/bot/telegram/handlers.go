package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
	"github.com/aussiebroadwan/graphbot/internal/bot/service"
)

const (
	regAppPrompt = "Reply with your application details, separated by spaces or newlines:\n" +
		"email clientId clientSecret appName"

	bindAuthPrompt = "Open the authorization link, sign in, then reply here with a binding " +
		"name on the first line and the token response (JSON or the redirect query string) after it."

	adminSecretPrompt = "Reply with the administrator secret."
)

func (r *Router) handleStart(ctx context.Context, ev event) error {
	admin, err := r.Perms.IsAdmin(ctx, ev.UserID)
	if err != nil {
		return err
	}
	text := "Hi! I keep your directory application credentials and delegated tokens on file.\n\n" + helpText(admin)
	return r.Sender.SendMessage(ctx, ev.ChatID, text)
}

func (r *Router) handleHelp(ctx context.Context, ev event) error {
	admin, err := r.Perms.IsAdmin(ctx, ev.UserID)
	if err != nil {
		return err
	}
	return r.Sender.SendMessage(ctx, ev.ChatID, helpText(admin))
}

func (r *Router) handleBindMenu(ctx context.Context, ev event) error {
	appCount, err := r.Bind.AppCount(ctx, ev.UserID)
	if err != nil {
		return err
	}
	authCount, err := r.Bind.AuthCount(ctx, ev.UserID)
	if err != nil {
		return err
	}
	return r.Sender.SendMessage(ctx, ev.ChatID, bindMenuText(appCount, authCount))
}

func (r *Router) handleRegAppInvoke(ctx context.Context, ev event) error {
	if err := r.setPending(ctx, ev.ChatID, "/regapp", ""); err != nil {
		return err
	}
	return r.Sender.SendForceReply(ctx, ev.ChatID, regAppPrompt)
}

func (r *Router) handleRegAppReply(ctx context.Context, ev event) error {
	fields := strings.Fields(ev.Text)
	if len(fields) < 4 {
		// Keep the pending action so the user can just send a corrected reply.
		return r.Sender.SendMessage(ctx, ev.ChatID, "I need four fields.\n"+regAppPrompt)
	}

	email, clientID, secret := fields[0], fields[1], fields[2]
	appName := strings.Join(fields[3:], " ")

	if err := r.Bind.RegisterApp(ctx, ev.UserID, ev.Username, email, clientID, secret, appName); err != nil {
		return err
	}

	r.clearPending(ctx, ev.ChatID)
	return r.Sender.SendMessage(ctx, ev.ChatID,
		fmt.Sprintf("Registered %q (%s). Use /bindauth to bind a token.", appName, clientID))
}

func (r *Router) handleDeleteAppInvoke(ctx context.Context, ev event) error {
	return r.sendAppKeyboard(ctx, ev, "/deleteapp", "Which application should I delete?")
}

func (r *Router) handleDeleteAppCallback(ctx context.Context, ev event) error {
	manageURL, err := r.Bind.DeleteApp(ctx, ev.UserID, ev.Text)
	if err != nil {
		return err
	}

	r.clearPending(ctx, ev.ChatID)
	return r.Sender.SendMessage(ctx, ev.ChatID,
		"Deleted, along with its bound tokens. Finish cleanup on the portal:\n"+manageURL)
}

func (r *Router) handleQueryAppInvoke(ctx context.Context, ev event) error {
	return r.sendAppKeyboard(ctx, ev, "/queryapp", "Which application do you want to see?")
}

func (r *Router) handleQueryAppCallback(ctx context.Context, ev event) error {
	app, err := r.Bind.GetAppInfo(ctx, ev.UserID, ev.Text)
	if err != nil {
		return err
	}

	r.clearPending(ctx, ev.ChatID)
	return r.Sender.SendMessage(ctx, ev.ChatID, formatApp(app))
}

func (r *Router) handleBindAuthInvoke(ctx context.Context, ev event) error {
	return r.sendAppKeyboard(ctx, ev, "/bindauth", "Which application is this token for?")
}

func (r *Router) handleBindAuthCallback(ctx context.Context, ev event) error {
	name, authURL, err := r.Bind.GetAuthURL(ctx, ev.UserID, ev.Text)
	if err != nil {
		return err
	}

	// Remember the chosen app for the reply stage.
	if err := r.setPending(ctx, ev.ChatID, "/bindauth", ev.Text); err != nil {
		return err
	}

	if err := r.Sender.SendMessage(ctx, ev.ChatID,
		fmt.Sprintf("Authorize %q here:\n%s", name, authURL)); err != nil {
		return err
	}
	return r.Sender.SendForceReply(ctx, ev.ChatID, bindAuthPrompt)
}

func (r *Router) handleBindAuthReply(ctx context.Context, ev event) error {
	if ev.Pending.Param == "" {
		// Reply arrived before an application was picked.
		return r.Sender.SendMessage(ctx, ev.ChatID, "Pick an application button first.")
	}

	name, payload, found := strings.Cut(strings.TrimSpace(ev.Text), "\n")
	if !found {
		return r.Sender.SendMessage(ctx, ev.ChatID, "I need two parts.\n"+bindAuthPrompt)
	}

	if err := r.Bind.BindAuth(ctx, ev.UserID, ev.Pending.Param, payload, name); err != nil {
		return err
	}

	r.clearPending(ctx, ev.ChatID)
	return r.Sender.SendMessage(ctx, ev.ChatID,
		fmt.Sprintf("Token bound as %q. Run it with /runapitask.", strings.TrimSpace(name)))
}

func (r *Router) handleUnbindAuthInvoke(ctx context.Context, ev event) error {
	return r.sendAuthKeyboard(ctx, ev, "/unbindauth", "Which bound token should I remove?")
}

func (r *Router) handleUnbindAuthCallback(ctx context.Context, ev event) error {
	if err := r.Bind.UnbindAuth(ctx, ev.UserID, ev.Text); err != nil {
		return err
	}

	r.clearPending(ctx, ev.ChatID)
	return r.Sender.SendMessage(ctx, ev.ChatID, "Token unbound.")
}

func (r *Router) handleQueryAuthInvoke(ctx context.Context, ev event) error {
	return r.sendAuthKeyboard(ctx, ev, "/queryauth", "Which bound token do you want to see?")
}

func (r *Router) handleQueryAuthCallback(ctx context.Context, ev event) error {
	auth, err := r.Bind.GetAuthInfo(ctx, ev.UserID, ev.Text)
	if err != nil {
		return err
	}

	r.clearPending(ctx, ev.ChatID)
	return r.Sender.SendMessage(ctx, ev.ChatID, formatAuth(auth))
}

func (r *Router) handleRunAPITask(ctx context.Context, ev event) error {
	auth, err := r.Bind.ResolveCredential(ctx, ev.UserID)
	if err != nil {
		if errors.Is(err, service.ErrAuthNotFound) {
			return r.Sender.SendMessage(ctx, ev.ChatID, "No bound token yet. Use /bindauth first.")
		}
		return err
	}

	ok, result := r.Tasks.Run(ctx, ev.UserID, auth.AccessToken)
	if !ok {
		return r.Sender.SendMessage(ctx, ev.ChatID, "Task failed: "+result)
	}
	return r.Sender.SendMessage(ctx, ev.ChatID, "Task succeeded: "+result)
}

func (r *Router) handleAddAdminInvoke(ctx context.Context, ev event) error {
	if err := r.setPending(ctx, ev.ChatID, "/addadminpermission", ""); err != nil {
		return err
	}
	return r.Sender.SendForceReply(ctx, ev.ChatID, adminSecretPrompt)
}

func (r *Router) handleAddAdminReply(ctx context.Context, ev event) error {
	granted, err := r.Perms.AddAdminPermission(ctx, ev.UserID, ev.Username, strings.TrimSpace(ev.Text))
	if err != nil {
		return err
	}

	// Consumed either way; a wrong secret means starting over, not retrying
	// an open prompt forever.
	r.clearPending(ctx, ev.ChatID)

	if !granted {
		return r.Sender.SendMessage(ctx, ev.ChatID, "That secret is not correct.")
	}
	return r.Sender.SendMessage(ctx, ev.ChatID, "You are now an administrator.")
}

func (r *Router) handleRemoveAdmin(ctx context.Context, ev event) error {
	if err := r.Perms.RemoveAdminPermission(ctx, ev.UserID, ev.Username); err != nil {
		return err
	}
	return r.Sender.SendMessage(ctx, ev.ChatID, "Administrator flag removed.")
}

// sendAppKeyboard lists the user's apps as one button per row and records the
// pending callback stage.
func (r *Router) sendAppKeyboard(ctx context.Context, ev event, command, prompt string) error {
	apps, err := r.Bind.ListApps(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		return r.Sender.SendMessage(ctx, ev.ChatID, "You have no registered applications. Use /regapp first.")
	}

	rows := make([][]Button, len(apps))
	for i, a := range apps {
		rows[i] = []Button{{Label: a.Name, Data: a.ID}}
	}

	if err := r.setPending(ctx, ev.ChatID, command, ""); err != nil {
		return err
	}
	return r.Sender.SendKeyboard(ctx, ev.ChatID, prompt, rows)
}

// sendAuthKeyboard is the bound-token flavour of sendAppKeyboard.
func (r *Router) sendAuthKeyboard(ctx context.Context, ev event, command, prompt string) error {
	auths, err := r.Bind.ListAuths(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if len(auths) == 0 {
		return r.Sender.SendMessage(ctx, ev.ChatID, "You have no bound tokens. Use /bindauth first.")
	}

	rows := make([][]Button, len(auths))
	for i, a := range auths {
		rows[i] = []Button{{Label: a.Name, Data: a.ID}}
	}

	if err := r.setPending(ctx, ev.ChatID, command, ""); err != nil {
		return err
	}
	return r.Sender.SendKeyboard(ctx, ev.ChatID, prompt, rows)
}

func formatApp(app domain.App) string {
	return fmt.Sprintf("Application %q\nclient id: %s\nemail: %s\nsecret: (redacted)\nregistered: %s",
		app.Name, app.ID, app.Email, app.CreatedAt.Format(time.RFC3339))
}

func formatAuth(auth domain.BoundAuth) string {
	expires := "unknown"
	if auth.ExpiresAt != nil {
		expires = auth.ExpiresAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("Binding %q\napp: %s\nscope: %s\naccess token: %s\nexpires: %s",
		auth.Name, auth.AppID, auth.Scope, truncateToken(auth.AccessToken), expires)
}

// truncateToken keeps just enough of a token to recognize it in chat.
func truncateToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
