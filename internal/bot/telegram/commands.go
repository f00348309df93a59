package telegram

import (
	"context"
	"strings"
)

// handlerFunc handles one stage of a command.
type handlerFunc func(ctx context.Context, ev event) error

// handlerSet is the capability triple for a command: a nil stage means the
// command does not support that kind of continuation, and the router reports
// it explicitly instead of dispatching.
type handlerSet struct {
	Invoke   handlerFunc
	Reply    handlerFunc
	Callback handlerFunc
}

// event is the normalized input a handler sees, regardless of which stage
// produced it.
type event struct {
	ChatID   int64
	UserID   int64
	Username string

	// Text is the reply body (reply stage) or button data (callback stage).
	Text string

	// Args are the whitespace-split tokens after the command (invoke stage).
	Args []string

	// Pending is the chat's pending-action record for reply and callback
	// stages. Nil on invoke.
	Pending *pendingRef
}

// pendingRef is the continuation state a multi-stage command stashed when it
// was invoked.
type pendingRef struct {
	Command string
	Param   string
}

// commandTable builds the static dispatch table. Stage capabilities are fixed
// per command; adding a stage here without a handler is a programming error
// caught by the explicit nil checks in dispatch.
func (r *Router) commandTable() map[string]handlerSet {
	return map[string]handlerSet{
		"/start":                 {Invoke: r.handleStart},
		"/help":                  {Invoke: r.handleHelp},
		"/bind":                  {Invoke: r.handleBindMenu},
		"/regapp":                {Invoke: r.handleRegAppInvoke, Reply: r.handleRegAppReply},
		"/deleteapp":             {Invoke: r.handleDeleteAppInvoke, Callback: r.handleDeleteAppCallback},
		"/queryapp":              {Invoke: r.handleQueryAppInvoke, Callback: r.handleQueryAppCallback},
		"/bindauth":              {Invoke: r.handleBindAuthInvoke, Reply: r.handleBindAuthReply, Callback: r.handleBindAuthCallback},
		"/unbindauth":            {Invoke: r.handleUnbindAuthInvoke, Callback: r.handleUnbindAuthCallback},
		"/queryauth":             {Invoke: r.handleQueryAuthInvoke, Callback: r.handleQueryAuthCallback},
		"/runapitask":            {Invoke: r.handleRunAPITask},
		"/addadminpermission":    {Invoke: r.handleAddAdminInvoke, Reply: r.handleAddAdminReply},
		"/removeadminpermission": {Invoke: r.handleRemoveAdmin},
	}
}

// helpText renders the command menu. Admin-only entries are shown only to
// admins.
func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	b.WriteString("/start - welcome and overview\n")
	b.WriteString("/help - this menu\n")
	b.WriteString("/bind - credential binding menu\n")
	b.WriteString("/regapp - register an application\n")
	b.WriteString("/queryapp - show a registered application\n")
	b.WriteString("/deleteapp - delete a registered application\n")
	b.WriteString("/bindauth - bind a delegated token to an application\n")
	b.WriteString("/queryauth - show a bound token\n")
	b.WriteString("/unbindauth - remove a bound token\n")
	b.WriteString("/runapitask - run the API task with your latest token\n")
	if admin {
		b.WriteString("/addadminpermission - grant yourself admin (secret required)\n")
		b.WriteString("/removeadminpermission - drop your admin flag\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// bindMenuText renders the binding submenu filtered to what the user can
// actually do given their current app and auth counts.
func bindMenuText(appCount, authCount int) string {
	var b strings.Builder
	b.WriteString("Binding menu:\n")
	b.WriteString("/regapp - register an application\n")
	if appCount > 0 {
		b.WriteString("/queryapp - show a registered application\n")
		b.WriteString("/deleteapp - delete a registered application\n")
		b.WriteString("/bindauth - bind a delegated token\n")
	}
	if authCount > 0 {
		b.WriteString("/queryauth - show a bound token\n")
		b.WriteString("/unbindauth - remove a bound token\n")
		b.WriteString("/runapitask - run the API task\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
