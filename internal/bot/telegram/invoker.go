package telegram

import "context"

// TaskInvoker executes a remote API task with the user's bound credential.
// The router resolves the credential and calls it; the task logic itself is
// an external collaborator.
type TaskInvoker interface {
	Run(ctx context.Context, userID int64, accessToken string) (ok bool, result string)
}

// NopInvoker is the default invoker when no task runner is attached.
type NopInvoker struct{}

func (NopInvoker) Run(ctx context.Context, userID int64, accessToken string) (bool, string) {
	return false, "no API task runner is configured"
}
