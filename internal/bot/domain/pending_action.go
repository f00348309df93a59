package domain

import "time"

// PendingAction records that a multi-stage command is waiting for the chat's
// next reply or button callback. At most one pending action exists per chat;
// invoking another multi-stage command replaces it. Expired records are swept
// by housekeeping.
type PendingAction struct {
	ChatID    int64
	Command   string
	Param     string // stage-captured parameter, e.g. the selected client id
	ExpiresAt time.Time
	CreatedAt time.Time
}
