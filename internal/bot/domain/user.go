package domain

import "time"

// User is a chat account known to the bot. The id is the externally assigned
// chat/account identifier. Users are created lazily on first successful app
// registration and are never hard-deleted by this core.
type User struct {
	ID        int64
	Username  string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
