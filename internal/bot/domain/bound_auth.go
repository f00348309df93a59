package domain

import "time"

// BoundAuth is a delegated access token obtained via the authorization-code
// flow, associated with exactly one registered App. Multiple bindings per app
// are allowed and distinguished by name; names are not required to be unique.
type BoundAuth struct {
	ID           string // ULID
	AppID        string
	Name         string
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    *time.Time // nil when the expiry is unknowable
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
