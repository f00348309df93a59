package domain

import "time"

// App is a registered third-party application credential set. The id is the
// application's client id and must be a valid GUID; it is unique across all
// registered apps.
type App struct {
	ID        string // client id (GUID)
	UserID    int64
	Name      string
	Email     string // used for tenant resolution
	Secret    string // consumed by validation; redacted on external reads
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppSummary is the (clientId, name) projection used for menus and listings.
type AppSummary struct {
	ID   string
	Name string
}
