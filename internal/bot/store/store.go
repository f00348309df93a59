package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and a transaction entry point for multi-step operations that must
// be atomic (e.g., user upsert + app insert during registration).
type Store interface {
	Users() Users
	Apps() Apps
	BoundAuths() BoundAuths
	PendingActions() PendingActions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by the external chat/account id.
	GetUserByID(ctx context.Context, id int64) (domain.User, error)

	// UpsertUser inserts the user or refreshes the username, preserving the
	// admin flag on existing rows.
	UpsertUser(ctx context.Context, id int64, username string) error

	// SetAdmin upserts the user with the given admin flag.
	SetAdmin(ctx context.Context, id int64, username string, admin bool) error
}

type Apps interface {
	// GetAppByID fetches a registered app by its client id.
	GetAppByID(ctx context.Context, id string) (domain.App, error)

	// ListAppsByUserID returns the user's apps in creation order.
	ListAppsByUserID(ctx context.Context, userID int64) ([]domain.App, error)

	// CreateApp inserts a new app. Inserting an already registered client id
	// returns ErrAlreadyExists (primary key conflict).
	CreateApp(ctx context.Context, a domain.App) error

	// DeleteApp cascades to bound_auths (per schema).
	DeleteApp(ctx context.Context, id string) error

	// CountAppsByUserID counts the user's registered apps.
	CountAppsByUserID(ctx context.Context, userID int64) (int, error)

	// ClearAppSecret blanks the stored secret once it has been consumed.
	ClearAppSecret(ctx context.Context, id string) error
}

type BoundAuths interface {
	// GetBoundAuthByID fetches a binding by id.
	GetBoundAuthByID(ctx context.Context, id string) (domain.BoundAuth, error)

	// ListBoundAuthsByUserID returns the user's bindings (joined through the
	// owning apps) in creation order.
	ListBoundAuthsByUserID(ctx context.Context, userID int64) ([]domain.BoundAuth, error)

	// GetLatestBoundAuthByUserID returns the user's most recently created
	// binding, for credential resolution by the task runner.
	GetLatestBoundAuthByUserID(ctx context.Context, userID int64) (domain.BoundAuth, error)

	// CreateBoundAuth inserts a new binding (id is ULID).
	CreateBoundAuth(ctx context.Context, b domain.BoundAuth) error

	// DeleteBoundAuth removes a binding by id.
	DeleteBoundAuth(ctx context.Context, id string) error

	// CountBoundAuthsByUserID counts the user's bindings across all apps.
	CountBoundAuthsByUserID(ctx context.Context, userID int64) (int, error)
}

type PendingActions interface {
	// UpsertPendingAction records the chat's pending continuation, replacing
	// any previous one.
	UpsertPendingAction(ctx context.Context, p domain.PendingAction) error

	// GetPendingAction returns the chat's pending continuation if it exists
	// and has not expired.
	GetPendingAction(ctx context.Context, chatID int64) (domain.PendingAction, error)

	// DeletePendingAction consumes the chat's pending continuation.
	DeletePendingAction(ctx context.Context, chatID int64) error

	// DeleteExpiredPendingActions is housekeeping.
	DeleteExpiredPendingActions(ctx context.Context) error
}
