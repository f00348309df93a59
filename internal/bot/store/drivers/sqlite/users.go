package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
)

type usersRepo struct {
	db dbtx
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, is_admin, created_at, updated_at
		FROM users WHERE id = ?`, id)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) UpsertUser(ctx context.Context, id int64, username string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, is_admin, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			updated_at = excluded.updated_at`,
		id, username, now, now)
	return err
}

func (r *usersRepo) SetAdmin(ctx context.Context, id int64, username string, admin bool) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			is_admin = excluded.is_admin,
			updated_at = excluded.updated_at`,
		id, username, admin, now, now)
	return err
}
