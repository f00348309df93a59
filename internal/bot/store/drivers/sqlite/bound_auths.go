package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
	"github.com/aussiebroadwan/graphbot/internal/bot/store"
)

type boundAuthsRepo struct {
	db dbtx
}

const boundAuthColumns = `id, app_id, name, access_token, refresh_token, scope, expires_at, created_at, updated_at`

func scanBoundAuth(scan func(dest ...any) error) (domain.BoundAuth, error) {
	var b domain.BoundAuth
	var expiresAt sql.NullTime
	err := scan(&b.ID, &b.AppID, &b.Name, &b.AccessToken, &b.RefreshToken, &b.Scope, &expiresAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return domain.BoundAuth{}, err
	}
	b.ExpiresAt = mapNullTimePtr(expiresAt)
	return b, nil
}

func (r *boundAuthsRepo) GetBoundAuthByID(ctx context.Context, id string) (domain.BoundAuth, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+boundAuthColumns+` FROM bound_auths WHERE id = ?`, id)

	b, err := scanBoundAuth(row.Scan)
	if err != nil {
		return domain.BoundAuth{}, mapNotFound(err)
	}
	return b, nil
}

func (r *boundAuthsRepo) ListBoundAuthsByUserID(ctx context.Context, userID int64) ([]domain.BoundAuth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.app_id, b.name, b.access_token, b.refresh_token, b.scope, b.expires_at, b.created_at, b.updated_at
		FROM bound_auths b
		JOIN apps a ON a.id = b.app_id
		WHERE a.user_id = ?
		ORDER BY b.created_at ASC, b.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auths []domain.BoundAuth
	for rows.Next() {
		b, err := scanBoundAuth(rows.Scan)
		if err != nil {
			return nil, err
		}
		auths = append(auths, b)
	}
	return auths, rows.Err()
}

func (r *boundAuthsRepo) GetLatestBoundAuthByUserID(ctx context.Context, userID int64) (domain.BoundAuth, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT b.id, b.app_id, b.name, b.access_token, b.refresh_token, b.scope, b.expires_at, b.created_at, b.updated_at
		FROM bound_auths b
		JOIN apps a ON a.id = b.app_id
		WHERE a.user_id = ?
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT 1`, userID)

	b, err := scanBoundAuth(row.Scan)
	if err != nil {
		return domain.BoundAuth{}, mapNotFound(err)
	}
	return b, nil
}

func (r *boundAuthsRepo) CreateBoundAuth(ctx context.Context, b domain.BoundAuth) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bound_auths (id, app_id, name, access_token, refresh_token, scope, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AppID, b.Name, b.AccessToken, b.RefreshToken, b.Scope, mapOptionalTime(b.ExpiresAt), now, now)
	return mapConflict(err)
}

func (r *boundAuthsRepo) DeleteBoundAuth(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bound_auths WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *boundAuthsRepo) CountBoundAuthsByUserID(ctx context.Context, userID int64) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM bound_auths b
		JOIN apps a ON a.id = b.app_id
		WHERE a.user_id = ?`, userID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
