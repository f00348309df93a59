package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
	"github.com/aussiebroadwan/graphbot/internal/bot/store"
)

type appsRepo struct {
	db dbtx
}

func (r *appsRepo) GetAppByID(ctx context.Context, id string) (domain.App, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, email, secret, created_at, updated_at
		FROM apps WHERE id = ?`, id)

	var a domain.App
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Email, &a.Secret, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.App{}, mapNotFound(err)
	}
	return a, nil
}

func (r *appsRepo) ListAppsByUserID(ctx context.Context, userID int64) ([]domain.App, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, email, secret, created_at, updated_at
		FROM apps WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []domain.App
	for rows.Next() {
		var a domain.App
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Email, &a.Secret, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (r *appsRepo) CreateApp(ctx context.Context, a domain.App) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO apps (id, user_id, name, email, secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, a.Email, a.Secret, now, now)
	return mapConflict(err)
}

func (r *appsRepo) DeleteApp(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM apps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *appsRepo) CountAppsByUserID(ctx context.Context, userID int64) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM apps WHERE user_id = ?`, userID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *appsRepo) ClearAppSecret(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE apps SET secret = '', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}
