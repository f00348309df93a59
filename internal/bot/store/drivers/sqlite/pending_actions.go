package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
)

type pendingActionsRepo struct {
	db dbtx
}

func (r *pendingActionsRepo) UpsertPendingAction(ctx context.Context, p domain.PendingAction) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_actions (chat_id, command, param, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			command = excluded.command,
			param = excluded.param,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		p.ChatID, p.Command, p.Param, p.ExpiresAt, now)
	return err
}

func (r *pendingActionsRepo) GetPendingAction(ctx context.Context, chatID int64) (domain.PendingAction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT chat_id, command, param, expires_at, created_at
		FROM pending_actions
		WHERE chat_id = ? AND expires_at > ?`,
		chatID, time.Now().UTC())

	var p domain.PendingAction
	if err := row.Scan(&p.ChatID, &p.Command, &p.Param, &p.ExpiresAt, &p.CreatedAt); err != nil {
		return domain.PendingAction{}, mapNotFound(err)
	}
	return p, nil
}

func (r *pendingActionsRepo) DeletePendingAction(ctx context.Context, chatID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE chat_id = ?`, chatID)
	return err
}

func (r *pendingActionsRepo) DeleteExpiredPendingActions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
