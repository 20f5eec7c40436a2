package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/lamiedu/taarifa/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sql.DB) *notificationRepository {
	return &notificationRepository{db: sqlx.NewDb(db, "postgres")}
}

// trapNoRowsErr maps psql "no rows" err to notification.ErrNotFound
func (repo notificationRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return notification.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo notificationRepository) Insert(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.IsRead = false

	err := repo.db.QueryRowContext(ctx,
		`INSERT INTO notification (recipient_role, recipient_id, title, message, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		n.RecipientRole, n.RecipientID, n.Title, n.Message, n.IsRead, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo notificationRepository) GetByID(ctx context.Context, id int) (notification.Notification, error) {
	var n notification.Notification
	err := repo.db.GetContext(ctx, &n,
		`SELECT id, recipient_role, recipient_id, title, message, is_read, created_at
		 FROM notification
		 WHERE id = $1`, id)
	if err != nil {
		return notification.Notification{}, repo.trapNoRowsErr(err, "finding notification by ID")
	}
	return n, nil
}

func (repo notificationRepository) ListByRecipient(ctx context.Context, rcpt notification.Recipient) ([]notification.Notification, error) {
	notifs := make([]notification.Notification, 0)
	err := repo.db.SelectContext(ctx, &notifs,
		`SELECT id, recipient_role, recipient_id, title, message, is_read, created_at
		 FROM notification
		 WHERE recipient_role = $1 AND recipient_id = $2
		 ORDER BY created_at DESC, id DESC`,
		rcpt.Role, rcpt.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, rcpt notification.Recipient) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
		 FROM notification
		 WHERE recipient_role = $1 AND recipient_id = $2 AND NOT is_read`,
		rcpt.Role, rcpt.ID)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo notificationRepository) SetRead(ctx context.Context, id int) (bool, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE notification SET is_read = TRUE WHERE id = $1 AND NOT is_read`, id)
	if err != nil {
		return false, errors.Wrap(err, "marking notification read")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "marking notification read")
	}
	return cnt > 0, nil
}

func (repo notificationRepository) SetAllRead(ctx context.Context, rcpt notification.Recipient) (int, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE notification SET is_read = TRUE
		 WHERE recipient_role = $1 AND recipient_id = $2 AND NOT is_read`,
		rcpt.Role, rcpt.ID)
	if err != nil {
		return 0, errors.Wrap(err, "marking all notifications read")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "marking all notifications read")
	}
	return int(cnt), nil
}

func (repo notificationRepository) Delete(ctx context.Context, id int) (bool, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM notification WHERE id = $1`, id)
	if err != nil {
		return false, errors.Wrap(err, "deleting notification")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "deleting notification")
	}
	return cnt > 0, nil
}
