package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/utils"
	"github.com/google/uuid"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, sendErr string) error
	ListNotifications(ctx context.Context, page, size int) ([]*models.Notification, int, error)
}

type notificationRepository struct {
	DB *sql.DB
}

func NewNotificationRepo(db *sql.DB) NotificationRepository {
	return &notificationRepository{DB: db}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO notifications (type, recipient, subject, content, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query, n.Type, n.Recipient, n.Subject, n.Content, n.Status).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
}

func (r *notificationRepository) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status models.NotificationStatus, sendErr string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var sentAt *time.Time

	if status == models.NotificationStatusSent {
		now := time.Now()
		sentAt = &now
	}

	result, err := r.DB.ExecContext(dbCtx,
		`UPDATE notifications SET status = $1, error = $2, sent_at = $3, updated_at = NOW() WHERE id = $4`,
		status, sendErr, sentAt, id)
	if err != nil {
		return fmt.Errorf("updating notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *notificationRepository) ListNotifications(ctx context.Context, page, size int) ([]*models.Notification, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	if err := r.DB.QueryRowContext(dbCtx, `SELECT COUNT(*) FROM notifications`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	offset := (page - 1) * size

	query := `
		SELECT id, type, recipient, subject, content, status, COALESCE(error, ''), created_at, updated_at, sent_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.DB.QueryContext(dbCtx, query, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}

	defer rows.Close()

	var notifications []*models.Notification

	for rows.Next() {
		n := &models.Notification{}

		err := rows.Scan(&n.ID, &n.Type, &n.Recipient, &n.Subject, &n.Content,
			&n.Status, &n.Error, &n.CreatedAt, &n.UpdatedAt, &n.SentAt)
		if err != nil {
			return nil, 0, err
		}

		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}
