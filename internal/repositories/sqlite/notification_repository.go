package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

type notificationRepository struct {
	provider *Provider
}

// NewNotificationRepository builds the SQLite-backed notification repository.
// Payloads are stored as JSON text.
func NewNotificationRepository(provider *Provider) (repositories.NotificationRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("sqlite provider is required")
	}
	return &notificationRepository{provider: provider}, nil
}

const notificationColumns = `id, client_id, event, channel, status, recipient, payload,
	retry_count, max_retries, scheduled_for, last_error, sent_at, created_at, updated_at`

func (r *notificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	payload, err := encodePayload(notification.Payload)
	if err != nil {
		return wrapError("notifications.insert", err)
	}
	const query = `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.provider.q(ctx).ExecContext(ctx, query,
		notification.ID, notification.ClientID, notification.Event,
		notification.Channel, notification.Status, notification.Recipient, payload,
		notification.RetryCount, notification.MaxRetries,
		nullableTime(notification.ScheduledFor), nullableString(notification.LastError),
		nullableTime(notification.SentAt), notification.CreatedAt, notification.UpdatedAt)
	if err != nil {
		return wrapError("notifications.insert", err)
	}
	return nil
}

func (r *notificationRepository) Update(ctx context.Context, notification domain.Notification) error {
	const query = `
		UPDATE notifications
		SET channel = ?, status = ?, retry_count = ?, scheduled_for = ?,
			last_error = ?, sent_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.provider.q(ctx).ExecContext(ctx, query,
		notification.Channel, notification.Status, notification.RetryCount,
		nullableTime(notification.ScheduledFor), nullableString(notification.LastError),
		nullableTime(notification.SentAt), notification.UpdatedAt, notification.ID)
	if err != nil {
		return wrapError("notifications.update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("notifications.update")
	}
	return nil
}

func (r *notificationRepository) FindByID(ctx context.Context, id string) (domain.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`
	notification, err := scanNotification(r.provider.q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Notification{}, notFoundError("notifications.find_by_id")
	}
	if err != nil {
		return domain.Notification{}, wrapError("notifications.find_by_id", err)
	}
	return notification, nil
}

func (r *notificationRepository) ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	const query = `SELECT ` + notificationColumns + ` FROM notifications
		WHERE status = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)
		ORDER BY created_at, id LIMIT ?`
	rows, err := r.provider.q(ctx).QueryContext(ctx, query, domain.NotificationStatusPending, now, limit)
	if err != nil {
		return nil, wrapError("notifications.list_pending", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, wrapError("notifications.list_pending", err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("notifications.list_pending", err)
	}
	return notifications, nil
}

func scanNotification(row rowScanner) (domain.Notification, error) {
	var (
		notification domain.Notification
		payload      string
		scheduledFor sql.NullTime
		lastError    sql.NullString
		sentAt       sql.NullTime
	)
	err := row.Scan(&notification.ID, &notification.ClientID, &notification.Event,
		&notification.Channel, &notification.Status, &notification.Recipient, &payload,
		&notification.RetryCount, &notification.MaxRetries,
		&scheduledFor, &lastError, &sentAt,
		&notification.CreatedAt, &notification.UpdatedAt)
	if err != nil {
		return domain.Notification{}, err
	}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &notification.Payload); err != nil {
			return domain.Notification{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	if scheduledFor.Valid {
		t := scheduledFor.Time
		notification.ScheduledFor = &t
	}
	if lastError.Valid {
		notification.LastError = &lastError.String
	}
	if sentAt.Valid {
		t := sentAt.Time
		notification.SentAt = &t
	}
	return notification, nil
}

func encodePayload(payload map[string]any) (string, error) {
	if len(payload) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(raw), nil
}
