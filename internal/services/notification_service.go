package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

// ErrNotificationInvalidInput indicates the caller supplied invalid parameters.
var ErrNotificationInvalidInput = errors.New("notification service: invalid input")

// ErrNotificationNotFound indicates the requested notification does not exist.
var ErrNotificationNotFound = errors.New("notification service: not found")

// ErrNotificationConflict indicates the record could not be updated due to concurrent modifications.
var ErrNotificationConflict = errors.New("notification service: conflict")

// ErrNotificationUnavailable indicates the notification backend cannot fulfil the request.
var ErrNotificationUnavailable = errors.New("notification service: unavailable")

// ErrNotificationInvalidState indicates the lifecycle operation does not apply
// to the record's current status.
var ErrNotificationInvalidState = errors.New("notification service: invalid state")

// ErrRealTimeUnavailable is returned by real-time notifiers that have no
// live channel configured.
var ErrRealTimeUnavailable = errors.New("notification service: realtime channel unavailable")

const (
	defaultMaxRetries     = 3
	defaultPendingLimit   = 50
	retryBackoffPerFailed = 5 * time.Minute
)

// NoopRealTimeNotifier always reports the realtime channel unavailable, so
// every dispatch falls back to the durable channel.
type NoopRealTimeNotifier struct{}

// Notify implements RealTimeNotifier.
func (NoopRealTimeNotifier) Notify(context.Context, NotificationEvent) error {
	return ErrRealTimeUnavailable
}

// NotificationServiceDeps wires the repository and delivery channels for the dispatcher.
type NotificationServiceDeps struct {
	Repository  repositories.NotificationRepository
	RealTime    RealTimeNotifier
	Messenger   Messenger
	Clock       func() time.Time
	MaxRetries  int
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type notificationService struct {
	repo       repositories.NotificationRepository
	realtime   RealTimeNotifier
	messenger  Messenger
	newID      func() string
	now        func() time.Time
	maxRetries int
	logger     func(context.Context, string, map[string]any)
}

// NewNotificationService constructs a NotificationService enforcing dependency validation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Repository == nil {
		return nil, errors.New("notification service: repository is required")
	}

	realtime := deps.RealTime
	if realtime == nil {
		realtime = NoopRealTimeNotifier{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	maxRetries := deps.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &notificationService{
		repo:       deps.Repository,
		realtime:   realtime,
		messenger:  deps.Messenger,
		newID:      idGen,
		now:        func() time.Time { return clock().UTC() },
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Dispatch attempts real-time delivery and always writes a durable record.
// On real-time success the record is stored already sent; on failure it is
// stored pending on the fallback channel for later delivery. Real-time
// failures never propagate to the caller.
func (s *notificationService) Dispatch(ctx context.Context, event NotificationEvent) (Notification, error) {
	eventName := strings.TrimSpace(event.Event)
	if eventName == "" {
		return Notification{}, fmt.Errorf("%w: event name is required", ErrNotificationInvalidInput)
	}

	now := s.now()
	notification := domain.Notification{
		ID:         "ntf_" + s.newID(),
		ClientID:   strings.TrimSpace(event.ClientID),
		Event:      eventName,
		Recipient:  strings.TrimSpace(event.Recipient),
		Payload:    event.Payload,
		MaxRetries: s.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.realtime.Notify(ctx, event); err != nil {
		notification.Channel = domain.ChannelEmail
		notification.Status = domain.NotificationStatusPending
		if !errors.Is(err, ErrRealTimeUnavailable) {
			s.logger(ctx, "notification.realtime.failed", map[string]any{
				"event": eventName,
				"error": err.Error(),
			})
		}
	} else {
		notification.Channel = domain.ChannelRealtime
		notification.Status = domain.NotificationStatusSent
		notification.SentAt = &now
	}

	if err := s.repo.Insert(ctx, notification); err != nil {
		s.logger(ctx, "notification.persist.failed", map[string]any{
			"event": eventName,
			"error": err.Error(),
		})
		return Notification{}, s.translateRepoError(err)
	}

	s.logger(ctx, "notification.dispatched", map[string]any{
		"notification_id": notification.ID,
		"event":           eventName,
		"channel":         string(notification.Channel),
		"status":          string(notification.Status),
	})
	return notification, nil
}

func (s *notificationService) Pending(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	pending, err := s.repo.ListPending(ctx, s.now(), limit)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return pending, nil
}

// DeliverPending sweeps due pending notifications through the fallback
// messenger. Each record is settled individually so one bad recipient never
// blocks the batch.
func (s *notificationService) DeliverPending(ctx context.Context, limit int) (DeliveryReport, error) {
	if s.messenger == nil {
		return DeliveryReport{}, ErrNotificationUnavailable
	}

	pending, err := s.Pending(ctx, limit)
	if err != nil {
		return DeliveryReport{}, err
	}

	report := DeliveryReport{Attempted: len(pending)}
	for _, notification := range pending {
		if err := s.messenger.Send(ctx, notification.Channel, notification.Recipient, notification.Payload); err != nil {
			report.Failed++
			if _, err := s.MarkFailed(ctx, notification.ID, err.Error()); err != nil {
				s.logger(ctx, "notification.mark_failed.error", map[string]any{
					"notification_id": notification.ID,
					"error":           err.Error(),
				})
			}
			continue
		}
		report.Sent++
		if _, err := s.MarkSent(ctx, notification.ID); err != nil {
			s.logger(ctx, "notification.mark_sent.error", map[string]any{
				"notification_id": notification.ID,
				"error":           err.Error(),
			})
		}
	}
	return report, nil
}

// MarkSent finalises a pending notification as delivered.
func (s *notificationService) MarkSent(ctx context.Context, notificationID string) (Notification, error) {
	return s.mutate(ctx, notificationID, func(notification *domain.Notification, now time.Time) error {
		if notification.Status != domain.NotificationStatusPending {
			return fmt.Errorf("%w: %s is %s", ErrNotificationInvalidState, notification.ID, notification.Status)
		}
		notification.Status = domain.NotificationStatusSent
		notification.SentAt = &now
		notification.ScheduledFor = nil
		notification.LastError = nil
		return nil
	})
}

// MarkFailed records a delivery failure. Within the retry budget the record
// stays pending with a backed-off schedule; past the budget it becomes
// failed, a terminal state it never leaves.
func (s *notificationService) MarkFailed(ctx context.Context, notificationID, reason string) (Notification, error) {
	reason = strings.TrimSpace(reason)
	return s.mutate(ctx, notificationID, func(notification *domain.Notification, now time.Time) error {
		if notification.Status != domain.NotificationStatusPending {
			return fmt.Errorf("%w: %s is %s", ErrNotificationInvalidState, notification.ID, notification.Status)
		}
		notification.RetryCount++
		if reason != "" {
			notification.LastError = &reason
		}
		if notification.RetryCount >= notification.MaxRetries {
			notification.Status = domain.NotificationStatusFailed
			notification.ScheduledFor = nil
			return nil
		}
		next := now.Add(time.Duration(notification.RetryCount) * retryBackoffPerFailed)
		notification.ScheduledFor = &next
		return nil
	})
}

// Cancel withdraws a pending notification.
func (s *notificationService) Cancel(ctx context.Context, notificationID string) (Notification, error) {
	return s.mutate(ctx, notificationID, func(notification *domain.Notification, now time.Time) error {
		if notification.Status != domain.NotificationStatusPending {
			return fmt.Errorf("%w: %s is %s", ErrNotificationInvalidState, notification.ID, notification.Status)
		}
		notification.Status = domain.NotificationStatusCancelled
		notification.ScheduledFor = nil
		return nil
	})
}

func (s *notificationService) mutate(ctx context.Context, notificationID string, apply func(*domain.Notification, time.Time) error) (Notification, error) {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return Notification{}, fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}

	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		return Notification{}, s.translateRepoError(err)
	}

	now := s.now()
	if err := apply(&notification, now); err != nil {
		return Notification{}, err
	}
	notification.UpdatedAt = now
	if err := s.repo.Update(ctx, notification); err != nil {
		return Notification{}, s.translateRepoError(err)
	}
	return notification, nil
}

func (s *notificationService) translateRepoError(err error) error {
	return mapRepositoryError(err, ErrNotificationNotFound, ErrNotificationConflict, ErrNotificationUnavailable)
}
