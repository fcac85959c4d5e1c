package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vendorlane/api/internal/domain"
)

func newNotificationFixture(t *testing.T, deps NotificationServiceDeps) (NotificationService, *stubNotificationRepo) {
	t.Helper()

	repo := newStubNotificationRepo()
	deps.Repository = repo
	if deps.Clock == nil {
		deps.Clock = fixedClock(testClock)
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = sequentialIDs("id")
	}
	service, err := NewNotificationService(deps)
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}
	return service, repo
}

func TestNotificationServiceDispatchRealtimeSuccess(t *testing.T) {
	notifier := &recordingNotifier{}
	service, repo := newNotificationFixture(t, NotificationServiceDeps{RealTime: notifier})

	notification, err := service.Dispatch(context.Background(), NotificationEvent{
		ClientID:  "cl_1",
		Event:     "order.created",
		Recipient: "anna@example.com",
		Payload:   map[string]any{"order_number": "ORD-20260305-0001"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if notification.Status != domain.NotificationStatusSent {
		t.Fatalf("expected sent, got %q", notification.Status)
	}
	if notification.Channel != domain.ChannelRealtime {
		t.Fatalf("expected realtime channel, got %q", notification.Channel)
	}
	if notification.SentAt == nil {
		t.Fatal("expected SentAt set")
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected one realtime attempt, got %d", len(notifier.events))
	}
	// The durable record is written even on realtime success.
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one durable record, got %d", len(repo.inserted))
	}
}

func TestNotificationServiceDispatchFallsBackToPending(t *testing.T) {
	service, repo := newNotificationFixture(t, NotificationServiceDeps{RealTime: NoopRealTimeNotifier{}})

	notification, err := service.Dispatch(context.Background(), NotificationEvent{
		ClientID:  "cl_1",
		Event:     "order.created",
		Recipient: "anna@example.com",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if notification.Status != domain.NotificationStatusPending {
		t.Fatalf("expected pending, got %q", notification.Status)
	}
	if notification.Channel != domain.ChannelEmail {
		t.Fatalf("expected email fallback channel, got %q", notification.Channel)
	}
	if notification.SentAt != nil {
		t.Fatal("expected SentAt unset for pending record")
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected one durable record, got %d", len(repo.inserted))
	}
}

func TestNotificationServiceDispatchRequiresEvent(t *testing.T) {
	service, _ := newNotificationFixture(t, NotificationServiceDeps{})

	_, err := service.Dispatch(context.Background(), NotificationEvent{ClientID: "cl_1"})
	if !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected ErrNotificationInvalidInput, got %v", err)
	}
}

func TestNotificationServiceMarkFailedSchedulesRetry(t *testing.T) {
	service, repo := newNotificationFixture(t, NotificationServiceDeps{MaxRetries: 3})
	repo.records["ntf_1"] = domain.Notification{
		ID:         "ntf_1",
		Status:     domain.NotificationStatusPending,
		Channel:    domain.ChannelEmail,
		MaxRetries: 3,
	}

	notification, err := service.MarkFailed(context.Background(), "ntf_1", "smtp timeout")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if notification.Status != domain.NotificationStatusPending {
		t.Fatalf("expected still pending, got %q", notification.Status)
	}
	if notification.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", notification.RetryCount)
	}
	if notification.LastError == nil || *notification.LastError != "smtp timeout" {
		t.Fatalf("expected last error recorded, got %v", notification.LastError)
	}
	want := testClock.Add(5 * time.Minute)
	if notification.ScheduledFor == nil || !notification.ScheduledFor.Equal(want) {
		t.Fatalf("expected retry at %v, got %v", want, notification.ScheduledFor)
	}
}

func TestNotificationServiceMarkFailedExhaustsBudget(t *testing.T) {
	service, repo := newNotificationFixture(t, NotificationServiceDeps{MaxRetries: 2})
	repo.records["ntf_1"] = domain.Notification{
		ID:         "ntf_1",
		Status:     domain.NotificationStatusPending,
		Channel:    domain.ChannelEmail,
		RetryCount: 1,
		MaxRetries: 2,
	}

	notification, err := service.MarkFailed(context.Background(), "ntf_1", "still down")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if notification.Status != domain.NotificationStatusFailed {
		t.Fatalf("expected failed after budget exhausted, got %q", notification.Status)
	}
	if notification.ScheduledFor != nil {
		t.Fatal("expected no further scheduling for failed record")
	}

	// Failed is terminal.
	if _, err := service.MarkFailed(context.Background(), "ntf_1", "again"); !errors.Is(err, ErrNotificationInvalidState) {
		t.Fatalf("expected ErrNotificationInvalidState, got %v", err)
	}
	if _, err := service.MarkSent(context.Background(), "ntf_1"); !errors.Is(err, ErrNotificationInvalidState) {
		t.Fatalf("expected ErrNotificationInvalidState, got %v", err)
	}
}

func TestNotificationServiceMarkSentClearsSchedule(t *testing.T) {
	service, repo := newNotificationFixture(t, NotificationServiceDeps{})
	scheduled := testClock.Add(5 * time.Minute)
	lastError := "smtp timeout"
	repo.records["ntf_1"] = domain.Notification{
		ID:           "ntf_1",
		Status:       domain.NotificationStatusPending,
		Channel:      domain.ChannelEmail,
		RetryCount:   1,
		MaxRetries:   3,
		ScheduledFor: &scheduled,
		LastError:    &lastError,
	}

	notification, err := service.MarkSent(context.Background(), "ntf_1")
	if err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if notification.Status != domain.NotificationStatusSent {
		t.Fatalf("expected sent, got %q", notification.Status)
	}
	if notification.ScheduledFor != nil || notification.LastError != nil {
		t.Fatal("expected schedule and error cleared")
	}
	if notification.SentAt == nil {
		t.Fatal("expected SentAt set")
	}
}

func TestNotificationServiceCancelPendingOnly(t *testing.T) {
	service, repo := newNotificationFixture(t, NotificationServiceDeps{})
	sentAt := testClock
	repo.records["ntf_sent"] = domain.Notification{
		ID:      "ntf_sent",
		Status:  domain.NotificationStatusSent,
		Channel: domain.ChannelRealtime,
		SentAt:  &sentAt,
	}
	repo.records["ntf_pending"] = domain.Notification{
		ID:      "ntf_pending",
		Status:  domain.NotificationStatusPending,
		Channel: domain.ChannelEmail,
	}

	if _, err := service.Cancel(context.Background(), "ntf_sent"); !errors.Is(err, ErrNotificationInvalidState) {
		t.Fatalf("expected ErrNotificationInvalidState for sent record, got %v", err)
	}

	notification, err := service.Cancel(context.Background(), "ntf_pending")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if notification.Status != domain.NotificationStatusCancelled {
		t.Fatalf("expected cancelled, got %q", notification.Status)
	}
}

func TestNotificationServiceDeliverPendingSettlesEachRecord(t *testing.T) {
	messenger := &stubMessenger{failFor: map[string]error{"bad@example.com": errors.New("mailbox full")}}
	service, repo := newNotificationFixture(t, NotificationServiceDeps{Messenger: messenger, MaxRetries: 3})
	repo.records["ntf_ok"] = domain.Notification{
		ID:         "ntf_ok",
		Status:     domain.NotificationStatusPending,
		Channel:    domain.ChannelEmail,
		Recipient:  "anna@example.com",
		MaxRetries: 3,
	}
	repo.records["ntf_bad"] = domain.Notification{
		ID:         "ntf_bad",
		Status:     domain.NotificationStatusPending,
		Channel:    domain.ChannelEmail,
		Recipient:  "bad@example.com",
		MaxRetries: 3,
	}

	report, err := service.DeliverPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("DeliverPending: %v", err)
	}
	if report.Attempted != 2 || report.Sent != 1 || report.Failed != 1 {
		t.Fatalf("expected report 2/1/1, got %+v", report)
	}

	ok, _ := repo.FindByID(context.Background(), "ntf_ok")
	if ok.Status != domain.NotificationStatusSent {
		t.Fatalf("expected ntf_ok sent, got %q", ok.Status)
	}
	bad, _ := repo.FindByID(context.Background(), "ntf_bad")
	if bad.Status != domain.NotificationStatusPending || bad.RetryCount != 1 {
		t.Fatalf("expected ntf_bad pending with retry 1, got %q retry %d", bad.Status, bad.RetryCount)
	}
}

func TestNotificationServiceDeliverPendingWithoutMessenger(t *testing.T) {
	service, _ := newNotificationFixture(t, NotificationServiceDeps{})

	if _, err := service.DeliverPending(context.Background(), 10); !errors.Is(err, ErrNotificationUnavailable) {
		t.Fatalf("expected ErrNotificationUnavailable, got %v", err)
	}
}

func TestNotificationServicePendingSkipsFutureSchedules(t *testing.T) {
	service, repo := newNotificationFixture(t, NotificationServiceDeps{})
	future := testClock.Add(time.Hour)
	repo.records["ntf_due"] = domain.Notification{
		ID:      "ntf_due",
		Status:  domain.NotificationStatusPending,
		Channel: domain.ChannelEmail,
	}
	repo.records["ntf_later"] = domain.Notification{
		ID:           "ntf_later",
		Status:       domain.NotificationStatusPending,
		Channel:      domain.ChannelEmail,
		ScheduledFor: &future,
	}

	pending, err := service.Pending(context.Background(), 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "ntf_due" {
		t.Fatalf("expected only ntf_due, got %+v", pending)
	}
}
