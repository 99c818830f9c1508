package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/depot-labs/depot-api/internal/models"
	"github.com/depot-labs/depot-api/pkg/jobs"
)

type watcherLister interface {
	ListWatchers(ctx context.Context, softwareID string) ([]string, error)
}

type notificationSink interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListUnreadByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// NotificationConfig tunes the fan-out worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// NotificationService fans item-created events out to software watchers
// through a background queue. Publication is fire-and-forget; the upload
// pipeline never waits on it.
type NotificationService struct {
	queue    *jobs.Queue
	watchers watcherLister
	sink     notificationSink
	logger   *zap.Logger
}

// NewNotificationService constructs the service and its queue.
func NewNotificationService(watchers watcherLister, sink notificationSink, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{watchers: watchers, sink: sink, logger: logger}
	s.queue = jobs.NewQueue("item-created", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start begins background consumption.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// PublishItemCreated enqueues one event. Failures are logged and dropped.
func (s *NotificationService) PublishItemCreated(event models.ItemCreatedEvent) {
	job := jobs.Job{ID: uuid.NewString(), Type: "item_created", Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue item-created event",
			zap.Error(err), zap.String("item_id", event.ItemID))
	}
}

// ListUnread returns the caller's pending notifications, oldest first.
func (s *NotificationService) ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows, err := s.sink.ListUnreadByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return rows, nil
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.ItemCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	watchers, err := s.watchers.ListWatchers(ctx, event.SoftwareID)
	if err != nil {
		return fmt.Errorf("list watchers for %s: %w", event.SoftwareID, err)
	}

	var errs error
	for _, userID := range watchers {
		if event.ActorID != nil && *event.ActorID == userID {
			continue
		}
		notification := &models.Notification{
			UserID:   userID,
			ItemType: event.ItemType,
			ItemID:   event.ItemID,
			Message:  fmt.Sprintf("new %s available: %s", event.ItemType, event.Name),
		}
		if err := s.sink.Insert(ctx, notification); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
