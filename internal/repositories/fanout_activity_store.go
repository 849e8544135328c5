package repositories

import (
	"context"
	"log/slog"

	"github.com/BradenHooton/pmcoach/internal/models"
)

type activityAppender interface {
	Append(ctx context.Context, event *models.ActivityEvent) error
}

type activityLister interface {
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error)
}

// FanoutActivityStore writes every event to a primary store and then to
// secondary sinks. Only the primary's result decides whether the event was
// recorded; secondary failures are logged.
type FanoutActivityStore struct {
	primary     activityAppender
	secondaries []activityAppender
	logger      *slog.Logger
}

// NewFanoutActivityStore creates a new FanoutActivityStore
func NewFanoutActivityStore(primary activityAppender, logger *slog.Logger, secondaries ...activityAppender) *FanoutActivityStore {
	return &FanoutActivityStore{primary: primary, secondaries: secondaries, logger: logger}
}

// Append writes event to the primary, then to each secondary
func (f *FanoutActivityStore) Append(ctx context.Context, event *models.ActivityEvent) error {
	if err := f.primary.Append(ctx, event); err != nil {
		return err
	}

	for _, sink := range f.secondaries {
		if err := sink.Append(ctx, event); err != nil {
			f.logger.WarnContext(ctx, "secondary activity sink failed",
				slog.String("event_id", event.ID.String()),
				slog.Any("error", err))
		}
	}
	return nil
}

// ListByActor reads from the primary store
func (f *FanoutActivityStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.ActivityEvent, error) {
	lister, ok := f.primary.(activityLister)
	if !ok {
		return nil, models.ErrNotFound
	}
	return lister.ListByActor(ctx, actorID, limit, offset)
}
