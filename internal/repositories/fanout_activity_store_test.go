package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	err    error
	events []*models.ActivityEvent
}

func (s *recordingSink) Append(ctx context.Context, event *models.ActivityEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type fakeS3 struct {
	err   error
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func newTestEvent() *models.ActivityEvent {
	return &models.ActivityEvent{
		ID:           uuid.MustParse("0b8f0e36-53a1-4cd4-9a53-9c6e3a7f1c11"),
		ActorID:      "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		ActivityType: models.ActivityMessageSent,
		Details:      models.ActivityDetails{models.DetailRemainingBefore: 3},
		PlanID:       "starter",
		OccurredAt:   time.Date(2026, 7, 4, 23, 59, 0, 0, time.UTC),
	}
}

func TestFanoutActivityStore_PrimaryFailureIsReturned(t *testing.T) {
	primary := &recordingSink{err: errors.New("primary down")}
	secondary := &recordingSink{}
	store := NewFanoutActivityStore(primary, slog.Default(), secondary)

	err := store.Append(context.Background(), newTestEvent())

	assert.Error(t, err)
	assert.Empty(t, secondary.events)
}

func TestFanoutActivityStore_SecondaryFailureIsIgnored(t *testing.T) {
	primary := &recordingSink{}
	failing := &recordingSink{err: errors.New("archive down")}
	healthy := &recordingSink{}
	store := NewFanoutActivityStore(primary, slog.Default(), failing, healthy)

	err := store.Append(context.Background(), newTestEvent())

	require.NoError(t, err)
	assert.Len(t, primary.events, 1)
	assert.Len(t, healthy.events, 1)
}

func TestFanoutActivityStore_ListReadsPrimary(t *testing.T) {
	primary := newTestSQLiteStore(t)
	store := NewFanoutActivityStore(primary, slog.Default(), &recordingSink{})
	event := newTestEvent()

	require.NoError(t, store.Append(context.Background(), event))

	events, err := store.ListByActor(context.Background(), event.ActorID, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
}

func TestFanoutActivityStore_ListWithoutReader(t *testing.T) {
	store := NewFanoutActivityStore(&recordingSink{}, slog.Default())

	_, err := store.ListByActor(context.Background(), "x", 10, 0)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestS3ActivityArchive_Append(t *testing.T) {
	client := &fakeS3{}
	archive := NewS3ActivityArchive(client, "pmcoach-audit", "activity/")
	event := newTestEvent()

	require.NoError(t, archive.Append(context.Background(), event))

	require.NotNil(t, client.input)
	assert.Equal(t, "pmcoach-audit", *client.input.Bucket)
	assert.Equal(t, "activity/7c9e6679-7425-40de-944b-e07fc1f90ae7/2026/07/04/0b8f0e36-53a1-4cd4-9a53-9c6e3a7f1c11.json", *client.input.Key)
	assert.Equal(t, "message_sent", client.input.Metadata["activity-type"])

	var decoded models.ActivityEvent
	require.NoError(t, json.Unmarshal(client.body, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "starter", decoded.PlanID)
}

func TestS3ActivityArchive_AppendFailure(t *testing.T) {
	archive := NewS3ActivityArchive(&fakeS3{err: errors.New("AccessDenied")}, "b", "")

	err := archive.Append(context.Background(), newTestEvent())

	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
