package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/BradenHooton/pmcoach/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3PutObjectAPI is the subset of the S3 client used by the archive
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ActivityArchive writes each activity event as a JSON object keyed by
// actor and day, for long-term retention outside the primary store
type S3ActivityArchive struct {
	client S3PutObjectAPI
	bucket string
	prefix string
}

// NewS3ActivityArchive creates a new S3ActivityArchive
func NewS3ActivityArchive(client S3PutObjectAPI, bucket, prefix string) *S3ActivityArchive {
	return &S3ActivityArchive{client: client, bucket: bucket, prefix: prefix}
}

// ObjectKey returns the archive key for event: <prefix><actor>/<yyyy>/<mm>/<dd>/<id>.json
func (a *S3ActivityArchive) ObjectKey(event *models.ActivityEvent) string {
	ts := event.OccurredAt.UTC()
	return fmt.Sprintf("%s%s/%04d/%02d/%02d/%s.json",
		a.prefix, event.ActorID, ts.Year(), int(ts.Month()), ts.Day(), event.ID)
}

// Append uploads event
func (a *S3ActivityArchive) Append(ctx context.Context, event *models.ActivityEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode activity event: %w", err)
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.ObjectKey(event)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"activity-type": string(event.ActivityType),
			"plan-id":       event.PlanID,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: archive put: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}
