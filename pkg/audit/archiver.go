package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ObjectPutter is the subset of the S3 API the archiver needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies aged audit events to object storage as JSON Lines batches,
// then deletes them from the database. Deletion only happens after every
// batch uploaded, so a failed run leaves the rows in place for the next one.
type Archiver struct {
	store     Store
	client    ObjectPutter
	bucket    string
	prefix    string
	logger    *logrus.Logger
	batchSize int
	uploaders int
}

// NewArchiver creates an archiver writing under prefix in the given bucket
func NewArchiver(store Store, client ObjectPutter, bucket, prefix string, logger *logrus.Logger) *Archiver {
	if prefix == "" {
		prefix = "audit"
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Archiver{
		store:     store,
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		logger:    logger,
		batchSize: 1000,
		uploaders: 4,
	}
}

// Run archives all events created before the cutoff. It returns the number of
// events uploaded and the number of rows deleted.
func (a *Archiver) Run(ctx context.Context, cutoff time.Time) (int, int64, error) {
	var batches [][]*Event
	total := 0

	for offset := 0; ; offset += a.batchSize {
		events, err := a.store.ListBefore(ctx, cutoff, a.batchSize, offset)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to collect events for archival: %w", err)
		}
		if len(events) == 0 {
			break
		}
		batches = append(batches, events)
		total += len(events)
	}

	if total == 0 {
		return 0, 0, nil
	}

	runStamp := time.Now().UTC().Format("2006-01-02T15-04-05")

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.uploaders)
	for i, batch := range batches {
		i, batch := i, batch
		eg.Go(func() error {
			return a.upload(egCtx, runStamp, i, batch)
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, 0, fmt.Errorf("failed to upload audit archive: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return total, 0, fmt.Errorf("failed to delete archived events: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"archived": total,
		"deleted":  deleted,
		"cutoff":   cutoff,
	}).Info("Audit archive run complete")

	return total, deleted, nil
}

func (a *Archiver) upload(ctx context.Context, runStamp string, batch int, events []*Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, event := range events {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to encode audit event %s: %w", event.ID, err)
		}
	}

	key := fmt.Sprintf("%s/%s/batch-%04d.jsonl", a.prefix, runStamp, batch)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}
