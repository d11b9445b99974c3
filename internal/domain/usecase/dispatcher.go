package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

// JobStore is the field-scoped write surface over the job table. Each caller
// touches only the fields it owns, so concurrent workers never need a
// read-modify-write cycle.
type JobStore interface {
	// CreateIfAbsent upserts a PENDING job, reporting whether a row was
	// actually created. Existing rows are left untouched.
	CreateIfAbsent(ctx context.Context, imageID string) (bool, error)
	// SetThumbnail records the thumbnail key and returns the advanced status.
	SetThumbnail(ctx context.Context, imageID, thumbnailKey string) (entity.JobStatus, error)
	// SetLabels overwrites the label set and returns the advanced status.
	SetLabels(ctx context.Context, imageID string, labels entity.LabelList) (entity.JobStatus, error)
	// MarkFailed moves a non-terminal job to FAILED.
	MarkFailed(ctx context.Context, imageID string) error
	Get(ctx context.Context, imageID string) (*entity.Job, error)
}

type StatusCache interface {
	SetStatus(ctx context.Context, imageID, status string) error
	GetStatus(ctx context.Context, imageID string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, body json.RawMessage) error
}

// DispatcherUseCase turns one object-created notification into a durable job
// record plus a fan-out message on the bus.
type DispatcherUseCase struct {
	Jobs        JobStore
	StatusCache StatusCache
	Publisher   Publisher

	PublishBaseDelay   time.Duration
	PublishMaxDelay    time.Duration
	PublishMaxAttempts int

	// DispatchMaxAttempts bounds whole-dispatch retries in DispatchWithRetry.
	DispatchMaxAttempts int
}

func NewDispatcherUseCase(jobs JobStore, cache StatusCache, pub Publisher) *DispatcherUseCase {
	return &DispatcherUseCase{
		Jobs:        jobs,
		StatusCache: cache,
		Publisher:   pub,

		PublishBaseDelay:   500 * time.Millisecond,
		PublishMaxDelay:    10 * time.Second,
		PublishMaxAttempts: 5,

		DispatchMaxAttempts: 3,
	}
}

// DispatchWithRetry runs Dispatch until it succeeds or the attempt budget
// runs out. The bucket notification stream has no acknowledgement or
// redelivery, so a notification given up on here is gone for good; only
// permanent errors (an undecodable key) are not worth another attempt.
func (u *DispatcherUseCase) DispatchWithRetry(ctx context.Context, n entity.ObjectCreatedNotification) error {
	var lastErr error

	for attempt := 1; attempt <= u.DispatchMaxAttempts; attempt++ {
		err := u.Dispatch(ctx, n)
		if err == nil {
			return nil
		}
		if entity.IsPermanent(err) {
			return err
		}
		lastErr = err

		if attempt == u.DispatchMaxAttempts {
			break
		}
		log.Printf("dispatch attempt %d for %s/%s failed, retrying: %v", attempt, n.Bucket, n.Key, err)
		if err := u.sleepBackoff(ctx, attempt); err != nil {
			return err
		}
	}

	return fmt.Errorf("dispatch %s/%s: %w", n.Bucket, n.Key, lastErr)
}

// Dispatch publishes the fan-out message and upserts the PENDING job. Any
// failure fails the whole notification so the source redelivers it; workers
// tolerate the published-but-not-recorded window by creating the job lazily.
func (u *DispatcherUseCase) Dispatch(ctx context.Context, n entity.ObjectCreatedNotification) error {
	key, err := n.DecodedKey()
	if err != nil {
		return entity.Permanent(err)
	}

	msg := entity.FanOutMessage{
		Bucket:    n.Bucket,
		Key:       key,
		EventName: n.EventName,
		EventTime: n.EventTime,
	}

	body, err := entity.WrapFanOut(msg)
	if err != nil {
		return entity.Permanent(err)
	}

	if err := u.publishWithRetry(ctx, body); err != nil {
		return fmt.Errorf("publish fan-out for %s: %w", key, err)
	}

	created, err := u.Jobs.CreateIfAbsent(ctx, key)
	if err != nil {
		return fmt.Errorf("create job %s: %w", key, err)
	}

	if created {
		if err := u.StatusCache.SetStatus(ctx, key, string(entity.StatusPending)); err != nil {
			log.Printf("status cache write failed for %s: %v", key, err)
		}
		log.Printf("dispatched %s/%s", msg.Bucket, key)
	} else {
		log.Printf("redispatch of %s/%s, job already exists", msg.Bucket, key)
	}

	return nil
}

func (u *DispatcherUseCase) publishWithRetry(ctx context.Context, msg json.RawMessage) error {
	var lastErr error

	for attempt := 1; attempt <= u.PublishMaxAttempts; attempt++ {
		if err := u.Publisher.Publish(ctx, msg); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == u.PublishMaxAttempts {
			break
		}
		if err := u.sleepBackoff(ctx, attempt); err != nil {
			return errors.New("publish canceled by context")
		}
	}

	return lastErr
}

func (u *DispatcherUseCase) sleepBackoff(ctx context.Context, attempt int) error {
	backoff := u.PublishBaseDelay << (attempt - 1)
	if backoff > u.PublishMaxDelay {
		backoff = u.PublishMaxDelay
	}

	select {
	case <-time.After(backoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
