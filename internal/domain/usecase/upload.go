package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

type ObjectSigner interface {
	PresignedPut(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
	PresignedGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error)
}

const (
	DefaultUploadExpiry    = time.Hour
	DefaultThumbnailExpiry = 24 * time.Hour
)

// UploadUseCase backs the gateway: upload-URL issuance and job reads. It is
// a stateless I/O wrapper around the core; the pipeline itself never calls
// into it.
type UploadUseCase struct {
	Signer      ObjectSigner
	Jobs        JobStore
	StatusCache StatusCache

	UploadsBucket   string
	ProcessedBucket string
	UploadExpiry    time.Duration
	ThumbnailExpiry time.Duration
}

func NewUploadUseCase(signer ObjectSigner, jobs JobStore, cache StatusCache, uploadsBucket, processedBucket string) *UploadUseCase {
	return &UploadUseCase{
		Signer:          signer,
		Jobs:            jobs,
		StatusCache:     cache,
		UploadsBucket:   uploadsBucket,
		ProcessedBucket: processedBucket,
		UploadExpiry:    DefaultUploadExpiry,
		ThumbnailExpiry: DefaultThumbnailExpiry,
	}
}

// CreateUploadURL issues a fresh object key and a presigned PUT for it.
func (u *UploadUseCase) CreateUploadURL(ctx context.Context) (uploadURL, key string, err error) {
	key = uuid.New().String() + ".jpeg"

	uploadURL, err = u.Signer.PresignedPut(ctx, u.UploadsBucket, key, u.UploadExpiry)
	if err != nil {
		return "", "", fmt.Errorf("presign upload for %s: %w", key, err)
	}
	return uploadURL, key, nil
}

// GetStatus serves the cheap polling path from the cache, falling back to
// the job store and backfilling on a miss.
func (u *UploadUseCase) GetStatus(ctx context.Context, imageID string) (entity.JobStatus, error) {
	if status, err := u.StatusCache.GetStatus(ctx, imageID); err == nil && status != "" {
		return entity.JobStatus(status), nil
	}

	job, err := u.Jobs.Get(ctx, imageID)
	if err != nil {
		return "", err
	}

	if err := u.StatusCache.SetStatus(ctx, imageID, string(job.Status)); err != nil {
		log.Printf("status cache backfill failed for %s: %v", imageID, err)
	}
	return job.Status, nil
}

// GetJob returns the full job record plus a presigned link to the thumbnail
// once the resize stage has produced one.
func (u *UploadUseCase) GetJob(ctx context.Context, imageID string) (*entity.Job, string, error) {
	job, err := u.Jobs.Get(ctx, imageID)
	if err != nil {
		return nil, "", err
	}

	var thumbnailURL string
	if job.ThumbnailKey != "" {
		thumbnailURL, err = u.Signer.PresignedGet(ctx, u.ProcessedBucket, job.ThumbnailKey, u.ThumbnailExpiry)
		if err != nil {
			return nil, "", fmt.Errorf("presign thumbnail for %s: %w", imageID, err)
		}
	}
	return job, thumbnailURL, nil
}
