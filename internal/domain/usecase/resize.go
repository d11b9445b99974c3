package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/disintegration/imaging"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

// ObjectStore reads and writes blobs. Download enforces a byte bound and
// returns a permanent error for missing or oversized objects.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

const (
	DefaultThumbWidth  = 200
	DefaultThumbHeight = 200

	// DefaultMaxDownloadBytes bounds how much of an original a worker will
	// pull into memory. Larger objects fail permanently instead of being
	// retried forever.
	DefaultMaxDownloadBytes = 15 << 20
)

// ResizeUseCase downloads the original, produces a fixed-box JPEG thumbnail
// and records its key on the job.
type ResizeUseCase struct {
	Store       ObjectStore
	Jobs        JobStore
	StatusCache StatusCache

	ProcessedBucket  string
	ThumbWidth       int
	ThumbHeight      int
	MaxDownloadBytes int64
}

func NewResizeUseCase(store ObjectStore, jobs JobStore, cache StatusCache, processedBucket string) *ResizeUseCase {
	return &ResizeUseCase{
		Store:            store,
		Jobs:             jobs,
		StatusCache:      cache,
		ProcessedBucket:  processedBucket,
		ThumbWidth:       DefaultThumbWidth,
		ThumbHeight:      DefaultThumbHeight,
		MaxDownloadBytes: DefaultMaxDownloadBytes,
	}
}

// ProcessResize handles one fan-out delivery. Redelivery reproduces the same
// thumbnail bytes under the same key, so the overwrite is idempotent.
func (u *ResizeUseCase) ProcessResize(ctx context.Context, msg entity.FanOutMessage) error {
	data, err := u.Store.Download(ctx, msg.Bucket, msg.Key, u.MaxDownloadBytes)
	if err != nil {
		return fmt.Errorf("download %s/%s: %w", msg.Bucket, msg.Key, err)
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return entity.Permanent(fmt.Errorf("decode %s: %v: %w", msg.Key, err, entity.ErrUnsupportedImage))
	}

	// Exact target box, aspect ratio intentionally not preserved.
	thumb := imaging.Resize(src, u.ThumbWidth, u.ThumbHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return entity.Permanent(fmt.Errorf("encode thumbnail for %s: %w", msg.Key, err))
	}

	thumbKey := "thumbnails/" + msg.Key
	if err := u.Store.Upload(ctx, u.ProcessedBucket, thumbKey, buf.Bytes(), "image/jpeg"); err != nil {
		return fmt.Errorf("upload %s/%s: %w", u.ProcessedBucket, thumbKey, err)
	}

	// The fan-out may outrun the dispatcher's job write; same upsert
	// semantics, so whoever loses the race is a no-op.
	if _, err := u.Jobs.CreateIfAbsent(ctx, msg.Key); err != nil {
		return fmt.Errorf("ensure job %s: %w", msg.Key, err)
	}

	status, err := u.Jobs.SetThumbnail(ctx, msg.Key, thumbKey)
	if err != nil {
		return fmt.Errorf("record thumbnail for %s: %w", msg.Key, err)
	}

	if err := u.StatusCache.SetStatus(ctx, msg.Key, string(status)); err != nil {
		log.Printf("status cache write failed for %s: %v", msg.Key, err)
	}

	log.Printf("resized %s/%s -> %s/%s (%dx%d, status %s)",
		msg.Bucket, msg.Key, u.ProcessedBucket, thumbKey, u.ThumbWidth, u.ThumbHeight, status)
	return nil
}
