package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

// LabelDetector is the external vision capability. Implementations classify
// their own failures: throttling and service errors stay retryable, bad
// image input comes back permanent.
type LabelDetector interface {
	DetectLabels(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]entity.Label, error)
}

const (
	DefaultMaxLabels     = 10
	DefaultMinConfidence = 75.0
)

// LabelsUseCase runs label detection on the original and merges the result
// into the job record.
type LabelsUseCase struct {
	Store       ObjectStore
	Jobs        JobStore
	StatusCache StatusCache
	Detector    LabelDetector

	MaxLabels        int
	MinConfidence    float64
	MaxDownloadBytes int64
}

func NewLabelsUseCase(store ObjectStore, jobs JobStore, cache StatusCache, det LabelDetector) *LabelsUseCase {
	return &LabelsUseCase{
		Store:            store,
		Jobs:             jobs,
		StatusCache:      cache,
		Detector:         det,
		MaxLabels:        DefaultMaxLabels,
		MinConfidence:    DefaultMinConfidence,
		MaxDownloadBytes: DefaultMaxDownloadBytes,
	}
}

// ProcessLabels handles one fan-out delivery. SetLabels overwrites rather
// than appends, so redelivery leaves the same final label set.
func (u *LabelsUseCase) ProcessLabels(ctx context.Context, msg entity.FanOutMessage) error {
	data, err := u.Store.Download(ctx, msg.Bucket, msg.Key, u.MaxDownloadBytes)
	if err != nil {
		return fmt.Errorf("download %s/%s: %w", msg.Bucket, msg.Key, err)
	}

	found, err := u.Detector.DetectLabels(ctx, data, u.MaxLabels, u.MinConfidence)
	if err != nil {
		return fmt.Errorf("detect labels for %s: %w", msg.Key, err)
	}

	labels := u.selectLabels(found)

	if _, err := u.Jobs.CreateIfAbsent(ctx, msg.Key); err != nil {
		return fmt.Errorf("ensure job %s: %w", msg.Key, err)
	}

	status, err := u.Jobs.SetLabels(ctx, msg.Key, labels)
	if err != nil {
		return fmt.Errorf("record labels for %s: %w", msg.Key, err)
	}

	if err := u.StatusCache.SetStatus(ctx, msg.Key, string(status)); err != nil {
		log.Printf("status cache write failed for %s: %v", msg.Key, err)
	}

	log.Printf("labeled %s/%s with %d labels (status %s)", msg.Bucket, msg.Key, len(labels), status)
	return nil
}

// selectLabels applies the confidence floor and keeps the strongest
// MaxLabels results even if the detector returned more.
func (u *LabelsUseCase) selectLabels(found []entity.Label) entity.LabelList {
	labels := make(entity.LabelList, 0, len(found))
	for _, l := range found {
		if l.Confidence >= u.MinConfidence {
			labels = append(labels, l)
		}
	}
	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Confidence > labels[j].Confidence
	})
	if len(labels) > u.MaxLabels {
		labels = labels[:u.MaxLabels]
	}
	return labels
}
