package psql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

// GormJobRepo implements the field-scoped job store contract. Status only
// advances: the guards below keep COMPLETED and FAILED terminal no matter
// how late a redelivered message lands.
type GormJobRepo struct {
	DB *gorm.DB
}

func NewGormJobRepo(db *gorm.DB) *GormJobRepo {
	return &GormJobRepo{DB: db}
}

func (r *GormJobRepo) CreateIfAbsent(ctx context.Context, imageID string) (bool, error) {
	now := time.Now().UTC()
	job := &entity.Job{
		ImageID:   imageID,
		Status:    entity.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "image_id"}},
			DoNothing: true,
		}).
		Create(job)
	if res.Error != nil {
		return false, fmt.Errorf("upsert job %s: %w", imageID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// SetThumbnail writes the resize worker's field. The status expression
// advances to COMPLETED when the label stage already delivered, otherwise to
// PROCESSING; terminal states are left alone.
func (r *GormJobRepo) SetThumbnail(ctx context.Context, imageID, thumbnailKey string) (entity.JobStatus, error) {
	res := r.DB.WithContext(ctx).Model(&entity.Job{}).
		Where("image_id = ?", imageID).
		Updates(map[string]interface{}{
			"thumbnail_key": thumbnailKey,
			"status": gorm.Expr(`CASE
				WHEN status IN ('COMPLETED','FAILED') THEN status
				WHEN labels IS NOT NULL THEN 'COMPLETED'
				ELSE 'PROCESSING' END`),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return "", fmt.Errorf("set thumbnail for %s: %w", imageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("set thumbnail for %s: %w", imageID, entity.ErrJobNotFound)
	}
	return r.currentStatus(ctx, imageID)
}

// SetLabels overwrites the label worker's field, never appends.
func (r *GormJobRepo) SetLabels(ctx context.Context, imageID string, labels entity.LabelList) (entity.JobStatus, error) {
	if labels == nil {
		// An empty but present result still counts as "stage done".
		labels = entity.LabelList{}
	}

	res := r.DB.WithContext(ctx).Model(&entity.Job{}).
		Where("image_id = ?", imageID).
		Updates(map[string]interface{}{
			"labels": labels,
			"status": gorm.Expr(`CASE
				WHEN status IN ('COMPLETED','FAILED') THEN status
				WHEN thumbnail_key <> '' THEN 'COMPLETED'
				ELSE 'PROCESSING' END`),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return "", fmt.Errorf("set labels for %s: %w", imageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", fmt.Errorf("set labels for %s: %w", imageID, entity.ErrJobNotFound)
	}
	return r.currentStatus(ctx, imageID)
}

// MarkFailed is a no-op once the job reached a terminal state.
func (r *GormJobRepo) MarkFailed(ctx context.Context, imageID string) error {
	res := r.DB.WithContext(ctx).Model(&entity.Job{}).
		Where("image_id = ? AND status IN ?", imageID,
			[]entity.JobStatus{entity.StatusPending, entity.StatusProcessing}).
		Updates(map[string]interface{}{
			"status":     entity.StatusFailed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark job %s failed: %w", imageID, res.Error)
	}
	return nil
}

func (r *GormJobRepo) Get(ctx context.Context, imageID string) (*entity.Job, error) {
	job := &entity.Job{}
	if err := r.DB.WithContext(ctx).First(job, "image_id = ?", imageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", imageID, err)
	}
	return job, nil
}

func (r *GormJobRepo) currentStatus(ctx context.Context, imageID string) (entity.JobStatus, error) {
	var job entity.Job
	err := r.DB.WithContext(ctx).
		Select("status").
		First(&job, "image_id = ?", imageID).Error
	if err != nil {
		return "", fmt.Errorf("read status for %s: %w", imageID, err)
	}
	return job.Status, nil
}
