package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

type UploadUseCase interface {
	CreateUploadURL(ctx context.Context) (uploadURL, key string, err error)
	GetStatus(ctx context.Context, imageID string) (entity.JobStatus, error)
	GetJob(ctx context.Context, imageID string) (*entity.Job, string, error)
}

type PipelineHandler struct {
	UseCase UploadUseCase
}

func NewPipelineHandler(u UploadUseCase) *PipelineHandler {
	return &PipelineHandler{UseCase: u}
}

// CreateUploadURL hands the client a presigned PUT; the upload itself goes
// straight to the object store and enters the pipeline via its notification.
func (h *PipelineHandler) CreateUploadURL(c *gin.Context) {
	uploadURL, key, err := h.UseCase.CreateUploadURL(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploadURL": uploadURL, "key": key})
}

func (h *PipelineHandler) GetJob(c *gin.Context) {
	imageID := c.Param("image_id")

	job, thumbnailURL, err := h.UseCase.GetJob(c.Request.Context(), imageID)
	if err != nil {
		if errors.Is(err, entity.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"image_id":   job.ImageID,
		"status":     job.Status,
		"created_at": job.CreatedAt,
		"updated_at": job.UpdatedAt,
	}
	if job.Labels != nil {
		resp["labels"] = job.Labels
	}
	if job.ThumbnailKey != "" {
		resp["thumbnail_key"] = job.ThumbnailKey
		resp["thumbnail_url"] = thumbnailURL
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PipelineHandler) GetStatus(c *gin.Context) {
	imageID := c.Param("image_id")

	status, err := h.UseCase.GetStatus(c.Request.Context(), imageID)
	if err != nil {
		if errors.Is(err, entity.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_id": imageID, "status": status})
}
