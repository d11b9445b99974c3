package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

type fakeUploadUseCase struct {
	job *entity.Job
}

func (f *fakeUploadUseCase) CreateUploadURL(ctx context.Context) (string, string, error) {
	return "https://store.example/uploads/k.jpeg?sig=put", "k.jpeg", nil
}

func (f *fakeUploadUseCase) GetStatus(ctx context.Context, imageID string) (entity.JobStatus, error) {
	if f.job == nil || f.job.ImageID != imageID {
		return "", entity.ErrJobNotFound
	}
	return f.job.Status, nil
}

func (f *fakeUploadUseCase) GetJob(ctx context.Context, imageID string) (*entity.Job, string, error) {
	if f.job == nil || f.job.ImageID != imageID {
		return nil, "", entity.ErrJobNotFound
	}
	url := ""
	if f.job.ThumbnailKey != "" {
		url = "https://store.example/processed/" + f.job.ThumbnailKey + "?sig=get"
	}
	return f.job, url, nil
}

func testRouter(uc UploadUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewPipelineHandler(uc)
	g := r.Group("/api/v1")
	g.POST("/uploads", h.CreateUploadURL)
	g.GET("/jobs/:image_id", h.GetJob)
	g.GET("/jobs/:image_id/status", h.GetStatus)
	return r
}

func TestCreateUploadURLEndpoint(t *testing.T) {
	r := testRouter(&fakeUploadUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["uploadURL"] == "" || resp["key"] == "" {
		t.Errorf("response missing uploadURL or key: %v", resp)
	}
}

func TestGetJobEndpoint(t *testing.T) {
	job := &entity.Job{
		ImageID:      "abc.jpeg",
		Status:       entity.StatusCompleted,
		Labels:       entity.LabelList{{Name: "Cat", Confidence: 98}},
		ThumbnailKey: "thumbnails/abc.jpeg",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	r := testRouter(&fakeUploadUseCase{job: job})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc.jpeg", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["status"] != "COMPLETED" {
		t.Errorf("status = %v, want COMPLETED", resp["status"])
	}
	if resp["thumbnail_url"] == "" {
		t.Error("thumbnail_url missing for completed job")
	}
	if _, ok := resp["labels"]; !ok {
		t.Error("labels missing for completed job")
	}
}

func TestGetJobEndpointNotFound(t *testing.T) {
	r := testRouter(&fakeUploadUseCase{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/missing.jpeg", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetStatusEndpoint(t *testing.T) {
	job := &entity.Job{ImageID: "abc.jpeg", Status: entity.StatusPending}
	r := testRouter(&fakeUploadUseCase{job: job})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc.jpeg/status", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["status"] != "PENDING" {
		t.Errorf("status = %q, want PENDING", resp["status"])
	}
}
