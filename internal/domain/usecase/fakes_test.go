package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

// fakeJobStore mirrors the GormJobRepo contract: upsert-if-absent creation,
// field-scoped setters, monotonic status with terminal guard.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*entity.Job

	createErr   error
	failCreates int
	setErr      error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*entity.Job)}
}

func (s *fakeJobStore) CreateIfAbsent(ctx context.Context, imageID string) (bool, error) {
	if s.createErr != nil {
		return false, s.createErr
	}
	s.mu.Lock()
	if s.failCreates > 0 {
		s.failCreates--
		s.mu.Unlock()
		return false, fmt.Errorf("db down")
	}
	defer s.mu.Unlock()
	if _, ok := s.jobs[imageID]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	s.jobs[imageID] = &entity.Job{
		ImageID:   imageID,
		Status:    entity.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

func advance(job *entity.Job) {
	if job.Status.Terminal() {
		return
	}
	if job.ThumbnailKey != "" && job.Labels != nil {
		job.Status = entity.StatusCompleted
	} else {
		job.Status = entity.StatusProcessing
	}
}

func (s *fakeJobStore) SetThumbnail(ctx context.Context, imageID, thumbnailKey string) (entity.JobStatus, error) {
	if s.setErr != nil {
		return "", s.setErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[imageID]
	if !ok {
		return "", entity.ErrJobNotFound
	}
	job.ThumbnailKey = thumbnailKey
	job.UpdatedAt = time.Now().UTC()
	advance(job)
	return job.Status, nil
}

func (s *fakeJobStore) SetLabels(ctx context.Context, imageID string, labels entity.LabelList) (entity.JobStatus, error) {
	if s.setErr != nil {
		return "", s.setErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[imageID]
	if !ok {
		return "", entity.ErrJobNotFound
	}
	if labels == nil {
		labels = entity.LabelList{}
	}
	job.Labels = labels
	job.UpdatedAt = time.Now().UTC()
	advance(job)
	return job.Status, nil
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[imageID]
	if !ok || job.Status.Terminal() {
		return nil
	}
	job.Status = entity.StatusFailed
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakeJobStore) Get(ctx context.Context, imageID string) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[imageID]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) job(imageID string) *entity.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[imageID]
}

func (s *fakeJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

type fakeStatusCache struct {
	mu       sync.Mutex
	statuses map[string]string
	setErr   error
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{statuses: make(map[string]string)}
}

func (c *fakeStatusCache) SetStatus(ctx context.Context, imageID, status string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[imageID] = status
	return nil
}

func (c *fakeStatusCache) GetStatus(ctx context.Context, imageID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[imageID], nil
}

// fakePublisher records published bodies and can fail its first N calls to
// exercise the backoff path.
type fakePublisher struct {
	mu        sync.Mutex
	bodies    []json.RawMessage
	failFirst int
	calls     int
}

func (p *fakePublisher) Publish(ctx context.Context, body json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFirst {
		return fmt.Errorf("broker unavailable")
	}
	p.bodies = append(p.bodies, body)
	return nil
}

// fakeObjectStore keeps blobs in nested maps keyed by bucket then key.
// failDownloads makes the next N downloads fail transiently.
type fakeObjectStore struct {
	mu            sync.Mutex
	objects       map[string]map[string][]byte
	failDownloads int
	uploadErr     error
	uploads       int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string]map[string][]byte)}
}

func (s *fakeObjectStore) put(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[bucket] == nil {
		s.objects[bucket] = make(map[string][]byte)
	}
	s.objects[bucket][key] = data
}

func (s *fakeObjectStore) get(bucket, key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[bucket][key]
}

func (s *fakeObjectStore) Download(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDownloads > 0 {
		s.failDownloads--
		return nil, fmt.Errorf("storage timeout")
	}
	data, ok := s.objects[bucket][key]
	if !ok {
		return nil, entity.Permanent(fmt.Errorf("%s/%s: %w", bucket, key, entity.ErrObjectNotFound))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, entity.Permanent(fmt.Errorf("%s/%s: %w", bucket, key, entity.ErrObjectTooLarge))
	}
	return data, nil
}

func (s *fakeObjectStore) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.mu.Lock()
	s.uploads++
	s.mu.Unlock()
	s.put(bucket, key, data)
	return nil
}

type fakeDetector struct {
	labels []entity.Label
	err    error
	calls  int
}

func (d *fakeDetector) DetectLabels(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]entity.Label, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.labels, nil
}
