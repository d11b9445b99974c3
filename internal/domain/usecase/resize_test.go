package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test jpeg: %v", err)
	}
	return buf.Bytes()
}

func resizeFixture(t *testing.T) (*ResizeUseCase, *fakeObjectStore, *fakeJobStore, *fakeStatusCache) {
	t.Helper()
	store := newFakeObjectStore()
	jobs := newFakeJobStore()
	cache := newFakeStatusCache()
	uc := NewResizeUseCase(store, jobs, cache, "processed")
	return uc, store, jobs, cache
}

func TestProcessResizeProducesThumbnail(t *testing.T) {
	uc, store, jobs, cache := resizeFixture(t)
	store.put("uploads", "abc.jpeg", jpegBytes(t, 400, 300))

	msg := entity.FanOutMessage{Bucket: "uploads", Key: "abc.jpeg", EventName: "ObjectCreated:Put"}
	if err := uc.ProcessResize(context.Background(), msg); err != nil {
		t.Fatalf("ProcessResize() error: %v", err)
	}

	thumb := store.get("processed", "thumbnails/abc.jpeg")
	if thumb == nil {
		t.Fatal("thumbnail was not uploaded")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("thumbnail format = %s, want jpeg", format)
	}
	if cfg.Width != 200 || cfg.Height != 200 {
		t.Errorf("thumbnail is %dx%d, want 200x200", cfg.Width, cfg.Height)
	}

	job := jobs.job("abc.jpeg")
	if job == nil {
		t.Fatal("job missing")
	}
	if job.ThumbnailKey != "thumbnails/abc.jpeg" {
		t.Errorf("thumbnail key = %q, want thumbnails/abc.jpeg", job.ThumbnailKey)
	}
	if job.Status != entity.StatusProcessing {
		t.Errorf("status = %s, want PROCESSING while labels pending", job.Status)
	}
	if got, _ := cache.GetStatus(context.Background(), "abc.jpeg"); got != string(entity.StatusProcessing) {
		t.Errorf("cached status = %q, want PROCESSING", got)
	}
}

func TestProcessResizeIsIdempotent(t *testing.T) {
	uc, store, jobs, _ := resizeFixture(t)
	store.put("uploads", "abc.jpeg", jpegBytes(t, 400, 300))

	msg := entity.FanOutMessage{Bucket: "uploads", Key: "abc.jpeg"}
	if err := uc.ProcessResize(context.Background(), msg); err != nil {
		t.Fatalf("first ProcessResize() error: %v", err)
	}
	first := store.get("processed", "thumbnails/abc.jpeg")

	if err := uc.ProcessResize(context.Background(), msg); err != nil {
		t.Fatalf("second ProcessResize() error: %v", err)
	}
	second := store.get("processed", "thumbnails/abc.jpeg")

	if !bytes.Equal(first, second) {
		t.Error("redelivery produced different thumbnail bytes")
	}
	if job := jobs.job("abc.jpeg"); job.ThumbnailKey != "thumbnails/abc.jpeg" {
		t.Errorf("thumbnail key changed on redelivery: %q", job.ThumbnailKey)
	}
}

func TestProcessResizeNonImageIsPermanent(t *testing.T) {
	uc, store, jobs, _ := resizeFixture(t)
	store.put("uploads", "notes.txt", []byte("definitely not an image"))

	msg := entity.FanOutMessage{Bucket: "uploads", Key: "notes.txt"}
	err := uc.ProcessResize(context.Background(), msg)
	if err == nil {
		t.Fatal("ProcessResize() succeeded on non-image content")
	}
	if !entity.IsPermanent(err) {
		t.Errorf("decode failure should be permanent: %v", err)
	}
	if !errors.Is(err, entity.ErrUnsupportedImage) {
		t.Errorf("error chain missing ErrUnsupportedImage: %v", err)
	}
	if jobs.count() != 0 {
		t.Error("job was mutated by a failed resize")
	}
	if store.uploads != 0 {
		t.Error("thumbnail uploaded despite decode failure")
	}
}

func TestProcessResizeMissingObjectIsPermanent(t *testing.T) {
	uc, _, _, _ := resizeFixture(t)

	err := uc.ProcessResize(context.Background(), entity.FanOutMessage{Bucket: "uploads", Key: "gone.jpeg"})
	if err == nil {
		t.Fatal("ProcessResize() succeeded on missing object")
	}
	if !entity.IsPermanent(err) || !errors.Is(err, entity.ErrObjectNotFound) {
		t.Errorf("want permanent not-found error, got: %v", err)
	}
}

func TestProcessResizeOversizedObjectIsPermanent(t *testing.T) {
	uc, store, _, _ := resizeFixture(t)
	store.put("uploads", "huge.jpeg", jpegBytes(t, 400, 300))
	uc.MaxDownloadBytes = 10

	err := uc.ProcessResize(context.Background(), entity.FanOutMessage{Bucket: "uploads", Key: "huge.jpeg"})
	if err == nil {
		t.Fatal("ProcessResize() succeeded on oversized object")
	}
	if !entity.IsPermanent(err) || !errors.Is(err, entity.ErrObjectTooLarge) {
		t.Errorf("want permanent too-large error, got: %v", err)
	}
}

func TestProcessResizeTransientThenRedelivery(t *testing.T) {
	uc, store, jobs, _ := resizeFixture(t)
	store.put("uploads", "abc.jpeg", jpegBytes(t, 400, 300))
	store.failDownloads = 1

	msg := entity.FanOutMessage{Bucket: "uploads", Key: "abc.jpeg"}

	err := uc.ProcessResize(context.Background(), msg)
	if err == nil {
		t.Fatal("first delivery should fail on storage timeout")
	}
	if entity.IsPermanent(err) {
		t.Fatalf("timeout must stay retryable, got permanent: %v", err)
	}

	if err := uc.ProcessResize(context.Background(), msg); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if job := jobs.job("abc.jpeg"); job == nil || job.ThumbnailKey != "thumbnails/abc.jpeg" {
		t.Error("redelivery did not reach the expected terminal field state")
	}
}

func TestProcessResizeCompletesJobAfterLabels(t *testing.T) {
	uc, store, jobs, _ := resizeFixture(t)
	store.put("uploads", "abc.jpeg", jpegBytes(t, 400, 300))

	// Label stage already ran for this image.
	jobs.CreateIfAbsent(context.Background(), "abc.jpeg")
	jobs.SetLabels(context.Background(), "abc.jpeg", entity.LabelList{{Name: "Cat", Confidence: 98}})

	if err := uc.ProcessResize(context.Background(), entity.FanOutMessage{Bucket: "uploads", Key: "abc.jpeg"}); err != nil {
		t.Fatalf("ProcessResize() error: %v", err)
	}
	if job := jobs.job("abc.jpeg"); job.Status != entity.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED once both stages delivered", job.Status)
	}
}
