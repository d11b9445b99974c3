package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
	s3client "github.com/HumbleChaudhry/pixel-pipe/pkg/client/s3"
)

// ObjectRepo adapts the MinIO client to the pipeline's object store and
// signer contracts. Missing and oversized objects come back as permanent
// errors so consumers stop retrying them.
type ObjectRepo struct {
	StorageS3 *s3client.StorageS3
}

func NewObjectRepo(storageS3 *s3client.StorageS3) *ObjectRepo {
	return &ObjectRepo{StorageS3: storageS3}
}

func (r *ObjectRepo) Download(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return nil, fmt.Errorf("s3 client not initialized")
	}

	stat, err := r.StorageS3.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, entity.Permanent(fmt.Errorf("%s/%s: %w", bucket, key, entity.ErrObjectNotFound))
		}
		return nil, fmt.Errorf("s3 stat object: %w", err)
	}
	if maxBytes > 0 && stat.Size > maxBytes {
		return nil, entity.Permanent(fmt.Errorf("%s/%s is %d bytes: %w", bucket, key, stat.Size, entity.ErrObjectTooLarge))
	}

	obj, err := r.StorageS3.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, entity.Permanent(fmt.Errorf("%s/%s: %w", bucket, key, entity.ErrObjectNotFound))
		}
		return nil, fmt.Errorf("s3 read object: %w", err)
	}
	return data, nil
}

func (r *ObjectRepo) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return fmt.Errorf("s3 client not initialized")
	}

	_, err := r.StorageS3.Client.PutObject(
		ctx,
		bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// PresignedPut signs the Content-Type header along with the URL; the
// pipeline only accepts JPEG uploads, so a mismatched upload is rejected
// by the store itself.
func (r *ObjectRepo) PresignedPut(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}

	presignedURL, err := r.StorageS3.Client.PresignHeader(
		ctx,
		http.MethodPut,
		bucket,
		key,
		expiry,
		url.Values{},
		http.Header{"Content-Type": []string{"image/jpeg"}},
	)
	if err != nil {
		return "", fmt.Errorf("presigned put object: %w", err)
	}
	return presignedURL.String(), nil
}

func (r *ObjectRepo) PresignedGet(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}

	presignedURL, err := r.StorageS3.Client.PresignedGetObject(ctx, bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigned get object: %w", err)
	}
	return presignedURL.String(), nil
}
