package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/rekognition"

	"github.com/HumbleChaudhry/pixel-pipe/internal/domain/entity"
)

// Detector wraps Rekognition's DetectLabels. The pipeline passes image bytes
// directly since the originals live in MinIO, out of Rekognition's reach.
type Detector struct {
	client *rekognition.Rekognition
}

func NewDetector(client *rekognition.Rekognition) *Detector {
	return &Detector{client: client}
}

func (d *Detector) DetectLabels(ctx context.Context, image []byte, maxLabels int, minConfidence float64) ([]entity.Label, error) {
	out, err := d.client.DetectLabelsWithContext(ctx, &rekognition.DetectLabelsInput{
		Image:         &rekognition.Image{Bytes: image},
		MaxLabels:     aws.Int64(int64(maxLabels)),
		MinConfidence: aws.Float64(minConfidence),
	})
	if err != nil {
		return nil, classify(err)
	}

	labels := make([]entity.Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		labels = append(labels, entity.Label{
			Name:       aws.StringValue(l.Name),
			Confidence: aws.Float64Value(l.Confidence),
		})
	}
	return labels, nil
}

// classify separates bad-input rejections, which no retry can fix, from
// throttling and service errors, which redelivery handles.
func classify(err error) error {
	var ae awserr.Error
	if errors.As(err, &ae) {
		switch ae.Code() {
		case rekognition.ErrCodeInvalidImageFormatException,
			rekognition.ErrCodeImageTooLargeException,
			rekognition.ErrCodeInvalidParameterException:
			return entity.Permanent(fmt.Errorf("rekognition rejected image: %w", err))
		}
	}
	return fmt.Errorf("rekognition detect labels: %w", err)
}
