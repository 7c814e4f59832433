package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ILLUVRSE/pizza-rewards/internal/models"
)

// objectUploader is the part of *manager.Uploader the sink uses.
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink archives records as JSON objects at
//
//	s3://<bucket>/<prefix>/analytics/YYYY/MM/DD/<eventID>.json
type S3Sink struct {
	bucket   string
	prefix   string
	uploader objectUploader
}

// NewS3Sink loads AWS settings from the environment (AWS_REGION, AWS_PROFILE,
// static keys) the same way the SDK CLI does.
func NewS3Sink(ctx context.Context, bucket, prefix string) (*S3Sink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3: bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Sink{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(s3.NewFromConfig(cfg)),
	}, nil
}

func (s *S3Sink) Name() string { return "s3" }

// ObjectKey returns where rec is stored, dated by its timestamp in UTC.
func (s *S3Sink) ObjectKey(rec models.AnalyticsRecord) string {
	year, month, day := rec.Timestamp.UTC().Date()
	return path.Join(s.prefix, "analytics",
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		rec.EventID+".json",
	)
}

func (s *S3Sink) Record(ctx context.Context, rec models.AnalyticsRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(s.ObjectKey(rec)),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}

func (s *S3Sink) Close() error { return nil }
