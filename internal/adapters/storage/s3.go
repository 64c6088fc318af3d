package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

type S3Config struct {
	Region    string
	Bucket    string
	Directory string
}

var ErrEmptyS3BucketName = errors.New("empty S3 bucket name")

// S3 uploads recordings with the multipart upload manager.
type S3 struct {
	bucket    string
	directory string
	service   *manager.Uploader
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, ErrEmptyS3BucketName
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{
		bucket:    cfg.Bucket,
		directory: cfg.Directory,
		service:   manager.NewUploader(s3.NewFromConfig(awsCfg)),
	}, nil
}

func (s *S3) Key(name string) string {
	if s.directory == "" {
		return name
	}
	return path.Join(s.directory, name)
}

func (s *S3) Download(ctx context.Context, name, mimeType string, blob []byte) error {
	if name == "" {
		return ErrEmptyName
	}
	key := s.Key(name)
	_, err := s.service.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s: %w", key, err)
	}
	log.Info().Str("module", "adapters.storage").Str("bucket", s.bucket).Str("key", key).Msg("recording uploaded")
	return nil
}
