package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI is the part of *s3.Client the store uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PublicURL string
}

type S3Store struct {
	client    PutObjectAPI
	bucket    string
	publicURL string
}

var loadAWSConfig = config.LoadDefaultConfig

// NewS3Store builds an S3 client from cfg. A custom Endpoint switches to
// path-style addressing for MinIO and other S3-compatible servers.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, cfg), nil
}

func NewS3StoreWithClient(client PutObjectAPI, cfg S3Config) *S3Store {
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		switch {
		case cfg.Endpoint != "":
			publicURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		default:
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3Store{client: client, bucket: cfg.Bucket, publicURL: publicURL}
}

func (s *S3Store) Save(ctx context.Context, dir, name string, data []byte, contentType string) (string, error) {
	if !validSegment(dir) || !validSegment(name) {
		return "", fmt.Errorf("invalid storage path %q/%q", dir, name)
	}

	key := objectKey(dir, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return s.publicURL + "/" + key, nil
}
