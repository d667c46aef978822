package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/satriahrh/speakfix/domain/repositories"
)

const (
	defaultRegion        = "us-east-1"
	defaultPresignExpiry = 24 * time.Hour
)

// Config holds the S3 compatible storage settings
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	Insecure      bool
	PublicBaseURL string // when set, objects are served from here instead of presigned URLs
	PresignExpiry time.Duration
	Prefix        string
}

// AudioStore archives synthesized audio in an S3 bucket
type AudioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	presignExpiry time.Duration
	prefix        string
	logger        *zap.Logger
}

var _ repositories.AudioStore = (*AudioStore)(nil)

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if config.Endpoint == "" {
		return fmt.Errorf("S3 endpoint is required")
	}
	if config.Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	if (config.AccessKey == "") != (config.SecretKey == "") {
		return fmt.Errorf("S3 access key and secret key must be set together")
	}
	if config.PresignExpiry < 0 || config.PresignExpiry > 7*24*time.Hour {
		return fmt.Errorf("presign expiry must be between 0 and 7 days, got %s", config.PresignExpiry)
	}
	return nil
}

// NewAudioStore connects to the bucket. The bucket must already exist.
func NewAudioStore(ctx context.Context, config Config, logger *zap.Logger) (*AudioStore, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	region := config.Region
	if region == "" {
		region = defaultRegion
		logger.Info("Using default S3 region", zap.String("region", region))
	}

	expiry := config.PresignExpiry
	if expiry == 0 {
		expiry = defaultPresignExpiry
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: !config.Insecure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", config.Bucket)
	}

	logger.Info("Connected to audio archive",
		zap.String("endpoint", config.Endpoint),
		zap.String("bucket", config.Bucket))

	return &AudioStore{
		client:        client,
		bucket:        config.Bucket,
		publicBaseURL: strings.TrimSuffix(config.PublicBaseURL, "/"),
		presignExpiry: expiry,
		prefix:        strings.Trim(config.Prefix, "/"),
		logger:        logger,
	}, nil
}

// Put uploads the object and returns a URL to fetch it
func (s *AudioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	objectKey := s.objectKey(key)

	_, err := s.client.PutObject(ctx, s.bucket, objectKey, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"uploaded-at": time.Now().UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	if s.publicBaseURL != "" {
		return s.buildPublicURL(objectKey), nil
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.presignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}

	s.logger.Debug("Archived audio", zap.String("key", objectKey), zap.Int64("size", size))
	return presigned.String(), nil
}

// Delete removes the object
func (s *AudioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *AudioStore) objectKey(key string) string {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *AudioStore) buildPublicURL(objectKey string) string {
	parts := strings.Split(objectKey, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, strings.Join(parts, "/"))
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() Config {
	config := Config{
		Endpoint:      os.Getenv("S3_ENDPOINT"),
		AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("S3_SECRET_KEY"),
		Bucket:        os.Getenv("S3_BUCKET"),
		Region:        os.Getenv("S3_REGION"),
		Insecure:      os.Getenv("S3_INSECURE") == "true",
		PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		Prefix:        os.Getenv("S3_PREFIX"),
	}

	if expiryStr := os.Getenv("S3_PRESIGN_EXPIRY"); expiryStr != "" {
		if expiry, err := time.ParseDuration(expiryStr); err == nil && expiry > 0 {
			config.PresignExpiry = expiry
		}
	}

	return config
}
