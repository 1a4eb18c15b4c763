package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// FolderSnapshots is the S3 prefix for board snapshot objects.
	FolderSnapshots = "boards"
	// snapshotContentType is the MIME type for uploaded snapshots.
	snapshotContentType = "application/json"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SnapshotsBucket string
}

// S3 stores serialized board snapshots. It consumes the snapshot bytes the
// scene produces on demand and knows nothing about the live session protocol.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client using static credentials from config when set,
// falling back to the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// SnapshotKey returns the S3 object key for a host's board:
// boards/{host}/{timestamp}.json.
func SnapshotKey(host string, at time.Time) string {
	return path.Join(FolderSnapshots, host, at.UTC().Format("20060102T150405Z")+".json")
}

// PutSnapshot uploads a serialized board snapshot and returns its object key.
func (s *S3) PutSnapshot(ctx context.Context, host string, snapshot []byte) (string, error) {
	key := SnapshotKey(host, time.Now())
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.SnapshotsBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(snapshot),
		ContentType: aws.String(snapshotContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	s.logger.Info("board snapshot uploaded",
		zap.String("bucket", s.cfg.SnapshotsBucket),
		zap.String("key", key),
		zap.Int("bytes", len(snapshot)),
	)
	return key, nil
}

// GetSnapshot downloads a snapshot object by key.
func (s *S3) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.SnapshotsBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer out.Body.Close()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}
	return body, nil
}
