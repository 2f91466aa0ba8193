package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/rs/zerolog"

	"ai-transcription-summary-service/internal/models"
	"ai-transcription-summary-service/internal/observability/logging"
)

var objectCreatedEvents = []string{"s3:ObjectCreated:*"}

// BucketConfig addresses an S3-compatible bucket.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// bucket is the subset of object storage the listener needs.
type bucket interface {
	Listen(ctx context.Context) <-chan notification.Info
	Fetch(ctx context.Context, key string) ([]byte, error)
}

type minioBucket struct {
	client *minio.Client
	name   string
	prefix string
}

func (b *minioBucket) Listen(ctx context.Context) <-chan notification.Info {
	return b.client.ListenBucketNotification(ctx, b.name, b.prefix, "", objectCreatedEvents)
}

func (b *minioBucket) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// BucketListener hands every newly created audio object in a bucket to the handler.
type BucketListener struct {
	bucket bucket
	log    zerolog.Logger
}

// NewBucketListener connects to the object store and checks the bucket exists.
func NewBucketListener(ctx context.Context, cfg BucketConfig) (*BucketListener, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return newBucketListener(&minioBucket{client: client, name: cfg.Bucket, prefix: cfg.Prefix}), nil
}

func newBucketListener(b bucket) *BucketListener {
	return &BucketListener{bucket: b, log: logging.WithComponent("bucket-listener")}
}

// Run processes notifications sequentially until ctx is done or the stream ends.
func (l *BucketListener) Run(ctx context.Context, handle Handler) error {
	l.log.Info().Msg("Listening for bucket notifications")

	for info := range l.bucket.Listen(ctx) {
		if info.Err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log.Error().Err(info.Err).Msg("Bucket notification error")
			continue
		}
		for _, record := range info.Records {
			l.handleRecord(ctx, record, handle)
		}
	}
	return nil
}

func (l *BucketListener) handleRecord(ctx context.Context, record notification.Event, handle Handler) {
	key, err := ObjectKey(record)
	if err != nil {
		l.log.Warn().Err(err).Str("key", record.S3.Object.Key).Msg("Undecodable object key")
		return
	}
	if !IsAudioFile(key) {
		l.log.Debug().Str("key", key).Msg("Ignoring non-audio object")
		return
	}

	data, err := l.bucket.Fetch(ctx, key)
	if err != nil {
		l.log.Error().Err(err).Str("key", key).Msg("Failed to fetch object")
		return
	}

	payload := models.AudioPayload{Name: path.Base(key), Data: data}
	if err := handle(ctx, payload); err != nil {
		l.log.Error().Err(err).Str("audioFile", payload.Name).Msg("Audio object processing failed")
	}
}

// ObjectKey returns the decoded object key of a notification record.
func ObjectKey(record notification.Event) (string, error) {
	return url.QueryUnescape(record.S3.Object.Key)
}

func (l *BucketListener) Close() error { return nil }
