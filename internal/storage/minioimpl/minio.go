package minioimpl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/orgball2608/story-engine/internal/storage"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Logger logger.Logger
}

type Uploader struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
	log     logger.Logger
}

var _ storage.Uploader = (*Uploader)(nil)

func New(opts Opts) (*Uploader, error) {
	cfg := opts.Config.Minio

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(client.EndpointURL().String(), "/")
	}

	u := &Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: baseURL,
		log:     opts.Logger,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := u.EnsureBucket(ctx); err != nil {
				// uploads fail and are retried until storage comes back
				u.log.Warn("Object storage not ready", "bucket", u.bucket, "error", err)
			}
			return nil
		},
	})

	return u, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", u.bucket, err)
	}
	u.log.Info("Created storage bucket", "bucket", u.bucket)
	return nil
}

func (u *Uploader) Upload(ctx context.Context, localPath, key string) (string, error) {
	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(localPath); err == nil {
		contentType = mt.String()
	}

	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	u.log.Debug("Uploaded story media", "key", key, "size", info.Size, "content_type", contentType)
	return u.ObjectURL(key), nil
}

func (u *Uploader) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", u.baseURL, u.bucket, strings.TrimLeft(key, "/"))
}
