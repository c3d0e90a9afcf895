// Package export uploads rendered run reports to object storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"practice-insights/config"
	"practice-insights/formatter"
	"practice-insights/pipeline"
)

// Storage puts one object and returns its key.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the configured MinIO endpoint.
func NewMinio(cfg config.Minio) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Username, cfg.Password, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialising minio client: %w", err)
	}
	return client, nil
}

// NewMinioStorage returns a Storage writing to bucket, creating the bucket
// if it does not exist yet.
func NewMinioStorage(ctx context.Context, client *minio.Client, bucket string) (Storage, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}
	return &minioStorage{client: client, bucket: bucket}, nil
}

func (m *minioStorage) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to bucket %s: %w", key, m.bucket, err)
	}
	return key, nil
}

// Format is one rendering of a run.
type Format struct {
	Ext         string
	ContentType string
	Render      func(res *pipeline.Result) string
}

// Formats are uploaded in this order.
var Formats = []Format{
	{Ext: "json", ContentType: "application/json", Render: formatter.FormatJSON},
	{Ext: "csv", ContentType: "text/csv", Render: formatter.FormatCSV},
	{Ext: "txt", ContentType: "text/plain; charset=utf-8", Render: formatter.FormatText},
}

// Reports uploads every rendering of res under "<prefix>/<run id>.<ext>"
// and returns the stored keys. The first failed upload aborts.
func Reports(ctx context.Context, store Storage, prefix string, res *pipeline.Result, log *zap.Logger) ([]string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	keys := make([]string, 0, len(Formats))
	for _, f := range Formats {
		key := path.Join(prefix, res.RunID+"."+f.Ext)
		stored, err := store.Put(ctx, key, []byte(f.Render(res)), f.ContentType)
		if err != nil {
			return keys, err
		}
		log.Info("report uploaded", zap.String("run_id", res.RunID), zap.String("key", stored))
		keys = append(keys, stored)
	}
	return keys, nil
}
