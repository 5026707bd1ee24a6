// Package blob хранит и удаляет загруженные документы. Локаторы — имена
// объектов в настроенном бакете с префиксом этапа.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ErrObjectMissing — удаление объекта, которого нет в хранилище.
// Вызывающий всё равно чистит метаданные и считает состояние согласованным.
var ErrObjectMissing = errors.New("object not found in store")

// Store — то, что нужно остальной системе от файлового хранилища.
type Store interface {
	Put(ctx context.Context, stage, filename, contentType string, r io.Reader, size int64) (string, error)
	Get(ctx context.Context, locator string) (io.ReadCloser, error)
	Delete(ctx context.Context, locator string) error
}

type MinioStore struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, log *zap.Logger) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	return &MinioStore{client: client, bucket: bucket, log: log}, nil
}

// EnsureBucket создаёт бакет при первом запуске.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.log.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

func (s *MinioStore) Put(ctx context.Context, stage, filename, contentType string, r io.Reader, size int64) (string, error) {
	objectName := fmt.Sprintf("%s/%s-%s", stage, uuid.New().String(), filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", objectName, err)
	}

	s.log.Info("object stored", zap.String("object", objectName))
	return objectName, nil
}

// Delete удаляет объект. Отсутствующий объект возвращается как
// ErrObjectMissing, чтобы вызывающий мог очистить метаданные.
func (s *MinioStore) Delete(ctx context.Context, locator string) error {
	_, err := s.client.StatObject(ctx, s.bucket, locator, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrObjectMissing, locator)
		}
		return fmt.Errorf("stat %s: %w", locator, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, locator, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", locator, err)
	}
	s.log.Info("object deleted", zap.String("object", locator))
	return nil
}

// Get отдаёт поток сохранённого объекта для скачивания.
func (s *MinioStore) Get(ctx context.Context, locator string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, locator, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", locator, err)
	}
	return obj, nil
}
