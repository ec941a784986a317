package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore — хранилище в bucket Google Cloud Storage.
// Относительный путь файла используется как имя объекта.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore создаёт клиент GCS и проверяет доступность bucket.
// credentialsJSON — ключ сервисного аккаунта; пустой — Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsJSON string) (*GCSStore, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента GCS: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("bucket %q недоступен: %w", bucket, err)
	}

	return &GCSStore{client: client, bucket: bucket}, nil
}

// Put загружает объект.
func (s *GCSStore) Put(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	rel, err := joinPath(dir, name)
	if err != nil {
		return "", err
	}

	w := s.client.Bucket(s.bucket).Object(rel).NewWriter(ctx)
	if ct := mime.TypeByExtension(path.Ext(rel)); ct != "" {
		w.ContentType = ct
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("ошибка загрузки объекта %s: %w", rel, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ошибка завершения загрузки %s: %w", rel, err)
	}
	return rel, nil
}

// Get открывает объект для чтения.
func (s *GCSStore) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(s.bucket).Object(rel).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s: %w", rel, err)
	}
	return rc, nil
}

// Delete удаляет объект.
func (s *GCSStore) Delete(ctx context.Context, p string) error {
	rel, err := cleanPath(p)
	if err != nil {
		return err
	}

	err = s.client.Bucket(s.bucket).Object(rel).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("ошибка удаления объекта %s: %w", rel, err)
	}
	return nil
}

// Close закрывает клиент GCS.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
