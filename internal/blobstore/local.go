package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore — хранилище на локальном диске.
type LocalStore struct {
	// root — корневая директория (ED_UPLOAD_DIR)
	root string
}

// NewLocalStore создаёт хранилище. Создаёт корневую директорию, если её нет.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Put записывает файл.
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (s *LocalStore) Put(ctx context.Context, dir, name string, r io.Reader) (string, error) {
	rel, err := joinPath(dir, name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPath := s.fullPath(rel)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return rel, nil
}

// Get открывает файл для чтения.
func (s *LocalStore) Get(_ context.Context, p string) (io.ReadCloser, error) {
	rel, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.fullPath(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", p, err)
	}
	return f, nil
}

// Delete удаляет файл с диска.
func (s *LocalStore) Delete(_ context.Context, p string) error {
	rel, err := cleanPath(p)
	if err != nil {
		return err
	}

	err = os.Remove(s.fullPath(rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", p, err)
	}
	return nil
}

func (s *LocalStore) fullPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}
