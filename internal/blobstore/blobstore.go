// Пакет blobstore — хранение квитанций и QR-кодов.
// Файлы адресуются относительным путём вида "receipts/<имя>".
// Бэкенды: локальная файловая система и Google Cloud Storage.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Каталоги хранилища.
const (
	DirReceipts = "receipts"
	DirQR       = "qr_codes"
)

var (
	// ErrNotFound — файл отсутствует в хранилище.
	ErrNotFound = errors.New("файл не найден")
	// ErrInvalidPath — путь выходит за пределы хранилища.
	ErrInvalidPath = errors.New("недопустимый путь файла")
)

// Store — хранилище файлов.
type Store interface {
	// Put сохраняет содержимое r как dir/name и возвращает относительный путь.
	Put(ctx context.Context, dir, name string, r io.Reader) (string, error)
	// Get открывает файл для чтения. Вызывающий код закрывает ReadCloser.
	Get(ctx context.Context, p string) (io.ReadCloser, error)
	// Delete удаляет файл. Отсутствие файла ошибкой не считается.
	Delete(ctx context.Context, p string) error
}

// NewName генерирует уникальное имя файла: {prefix}_{uuid}{ext}.
func NewName(prefix, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s_%s%s", prefix, uuid.New().String(), ext)
}

// cleanPath нормализует относительный путь и проверяет, что он
// не выходит за корень хранилища.
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// joinPath собирает dir/name и проверяет результат.
func joinPath(dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return "", ErrInvalidPath
	}
	return cleanPath(path.Join(dir, name))
}
