package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Ошибки проверки квитанции.
var (
	ErrUnsupportedType = errors.New("недопустимый тип файла, допустимые: png, jpg, jpeg, pdf")
	ErrTooLarge        = errors.New("файл превышает допустимый размер")
	ErrEmptyFile       = errors.New("пустой файл")
)

// allowedReceiptExt — допустимые расширения квитанций.
var allowedReceiptExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

// ValidateReceipt проверяет имя и размер квитанции.
// Возвращает расширение в нижнем регистре (с точкой).
func ValidateReceipt(filename string, size, maxBytes int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedReceiptExt[ext] {
		return "", ErrUnsupportedType
	}
	if size <= 0 {
		return "", ErrEmptyFile
	}
	if size > maxBytes {
		return "", fmt.Errorf("%w: %d > %d байт", ErrTooLarge, size, maxBytes)
	}
	return ext, nil
}

// IsImage — расширение относится к изображению.
func IsImage(ext string) bool {
	switch strings.ToLower(ext) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// Optimizer уменьшает изображения квитанций.
type Optimizer struct {
	// MaxWidth — максимальная ширина, шире — пропорциональное уменьшение
	MaxWidth int
	// JPEGQuality — качество JPEG (1..100)
	JPEGQuality int
}

// NewOptimizer создаёт Optimizer (качество JPEG 85).
func NewOptimizer(maxWidth int) *Optimizer {
	return &Optimizer{MaxWidth: maxWidth, JPEGQuality: 85}
}

// Optimize уменьшает изображение до MaxWidth и перекодирует в исходном формате.
// Для PDF и при любой ошибке обработки возвращает исходные данные
// и ошибку (вызывающий код сохраняет оригинал).
func (o *Optimizer) Optimize(data []byte, ext string) ([]byte, error) {
	if !IsImage(ext) {
		return data, nil
	}

	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return data, fmt.Errorf("неизвестный формат изображения %s: %w", ext, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, fmt.Errorf("ошибка декодирования изображения: %w", err)
	}

	if o.MaxWidth > 0 && img.Bounds().Dx() > o.MaxWidth {
		img = imaging.Resize(img, o.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(o.JPEGQuality)); err != nil {
		return data, fmt.Errorf("ошибка кодирования изображения: %w", err)
	}
	return buf.Bytes(), nil
}
