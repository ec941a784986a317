package blobstore

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func newTestStore(t *testing.T) (*LocalStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s, dir
}

// TestLocalStorePutGetDelete проверяет полный цикл работы с файлом.
func TestLocalStorePutGetDelete(t *testing.T) {
	s, root := newTestStore(t)
	ctx := context.Background()

	p, err := s.Put(ctx, DirReceipts, "r1.png", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if p != "receipts/r1.png" {
		t.Errorf("путь = %q, хотели receipts/r1.png", p)
	}

	if _, err := os.Stat(filepath.Join(root, "receipts", "r1.png.tmp")); !os.IsNotExist(err) {
		t.Error("временный файл должен быть удалён после rename")
	}

	rc, err := s.Get(ctx, p)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "data" {
		t.Errorf("содержимое = %q", data)
	}

	if err := s.Delete(ctx, p); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, p); !errors.Is(err, ErrNotFound) {
		t.Errorf("после удаления ожидалась ErrNotFound, получено %v", err)
	}
	// Повторное удаление не ошибка.
	if err := s.Delete(ctx, p); err != nil {
		t.Errorf("повторный Delete: %v", err)
	}
}

func TestLocalStoreInvalidPath(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"", "/etc/passwd", "../secret", "receipts/../../x", `receipts\x`} {
		if _, err := s.Get(ctx, p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Get(%q): ожидалась ErrInvalidPath, получено %v", p, err)
		}
	}

	if _, err := s.Put(ctx, DirReceipts, "../x.png", strings.NewReader("")); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Put с ../ в имени: ожидалась ErrInvalidPath, получено %v", err)
	}
}

func TestNewName(t *testing.T) {
	a := NewName("receipt_1", "PNG")
	b := NewName("receipt_1", ".png")
	if !strings.HasPrefix(a, "receipt_1_") || !strings.HasSuffix(a, ".png") {
		t.Errorf("NewName = %q", a)
	}
	if a == b {
		t.Error("имена должны быть уникальны")
	}
}

func TestValidateReceipt(t *testing.T) {
	const maxBytes = 5 * 1024 * 1024

	tests := []struct {
		name     string
		filename string
		size     int64
		wantExt  string
		wantErr  error
	}{
		{"png", "scan.PNG", 100, ".png", nil},
		{"jpeg", "photo.jpeg", 100, ".jpeg", nil},
		{"pdf", "receipt.pdf", maxBytes, ".pdf", nil},
		{"exe", "virus.exe", 100, "", ErrUnsupportedType},
		{"без расширения", "receipt", 100, "", ErrUnsupportedType},
		{"пустой", "a.png", 0, "", ErrEmptyFile},
		{"больше лимита", "a.png", maxBytes + 1, "", ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := ValidateReceipt(tt.filename, tt.size, maxBytes)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ожидалась %v, получено %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if ext != tt.wantExt {
				t.Errorf("ext = %q, хотели %q", ext, tt.wantExt)
			}
		})
	}
}

func encodeTestImage(t *testing.T, width, height int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

// TestOptimizerResize — широкие изображения уменьшаются до MaxWidth с сохранением пропорций.
func TestOptimizerResize(t *testing.T) {
	o := NewOptimizer(1200)
	src := encodeTestImage(t, 2400, 600, imaging.PNG)

	out, err := o.Optimize(src, ".png")
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("результат не декодируется: %v", err)
	}
	if img.Bounds().Dx() != 1200 || img.Bounds().Dy() != 300 {
		t.Errorf("размер = %dx%d, хотели 1200x300", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestOptimizerSmallImageKeepsSize(t *testing.T) {
	o := NewOptimizer(1200)
	src := encodeTestImage(t, 300, 200, imaging.JPEG)

	out, err := o.Optimize(src, ".jpg")
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 300 {
		t.Errorf("ширина = %d, хотели 300", img.Bounds().Dx())
	}
}

func TestOptimizerPassthrough(t *testing.T) {
	o := NewOptimizer(1200)

	pdf := []byte("%PDF-1.4 test")
	out, err := o.Optimize(pdf, ".pdf")
	if err != nil || !bytes.Equal(out, pdf) {
		t.Errorf("PDF должен возвращаться без изменений: %v", err)
	}

	broken := []byte("not an image")
	out, err = o.Optimize(broken, ".png")
	if err == nil {
		t.Error("для повреждённого изображения ожидалась ошибка")
	}
	if !bytes.Equal(out, broken) {
		t.Error("при ошибке должны возвращаться исходные данные")
	}
}
