package qrcode

import (
	"fmt"

	qrpng "github.com/skip2/go-qrcode"
)

// Render возвращает PNG с QR-кодом токена (уровень коррекции Medium).
func Render(token string, size int) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("пустой токен")
	}
	png, err := qrpng.Encode(token, qrpng.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации QR-кода: %w", err)
	}
	return png, nil
}
