// Пакет qrcode — выпуск и проверка QR-токенов участников.
// Токен — AES-256-GCM поверх JSON {"id","email","iat"}, nonce в начале,
// base64url без padding. Подделать или изменить токен без ключа нельзя.
package qrcode

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrMalformed — токен не расшифровывается или содержит некорректные данные.
var ErrMalformed = errors.New("некорректный QR-токен")

// Payload — содержимое QR-токена.
type Payload struct {
	// ID — идентификатор заявки
	ID int64 `json:"id"`
	// Email — email участника на момент выпуска
	Email string `json:"email"`
	// IssuedAt — время выпуска (Unix)
	IssuedAt int64 `json:"iat"`
}

// Codec шифрует и расшифровывает QR-токены.
type Codec struct {
	gcm cipher.AEAD
}

// NewCodec создаёт кодек.
// secret — base64 32-байтового ключа; любая другая строка хешируется SHA-256.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("ключ QR-токенов не задан")
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания GCM: %w", err)
	}
	return &Codec{gcm: gcm}, nil
}

// Issue выпускает токен для заявки.
func (c *Codec) Issue(id int64, email string, now time.Time) (string, error) {
	if id <= 0 || strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("недостаточно данных для QR-токена: id=%d", id)
	}

	plaintext, err := json.Marshal(Payload{ID: id, Email: email, IssuedAt: now.Unix()})
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации QR-токена: %w", err)
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("ошибка генерации nonce: %w", err)
	}

	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode расшифровывает токен. Любая ошибка — ErrMalformed.
func (c *Codec) Decode(token string) (Payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Payload{}, ErrMalformed
	}

	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize+c.gcm.Overhead() {
		return Payload{}, ErrMalformed
	}

	plaintext, err := c.gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return Payload{}, ErrMalformed
	}

	var p Payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Payload{}, ErrMalformed
	}
	if p.ID <= 0 || p.Email == "" {
		return Payload{}, ErrMalformed
	}
	return p, nil
}
