// Пакет auth — аутентификация персонала EventDesk.
// Access token — JWT RS256, подписанный ключом сервиса. Публичный ключ
// публикуется в /.well-known/jwks.json и используется для проверки через keyfunc.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken — токен не прошёл проверку.
var ErrInvalidToken = errors.New("невалидный или просроченный токен")

// Claims — claims access token сотрудника.
// sub — ID сотрудника, jti — ID токена для отзыва.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenIssuer выпускает и проверяет access token персонала.
type TokenIssuer struct {
	key     *rsa.PrivateKey
	kid     string
	issuer  string
	ttl     time.Duration
	storage jwkset.Storage
	jwks    keyfunc.Keyfunc
}

// NewTokenIssuer создаёт выпускающего токены.
// keyFile — PEM с RSA-ключом (PKCS#1 или PKCS#8); пустой — ключ генерируется
// и токены не переживают рестарт.
func NewTokenIssuer(ctx context.Context, issuer string, ttl time.Duration, keyFile string) (*TokenIssuer, error) {
	var (
		key *rsa.PrivateKey
		err error
	)
	if keyFile != "" {
		key, err = loadRSAKey(keyFile)
	} else {
		key, err = rsa.GenerateKey(rand.Reader, 2048)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка подготовки ключа подписи: %w", err)
	}
	return newTokenIssuer(ctx, key, issuer, ttl)
}

func newTokenIssuer(ctx context.Context, key *rsa.PrivateKey, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	kid, err := keyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	jwk, err := jwkset.NewJWKFromKey(&key.PublicKey, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{
			ALG: jwkset.AlgRS256,
			KID: kid,
			USE: jwkset.UseSig,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWK: %w", err)
	}

	storage := jwkset.NewMemoryStorage()
	if err := storage.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("запись JWK: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &TokenIssuer{
		key:     key,
		kid:     kid,
		issuer:  issuer,
		ttl:     ttl,
		storage: storage,
		jwks:    k,
	}, nil
}

// Issue выпускает access token сотрудника.
func (ti *TokenIssuer) Issue(actorID, email string, now time.Time) (string, *Claims, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   actorID,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
		Email: email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ti.kid

	signed, err := token.SignedString(ti.key)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, claims, nil
}

// Parse проверяет подпись (RS256 через JWKS), срок действия и issuer.
func (ti *TokenIssuer) Parse(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, ti.jwks.KeyfuncCtx(ctx),
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(ti.issuer),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// JWKS возвращает публичный набор ключей (JSON).
func (ti *TokenIssuer) JWKS(ctx context.Context) (json.RawMessage, error) {
	return ti.storage.JSONPublic(ctx)
}

// TTL — время жизни выпускаемых токенов.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// keyID вычисляет kid как отпечаток публичного ключа.
func keyID(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("сериализация публичного ключа: %w", err)
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8]), nil
}

// loadRSAKey читает RSA-ключ из PEM-файла.
func loadRSAKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("файл %s не содержит PEM", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("разбор ключа %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("ключ %s не является RSA", path)
	}
	return key, nil
}
