package auth

import (
	"context"
	"os"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// TestRedisRevoker проверяет список отзыва в реальном Redis.
func TestRedisRevoker(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "docker.io/redis:7-alpine")
	if err != nil {
		t.Fatalf("Не удалось запустить Redis контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("ConnectionString: %v", err)
	}

	client, err := NewRedisClient(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	r := NewRedisRevoker(client)

	if revoked, err := r.IsRevoked(ctx, "jti-1"); err != nil || revoked {
		t.Fatalf("до Revoke: %v, %v", revoked, err)
	}
	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked, err := r.IsRevoked(ctx, "jti-1"); err != nil || !revoked {
		t.Errorf("после Revoke: %v, %v", revoked, err)
	}

	ttl, err := client.TTL(ctx, revokedKeyPrefix+"jti-1").Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL ключа = %v, %v", ttl, err)
	}

	if _, err := NewRedisClient(ctx, "not-a-url"); err == nil {
		t.Error("некорректный URL должен давать ошибку")
	}
}
