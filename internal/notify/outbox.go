package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// outboxRecord — письмо, сохранённое в файл.
type outboxRecord struct {
	Message
	CreatedAt time.Time `json:"created_at"`
}

// OutboxSink сохраняет письма JSON-файлами в директорию.
// Используется, когда SMTP не настроен, и как резерв при его недоступности.
type OutboxSink struct {
	dir    string
	logger *slog.Logger
}

// NewOutboxSink создаёт файловый канал. Создаёт директорию, если её нет.
func NewOutboxSink(dir string, logger *slog.Logger) (*OutboxSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию outbox %s: %w", dir, err)
	}
	return &OutboxSink{
		dir:    dir,
		logger: logger.With(slog.String("component", "outbox")),
	}, nil
}

// Send записывает письмо в файл {время}_{uuid}.json.
func (o *OutboxSink) Send(_ context.Context, msg Message) bool {
	now := time.Now().UTC()
	data, err := json.MarshalIndent(outboxRecord{Message: msg, CreatedAt: now}, "", "  ")
	if err != nil {
		o.logger.Error("Ошибка сериализации письма", slog.String("error", err.Error()))
		return false
	}

	name := fmt.Sprintf("%s_%s.json", now.Format("20060102T150405"), uuid.New().String())
	fullPath := filepath.Join(o.dir, name)
	tmpPath := fullPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		o.logger.Error("Ошибка записи письма в outbox", slog.String("error", err.Error()))
		return false
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		o.logger.Error("Ошибка переименования файла outbox", slog.String("error", err.Error()))
		return false
	}

	o.logger.Info("Письмо сохранено в outbox",
		slog.String("file", name),
		slog.String("subject", msg.Subject),
	)
	return true
}
