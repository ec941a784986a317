// Пакет notify — отправка уведомлений участникам и сотрудникам.
// Sink никогда не возвращает ошибку наружу: неудача — false и запись в лог.
package notify

import (
	"context"
	"log/slog"
)

// Attachment — вложение письма.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Message — письмо.
type Message struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Sink — канал доставки уведомлений.
type Sink interface {
	// Send доставляет письмо. false — письмо не доставлено основным каналом.
	Send(ctx context.Context, msg Message) bool
}

// fallbackSink — основной канал с резервным.
type fallbackSink struct {
	primary   Sink
	secondary Sink
	logger    *slog.Logger
}

// Fallback объединяет каналы: при неудаче primary письмо сохраняется
// через secondary, но результат остаётся false.
func Fallback(primary, secondary Sink, logger *slog.Logger) Sink {
	return &fallbackSink{
		primary:   primary,
		secondary: secondary,
		logger:    logger.With(slog.String("component", "notify")),
	}
}

func (f *fallbackSink) Send(ctx context.Context, msg Message) bool {
	if f.primary.Send(ctx, msg) {
		return true
	}

	f.logger.Warn("Основной канал недоступен, письмо сохранено в резервный",
		slog.String("subject", msg.Subject),
		slog.Int("recipients", len(msg.To)),
	)
	f.secondary.Send(ctx, msg)
	return false
}
