package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubSink — канал с заданным результатом, считает вызовы.
type stubSink struct {
	ok    bool
	calls int
	last  Message
}

func (s *stubSink) Send(_ context.Context, msg Message) bool {
	s.calls++
	s.last = msg
	return s.ok
}

func TestFallback(t *testing.T) {
	msg := Message{To: []string{"ann@x.com"}, Subject: "Hi"}

	t.Run("основной канал доступен", func(t *testing.T) {
		primary, secondary := &stubSink{ok: true}, &stubSink{ok: true}
		if !Fallback(primary, secondary, testLogger()).Send(context.Background(), msg) {
			t.Error("ожидался true")
		}
		if secondary.calls != 0 {
			t.Error("резервный канал не должен вызываться")
		}
	})

	t.Run("основной канал недоступен", func(t *testing.T) {
		primary, secondary := &stubSink{ok: false}, &stubSink{ok: true}
		if Fallback(primary, secondary, testLogger()).Send(context.Background(), msg) {
			t.Error("после резервного канала результат должен оставаться false")
		}
		if secondary.calls != 1 || secondary.last.Subject != "Hi" {
			t.Errorf("резервный канал: %d вызовов, письмо %+v", secondary.calls, secondary.last)
		}
	})
}

func TestOutboxSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outbox")
	sink, err := NewOutboxSink(dir, testLogger())
	if err != nil {
		t.Fatalf("NewOutboxSink: %v", err)
	}

	msg := Message{
		To:          []string{"ann@x.com"},
		Subject:     "Registration confirmed",
		Body:        "See you there",
		Attachments: []Attachment{{Name: "qr.png", ContentType: "image/png", Data: []byte{1, 2, 3}}},
	}
	if !sink.Send(context.Background(), msg) {
		t.Fatal("Send вернул false")
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(files) != 1 {
		t.Fatalf("ожидался 1 файл, найдено %d (%v)", len(files), err)
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var rec outboxRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec.Subject != msg.Subject || rec.To[0] != "ann@x.com" || len(rec.Attachments) != 1 {
		t.Errorf("сохранено %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("created_at не заполнен")
	}
}

func TestSMTPSink_Unreachable(t *testing.T) {
	sink := NewSMTPSink(SMTPConfig{
		Host:    "127.0.0.1",
		Port:    1,
		From:    "noreply@example.com",
		Timeout: time.Second,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if sink.Send(ctx, Message{To: []string{"ann@x.com"}, Subject: "x", Body: "y"}) {
		t.Error("недоступный SMTP должен вернуть false")
	}
}

func TestSMTPSink_InvalidAddress(t *testing.T) {
	sink := NewSMTPSink(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "not an address"}, testLogger())
	if sink.Send(context.Background(), Message{To: []string{"ann@x.com"}}) {
		t.Error("некорректный отправитель должен вернуть false")
	}
}

func TestSMTPSink_NoRecipients(t *testing.T) {
	sink := NewSMTPSink(SMTPConfig{Host: "127.0.0.1", Port: 1}, testLogger())
	if !sink.Send(context.Background(), Message{}) {
		t.Error("письмо без получателей считается доставленным")
	}
}
