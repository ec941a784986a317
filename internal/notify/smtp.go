package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig — параметры SMTP-relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// TLS — требовать STARTTLS
	TLS     bool
	From    string
	Timeout time.Duration
}

// SMTPSink отправляет письма через SMTP.
type SMTPSink struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPSink создаёт SMTP-канал.
func NewSMTPSink(cfg SMTPConfig, logger *slog.Logger) *SMTPSink {
	return &SMTPSink{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "smtp")),
	}
}

// Send отправляет письмо. Ошибка логируется, наружу возвращается false.
func (s *SMTPSink) Send(ctx context.Context, msg Message) bool {
	if len(msg.To) == 0 {
		return true
	}

	m, err := s.buildMessage(msg)
	if err != nil {
		s.logger.Error("Ошибка формирования письма",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return false
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		s.logger.Error("Ошибка создания SMTP-клиента", slog.String("error", err.Error()))
		return false
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		s.logger.Error("Ошибка отправки письма",
			slog.String("subject", msg.Subject),
			slog.Int("recipients", len(msg.To)),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.logger.Debug("Письмо отправлено",
		slog.String("subject", msg.Subject),
		slog.Int("recipients", len(msg.To)),
	)
	return true
}

func (s *SMTPSink) buildMessage(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("некорректный отправитель: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("некорректный получатель: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("ошибка вложения %s: %w", a.Name, err)
		}
	}
	return m, nil
}

func (s *SMTPSink) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}
