// messages.go — письма участникам и персоналу.
// Тексты писем — простые строки, без шаблонизатора.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/notify"
)

// qrAttachmentName — имя вложения с QR-кодом.
const qrAttachmentName = "qr_code.png"

// deliver отправляет письмо с таймаутом. Отмена запроса клиентом
// не прерывает отправку: изменение к этому моменту уже сохранено.
func deliver(ctx context.Context, sink notify.Sink, timeout time.Duration, msg notify.Message) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return sink.Send(ctx, msg)
}

func registrationMessage(event string, reg *model.Registration) notify.Message {
	return notify.Message{
		To:      []string{reg.Email},
		Subject: fmt.Sprintf("Registration Confirmation - %s", event),
		Body: fmt.Sprintf(
			"Dear %s,\n\nThank you for registering for %s.\n"+
				"Your registration number is %d.\n\n"+
				"Next step: upload your payment receipt on the registration page.\n"+
				"Current status: %s.\n",
			reg.Name, event, reg.ID, reg.StatusLabel()),
	}
}

func receiptSubmittedMessage(event string, reg *model.Registration) notify.Message {
	return notify.Message{
		To:      []string{reg.Email},
		Subject: fmt.Sprintf("%s - Receipt Submission Confirmation", event),
		Body: fmt.Sprintf(
			"Dear %s,\n\nWe have received your payment receipt for registration %d.\n"+
				"Our staff will verify it shortly. You will receive your QR code by email once it is approved.\n",
			reg.Name, reg.ID),
	}
}

func staffReceiptMessage(event string, staff []string, reg *model.Registration) notify.Message {
	return notify.Message{
		To:      staff,
		Subject: fmt.Sprintf("%s - New Receipt Uploaded", event),
		Body: fmt.Sprintf(
			"A new payment receipt is waiting for verification.\n\n"+
				"Registration: %d\nName: %s\nEmail: %s\nPhone: %s\n",
			reg.ID, reg.Name, reg.Email, reg.Phone),
	}
}

func confirmedMessage(event string, reg *model.Registration, qrPNG []byte) notify.Message {
	return notify.Message{
		To:      []string{reg.Email},
		Subject: fmt.Sprintf("%s - Registration Confirmed!", event),
		Body: fmt.Sprintf(
			"Dear %s,\n\nYour payment has been verified and your registration %d is confirmed.\n"+
				"Your QR code is attached. Please present it at the entrance.\n",
			reg.Name, reg.ID),
		Attachments: []notify.Attachment{{
			Name:        qrAttachmentName,
			ContentType: "image/png",
			Data:        qrPNG,
		}},
	}
}

func rejectedMessage(event string, reg *model.Registration, reason string) notify.Message {
	return notify.Message{
		To:      []string{reg.Email},
		Subject: fmt.Sprintf("%s - Registration Update", event),
		Body: fmt.Sprintf(
			"Dear %s,\n\nUnfortunately we could not verify the payment receipt for registration %d.\n\n"+
				"Reason: %s\n\nPlease upload a new receipt on the registration page.\n",
			reg.Name, reg.ID, reason),
	}
}

// reminderMessage — рассылка участнику с произвольным текстом сотрудника.
func reminderMessage(event, subject, body string, reg *model.Registration) notify.Message {
	if strings.TrimSpace(subject) == "" {
		subject = fmt.Sprintf("%s - Event Reminder", event)
	}
	return notify.Message{
		To:      []string{reg.Email},
		Subject: subject,
		Body:    fmt.Sprintf("Dear %s,\n\n%s\n", reg.Name, body),
	}
}
