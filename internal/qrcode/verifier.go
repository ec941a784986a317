package qrcode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/repository"
)

// Причины отказа при проверке токена.
const (
	KindNotFound    = "not_found"
	KindWrongStatus = "wrong_status"
	KindMalformed   = "malformed"
)

// VerificationError — токен не даёт права прохода.
type VerificationError struct {
	Kind string
	// Status — текущий статус заявки (для wrong_status)
	Status lifecycle.Status
}

func (e *VerificationError) Error() string {
	switch e.Kind {
	case KindMalformed:
		return "QR-код не распознан"
	case KindWrongStatus:
		return fmt.Sprintf("заявка в статусе %s, проход невозможен", e.Status)
	default:
		return "заявка по QR-коду не найдена"
	}
}

// RegistrationRef — заявка, к которой привязан валидный токен.
type RegistrationRef struct {
	ID     int64
	Name   string
	Email  string
	Phone  string
	Status lifecycle.Status
	// AlreadyCheckedIn — участник уже прошёл (информационно, не ошибка)
	AlreadyCheckedIn bool
}

// RegistrationLookup — чтение заявки по ID.
type RegistrationLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Registration, error)
}

// Verifier проверяет токен против текущего состояния заявки.
type Verifier struct {
	codec  *Codec
	lookup RegistrationLookup
}

// NewVerifier создаёт проверяющего.
func NewVerifier(codec *Codec, lookup RegistrationLookup) *Verifier {
	return &Verifier{codec: codec, lookup: lookup}
}

// Verify проверяет токен: расшифровка, поиск заявки, совпадение email
// и выданного токена, статус CONFIRMED.
// Ошибки проверки — *VerificationError, прочие — ошибки хранилища.
func (v *Verifier) Verify(ctx context.Context, token string) (*RegistrationRef, error) {
	payload, err := v.codec.Decode(token)
	if err != nil {
		return nil, &VerificationError{Kind: KindMalformed}
	}

	reg, err := v.lookup.GetByID(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &VerificationError{Kind: KindNotFound}
		}
		return nil, fmt.Errorf("ошибка поиска заявки по QR-коду: %w", err)
	}

	// Токен действителен только пока совпадает с выданным заявке.
	if !strings.EqualFold(reg.Email, payload.Email) || reg.QRToken == nil || *reg.QRToken != strings.TrimSpace(token) {
		return nil, &VerificationError{Kind: KindNotFound}
	}

	if reg.Status != lifecycle.StatusConfirmed {
		return nil, &VerificationError{Kind: KindWrongStatus, Status: reg.Status}
	}

	return &RegistrationRef{
		ID:               reg.ID,
		Name:             reg.Name,
		Email:            reg.Email,
		Phone:            reg.Phone,
		Status:           reg.Status,
		AlreadyCheckedIn: reg.CheckedIn,
	}, nil
}
