// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/repository"
)

var (
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — у сотрудника нет нужного права.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrPrecondition — операция недопустима в текущем статусе заявки.
	ErrPrecondition = errors.New("операция недопустима в текущем состоянии")
	// ErrAlreadyCheckedIn — участник уже прошёл на мероприятие.
	ErrAlreadyCheckedIn = fmt.Errorf("%w: участник уже отмечен", ErrPrecondition)
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (email или телефон уже зарегистрированы).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrUnauthorized — неверные учётные данные.
	ErrUnauthorized = errors.New("неверный email или пароль")
)

// authorize проверяет право сотрудника до любых изменений.
func authorize(actor *model.Actor, p rbac.Permission) error {
	if actor == nil {
		return fmt.Errorf("%w: требуется %s", ErrForbidden, p)
	}
	if !actor.HasPermission(p) {
		return fmt.Errorf("%w: у сотрудника %s нет права %s", ErrForbidden, actor.Email, p)
	}
	return nil
}

// mapRepoError переводит ошибки репозитория в ошибки сервиса.
func mapRepoError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	}
	return err
}

// transitionError переводит отказ автомата статусов в ErrPrecondition.
func transitionError(err error) error {
	var te *lifecycle.TransitionError
	if errors.As(err, &te) {
		return fmt.Errorf("%w: %s", ErrPrecondition, te.Message)
	}
	return err
}

// clientIPKey — ключ контекста для IP клиента.
type clientIPKey struct{}

// WithClientIP сохраняет IP клиента в контексте для журнала аудита.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// clientIP возвращает IP клиента из контекста (пустая строка, если не задан).
func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
