// registration.go — публичная регистрация участников, чтение заявок
// и рассылки.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/notify"
	"github.com/bigkaa/eventdesk/internal/repository"
)

// RegisterInput — данные формы регистрации.
type RegisterInput struct {
	Name  string `validate:"required,max=200"`
	Email string `validate:"required,email,max=254"`
	Phone string `validate:"required,max=32"`
}

// ReminderInput — рассылка участникам.
type ReminderInput struct {
	// Subject — тема (пустая — тема напоминания по умолчанию)
	Subject string `validate:"max=200"`
	Body    string `validate:"required,max=10000"`
	// Status — только заявки в этом статусе (пустой — все неархивные)
	Status lifecycle.Status
}

// ReminderResult — итог рассылки.
type ReminderResult struct {
	Recipients int
	Sent       int
	Failed     int
	Degraded   bool
	Warnings   []string
}

// RegistrationDetail — заявка с журналом проходов и аудитом.
type RegistrationDetail struct {
	Registration *model.Registration
	// CheckIn — запись о проходе (nil, если участник не проходил)
	CheckIn *model.CheckIn
	Audit   []*model.AuditEntry
}

// RegistrationService — регистрация участников и чтение заявок.
type RegistrationService struct {
	repos         repository.Repositories
	sink          notify.Sink
	audit         *AuditRecorder
	eventName     string
	notifyTimeout time.Duration
	logger        *slog.Logger
}

// NewRegistrationService создаёт сервис заявок.
func NewRegistrationService(
	repos repository.Repositories,
	sink notify.Sink,
	audit *AuditRecorder,
	eventName string,
	notifyTimeout time.Duration,
	logger *slog.Logger,
) *RegistrationService {
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}
	return &RegistrationService{
		repos:         repos,
		sink:          sink,
		audit:         audit,
		eventName:     eventName,
		notifyTimeout: notifyTimeout,
		logger:        logger.With(slog.String("component", "registration_service")),
	}
}

// normalizeEmail приводит email к виду, в котором он хранится.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создаёт заявку в статусе PENDING_PAYMENT и отправляет
// участнику письмо с номером регистрации.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (*Outcome, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	// Предварительная проверка ради понятной ошибки;
	// гонку закрывают UNIQUE-ограничения.
	if exists, err := s.repos.Registrations().ExistsByEmail(ctx, in.Email); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: email %s уже зарегистрирован", ErrConflict, in.Email)
	}
	if exists, err := s.repos.Registrations().ExistsByPhone(ctx, in.Phone); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: телефон %s уже зарегистрирован", ErrConflict, in.Phone)
	}

	out := &Outcome{}
	reg := &model.Registration{
		Name:   in.Name,
		Email:  in.Email,
		Phone:  in.Phone,
		Status: lifecycle.StatusPendingPayment,
	}
	err := s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		if err := tx.Registrations().Create(ctx, reg); err != nil {
			var ce *repository.ConflictError
			if errors.As(err, &ce) {
				return fmt.Errorf("%w: %s уже зарегистрирован", ErrConflict, ce.Field)
			}
			return err
		}

		entry := auditEntry(nil, model.ActionCreate, model.ResourceRegistration,
			registrationResource(reg.ID), fmt.Sprintf("регистрация %s <%s>", reg.Name, reg.Email))
		if err := s.audit.Record(ctx, tx, entry); err != nil {
			out.degrade("запись аудита не сохранена")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Registration = reg

	if !deliver(ctx, s.sink, s.notifyTimeout, registrationMessage(s.eventName, reg)) {
		out.degrade("письмо о регистрации не отправлено")
	}

	s.logger.Info("Новая регистрация",
		slog.Int64("registration_id", reg.ID),
		slog.String("email", reg.Email),
	)
	return out, nil
}

// Get возвращает заявку по ID.
func (s *RegistrationService) Get(ctx context.Context, id int64) (*model.Registration, error) {
	reg, err := s.repos.Registrations().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("заявка %d", id))
	}
	return reg, nil
}

// EmailExists проверяет, зарегистрирован ли email.
func (s *RegistrationService) EmailExists(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("%w: email обязателен", ErrValidation)
	}
	return s.repos.Registrations().ExistsByEmail(ctx, email)
}

// PhoneExists проверяет, зарегистрирован ли телефон.
func (s *RegistrationService) PhoneExists(ctx context.Context, phone string) (bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false, fmt.Errorf("%w: телефон обязателен", ErrValidation)
	}
	return s.repos.Registrations().ExistsByPhone(ctx, phone)
}

// List возвращает страницу заявок и их общее количество по фильтру.
func (s *RegistrationService) List(ctx context.Context, f model.RegistrationFilter) ([]*model.Registration, int, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, 0, fmt.Errorf("%w: неизвестный статус %q", ErrValidation, f.Status)
	}
	f.Search = strings.TrimSpace(f.Search)

	regs, err := s.repos.Registrations().List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка заявок: %w", err)
	}
	total, err := s.repos.Registrations().Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт заявок: %w", err)
	}
	return regs, total, nil
}

// Detail возвращает заявку с записью о проходе и её аудитом.
func (s *RegistrationService) Detail(ctx context.Context, id int64) (*RegistrationDetail, error) {
	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &RegistrationDetail{Registration: reg}
	d.CheckIn, err = s.repos.CheckIns().GetByRegistration(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("получение записи о проходе: %w", err)
	}

	d.Audit, err = s.repos.Audit().List(ctx, model.AuditFilter{
		ResourceID: registrationResource(id),
		Limit:      100,
	})
	if err != nil {
		return nil, fmt.Errorf("получение аудита заявки: %w", err)
	}
	return d, nil
}

// Stats возвращает сводную статистику по заявкам.
func (s *RegistrationService) Stats(ctx context.Context) (*model.RegistrationStats, error) {
	stats, err := s.repos.Registrations().Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение статистики: %w", err)
	}
	return stats, nil
}

// SendReminders рассылает письмо всем неархивным участникам
// (или только заявкам в указанном статусе). Требует send_emails.
func (s *RegistrationService) SendReminders(ctx context.Context, actor *model.Actor, in ReminderInput) (*ReminderResult, error) {
	if err := authorize(actor, rbac.PermSendEmails); err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.IsValid() {
		return nil, fmt.Errorf("%w: неизвестный статус %q", ErrValidation, in.Status)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	recipients, err := s.repos.Registrations().ListRecipients(ctx, in.Status)
	if err != nil {
		return nil, fmt.Errorf("получение получателей: %w", err)
	}

	res := &ReminderResult{Recipients: len(recipients)}
	for _, reg := range recipients {
		if deliver(ctx, s.sink, s.notifyTimeout, reminderMessage(s.eventName, in.Subject, in.Body, reg)) {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	if res.Failed > 0 {
		res.Degraded = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("не отправлено писем: %d", res.Failed))
	}

	details := fmt.Sprintf("рассылка %q: отправлено %d, ошибок %d", in.Subject, res.Sent, res.Failed)
	if in.Status != "" {
		details += ", статус " + string(in.Status)
	}
	entry := auditEntry(actor, model.ActionUpdate, model.ResourceSystem, "", details)
	if err := s.audit.Record(ctx, s.repos, entry); err != nil {
		res.Degraded = true
		res.Warnings = append(res.Warnings, "запись аудита не сохранена")
	}

	s.logger.Info("Рассылка выполнена",
		slog.String("actor", actor.Email),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}
