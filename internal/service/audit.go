// audit.go — запись и чтение журнала аудита.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/repository"
)

var auditFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ed_audit_write_failures_total",
	Help: "Количество записей аудита, которые не удалось сохранить.",
}, []string{"action"})

// AuditRecorder пишет записи журнала аудита.
// Запись выполняется во вложенной транзакции: её сбой не откатывает
// основное изменение, а только помечает результат как degraded.
type AuditRecorder struct {
	logger *slog.Logger
}

// NewAuditRecorder создаёт регистратор аудита.
func NewAuditRecorder(logger *slog.Logger) *AuditRecorder {
	return &AuditRecorder{logger: logger.With(slog.String("component", "audit"))}
}

// Record сохраняет запись через repos. Внутри транзакции — SAVEPOINT.
// Ошибка логируется и возвращается вызывающему для пометки degraded.
func (a *AuditRecorder) Record(ctx context.Context, repos repository.Repositories, e *model.AuditEntry) error {
	if e.IPAddress == "" {
		e.IPAddress = clientIP(ctx)
	}

	err := repos.RunInTx(ctx, func(tx repository.Repositories) error {
		return tx.Audit().Insert(ctx, e)
	})
	if err != nil {
		auditFailuresTotal.WithLabelValues(string(e.Action)).Inc()
		a.logger.Error("Не удалось записать аудит",
			slog.String("action", string(e.Action)),
			slog.String("resource_type", string(e.ResourceType)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("запись аудита %s: %w", e.Action, err)
	}
	return nil
}

// auditEntry собирает запись журнала.
// actor == nil — публичное или системное действие.
func auditEntry(actor *model.Actor, action model.AuditAction, resource model.AuditResource, resourceID, details string) *model.AuditEntry {
	e := &model.AuditEntry{
		Action:       action,
		ResourceType: resource,
		Details:      details,
	}
	if actor != nil {
		id := actor.ID
		e.ActorID = &id
	}
	if resourceID != "" {
		e.ResourceID = &resourceID
	}
	return e
}

// registrationResource — ID заявки как resource_id аудита.
func registrationResource(id int64) string {
	return strconv.FormatInt(id, 10)
}

// AuditService — чтение журнала аудита.
type AuditService struct {
	repos repository.Repositories
}

// NewAuditService создаёт сервис чтения журнала.
func NewAuditService(repos repository.Repositories) *AuditService {
	return &AuditService{repos: repos}
}

// List возвращает страницу журнала и общее количество записей по фильтру.
func (s *AuditService) List(ctx context.Context, f model.AuditFilter) ([]*model.AuditEntry, int, error) {
	if f.Action != "" && !f.Action.IsValid() {
		return nil, 0, fmt.Errorf("%w: неизвестное действие %q", ErrValidation, f.Action)
	}
	if f.ResourceType != "" && !f.ResourceType.IsValid() {
		return nil, 0, fmt.Errorf("%w: неизвестный тип ресурса %q", ErrValidation, f.ResourceType)
	}

	entries, err := s.repos.Audit().List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("получение журнала аудита: %w", err)
	}
	total, err := s.repos.Audit().Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт записей аудита: %w", err)
	}
	return entries, total, nil
}
