// workflow.go — оркестратор жизненного цикла заявки:
// загрузка квитанции, подтверждение, отклонение, проход, архив, удаление.
//
// Каждая операция — одна транзакция с чтением заявки под FOR UPDATE.
// Аудит пишется во вложенной транзакции, уведомления — после коммита.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bigkaa/eventdesk/internal/blobstore"
	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/notify"
	"github.com/bigkaa/eventdesk/internal/qrcode"
	"github.com/bigkaa/eventdesk/internal/repository"
)

// tracerName — имя трассировщика сервисного слоя.
const tracerName = "github.com/bigkaa/eventdesk/internal/service"

// maxBulkItems — максимум заявок в одной массовой операции.
const maxBulkItems = 500

var workflowOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ed_workflow_operations_total",
	Help: "Операции жизненного цикла заявок по результату (ok, degraded, error).",
}, []string{"operation", "result"})

// Outcome — результат операции над заявкой.
// Degraded — основное изменение сохранено, но аудит или уведомление не прошли.
type Outcome struct {
	Registration *model.Registration
	Degraded     bool
	Warnings     []string
}

func (o *Outcome) degrade(warning string) {
	o.Degraded = true
	o.Warnings = append(o.Warnings, warning)
}

// WorkflowConfig — параметры оркестратора.
type WorkflowConfig struct {
	// EventName — название мероприятия в письмах
	EventName string
	// StaffEmails — адреса персонала для уведомлений о квитанциях
	StaffEmails []string
	// QRSize — размер PNG с QR-кодом
	QRSize int
	// MaxUploadBytes — максимальный размер квитанции
	MaxUploadBytes int64
	// BlobTimeout — таймаут операции с хранилищем файлов
	BlobTimeout time.Duration
	// NotifyTimeout — таймаут отправки одного письма
	NotifyTimeout time.Duration
}

// WorkflowService — оркестратор операций над заявками.
type WorkflowService struct {
	repos     repository.Repositories
	blobs     blobstore.Store
	optimizer *blobstore.Optimizer
	codec     *qrcode.Codec
	sink      notify.Sink
	audit     *AuditRecorder
	cfg       WorkflowConfig
	now       func() time.Time
	tracer    trace.Tracer
	logger    *slog.Logger
}

// NewWorkflowService создаёт оркестратор.
func NewWorkflowService(
	repos repository.Repositories,
	blobs blobstore.Store,
	optimizer *blobstore.Optimizer,
	codec *qrcode.Codec,
	sink notify.Sink,
	audit *AuditRecorder,
	cfg WorkflowConfig,
	logger *slog.Logger,
) *WorkflowService {
	if cfg.BlobTimeout <= 0 {
		cfg.BlobTimeout = 30 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = 256
	}
	return &WorkflowService{
		repos:     repos,
		blobs:     blobs,
		optimizer: optimizer,
		codec:     codec,
		sink:      sink,
		audit:     audit,
		cfg:       cfg,
		now:       time.Now,
		tracer:    otel.Tracer(tracerName),
		logger:    logger.With(slog.String("component", "workflow")),
	}
}

// UploadReceipt сохраняет квитанцию участника и переводит заявку
// в PENDING_VERIFICATION. Публичная операция, право не требуется.
func (s *WorkflowService) UploadReceipt(ctx context.Context, id int64, filename string, r io.Reader) (out *Outcome, err error) {
	ctx, span := s.startSpan(ctx, "upload_receipt", id)
	defer func() { s.finish(span, "upload_receipt", out, err) }()

	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения файла: %v", ErrValidation, err)
	}
	ext, err := blobstore.ValidateReceipt(filename, int64(len(data)), s.cfg.MaxUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Проверка до записи файла: не сохраняем квитанции к несуществующим
	// или уже подтверждённым заявкам. Окончательно статус проверяется в транзакции.
	current, err := s.repos.Registrations().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("заявка %d", id))
	}
	if _, err := lifecycle.Next(current.Status, lifecycle.EventReceiptUploaded); err != nil {
		return nil, transitionError(err)
	}

	if blobstore.IsImage(ext) && s.optimizer != nil {
		optimized, optErr := s.optimizer.Optimize(data, ext)
		if optErr != nil {
			s.logger.Warn("Не удалось оптимизировать квитанцию, сохраняется оригинал",
				slog.Int64("registration_id", id),
				slog.String("error", optErr.Error()),
			)
		}
		data = optimized
	}

	newPath, err := s.putBlob(ctx, blobstore.DirReceipts, blobstore.NewName(fmt.Sprintf("receipt_%d", id), ext), data)
	if err != nil {
		return nil, err
	}

	out = &Outcome{}
	var oldPath *string
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		to, err := lifecycle.Next(reg.Status, lifecycle.EventReceiptUploaded)
		if err != nil {
			return transitionError(err)
		}

		oldPath = reg.ReceiptPath
		reg.Status = to
		reg.ReceiptPath = &newPath
		reg.RejectionReason = nil
		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		out.Registration = reg

		entry := auditEntry(nil, model.ActionUpdate, model.ResourceRegistration,
			registrationResource(id), "квитанция загружена: "+path.Base(newPath))
		if err := s.audit.Record(ctx, tx, entry); err != nil {
			out.degrade("запись аудита не сохранена")
		}
		return nil
	})
	if err != nil {
		s.deleteBlob(ctx, newPath)
		return nil, err
	}

	if oldPath != nil && *oldPath != newPath {
		s.deleteBlob(ctx, *oldPath)
	}

	reg := out.Registration
	s.send(ctx, out, receiptSubmittedMessage(s.cfg.EventName, reg), "участнику")
	if len(s.cfg.StaffEmails) > 0 {
		s.send(ctx, out, staffReceiptMessage(s.cfg.EventName, s.cfg.StaffEmails, reg), "персоналу")
	}

	s.logger.Info("Квитанция загружена",
		slog.Int64("registration_id", id),
		slog.String("path", newPath),
	)
	return out, nil
}

// Approve подтверждает оплату: выдаёт QR-токен и PNG, переводит заявку в CONFIRMED.
func (s *WorkflowService) Approve(ctx context.Context, actor *model.Actor, id int64) (out *Outcome, err error) {
	ctx, span := s.startSpan(ctx, "approve", id)
	defer func() { s.finish(span, "approve", out, err) }()

	if err := authorize(actor, rbac.PermApproveRegistrations); err != nil {
		return nil, err
	}

	out = &Outcome{}
	var (
		qrPNG   []byte
		newPath string
		oldPath *string
	)
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		to, err := lifecycle.Next(reg.Status, lifecycle.EventApprove)
		if err != nil {
			return transitionError(err)
		}

		// Выданный однажды токен не перевыпускается.
		token := ""
		if reg.HasQR() {
			token = *reg.QRToken
		} else {
			token, err = s.codec.Issue(reg.ID, reg.Email, s.now())
			if err != nil {
				return fmt.Errorf("выпуск QR-токена: %w", err)
			}
		}

		qrPNG, err = qrcode.Render(token, s.cfg.QRSize)
		if err != nil {
			return err
		}
		newPath, err = s.putBlob(ctx, blobstore.DirQR, blobstore.NewName(fmt.Sprintf("qr_%d", id), ".png"), qrPNG)
		if err != nil {
			return err
		}

		oldPath = reg.QRPath
		reg.Status = to
		reg.QRToken = &token
		reg.QRPath = &newPath
		reg.RejectionReason = nil
		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		out.Registration = reg

		entry := auditEntry(actor, model.ActionApprove, model.ResourceRegistration,
			registrationResource(id), "оплата подтверждена, QR-код выдан")
		if err := s.audit.Record(ctx, tx, entry); err != nil {
			out.degrade("запись аудита не сохранена")
		}
		return nil
	})
	if err != nil {
		if newPath != "" {
			s.deleteBlob(ctx, newPath)
		}
		return nil, err
	}

	if oldPath != nil && *oldPath != newPath {
		s.deleteBlob(ctx, *oldPath)
	}

	s.send(ctx, out, confirmedMessage(s.cfg.EventName, out.Registration, qrPNG), "с QR-кодом")

	s.logger.Info("Заявка подтверждена",
		slog.Int64("registration_id", id),
		slog.String("actor", actor.Email),
	)
	return out, nil
}

// Reject отклоняет квитанцию с обязательной причиной.
func (s *WorkflowService) Reject(ctx context.Context, actor *model.Actor, id int64, reason string) (out *Outcome, err error) {
	ctx, span := s.startSpan(ctx, "reject", id)
	defer func() { s.finish(span, "reject", out, err) }()

	if err := authorize(actor, rbac.PermRejectRegistrations); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: причина отклонения обязательна", ErrValidation)
	}

	out = &Outcome{}
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		to, err := lifecycle.Next(reg.Status, lifecycle.EventReject)
		if err != nil {
			return transitionError(err)
		}

		reg.Status = to
		reg.RejectionReason = &reason
		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		out.Registration = reg

		entry := auditEntry(actor, model.ActionReject, model.ResourceRegistration,
			registrationResource(id), "причина: "+reason)
		if err := s.audit.Record(ctx, tx, entry); err != nil {
			out.degrade("запись аудита не сохранена")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.send(ctx, out, rejectedMessage(s.cfg.EventName, out.Registration, reason), "об отклонении")

	s.logger.Info("Заявка отклонена",
		slog.Int64("registration_id", id),
		slog.String("actor", actor.Email),
	)
	return out, nil
}

// CheckIn отмечает проход участника с подтверждённой заявкой.
// Повторный проход — ErrAlreadyCheckedIn, журнал проходов не меняется.
func (s *WorkflowService) CheckIn(ctx context.Context, actor *model.Actor, id int64) (out *Outcome, err error) {
	ctx, span := s.startSpan(ctx, "check_in", id)
	defer func() { s.finish(span, "check_in", out, err) }()

	if err := authorize(actor, rbac.PermCheckInAttendees); err != nil {
		return nil, err
	}

	out = &Outcome{}
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		if _, err := lifecycle.Next(reg.Status, lifecycle.EventCheckIn); err != nil {
			return transitionError(err)
		}
		if reg.CheckedIn {
			return ErrAlreadyCheckedIn
		}
		n, err := tx.CheckIns().CountByRegistration(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyCheckedIn
		}

		entry := &model.CheckIn{RegistrationID: id, CheckedInBy: actor.ID}
		if err := tx.CheckIns().Create(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyCheckedIn
			}
			return err
		}

		reg.CheckedIn = true
		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		out.Registration = reg

		record := auditEntry(actor, model.ActionCheckIn, model.ResourceCheckIn,
			registrationResource(id), "проход отмечен: "+reg.Name)
		if err := s.audit.Record(ctx, tx, record); err != nil {
			out.degrade("запись аудита не сохранена")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Проход отмечен",
		slog.Int64("registration_id", id),
		slog.String("actor", actor.Email),
	)
	return out, nil
}

// ScanResult — результат проверки QR-кода на входе.
type ScanResult struct {
	Valid            bool
	AlreadyCheckedIn bool
	// Reason — причина отказа (not_found, wrong_status, malformed)
	Reason   string
	Attendee *qrcode.RegistrationRef
	// CheckedIn — проход отмечен этим запросом
	CheckedIn bool
	Outcome   *Outcome
}

// Scan проверяет QR-токен и при checkIn=true отмечает проход.
// Недействительный токен — не ошибка, а ScanResult{Valid: false}.
func (s *WorkflowService) Scan(ctx context.Context, actor *model.Actor, token string, checkIn bool) (*ScanResult, error) {
	if err := authorize(actor, rbac.PermCheckInAttendees); err != nil {
		return nil, err
	}

	ref, err := qrcode.NewVerifier(s.codec, s.repos.Registrations()).Verify(ctx, strings.TrimSpace(token))
	if err != nil {
		var ve *qrcode.VerificationError
		if errors.As(err, &ve) {
			s.logger.Info("QR-код отклонён", slog.String("reason", ve.Kind))
			return &ScanResult{Reason: ve.Kind}, nil
		}
		return nil, err
	}

	result := &ScanResult{
		Valid:            true,
		AlreadyCheckedIn: ref.AlreadyCheckedIn,
		Attendee:         ref,
	}
	if !checkIn || ref.AlreadyCheckedIn {
		return result, nil
	}

	out, err := s.CheckIn(ctx, actor, ref.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyCheckedIn) {
			result.AlreadyCheckedIn = true
			ref.AlreadyCheckedIn = true
			return result, nil
		}
		return nil, err
	}
	result.CheckedIn = true
	result.Outcome = out
	return result, nil
}

// BulkItem — результат массовой операции для одной заявки.
type BulkItem struct {
	ID      int64
	Outcome *Outcome
	Err     error
}

// BulkApprove подтверждает заявки по одной через тот же автомат статусов.
// Недопустимый переход отражается в результате для конкретной заявки.
func (s *WorkflowService) BulkApprove(ctx context.Context, actor *model.Actor, ids []int64) ([]BulkItem, error) {
	if err := authorize(actor, rbac.PermApproveRegistrations); err != nil {
		return nil, err
	}
	if err := validateBulk(ids); err != nil {
		return nil, err
	}
	return s.bulk(ids, func(id int64) (*Outcome, error) {
		return s.Approve(ctx, actor, id)
	}), nil
}

// BulkReject отклоняет заявки с общей причиной.
func (s *WorkflowService) BulkReject(ctx context.Context, actor *model.Actor, ids []int64, reason string) ([]BulkItem, error) {
	if err := authorize(actor, rbac.PermRejectRegistrations); err != nil {
		return nil, err
	}
	if err := validateBulk(ids); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: причина отклонения обязательна", ErrValidation)
	}
	return s.bulk(ids, func(id int64) (*Outcome, error) {
		return s.Reject(ctx, actor, id, reason)
	}), nil
}

func validateBulk(ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: список заявок пуст", ErrValidation)
	}
	if len(ids) > maxBulkItems {
		return fmt.Errorf("%w: не более %d заявок за раз", ErrValidation, maxBulkItems)
	}
	return nil
}

func (s *WorkflowService) bulk(ids []int64, op func(int64) (*Outcome, error)) []BulkItem {
	seen := make(map[int64]bool, len(ids))
	items := make([]BulkItem, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out, err := op(id)
		items = append(items, BulkItem{ID: id, Outcome: out, Err: err})
	}
	return items
}

// SetArchived скрывает заявку из рабочих списков или возвращает обратно.
// Повторный вызов с тем же значением ничего не меняет.
func (s *WorkflowService) SetArchived(ctx context.Context, actor *model.Actor, id int64, archived bool) (out *Outcome, err error) {
	op := "unarchive"
	if archived {
		op = "archive"
	}
	ctx, span := s.startSpan(ctx, op, id)
	defer func() { s.finish(span, op, out, err) }()

	if err := authorize(actor, rbac.PermManageRegistrations); err != nil {
		return nil, err
	}

	out = &Outcome{}
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		out.Registration = reg
		if reg.IsArchived == archived {
			return nil
		}

		reg.IsArchived = archived
		if err := tx.Registrations().Update(ctx, reg); err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}

		details := "заявка возвращена из архива"
		if archived {
			details = "заявка перенесена в архив"
		}
		entry := auditEntry(actor, model.ActionUpdate, model.ResourceRegistration, registrationResource(id), details)
		if err := s.audit.Record(ctx, tx, entry); err != nil {
			out.degrade("запись аудита не сохранена")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete удаляет заявку вместе с журналом проходов.
// Файлы квитанции и QR-кода удаляются после коммита, ошибка — предупреждение.
// Записи аудита по заявке сохраняются.
func (s *WorkflowService) Delete(ctx context.Context, actor *model.Actor, id int64) (out *Outcome, err error) {
	ctx, span := s.startSpan(ctx, "delete", id)
	defer func() { s.finish(span, "delete", out, err) }()

	if err := authorize(actor, rbac.PermManageRegistrations); err != nil {
		return nil, err
	}

	out = &Outcome{}
	err = s.repos.RunInTx(ctx, func(tx repository.Repositories) error {
		reg, err := tx.Registrations().GetByIDForUpdate(ctx, id)
		if err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		if err := tx.Registrations().Delete(ctx, id); err != nil {
			return mapRepoError(err, fmt.Sprintf("заявка %d", id))
		}
		out.Registration = reg

		entry := auditEntry(actor, model.ActionDelete, model.ResourceRegistration,
			registrationResource(id), fmt.Sprintf("удалена заявка %s <%s>", reg.Name, reg.Email))
		if err := s.audit.Record(ctx, tx, entry); err != nil {
			out.degrade("запись аудита не сохранена")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range []*string{out.Registration.ReceiptPath, out.Registration.QRPath} {
		if p == nil || *p == "" {
			continue
		}
		if err := s.removeBlob(ctx, *p); err != nil {
			out.degrade("не удалось удалить файл " + *p)
		}
	}

	s.logger.Info("Заявка удалена",
		slog.Int64("registration_id", id),
		slog.String("actor", actor.Email),
	)
	return out, nil
}

// Типы файлов заявки для выгрузки.
const (
	FileReceipt = "receipt"
	FileQR      = "qr"
)

// OpenFile открывает квитанцию или QR-код заявки.
// Возвращает содержимое и имя файла. Вызывающий код закрывает ReadCloser.
func (s *WorkflowService) OpenFile(ctx context.Context, id int64, kind string) (io.ReadCloser, string, error) {
	reg, err := s.repos.Registrations().GetByID(ctx, id)
	if err != nil {
		return nil, "", mapRepoError(err, fmt.Sprintf("заявка %d", id))
	}

	var p *string
	switch kind {
	case FileReceipt:
		p = reg.ReceiptPath
	case FileQR:
		p = reg.QRPath
	default:
		return nil, "", fmt.Errorf("%w: неизвестный тип файла %q", ErrValidation, kind)
	}
	if p == nil || *p == "" {
		return nil, "", fmt.Errorf("%w: у заявки %d нет файла %s", ErrNotFound, id, kind)
	}

	rc, err := s.blobs.Get(ctx, *p)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: файл %s", ErrNotFound, *p)
		}
		return nil, "", fmt.Errorf("чтение файла %s: %w", *p, err)
	}
	return rc, path.Base(*p), nil
}

// --- Вспомогательные методы ---

// putBlob сохраняет файл с таймаутом хранилища.
func (s *WorkflowService) putBlob(ctx context.Context, dir, name string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.BlobTimeout)
	defer cancel()

	p, err := s.blobs.Put(ctx, dir, name, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("сохранение файла %s/%s: %w", dir, name, err)
	}
	return p, nil
}

// removeBlob удаляет файл с таймаутом хранилища.
func (s *WorkflowService) removeBlob(ctx context.Context, p string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.BlobTimeout)
	defer cancel()

	if err := s.blobs.Delete(ctx, p); err != nil {
		s.logger.Warn("Не удалось удалить файл",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// deleteBlob удаляет файл без учёта результата (осиротевшие и заменённые файлы).
func (s *WorkflowService) deleteBlob(ctx context.Context, p string) {
	_ = s.removeBlob(ctx, p)
}

// send отправляет письмо после коммита. Неудача помечает результат degraded.
func (s *WorkflowService) send(ctx context.Context, out *Outcome, msg notify.Message, what string) {
	if !deliver(ctx, s.sink, s.cfg.NotifyTimeout, msg) {
		out.degrade("письмо " + what + " не отправлено")
	}
}

func (s *WorkflowService) startSpan(ctx context.Context, op string, id int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "workflow."+op, trace.WithAttributes(
		attribute.Int64("registration.id", id),
	))
}

// finish завершает span и учитывает операцию в метриках.
func (s *WorkflowService) finish(span trace.Span, op string, out *Outcome, err error) {
	defer span.End()

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		workflowOpsTotal.WithLabelValues(op, "error").Inc()
	case out != nil && out.Degraded:
		span.SetAttributes(attribute.StringSlice("warnings", out.Warnings))
		workflowOpsTotal.WithLabelValues(op, "degraded").Inc()
	default:
		workflowOpsTotal.WithLabelValues(op, "ok").Inc()
	}
}
