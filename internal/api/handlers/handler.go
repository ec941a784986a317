// handler.go — основной обработчик API EventDesk.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/auth"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/service"
)

// RegistrationService — регистрация и чтение заявок (service.RegistrationService).
type RegistrationService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.Outcome, error)
	Get(ctx context.Context, id int64) (*model.Registration, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	List(ctx context.Context, f model.RegistrationFilter) ([]*model.Registration, int, error)
	Detail(ctx context.Context, id int64) (*service.RegistrationDetail, error)
	Stats(ctx context.Context) (*model.RegistrationStats, error)
	SendReminders(ctx context.Context, actor *model.Actor, in service.ReminderInput) (*service.ReminderResult, error)
}

// WorkflowService — операции жизненного цикла заявки (service.WorkflowService).
type WorkflowService interface {
	UploadReceipt(ctx context.Context, id int64, filename string, r io.Reader) (*service.Outcome, error)
	Approve(ctx context.Context, actor *model.Actor, id int64) (*service.Outcome, error)
	Reject(ctx context.Context, actor *model.Actor, id int64, reason string) (*service.Outcome, error)
	CheckIn(ctx context.Context, actor *model.Actor, id int64) (*service.Outcome, error)
	Scan(ctx context.Context, actor *model.Actor, token string, checkIn bool) (*service.ScanResult, error)
	BulkApprove(ctx context.Context, actor *model.Actor, ids []int64) ([]service.BulkItem, error)
	BulkReject(ctx context.Context, actor *model.Actor, ids []int64, reason string) ([]service.BulkItem, error)
	SetArchived(ctx context.Context, actor *model.Actor, id int64, archived bool) (*service.Outcome, error)
	Delete(ctx context.Context, actor *model.Actor, id int64) (*service.Outcome, error)
	OpenFile(ctx context.Context, id int64, kind string) (io.ReadCloser, string, error)
}

// ActorService — вход персонала и управление сотрудниками (service.ActorService).
type ActorService interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, actor *model.Actor, claims *auth.Claims) error
	List(ctx context.Context, limit, offset int) ([]*model.Actor, int, error)
	Get(ctx context.Context, id string) (*model.Actor, error)
	Create(ctx context.Context, actor *model.Actor, in service.CreateActorInput) (*model.Actor, error)
	Update(ctx context.Context, actor *model.Actor, id string, in service.UpdateActorInput) (*model.Actor, error)
	Delete(ctx context.Context, actor *model.Actor, id string) error
}

// AuditService — чтение журнала аудита (service.AuditService).
type AuditService interface {
	List(ctx context.Context, f model.AuditFilter) ([]*model.AuditEntry, int, error)
}

// KeySet публикует ключи проверки токенов (auth.TokenIssuer).
type KeySet interface {
	JWKS(ctx context.Context) (json.RawMessage, error)
}

// APIHandler — основной обработчик API EventDesk.
type APIHandler struct {
	health         *HealthHandler
	regs           RegistrationService
	workflow       WorkflowService
	actors         ActorService
	audit          AuditService
	keys           KeySet
	sessions       *auth.SessionManager
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// sessions может быть nil — тогда вход не выставляет cookie.
func NewAPIHandler(
	health *HealthHandler,
	regs RegistrationService,
	workflow WorkflowService,
	actors ActorService,
	audit AuditService,
	keys KeySet,
	sessions *auth.SessionManager,
	maxUploadBytes int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:         health,
		regs:           regs,
		workflow:       workflow,
		actors:         actors,
		audit:          audit,
		keys:           keys,
		sessions:       sessions,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. Неизвестные поля — ошибка.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// classify сопоставляет ошибку сервисного слоя с HTTP-статусом и кодом API.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, apierrors.CodeValidationError
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, apierrors.CodeUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, apierrors.CodeForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, apierrors.CodeNotFound
	case errors.Is(err, service.ErrAlreadyCheckedIn):
		return http.StatusConflict, apierrors.CodeAlreadyCheckedIn
	case errors.Is(err, service.ErrPrecondition):
		return http.StatusConflict, apierrors.CodePreconditionFailed
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, apierrors.CodeConflict
	}
	return http.StatusInternalServerError, apierrors.CodeInternalError
}

// writeServiceError записывает ошибку сервисного слоя.
// Внутренние ошибки логируются, клиент получает общее сообщение.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Ошибка обработки запроса",
			slog.String("operation", what),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка: "+what)
		return
	}
	apierrors.WriteError(w, status, code, err.Error())
}

// pathID разбирает числовой {id} заявки из пути.
func pathID(r *http.Request) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("id должен быть положительным")
	}
	return id, nil
}

// bindQuery разбирает необязательный query-параметр в форме form/explode.
func bindQuery(r *http.Request, name string, dest any) error {
	return runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest)
}

// runtimeRequired — то же для обязательного query-параметра.
func runtimeRequired(r *http.Request, name string, dest any) error {
	return runtime.BindQueryParameter("form", true, true, name, r.URL.Query(), dest)
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit *int, offset *int) (int, int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}
