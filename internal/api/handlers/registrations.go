// registrations.go — административные операции над заявками:
// списки, карточка, подтверждение и отклонение, проход, архив, удаление,
// выгрузка файлов, рассылка.
package handlers

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/api/middleware"
	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/service"
)

// Dashboard — GET /api/v1/admin/dashboard.
func (h *APIHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r)
}

// Stats — GET /api/v1/stats (по API-ключу).
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r)
}

func (h *APIHandler) writeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.regs.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "статистика")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListRegistrations — GET /api/v1/admin/registrations?status=&q=&archived=&limit=&offset=.
func (h *APIHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	var (
		status   *string
		search   *string
		archived *bool
		limit    *int
		offset   *int
	)
	for name, dest := range map[string]any{
		"status":   &status,
		"q":        &search,
		"archived": &archived,
		"limit":    &limit,
		"offset":   &offset,
	} {
		if err := bindQuery(r, name, dest); err != nil {
			apierrors.ValidationError(w, "Некорректный параметр "+name+": "+err.Error())
			return
		}
	}

	l, o := paginationDefaults(limit, offset)
	f := model.RegistrationFilter{Limit: l, Offset: o}
	if status != nil && *status != "" {
		st, err := lifecycle.ParseStatus(*status)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		f.Status = st
	}
	if search != nil {
		f.Search = *search
	}
	if archived != nil {
		f.Archived = *archived
	}

	regs, total, err := h.regs.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err, "список заявок")
		return
	}

	items := make([]registrationResponse, 0, len(regs))
	for _, reg := range regs {
		items = append(items, toRegistrationResponse(reg))
	}
	writeJSON(w, http.StatusOK, registrationListResponse{
		Items:   items,
		Total:   total,
		Limit:   l,
		Offset:  o,
		HasMore: o+len(items) < total,
	})
}

// GetRegistration — GET /api/v1/admin/registrations/{id}.
func (h *APIHandler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}

	detail, err := h.regs.Detail(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "карточка заявки")
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(detail))
}

// Approve — POST /api/v1/admin/registrations/{id}/approve.
func (h *APIHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}
	out, err := h.workflow.Approve(r.Context(), middleware.ActorFromContext(r.Context()), id)
	h.writeOutcome(w, r, out, err, "подтверждение заявки")
}

// Reject — POST /api/v1/admin/registrations/{id}/reject {reason}.
func (h *APIHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	out, err := h.workflow.Reject(r.Context(), middleware.ActorFromContext(r.Context()), id, req.Reason)
	h.writeOutcome(w, r, out, err, "отклонение заявки")
}

// BulkApprove — POST /api/v1/admin/registrations/bulk-approve {ids}.
func (h *APIHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	items, err := h.workflow.BulkApprove(r.Context(), middleware.ActorFromContext(r.Context()), req.IDs)
	if err != nil {
		h.writeServiceError(w, r, err, "массовое подтверждение")
		return
	}
	writeJSON(w, http.StatusOK, toBulkResponse(items))
}

// BulkReject — POST /api/v1/admin/registrations/bulk-reject {ids, reason}.
func (h *APIHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	items, err := h.workflow.BulkReject(r.Context(), middleware.ActorFromContext(r.Context()), req.IDs, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err, "массовое отклонение")
		return
	}
	writeJSON(w, http.StatusOK, toBulkResponse(items))
}

// CheckIn — POST /api/v1/admin/registrations/{id}/check-in.
func (h *APIHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}
	out, err := h.workflow.CheckIn(r.Context(), middleware.ActorFromContext(r.Context()), id)
	h.writeOutcome(w, r, out, err, "отметка прохода")
}

// Archive — POST /api/v1/admin/registrations/{id}/archive.
func (h *APIHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// Unarchive — POST /api/v1/admin/registrations/{id}/unarchive.
func (h *APIHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *APIHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}
	out, err := h.workflow.SetArchived(r.Context(), middleware.ActorFromContext(r.Context()), id, archived)
	h.writeOutcome(w, r, out, err, "архивирование заявки")
}

// DeleteRegistration — DELETE /api/v1/admin/registrations/{id}.
func (h *APIHandler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}
	out, err := h.workflow.Delete(r.Context(), middleware.ActorFromContext(r.Context()), id)
	h.writeOutcome(w, r, out, err, "удаление заявки")
}

// DownloadReceipt — GET /api/v1/admin/registrations/{id}/receipt.
func (h *APIHandler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, service.FileReceipt)
}

// DownloadQR — GET /api/v1/admin/registrations/{id}/qr.
func (h *APIHandler) DownloadQR(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, service.FileQR)
}

// download отдаёт файл заявки как вложение.
func (h *APIHandler) download(w http.ResponseWriter, r *http.Request, kind string) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}

	rc, name, err := h.workflow.OpenFile(r.Context(), id, kind)
	if err != nil {
		h.writeServiceError(w, r, err, "выгрузка файла")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Заголовки уже отправлены, остаётся только залогировать.
		h.logger.Warn("Обрыв выгрузки файла",
			slog.Int64("registration_id", id),
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}
}

// SendReminders — POST /api/v1/admin/reminders {subject, body, status?}.
func (h *APIHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	res, err := h.regs.SendReminders(r.Context(), middleware.ActorFromContext(r.Context()), service.ReminderInput{
		Subject: req.Subject,
		Body:    req.Body,
		Status:  lifecycle.Status(req.Status),
	})
	if err != nil {
		h.writeServiceError(w, r, err, "рассылка")
		return
	}
	writeJSON(w, http.StatusOK, reminderResponse{
		Recipients: res.Recipients,
		Sent:       res.Sent,
		Failed:     res.Failed,
		Degraded:   res.Degraded,
		Warnings:   res.Warnings,
	})
}

// registrationID разбирает {id} и сам отвечает 400 при ошибке.
func (h *APIHandler) registrationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil {
		apierrors.ValidationError(w, "Некорректный id заявки: "+err.Error())
		return 0, false
	}
	return id, true
}

// writeOutcome — общий ответ операций над одной заявкой.
func (h *APIHandler) writeOutcome(w http.ResponseWriter, r *http.Request, out *service.Outcome, err error, what string) {
	if err != nil {
		h.writeServiceError(w, r, err, what)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}
