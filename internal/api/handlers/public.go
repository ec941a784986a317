// public.go — публичные endpoints участника: регистрация, загрузка квитанции,
// статус заявки, проверки занятости email и телефона.
package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/service"
)

// multipartOverhead — запас на заголовки multipart поверх лимита файла.
const multipartOverhead = 1 << 20

// toPublicOutcome — ответ участнику без служебных полей заявки.
func toPublicOutcome(o *service.Outcome) registerResponse {
	r := o.Registration
	return registerResponse{
		ID:          r.ID,
		Status:      string(r.Status),
		StatusLabel: r.StatusLabel(),
		Degraded:    o.Degraded,
		Warnings:    o.Warnings,
	}
}

// Register — POST /api/v1/registrations.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	out, err := h.regs.Register(r.Context(), service.RegisterInput{
		Name:  req.Name,
		Email: string(req.Email),
		Phone: req.Phone,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "регистрация")
		return
	}

	writeJSON(w, http.StatusCreated, toPublicOutcome(out))
}

// UploadReceipt — POST /api/v1/registrations/{id}/receipt (multipart, поле receipt).
func (h *APIHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("receipt")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.TooLarge(w, "Файл квитанции превышает допустимый размер")
			return
		}
		apierrors.ValidationError(w, "Ожидается файл в поле receipt")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		apierrors.TooLarge(w, "Файл квитанции превышает допустимый размер")
		return
	}

	out, err := h.workflow.UploadReceipt(r.Context(), id, header.Filename, file)
	if err != nil {
		h.writeServiceError(w, r, err, "загрузка квитанции")
		return
	}

	writeJSON(w, http.StatusOK, toPublicOutcome(out))
}

// RegistrationStatus — GET /api/v1/registrations/{id}/status.
func (h *APIHandler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.registrationID(w, r)
	if !ok {
		return
	}

	reg, err := h.regs.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "статус заявки")
		return
	}

	writeJSON(w, http.StatusOK, toPublicStatus(reg))
}

// CheckEmail — GET /api/v1/registrations/check-email?email=.
func (h *APIHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	var email string
	if err := runtimeRequired(r, "email", &email); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	exists, err := h.regs.EmailExists(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, err, "проверка email")
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}

// CheckPhone — GET /api/v1/registrations/check-phone?phone=.
func (h *APIHandler) CheckPhone(w http.ResponseWriter, r *http.Request) {
	var phone string
	if err := runtimeRequired(r, "phone", &phone); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	exists, err := h.regs.PhoneExists(r.Context(), phone)
	if err != nil {
		h.writeServiceError(w, r, err, "проверка телефона")
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: exists})
}
