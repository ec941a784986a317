// scanner.go — проверка QR-кода на входе.
package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/api/middleware"
)

// ScannerVerify — POST /api/v1/scanner/verify {token, check_in}.
// Недействительный токен — 200 с valid=false и причиной, а не ошибка.
func (h *APIHandler) ScannerVerify(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		apierrors.ValidationError(w, "token обязателен")
		return
	}

	res, err := h.workflow.Scan(r.Context(), middleware.ActorFromContext(r.Context()), req.Token, req.CheckIn)
	if err != nil {
		h.writeServiceError(w, r, err, "проверка QR-кода")
		return
	}
	writeJSON(w, http.StatusOK, toScanResponse(res))
}
