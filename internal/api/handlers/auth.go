// auth.go — вход и выход персонала, текущий сотрудник, публикация JWKS.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/api/middleware"
	"github.com/bigkaa/eventdesk/internal/auth"
)

// Login — POST /api/v1/auth/login.
// Возвращает токен в теле и дублирует его в зашифрованной cookie-сессии.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		apierrors.ValidationError(w, "email и password обязательны")
		return
	}

	res, err := h.actors.Login(r.Context(), string(req.Email), req.Password)
	if err != nil {
		h.writeServiceError(w, r, err, "вход")
		return
	}

	expiresAt := res.Claims.ExpiresAt.Time
	if h.sessions != nil {
		err := h.sessions.SetSessionCookie(w, &auth.SessionData{
			AccessToken: res.Token,
			ExpiresAt:   expiresAt.Unix(),
			ActorID:     res.Actor.ID,
			Email:       res.Actor.Email,
		})
		if err != nil {
			h.writeServiceError(w, r, err, "создание сессии")
			return
		}
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.Token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Actor:       toActorResponse(res.Actor),
	})
}

// Logout — POST /api/v1/auth/logout. Отзывает текущий токен.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	if err := h.actors.Logout(r.Context(), p.Actor, p.Claims); err != nil {
		h.writeServiceError(w, r, err, "выход")
		return
	}
	if h.sessions != nil {
		h.sessions.ClearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me — GET /api/v1/auth/me.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ActorFromContext(r.Context())
	if actor == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}
	writeJSON(w, http.StatusOK, toActorResponse(actor))
}

// JWKS — GET /.well-known/jwks.json.
func (h *APIHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	raw, err := h.keys.JWKS(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "публикация ключей")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
