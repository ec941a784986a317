// actors.go — управление сотрудниками, справочники ролей и прав.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/api/middleware"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/service"
)

// ListActors — GET /api/v1/admin/actors?limit=&offset=.
func (h *APIHandler) ListActors(w http.ResponseWriter, r *http.Request) {
	var limit, offset *int
	if err := bindQuery(r, "limit", &limit); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр limit: "+err.Error())
		return
	}
	if err := bindQuery(r, "offset", &offset); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр offset: "+err.Error())
		return
	}
	l, o := paginationDefaults(limit, offset)

	actors, total, err := h.actors.List(r.Context(), l, o)
	if err != nil {
		h.writeServiceError(w, r, err, "список сотрудников")
		return
	}

	items := make([]actorResponse, 0, len(actors))
	for _, a := range actors {
		items = append(items, toActorResponse(a))
	}
	writeJSON(w, http.StatusOK, actorListResponse{
		Items:   items,
		Total:   total,
		Limit:   l,
		Offset:  o,
		HasMore: o+len(items) < total,
	})
}

// GetActor — GET /api/v1/admin/actors/{id}.
func (h *APIHandler) GetActor(w http.ResponseWriter, r *http.Request) {
	a, err := h.actors.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "получение сотрудника")
		return
	}
	writeJSON(w, http.StatusOK, toActorResponse(a))
}

// CreateActor — POST /api/v1/admin/actors.
func (h *APIHandler) CreateActor(w http.ResponseWriter, r *http.Request) {
	var req createActorRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	a, err := h.actors.Create(r.Context(), middleware.ActorFromContext(r.Context()), service.CreateActorInput{
		Email:       string(req.Email),
		Password:    req.Password,
		Role:        req.Role,
		Permissions: req.Permissions,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "создание сотрудника")
		return
	}
	writeJSON(w, http.StatusCreated, toActorResponse(a))
}

// UpdateActor — PUT /api/v1/admin/actors/{id}. Поля без значения не меняются.
func (h *APIHandler) UpdateActor(w http.ResponseWriter, r *http.Request) {
	var req updateActorRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	a, err := h.actors.Update(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"), service.UpdateActorInput{
		Role:        req.Role,
		IsActive:    req.IsActive,
		Password:    req.Password,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.writeServiceError(w, r, err, "изменение сотрудника")
		return
	}
	writeJSON(w, http.StatusOK, toActorResponse(a))
}

// DeleteActor — DELETE /api/v1/admin/actors/{id}.
func (h *APIHandler) DeleteActor(w http.ResponseWriter, r *http.Request) {
	err := h.actors.Delete(r.Context(), middleware.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err, "удаление сотрудника")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRoles — GET /api/v1/admin/roles.
func (h *APIHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles := rbac.AllRoles()
	resp := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		resp = append(resp, roleResponse{
			Name:        string(role),
			Description: role.Description(),
			Permissions: permissionStrings(rbac.RolePermissions(role)),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListPermissions — GET /api/v1/admin/permissions.
func (h *APIHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissionsResponse{Permissions: permissionStrings(rbac.AllPermissions())})
}
