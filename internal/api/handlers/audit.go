// audit.go — просмотр журнала аудита.
package handlers

import (
	"net/http"
	"time"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/domain/model"
)

// maxAuditDays — верхняя граница окна days.
const maxAuditDays = 365

// ListAuditLogs — GET /api/v1/admin/audit-logs?actor_id=&action=&resource_type=&resource_id=&days=&limit=&offset=.
func (h *APIHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	var (
		actorID      *string
		action       *string
		resourceType *string
		resourceID   *string
		days         *int
		limit        *int
		offset       *int
	)
	for name, dest := range map[string]any{
		"actor_id":      &actorID,
		"action":        &action,
		"resource_type": &resourceType,
		"resource_id":   &resourceID,
		"days":          &days,
		"limit":         &limit,
		"offset":        &offset,
	} {
		if err := bindQuery(r, name, dest); err != nil {
			apierrors.ValidationError(w, "Некорректный параметр "+name+": "+err.Error())
			return
		}
	}

	l, o := paginationDefaults(limit, offset)
	f := model.AuditFilter{Limit: l, Offset: o}
	if actorID != nil {
		f.ActorID = *actorID
	}
	if action != nil {
		f.Action = model.AuditAction(*action)
	}
	if resourceType != nil {
		f.ResourceType = model.AuditResource(*resourceType)
	}
	if resourceID != nil {
		f.ResourceID = *resourceID
	}
	if days != nil {
		if *days < 1 || *days > maxAuditDays {
			apierrors.ValidationError(w, "days должен быть от 1 до 365")
			return
		}
		f.Since = time.Now().AddDate(0, 0, -*days)
	}

	entries, total, err := h.audit.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, r, err, "журнал аудита")
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toAuditEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, auditListResponse{
		Items:   items,
		Total:   total,
		Limit:   l,
		Offset:  o,
		HasMore: o+len(items) < total,
	})
}
