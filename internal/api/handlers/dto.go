// dto.go — JSON-представления запросов и ответов API.
package handlers

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/eventdesk/internal/api/errors"
	"github.com/bigkaa/eventdesk/internal/domain/model"
	"github.com/bigkaa/eventdesk/internal/domain/rbac"
	"github.com/bigkaa/eventdesk/internal/service"
)

// --- Заявки ---

type registerRequest struct {
	Name  string              `json:"name"`
	Email openapi_types.Email `json:"email"`
	Phone string              `json:"phone"`
}

type registrationResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Status          string    `json:"status"`
	StatusLabel     string    `json:"status_label"`
	HasReceipt      bool      `json:"has_receipt"`
	HasQR           bool      `json:"has_qr"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
	IsArchived      bool      `json:"is_archived"`
	CheckedIn       bool      `json:"checked_in"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toRegistrationResponse(r *model.Registration) registrationResponse {
	return registrationResponse{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		Status:          string(r.Status),
		StatusLabel:     r.StatusLabel(),
		HasReceipt:      r.ReceiptPath != nil,
		HasQR:           r.HasQR(),
		RejectionReason: r.RejectionReason,
		IsArchived:      r.IsArchived,
		CheckedIn:       r.CheckedIn,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// publicStatusResponse — то, что видит сам участник по номеру заявки.
type publicStatusResponse struct {
	ID              int64   `json:"id"`
	Status          string  `json:"status"`
	StatusLabel     string  `json:"status_label"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	CheckedIn       bool    `json:"checked_in"`
}

func toPublicStatus(r *model.Registration) publicStatusResponse {
	return publicStatusResponse{
		ID:              r.ID,
		Status:          string(r.Status),
		StatusLabel:     r.StatusLabel(),
		RejectionReason: r.RejectionReason,
		CheckedIn:       r.CheckedIn,
	}
}

// outcomeResponse — результат операции над заявкой.
// degraded=true: изменение сохранено, но побочный эффект (почта, файл, аудит) не выполнен.
type outcomeResponse struct {
	Registration *registrationResponse `json:"registration,omitempty"`
	Degraded     bool                  `json:"degraded"`
	Warnings     []string              `json:"warnings,omitempty"`
}

func toOutcomeResponse(o *service.Outcome) outcomeResponse {
	resp := outcomeResponse{Degraded: o.Degraded, Warnings: o.Warnings}
	if o.Registration != nil {
		r := toRegistrationResponse(o.Registration)
		resp.Registration = &r
	}
	return resp
}

type registerResponse struct {
	ID          int64    `json:"id"`
	Status      string   `json:"status"`
	StatusLabel string   `json:"status_label"`
	Degraded    bool     `json:"degraded"`
	Warnings    []string `json:"warnings,omitempty"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

type registrationListResponse struct {
	Items   []registrationResponse `json:"items"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	HasMore bool                   `json:"has_more"`
}

type checkInResponse struct {
	CheckedInAt time.Time `json:"checked_in_at"`
	CheckedInBy string    `json:"checked_in_by"`
}

type registrationDetailResponse struct {
	Registration registrationResponse `json:"registration"`
	CheckIns     []checkInResponse    `json:"check_ins"`
	Audit        []auditEntryResponse `json:"audit"`
}

func toDetailResponse(d *service.RegistrationDetail) registrationDetailResponse {
	resp := registrationDetailResponse{
		Registration: toRegistrationResponse(d.Registration),
		CheckIns:     []checkInResponse{},
		Audit:        make([]auditEntryResponse, 0, len(d.Audit)),
	}
	if d.CheckIn != nil {
		resp.CheckIns = append(resp.CheckIns, checkInResponse{
			CheckedInAt: d.CheckIn.CheckedInAt,
			CheckedInBy: d.CheckIn.CheckedInBy,
		})
	}
	for _, e := range d.Audit {
		resp.Audit = append(resp.Audit, toAuditEntryResponse(e))
	}
	return resp
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type bulkRequest struct {
	IDs    []int64 `json:"ids"`
	Reason string  `json:"reason,omitempty"`
}

type bulkItemError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type bulkItemResponse struct {
	ID       int64          `json:"id"`
	OK       bool           `json:"ok"`
	Status   string         `json:"status,omitempty"`
	Degraded bool           `json:"degraded,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Error    *bulkItemError `json:"error,omitempty"`
}

type bulkResponse struct {
	Items     []bulkItemResponse `json:"items"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

// toBulkResponse раскладывает результаты пакетной операции по id.
// Внутренние ошибки отдаются клиенту без подробностей.
func toBulkResponse(items []service.BulkItem) bulkResponse {
	resp := bulkResponse{Items: make([]bulkItemResponse, 0, len(items))}
	for _, it := range items {
		item := bulkItemResponse{ID: it.ID}
		if it.Err != nil {
			_, code := classify(it.Err)
			msg := it.Err.Error()
			if code == apierrors.CodeInternalError {
				msg = "внутренняя ошибка"
			}
			item.Error = &bulkItemError{Code: code, Message: msg}
			resp.Failed++
		} else {
			item.OK = true
			if it.Outcome != nil {
				item.Degraded = it.Outcome.Degraded
				item.Warnings = it.Outcome.Warnings
				if it.Outcome.Registration != nil {
					item.Status = string(it.Outcome.Registration.Status)
				}
			}
			resp.Succeeded++
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

type reminderRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Status  string `json:"status,omitempty"`
}

type reminderResponse struct {
	Recipients int      `json:"recipients"`
	Sent       int      `json:"sent"`
	Failed     int      `json:"failed"`
	Degraded   bool     `json:"degraded"`
	Warnings   []string `json:"warnings,omitempty"`
}

// --- Сканер ---

type scanRequest struct {
	Token   string `json:"token"`
	CheckIn bool   `json:"check_in"`
}

type attendeeResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
}

type scanResponse struct {
	Valid            bool              `json:"valid"`
	AlreadyCheckedIn bool              `json:"already_checked_in"`
	Reason           string            `json:"reason,omitempty"`
	Attendee         *attendeeResponse `json:"attendee,omitempty"`
	CheckedIn        bool              `json:"checked_in"`
	Degraded         bool              `json:"degraded"`
	Warnings         []string          `json:"warnings,omitempty"`
}

func toScanResponse(res *service.ScanResult) scanResponse {
	resp := scanResponse{
		Valid:            res.Valid,
		AlreadyCheckedIn: res.AlreadyCheckedIn,
		Reason:           res.Reason,
		CheckedIn:        res.CheckedIn,
	}
	if a := res.Attendee; a != nil {
		resp.Attendee = &attendeeResponse{
			ID:          a.ID,
			Name:        a.Name,
			Email:       a.Email,
			Phone:       a.Phone,
			Status:      string(a.Status),
			StatusLabel: a.Status.Label(),
		}
	}
	if res.Outcome != nil {
		resp.Degraded = res.Outcome.Degraded
		resp.Warnings = res.Outcome.Warnings
	}
	return resp
}

// --- Аудит ---

type auditEntryResponse struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ActorID      *string   `json:"actor_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   *string   `json:"resource_id"`
	Details      string    `json:"details,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

func toAuditEntryResponse(e *model.AuditEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:           e.ID,
		CreatedAt:    e.CreatedAt,
		ActorID:      e.ActorID,
		Action:       string(e.Action),
		ResourceType: string(e.ResourceType),
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		IPAddress:    e.IPAddress,
	}
}

type auditListResponse struct {
	Items   []auditEntryResponse `json:"items"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
	HasMore bool                 `json:"has_more"`
}

// --- Сотрудники и вход ---

type loginRequest struct {
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

type loginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Actor       actorResponse `json:"actor"`
}

type actorResponse struct {
	ID                   string              `json:"id"`
	Email                openapi_types.Email `json:"email"`
	Role                 string              `json:"role"`
	IsActive             bool                `json:"is_active"`
	Permissions          []string            `json:"permissions"`
	EffectivePermissions []string            `json:"effective_permissions"`
	LastLoginAt          *time.Time          `json:"last_login_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
}

func toActorResponse(a *model.Actor) actorResponse {
	return actorResponse{
		ID:                   a.ID,
		Email:                openapi_types.Email(a.Email),
		Role:                 string(a.Role),
		IsActive:             a.IsActive,
		Permissions:          permissionStrings(a.Permissions),
		EffectivePermissions: permissionStrings(a.EffectivePermissions()),
		LastLoginAt:          a.LastLoginAt,
		CreatedAt:            a.CreatedAt,
	}
}

func permissionStrings(perms []rbac.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

type actorListResponse struct {
	Items   []actorResponse `json:"items"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

type createActorRequest struct {
	Email       openapi_types.Email `json:"email"`
	Password    string              `json:"password"`
	Role        string              `json:"role"`
	Permissions []string            `json:"permissions,omitempty"`
	IsActive    *bool               `json:"is_active,omitempty"`
}

type updateActorRequest struct {
	Role        *string   `json:"role,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
	Password    *string   `json:"password,omitempty"`
	Permissions *[]string `json:"permissions,omitempty"`
}

type roleResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}
