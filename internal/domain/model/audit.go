package model

import "time"

// AuditAction — тип действия в журнале аудита.
type AuditAction string

const (
	ActionCreate  AuditAction = "CREATE"
	ActionUpdate  AuditAction = "UPDATE"
	ActionDelete  AuditAction = "DELETE"
	ActionLogin   AuditAction = "LOGIN"
	ActionLogout  AuditAction = "LOGOUT"
	ActionApprove AuditAction = "APPROVE"
	ActionReject  AuditAction = "REJECT"
	ActionCheckIn AuditAction = "CHECK_IN"
	ActionExport  AuditAction = "EXPORT"
)

// AuditResource — тип ресурса в журнале аудита.
type AuditResource string

const (
	ResourceAdmin        AuditResource = "ADMIN"
	ResourceRegistration AuditResource = "REGISTRATION"
	ResourceCheckIn      AuditResource = "CHECK_IN"
	ResourceSystem       AuditResource = "SYSTEM"
)

// IsValid проверяет, что действие входит в словарь журнала.
func (a AuditAction) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionLogin, ActionLogout,
		ActionApprove, ActionReject, ActionCheckIn, ActionExport:
		return true
	}
	return false
}

// IsValid проверяет, что тип ресурса входит в словарь журнала.
func (r AuditResource) IsValid() bool {
	switch r {
	case ResourceAdmin, ResourceRegistration, ResourceCheckIn, ResourceSystem:
		return true
	}
	return false
}

// AuditEntry — неизменяемая запись журнала аудита.
type AuditEntry struct {
	ID           int64
	CreatedAt    time.Time
	// ActorID — сотрудник (nil для публичных и системных действий)
	ActorID      *string
	Action       AuditAction
	ResourceType AuditResource
	ResourceID   *string
	Details      string
	IPAddress    string
}

// AuditFilter — параметры выборки журнала аудита.
type AuditFilter struct {
	ActorID      string
	Action       AuditAction
	ResourceType AuditResource
	ResourceID   string
	// Since — нижняя граница времени (нулевое значение — без ограничения)
	Since  time.Time
	Limit  int
	Offset int
}
