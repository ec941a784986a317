package model

import (
	"time"

	"github.com/bigkaa/eventdesk/internal/domain/rbac"
)

// Actor — сотрудник с доступом к административному API.
// Хранится в таблице actors, прямые права — в actor_permissions.
type Actor struct {
	// ID — UUID сотрудника
	ID string
	// Email — логин (уникальный, в нижнем регистре)
	Email string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	// IsActive — может ли сотрудник входить в систему
	IsActive bool
	// Role — назначенная роль
	Role rbac.Role
	// Permissions — права, выданные напрямую в дополнение к роли
	Permissions []rbac.Permission
	// LastLoginAt — время последнего входа
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPermission проверяет право с учётом роли и прямых выдач.
func (a *Actor) HasPermission(p rbac.Permission) bool {
	if a == nil || !a.IsActive {
		return false
	}
	return rbac.HasPermission(a.Role, a.Permissions, p)
}

// EffectivePermissions возвращает итоговый набор прав сотрудника.
func (a *Actor) EffectivePermissions() []rbac.Permission {
	return rbac.EffectivePermissions(a.Role, a.Permissions)
}
