// Пакет rbac — права сотрудников EventDesk.
// Итоговое право = прямая выдача ИЛИ право роли.
// Права ролей заданы таблицей rolePermissions, без ветвлений по именам ролей.
package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Role — роль сотрудника.
type Role string

// Роли в порядке убывания привилегий.
const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleRegistrar Role = "REGISTRAR"
	RoleChecker   Role = "CHECKER"
	RoleViewer    Role = "VIEWER"
)

// Permission — отдельное право.
type Permission string

const (
	PermViewDashboard        Permission = "view_dashboard"
	PermViewRegistrations    Permission = "view_registrations"
	PermApproveRegistrations Permission = "approve_registrations"
	PermRejectRegistrations  Permission = "reject_registrations"
	PermManageRegistrations  Permission = "manage_registrations"
	PermCheckInAttendees     Permission = "check_in_attendees"
	PermExportData           Permission = "export_data"
	PermSendEmails           Permission = "send_emails"
	PermManageAdmins         Permission = "manage_admins"
	PermManageSystem         Permission = "manage_system"
	PermViewAuditLogs        Permission = "view_audit_logs"
	PermExportAuditLogs      Permission = "export_audit_logs"
)

// allPermissions — полный словарь прав (порядок — для выдачи в API).
var allPermissions = []Permission{
	PermViewDashboard,
	PermViewRegistrations,
	PermApproveRegistrations,
	PermRejectRegistrations,
	PermManageRegistrations,
	PermCheckInAttendees,
	PermExportData,
	PermSendEmails,
	PermManageAdmins,
	PermManageSystem,
	PermViewAuditLogs,
	PermExportAuditLogs,
}

// permissionSet — множество прав.
type permissionSet map[Permission]bool

// rolePermissions — права, которые роль даёт неявно.
var rolePermissions = map[Role]permissionSet{
	RoleAdmin:   setOf(allPermissions...),
	RoleManager: setExcept(allPermissions, PermManageAdmins),
	RoleRegistrar: setOf(
		PermViewDashboard,
		PermViewRegistrations,
		PermApproveRegistrations,
		PermRejectRegistrations,
		PermManageRegistrations,
		PermSendEmails,
	),
	RoleChecker: setOf(
		PermViewDashboard,
		PermViewRegistrations,
		PermCheckInAttendees,
	),
	RoleViewer: setOf(
		PermViewDashboard,
		PermViewRegistrations,
	),
}

// roleDescriptions — описания ролей для /api/v1/admin/roles.
var roleDescriptions = map[Role]string{
	RoleAdmin:     "Полный доступ, включая управление сотрудниками",
	RoleManager:   "Всё, кроме управления сотрудниками",
	RoleRegistrar: "Проверка квитанций и рассылки",
	RoleChecker:   "Проход участников по QR-коду",
	RoleViewer:    "Только просмотр",
}

// HasPermission возвращает true, если право выдано напрямую
// или входит в набор роли. Неизвестная роль прав не даёт.
func HasPermission(role Role, direct []Permission, p Permission) bool {
	for _, d := range direct {
		if d == p {
			return true
		}
	}
	return rolePermissions[role][p]
}

// RolePermissions возвращает права роли (в порядке словаря).
func RolePermissions(role Role) []Permission {
	set := rolePermissions[role]
	result := make([]Permission, 0, len(set))
	for _, p := range allPermissions {
		if set[p] {
			result = append(result, p)
		}
	}
	return result
}

// EffectivePermissions возвращает объединение прав роли и прямых выдач
// (отсортировано, без дубликатов).
func EffectivePermissions(role Role, direct []Permission) []Permission {
	set := make(permissionSet)
	for p := range rolePermissions[role] {
		set[p] = true
	}
	for _, p := range direct {
		set[p] = true
	}

	result := make([]Permission, 0, len(set))
	for p := range set {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// AllPermissions возвращает копию словаря прав.
func AllPermissions() []Permission {
	result := make([]Permission, len(allPermissions))
	copy(result, allPermissions)
	return result
}

// AllRoles возвращает роли в порядке убывания привилегий.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleRegistrar, RoleChecker, RoleViewer}
}

// Description возвращает описание роли.
func (r Role) Description() string {
	return roleDescriptions[r]
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := rolePermissions[Role(role)]
	return ok
}

// ParseRole преобразует строку в Role (регистр не важен).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rolePermissions[r]; !ok {
		return "", fmt.Errorf("недопустимая роль %q, допустимые: ADMIN, MANAGER, REGISTRAR, CHECKER, VIEWER", s)
	}
	return r, nil
}

// ParsePermission преобразует строку в Permission.
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allPermissions {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("недопустимое право %q", s)
}

// setOf строит множество из перечисленных прав.
func setOf(perms ...Permission) permissionSet {
	s := make(permissionSet, len(perms))
	for _, p := range perms {
		s[p] = true
	}
	return s
}

// setExcept строит множество из всех прав, кроме исключённых.
func setExcept(perms []Permission, excluded ...Permission) permissionSet {
	s := setOf(perms...)
	for _, p := range excluded {
		delete(s, p)
	}
	return s
}
