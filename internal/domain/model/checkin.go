package model

import "time"

// CheckIn — запись журнала прохода участника.
// Не более одной записи на заявку (UNIQUE registration_id).
type CheckIn struct {
	ID             int64
	RegistrationID int64
	// CheckedInAt — время прохода
	CheckedInAt time.Time
	// CheckedInBy — ID сотрудника, отметившего проход
	CheckedInBy string
}
