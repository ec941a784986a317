// Пакет model — доменные модели EventDesk.
package model

import (
	"time"

	"github.com/bigkaa/eventdesk/internal/domain/lifecycle"
)

// Registration — заявка участника мероприятия.
// Хранится в таблице registrations.
type Registration struct {
	// ID — числовой идентификатор (используется в публичных URL)
	ID int64
	// Name — имя участника
	Name string
	// Email — адрес электронной почты (уникальный, в нижнем регистре)
	Email string
	// Phone — телефон (уникальный)
	Phone string
	// Status — текущий статус жизненного цикла
	Status lifecycle.Status
	// ReceiptPath — путь квитанции об оплате в хранилище файлов
	ReceiptPath *string
	// QRToken — зашифрованный QR-токен, выдаётся при подтверждении
	QRToken *string
	// QRPath — путь PNG с QR-кодом в хранилище файлов
	QRPath *string
	// RejectionReason — причина последнего отклонения
	RejectionReason *string
	// IsArchived — заявка скрыта из рабочих списков
	IsArchived bool
	// CheckedIn — денормализованный признак наличия записи в check_ins
	CheckedIn bool
	// CreatedAt — время регистрации
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// StatusLabel возвращает человекочитаемое название статуса.
func (r *Registration) StatusLabel() string {
	return r.Status.Label()
}

// HasQR — был ли выдан QR-код.
func (r *Registration) HasQR() bool {
	return r.QRToken != nil && *r.QRToken != ""
}

// RegistrationFilter — параметры выборки списка заявок.
type RegistrationFilter struct {
	// Status — фильтр по статусу (пустой — все)
	Status lifecycle.Status
	// Search — подстрока для поиска по имени, email и телефону
	Search string
	// Archived — показывать архивные заявки вместо рабочих
	Archived bool
	Limit    int
	Offset   int
}

// RegistrationStats — сводная статистика по заявкам.
type RegistrationStats struct {
	Total               int `json:"total_registrations"`
	PendingPayment      int `json:"pending_payment"`
	PendingVerification int `json:"pending_verification"`
	Confirmed           int `json:"confirmed"`
	Rejected            int `json:"rejected"`
	CheckedIn           int `json:"checked_in"`
	Archived            int `json:"archived"`
}
