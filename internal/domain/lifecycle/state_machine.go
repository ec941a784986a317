// Пакет lifecycle — конечный автомат статусов заявки участника.
//
// Жизненный цикл:
//   - PENDING_PAYMENT → PENDING_VERIFICATION (загрузка квитанции)
//   - PENDING_VERIFICATION → CONFIRMED | REJECTED (решение сотрудника)
//   - REJECTED → PENDING_VERIFICATION (повторная загрузка квитанции)
//   - CONFIRMED → CONFIRMED (проход по QR, статус не меняется)
//
// Матрица переходов — данные, а не ветвления. Автомат не хранит состояния:
// текущий статус живёт в строке registrations и читается под FOR UPDATE.
package lifecycle

import (
	"fmt"
	"sort"
)

// Status — статус заявки.
type Status string

const (
	// StatusPendingPayment — заявка создана, квитанция не загружена
	StatusPendingPayment Status = "PENDING_PAYMENT"
	// StatusPendingVerification — квитанция загружена, ждёт проверки
	StatusPendingVerification Status = "PENDING_VERIFICATION"
	// StatusConfirmed — оплата подтверждена, выдан QR-код
	StatusConfirmed Status = "CONFIRMED"
	// StatusRejected — квитанция отклонена, нужна повторная загрузка
	StatusRejected Status = "REJECTED"
)

// Event — событие, меняющее статус заявки.
type Event string

const (
	EventReceiptUploaded Event = "receipt_uploaded"
	EventApprove         Event = "approve"
	EventReject          Event = "reject"
	EventCheckIn         Event = "check_in"
)

// statusLabels — названия статусов для участников и писем.
var statusLabels = map[Status]string{
	StatusPendingPayment:      "Pending Payment Upload",
	StatusPendingVerification: "Pending Verification",
	StatusConfirmed:           "Confirmed",
	StatusRejected:            "Rejected - Reupload Required",
}

// transitions — матрица допустимых переходов.
// Ключ — текущий статус, значение — событие и целевой статус.
var transitions = map[Status]map[Event]Status{
	StatusPendingPayment: {
		EventReceiptUploaded: StatusPendingVerification,
	},
	StatusPendingVerification: {
		EventApprove: StatusConfirmed,
		EventReject:  StatusRejected,
	},
	StatusConfirmed: {
		EventCheckIn: StatusConfirmed,
	},
	StatusRejected: {
		EventReceiptUploaded: StatusPendingVerification,
	},
}

// Next возвращает целевой статус для события из текущего статуса.
//
// Ошибки:
//   - UNKNOWN_STATUS — текущий статус не входит в жизненный цикл
//   - INVALID_TRANSITION — событие недопустимо в текущем статусе
func Next(from Status, event Event) (Status, error) {
	events, ok := transitions[from]
	if !ok {
		return "", &TransitionError{
			Code:    "UNKNOWN_STATUS",
			From:    from,
			Event:   event,
			Message: fmt.Sprintf("неизвестный статус %q", from),
		}
	}

	to, ok := events[event]
	if !ok {
		return "", &TransitionError{
			Code:    "INVALID_TRANSITION",
			From:    from,
			Event:   event,
			Message: fmt.Sprintf("событие %s недопустимо в статусе %s", event, from),
		}
	}
	return to, nil
}

// Can проверяет, допустимо ли событие в указанном статусе.
func Can(from Status, event Event) bool {
	_, err := Next(from, event)
	return err == nil
}

// AllowedEvents возвращает события, допустимые в статусе (отсортированы).
func AllowedEvents(from Status) []Event {
	events := transitions[from]
	result := make([]Event, 0, len(events))
	for e := range events {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Label возвращает человекочитаемое название статуса.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsValid проверяет, входит ли статус в жизненный цикл.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseStatus преобразует строку в Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("недопустимый статус: %q, допустимые: PENDING_PAYMENT, PENDING_VERIFICATION, CONFIRMED, REJECTED", s)
	}
	return st, nil
}

// AllStatuses возвращает все статусы в порядке жизненного цикла.
func AllStatuses() []Status {
	return []Status{StatusPendingPayment, StatusPendingVerification, StatusConfirmed, StatusRejected}
}

// TransitionError — ошибка перехода между статусами.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, UNKNOWN_STATUS)
	From    Status
	Event   Event
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
