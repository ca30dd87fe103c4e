package model

import (
	"fmt"
	"time"
)

// BookingStatus закрытое множество состояний бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает одобрения учителя
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено
	BookingStatusCanceled  BookingStatus = "canceled"  // Отменено или отклонено
	BookingStatusDone      BookingStatus = "done"      // Занятие прошло
)

// Valid проверяет, что статус входит в перечисление.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCanceled, BookingStatusDone:
		return true
	}
	return false
}

// Terminal сообщает, что из статуса нет переходов.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCanceled || s == BookingStatusDone
}

// Active сообщает, что бронирование удерживает слот.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// BookingEvent действие над бронированием.
type BookingEvent string

const (
	BookingEventApprove  BookingEvent = "approve"
	BookingEventReject   BookingEvent = "reject"
	BookingEventCancel   BookingEvent = "cancel"
	BookingEventComplete BookingEvent = "complete"
)

// BookingTransition допустимое ребро машины состояний.
type BookingTransition struct {
	From  BookingStatus
	Event BookingEvent
	To    BookingStatus
}

var bookingTransitions = []BookingTransition{
	{From: BookingStatusPending, Event: BookingEventApprove, To: BookingStatusConfirmed},
	{From: BookingStatusPending, Event: BookingEventReject, To: BookingStatusCanceled},
	{From: BookingStatusPending, Event: BookingEventCancel, To: BookingStatusCanceled},
	{From: BookingStatusConfirmed, Event: BookingEventCancel, To: BookingStatusCanceled},
	{From: BookingStatusConfirmed, Event: BookingEventComplete, To: BookingStatusDone},
}

// NextBookingStatus возвращает целевой статус для пары (статус, событие).
func NextBookingStatus(from BookingStatus, ev BookingEvent) (BookingStatus, bool) {
	for _, tr := range bookingTransitions {
		if tr.From == from && tr.Event == ev {
			return tr.To, true
		}
	}
	return "", false
}

type Booking struct {
	ID              int64         `json:"id"`
	TeacherID       int64         `json:"teacher_id"`
	StudentID       int64         `json:"student_id"`
	SlotID          int64         `json:"slot_id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Status          BookingStatus `json:"status"`
	TicketBalanceID *int64        `json:"ticket_balance_id"` // баланс, с которого списаны минуты
	DebitedMinutes  int           `json:"debited_minutes"`
	CreatedBy       int64         `json:"created_by"` // студент или опекун
	ReminderSentAt  *time.Time    `json:"reminder_sent_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// EffectiveStatus статус для отображения: подтверждённое занятие,
// которое уже закончилось, считается проведённым без записи в БД.
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status == BookingStatusConfirmed && b.EndTime.Before(now) {
		return BookingStatusDone
	}
	return b.Status
}

// DurationMinutes длительность занятия в минутах (округление вверх).
func (b *Booking) DurationMinutes() int {
	d := b.EndTime.Sub(b.StartTime)
	m := int(d / time.Minute)
	if d%time.Minute != 0 {
		m++
	}
	return m
}

func (b *Booking) String() string {
	return fmt.Sprintf("booking %d [%s %s-%s]", b.ID, b.Status,
		b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339))
}
