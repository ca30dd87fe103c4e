// Package notify доставляет уведомления о бронированиях по внешним каналам.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type Kind string

const (
	KindBookingRequested Kind = "booking_requested"
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingCanceled  Kind = "booking_canceled"
	KindBookingReminder  Kind = "booking_reminder"
)

// Message одно уведомление одному получателю.
type Message struct {
	ID        uuid.UUID
	Kind      Kind
	BookingID int64
	To        *model.User
	Subject   string
	Text      string
}

// NewMessage создаёт уведомление с новым идентификатором для трассировки в логах.
func NewMessage(kind Kind, bookingID int64, to *model.User, subject, text string) Message {
	return Message{
		ID:        uuid.New(),
		Kind:      kind,
		BookingID: bookingID,
		To:        to,
		Subject:   subject,
		Text:      text,
	}
}

// Sender канал доставки. Канал, которому нечем доставить сообщение
// (нет chat id или email), молча его пропускает.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
