package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/service"
)

// =============================================================================
// REQUESTS
// =============================================================================

type ShiftRequest struct {
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	RecurrenceRule string    `json:"recurrence_rule" validate:"omitempty,max=500"`
	Published      bool      `json:"published"`
}

func (r ShiftRequest) input() service.ShiftInput {
	return service.ShiftInput{
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		RecurrenceRule: r.RecurrenceRule,
		Published:      r.Published,
	}
}

type SlotRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// BookingRequest student_id обязателен для опекуна, студент его не передаёт
type BookingRequest struct {
	SlotID    int64 `json:"slot_id" validate:"required,gt=0"`
	StudentID int64 `json:"student_id" validate:"omitempty,gt=0"`
}

type ProductRequest struct {
	Name       string `json:"name" validate:"required,max=200"`
	Minutes    int    `json:"minutes" validate:"gt=0"`
	BundleQty  int    `json:"bundle_qty" validate:"gt=0"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
	ValidDays  int    `json:"valid_days" validate:"gt=0"`
	IsActive   bool   `json:"is_active"`
}

func (r ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:       r.Name,
		Minutes:    r.Minutes,
		BundleQty:  r.BundleQty,
		PriceCents: r.PriceCents,
		ValidDays:  r.ValidDays,
		IsActive:   r.IsActive,
	}
}

type ProfileRequest struct {
	Handle           string `json:"handle" validate:"required,min=3,max=64"`
	RequiresApproval bool   `json:"requires_approval"`
	Published        bool   `json:"published"`
}

// PaymentRequest тело вебхука платёжного шлюза
type PaymentRequest struct {
	TicketID   int64           `json:"ticketId" validate:"required,gt=0"`
	PayerEmail string          `json:"payerEmail" validate:"required,email"`
	AmountPaid decimal.Decimal `json:"amountPaid"`
	PaymentID  string          `json:"paymentId" validate:"required,max=200"`
	StudentID  *int64          `json:"studentId" validate:"omitempty,gt=0"`
}

func (r PaymentRequest) event() model.PaymentCompleted {
	return model.PaymentCompleted{
		TicketID:   r.TicketID,
		PayerEmail: r.PayerEmail,
		AmountPaid: r.AmountPaid,
		PaymentID:  r.PaymentID,
		StudentID:  r.StudentID,
	}
}

// =============================================================================
// RESPONSES
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type InsufficientBalanceResponse struct {
	Error     string `json:"error"`
	Requested int    `json:"requested_minutes"`
	Available int    `json:"available_minutes"`
}

type ShiftResponse struct {
	Shift     *model.Shift `json:"shift"`
	Generated int          `json:"generated_slots"`
}

type ExpandResponse struct {
	Generated int `json:"generated_slots"`
}

// BookingResponse статус отдаётся эффективный: прошедшее подтверждённое занятие видно как done
type BookingResponse struct {
	*model.Booking
	Status model.BookingStatus `json:"status"`
}

func toBookingResponse(b *model.Booking, now time.Time) BookingResponse {
	return BookingResponse{Booking: b, Status: b.EffectiveStatus(now)}
}

func toBookingResponses(bookings []*model.Booking, now time.Time) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b, now))
	}
	return out
}

type PaymentResponse struct {
	Balance   *model.TicketBalance `json:"balance"`
	Duplicate bool                 `json:"duplicate"`
}
