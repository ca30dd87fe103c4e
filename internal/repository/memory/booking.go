package memory

import (
	"context"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type BookingRepository struct {
	db *DB
}

func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	if booking.SlotID != 0 && booking.Status.Active() {
		for _, b := range r.db.data.bookings {
			if b.SlotID == booking.SlotID && b.Status.Active() {
				return apperr.SlotUnavailable()
			}
		}
	}

	now := r.db.clock()
	booking.ID = r.db.data.nextID()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	c := *booking
	r.db.data.bookings[booking.ID] = &c
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	b, ok := r.db.data.bookings[id]
	if !ok {
		return nil, apperr.NotFound("booking %d not found", id)
	}
	c := *b
	return &c, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	stored, ok := r.db.data.bookings[booking.ID]
	if !ok || stored.Status != from {
		return false, nil
	}

	stored.Status = booking.Status
	stored.TicketBalanceID = booking.TicketBalanceID
	stored.DebitedMinutes = booking.DebitedMinutes
	stored.UpdatedAt = r.db.clock()
	booking.UpdatedAt = stored.UpdatedAt
	return true, nil
}

func (r *BookingRepository) GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	bookings := r.filter(ctx, func(b *model.Booking) bool { return b.TeacherID == teacherID })
	slices.Reverse(bookings)
	return bookings, nil
}

func (r *BookingRepository) GetByStudentID(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	bookings := r.filter(ctx, func(b *model.Booking) bool { return b.StudentID == studentID })
	slices.Reverse(bookings)
	return bookings, nil
}

func (r *BookingRepository) GetConfirmedEndedBefore(ctx context.Context, before time.Time) ([]*model.Booking, error) {
	return r.filter(ctx, func(b *model.Booking) bool {
		return b.Status == model.BookingStatusConfirmed && b.EndTime.Before(before)
	}), nil
}

func (r *BookingRepository) GetDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	return r.filter(ctx, func(b *model.Booking) bool {
		return b.Status == model.BookingStatusConfirmed &&
			b.ReminderSentAt == nil &&
			!b.StartTime.Before(from) &&
			b.StartTime.Before(to)
	}), nil
}

func (r *BookingRepository) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	b, ok := r.db.data.bookings[id]
	if !ok || b.ReminderSentAt != nil {
		return false, nil
	}
	b.ReminderSentAt = &at
	return true, nil
}

// filter возвращает копии, отсортированные по start_time.
func (r *BookingRepository) filter(ctx context.Context, keep func(*model.Booking) bool) []*model.Booking {
	unlock := r.db.lock(ctx)
	defer unlock()

	var bookings []*model.Booking
	for _, b := range r.db.data.bookings {
		if keep(b) {
			c := *b
			bookings = append(bookings, &c)
		}
	}
	slices.SortFunc(bookings, func(a, b *model.Booking) int {
		return a.StartTime.Compare(b.StartTime)
	})
	return bookings
}
