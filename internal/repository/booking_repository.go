package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
)

// slot_id обнуляется, если свободный слот отменённого бронирования удалили вместе со сменой
const bookingColumns = `id, teacher_id, student_id, COALESCE(slot_id, 0), start_time, end_time, status,
	ticket_balance_id, debited_minutes, created_by, reminder_sent_at, created_at, updated_at`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.TeacherID,
		&booking.StudentID,
		&booking.SlotID,
		&booking.StartTime,
		&booking.EndTime,
		&booking.Status,
		&booking.TicketBalanceID,
		&booking.DebitedMinutes,
		&booking.CreatedBy,
		&booking.ReminderSentAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	return &booking, err
}

// Create создаёт новое бронирование
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (teacher_id, student_id, slot_id, start_time, end_time, status,
			ticket_balance_id, debited_minutes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		booking.TeacherID,
		booking.StudentID,
		booking.SlotID,
		booking.StartTime,
		booking.EndTime,
		booking.Status,
		booking.TicketBalanceID,
		booking.DebitedMinutes,
		booking.CreatedBy,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return apperr.SlotUnavailable()
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("booking %d not found", id)
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// UpdateStatus переводит бронирование в новый статус, если оно всё ещё в статусе from
func (r *BookingRepository) UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $3, ticket_balance_id = $4, debited_minutes = $5, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx, query,
		booking.ID,
		from,
		booking.Status,
		booking.TicketBalanceID,
		booking.DebitedMinutes,
	).Scan(&booking.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("update booking status: %w", err)
	}

	return true, nil
}

// GetByTeacherID получает все бронирования учителя
func (r *BookingRepository) GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE teacher_id = $1 ORDER BY start_time DESC`

	return r.list(ctx, "get bookings by teacher", query, teacherID)
}

// GetByStudentID получает все бронирования студента
func (r *BookingRepository) GetByStudentID(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE student_id = $1 ORDER BY start_time DESC`

	return r.list(ctx, "get bookings by student", query, studentID)
}

// GetConfirmedEndedBefore получает подтверждённые занятия, которые уже закончились
func (r *BookingRepository) GetConfirmedEndedBefore(ctx context.Context, before time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'confirmed' AND end_time < $1
		ORDER BY end_time
	`

	return r.list(ctx, "get ended bookings", query, before)
}

// GetDueReminders получает подтверждённые занятия в окне, по которым ещё не было напоминания
func (r *BookingRepository) GetDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'confirmed'
		  AND reminder_sent_at IS NULL
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
	`

	return r.list(ctx, "get due reminders", query, from, to)
}

// MarkReminded отмечает отправку напоминания; false - уже отмечено
func (r *BookingRepository) MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `UPDATE bookings SET reminder_sent_at = $2 WHERE id = $1 AND reminder_sent_at IS NULL`

	affected, err := r.ExecAffected(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark booking reminded: %w", err)
	}

	return affected == 1, nil
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}
