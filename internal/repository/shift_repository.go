package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
)

const shiftColumns = `id, teacher_id, start_time, end_time, recurrence_rule, published, created_at, updated_at`

// ShiftRepository управляет сменами учителей в базе данных
type ShiftRepository struct {
	*base.Repository
}

// NewShiftRepository создаёт новый репозиторий
func NewShiftRepository(pool *pgxpool.Pool) *ShiftRepository {
	return &ShiftRepository{Repository: base.NewRepository(pool)}
}

func scanShift(row rowScanner) (*model.Shift, error) {
	shift := &model.Shift{}
	err := row.Scan(
		&shift.ID,
		&shift.TeacherID,
		&shift.StartTime,
		&shift.EndTime,
		&shift.RecurrenceRule,
		&shift.Published,
		&shift.CreatedAt,
		&shift.UpdatedAt,
	)
	return shift, err
}

// Create создаёт новую смену
func (r *ShiftRepository) Create(ctx context.Context, shift *model.Shift) error {
	query := `
		INSERT INTO shifts (teacher_id, start_time, end_time, recurrence_rule, published)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		shift.TeacherID,
		shift.StartTime,
		shift.EndTime,
		shift.RecurrenceRule,
		shift.Published,
	).Scan(&shift.ID, &shift.CreatedAt, &shift.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create shift: %w", err)
	}

	return nil
}

// GetByID получает смену по ID
func (r *ShiftRepository) GetByID(ctx context.Context, id int64) (*model.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`

	shift, err := scanShift(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("shift %d not found", id)
		}
		return nil, fmt.Errorf("get shift by id: %w", err)
	}

	return shift, nil
}

// GetByTeacherID получает все смены учителя
func (r *ShiftRepository) GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE teacher_id = $1 ORDER BY start_time`

	return r.list(ctx, "get shifts by teacher", query, teacherID)
}

// GetAllPublished получает все опубликованные смены
func (r *ShiftRepository) GetAllPublished(ctx context.Context) ([]*model.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE published = true ORDER BY teacher_id, start_time`

	return r.list(ctx, "get published shifts", query)
}

func (r *ShiftRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Shift, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var shifts []*model.Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		shifts = append(shifts, shift)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return shifts, nil
}

// Update обновляет смену
func (r *ShiftRepository) Update(ctx context.Context, shift *model.Shift) error {
	query := `
		UPDATE shifts
		SET start_time = $2, end_time = $3, recurrence_rule = $4, published = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx, query,
		shift.ID,
		shift.StartTime,
		shift.EndTime,
		shift.RecurrenceRule,
		shift.Published,
	).Scan(&shift.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return apperr.NotFound("shift %d not found", shift.ID)
		}
		return fmt.Errorf("update shift: %w", err)
	}

	return nil
}

// Delete удаляет смену
func (r *ShiftRepository) Delete(ctx context.Context, id int64) error {
	affected, err := r.ExecAffected(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}

	if affected == 0 {
		return apperr.NotFound("shift %d not found", id)
	}

	return nil
}
