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

const slotColumns = `id, teacher_id, slot_start, slot_end, shift_id, is_bookable, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

func scanSlot(row rowScanner) (*model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	err := row.Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.SlotStart,
		&slot.SlotEnd,
		&slot.ShiftID,
		&slot.IsBookable,
		&slot.CreatedAt,
	)
	return &slot, err
}

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	query := `
		INSERT INTO availability_slots (teacher_id, slot_start, slot_end, shift_id, is_bookable)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.TeacherID,
		slot.SlotStart,
		slot.SlotEnd,
		slot.ShiftID,
		slot.IsBookable,
	).Scan(&slot.ID, &slot.CreatedAt)

	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// InsertGenerated вставляет сгенерированный слот, пропуская уже материализованные
func (r *SlotRepository) InsertGenerated(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
	query := `
		INSERT INTO availability_slots (teacher_id, slot_start, slot_end, shift_id, is_bookable)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (shift_id, slot_start) WHERE shift_id IS NOT NULL DO NOTHING
		RETURNING id, created_at
	`

	err := r.QueryRow(ctx, query, slot.TeacherID, slot.SlotStart, slot.SlotEnd, slot.ShiftID).
		Scan(&slot.ID, &slot.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert generated slot: %w", err)
	}

	slot.IsBookable = true
	return true, nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.AvailabilitySlot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("slot %d not found", id)
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListBookable получает свободные слоты учителя в диапазоне, отсортированные по началу
func (r *SlotRepository) ListBookable(ctx context.Context, teacherID int64, from, to time.Time, limit int) ([]*model.AvailabilitySlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM availability_slots
		WHERE teacher_id = $1
		  AND is_bookable = true
		  AND slot_start >= $2
		  AND slot_start < $3
		ORDER BY slot_start
		LIMIT NULLIF($4, 0)
	`

	rows, err := r.Query(ctx, query, teacherID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list bookable slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookable slots: %w", err)
	}

	return slots, nil
}

// HasOverlap проверяет пересечение с существующими слотами учителя
func (r *SlotRepository) HasOverlap(ctx context.Context, teacherID int64, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM availability_slots
			WHERE teacher_id = $1
			  AND slot_start < $3
			  AND slot_end > $2
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, teacherID, start, end).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slot overlap: %w", err)
	}

	return exists, nil
}

// LockTeacher берёт advisory-блокировку учителя до конца транзакции
func (r *SlotRepository) LockTeacher(ctx context.Context, teacherID int64) error {
	if _, err := r.Q(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, teacherID); err != nil {
		return fmt.Errorf("lock teacher slots: %w", err)
	}
	return nil
}

// Claim снимает слот с продажи, если он ещё свободен
func (r *SlotRepository) Claim(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE availability_slots
		SET is_bookable = false
		WHERE id = $1 AND is_bookable = true
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("claim slot: %w", err)
	}

	return affected == 1, nil
}

// Reopen возвращает слот в продажу. Слот удалённой или снятой с публикации
// смены вместо этого удаляется; тогда возвращается false.
func (r *SlotRepository) Reopen(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE availability_slots s
		SET is_bookable = true
		WHERE s.id = $1
		  AND (s.shift_id IS NULL OR EXISTS (
			SELECT 1 FROM shifts sh WHERE sh.id = s.shift_id AND sh.published
		  ))
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("reopen slot: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	affected, err = r.ExecAffected(ctx, `DELETE FROM availability_slots WHERE id = $1`, slotID)
	if err != nil {
		return false, fmt.Errorf("delete orphaned slot: %w", err)
	}
	if affected == 0 {
		return false, apperr.NotFound("slot %d not found", slotID)
	}

	return false, nil
}

// DeleteBookable удаляет слот, только если он свободен
func (r *SlotRepository) DeleteBookable(ctx context.Context, slotID int64) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM availability_slots WHERE id = $1 AND is_bookable = true`, slotID)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}

	return affected == 1, nil
}

// RetractGenerated удаляет свободные слоты смены; занятые остаются
func (r *SlotRepository) RetractGenerated(ctx context.Context, shiftID int64) (int64, error) {
	query := `DELETE FROM availability_slots WHERE shift_id = $1 AND is_bookable = true`

	affected, err := r.ExecAffected(ctx, query, shiftID)
	if err != nil {
		return 0, fmt.Errorf("retract generated slots: %w", err)
	}

	return affected, nil
}
