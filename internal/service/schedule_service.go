package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/recurrence"
)

const maxSlotDuration = 24 * time.Hour

// ShiftInput поля смены, которые задаёт учитель.
type ShiftInput struct {
	StartTime      time.Time
	EndTime        time.Time
	RecurrenceRule string
	Published      bool
}

// ScheduleService управляет сменами и слотами доступности.
type ScheduleService struct {
	tx      Transactor
	shifts  ShiftRepository
	slots   SlotRepository
	horizon time.Duration
	loc     *time.Location
	now     Clock
	logger  *zap.Logger
}

func NewScheduleService(
	tx Transactor,
	shifts ShiftRepository,
	slots SlotRepository,
	horizon time.Duration,
	loc *time.Location,
	now Clock,
	logger *zap.Logger,
) *ScheduleService {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleService{
		tx:      tx,
		shifts:  shifts,
		slots:   slots,
		horizon: horizon,
		loc:     loc,
		now:     now,
		logger:  logger,
	}
}

// CreateShift создаёт смену и сразу материализует её слоты, если смена опубликована
func (s *ScheduleService) CreateShift(ctx context.Context, actor model.Actor, in ShiftInput) (*model.Shift, int, error) {
	if err := requireRole(actor, model.RoleTeacher); err != nil {
		return nil, 0, err
	}

	shift := &model.Shift{
		TeacherID:      actor.UserID,
		StartTime:      in.StartTime,
		EndTime:        in.EndTime,
		RecurrenceRule: in.RecurrenceRule,
		Published:      in.Published,
	}
	if err := s.validate(shift); err != nil {
		return nil, 0, err
	}

	var generated int
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.shifts.Create(ctx, shift); err != nil {
			return fmt.Errorf("create shift: %w", err)
		}
		if !shift.Published {
			return nil
		}

		n, err := s.expand(ctx, shift)
		generated = n
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("Shift created",
		zap.Int64("shift_id", shift.ID),
		zap.Int64("teacher_id", shift.TeacherID),
		zap.String("rule", shift.RecurrenceRule),
		zap.Int("generated", generated))

	return shift, generated, nil
}

// UpdateShift меняет шаблон смены. Уже созданные слоты не переписываются:
// новый шаблон только догенерирует слоты, не пересекающиеся с существующими.
// Снятие с публикации убирает свободные слоты смены.
func (s *ScheduleService) UpdateShift(ctx context.Context, actor model.Actor, id int64, in ShiftInput) (*model.Shift, int, error) {
	shift, err := s.ownedShift(ctx, actor, id)
	if err != nil {
		return nil, 0, err
	}

	shift.StartTime = in.StartTime
	shift.EndTime = in.EndTime
	shift.RecurrenceRule = in.RecurrenceRule
	shift.Published = in.Published
	if err := s.validate(shift); err != nil {
		return nil, 0, err
	}

	var generated int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.shifts.Update(ctx, shift); err != nil {
			return fmt.Errorf("update shift: %w", err)
		}
		if !shift.Published {
			if _, err := s.slots.RetractGenerated(ctx, shift.ID); err != nil {
				return fmt.Errorf("retract slots: %w", err)
			}
			return nil
		}

		n, err := s.expand(ctx, shift)
		generated = n
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("Shift updated",
		zap.Int64("shift_id", shift.ID),
		zap.Bool("published", shift.Published),
		zap.Int("generated", generated))

	return shift, generated, nil
}

// DeleteShift удаляет смену и её свободные слоты. Занятые слоты сохраняются.
func (s *ScheduleService) DeleteShift(ctx context.Context, actor model.Actor, id int64) error {
	shift, err := s.ownedShift(ctx, actor, id)
	if err != nil {
		return err
	}

	var retracted int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.slots.RetractGenerated(ctx, shift.ID)
		if err != nil {
			return fmt.Errorf("retract slots: %w", err)
		}
		retracted = n

		if err := s.shifts.Delete(ctx, shift.ID); err != nil {
			return fmt.Errorf("delete shift: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Shift deleted",
		zap.Int64("shift_id", shift.ID),
		zap.Int64("retracted_slots", retracted))

	return nil
}

// ExpandShift догенерирует слоты смены в текущем окне
func (s *ScheduleService) ExpandShift(ctx context.Context, actor model.Actor, id int64) (int, error) {
	shift, err := s.ownedShift(ctx, actor, id)
	if err != nil {
		return 0, err
	}
	if !shift.Published {
		return 0, apperr.Conflict("shift %d is not published", id)
	}

	var generated int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		n, err := s.expand(ctx, shift)
		generated = n
		return err
	})
	return generated, err
}

// ExpandAll сдвигает окно генерации для всех опубликованных смен.
// Ошибка одной смены не останавливает остальные.
func (s *ScheduleService) ExpandAll(ctx context.Context) (int, error) {
	shifts, err := s.shifts.GetAllPublished(ctx)
	if err != nil {
		return 0, fmt.Errorf("get published shifts: %w", err)
	}

	total := 0
	for _, shift := range shifts {
		var n int
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			n, err = s.expand(ctx, shift)
			return err
		})
		if err != nil {
			s.logger.Error("Failed to expand shift",
				zap.Int64("shift_id", shift.ID),
				zap.Int64("teacher_id", shift.TeacherID),
				zap.Error(err))
			continue
		}
		total += n
	}

	s.logger.Info("Slot expansion finished",
		zap.Int("shifts", len(shifts)),
		zap.Int("generated", total))

	return total, nil
}

// expand вызывается внутри транзакции. Повторный вызов не создаёт дублей:
// вхождение, пересекающееся с любым слотом учителя, пропускается.
func (s *ScheduleService) expand(ctx context.Context, shift *model.Shift) (int, error) {
	if err := s.slots.LockTeacher(ctx, shift.TeacherID); err != nil {
		return 0, err
	}

	local := *shift
	local.StartTime = shift.StartTime.In(s.loc)
	local.EndTime = shift.EndTime.In(s.loc)

	occurrences, err := recurrence.Expand(&local, recurrence.NewWindow(s.now(), s.horizon))
	if err != nil {
		return 0, err
	}

	generated := 0
	for occ := range occurrences {
		overlaps, err := s.slots.HasOverlap(ctx, shift.TeacherID, occ.Start, occ.End)
		if err != nil {
			return generated, err
		}
		if overlaps {
			continue
		}

		shiftID := shift.ID
		inserted, err := s.slots.InsertGenerated(ctx, &model.AvailabilitySlot{
			TeacherID:  shift.TeacherID,
			SlotStart:  occ.Start,
			SlotEnd:    occ.End,
			ShiftID:    &shiftID,
			IsBookable: true,
		})
		if err != nil {
			return generated, fmt.Errorf("insert slot: %w", err)
		}
		if inserted {
			generated++
		}
	}

	return generated, nil
}

// CreateManualSlot создаёт разовый слот вне смен
func (s *ScheduleService) CreateManualSlot(ctx context.Context, actor model.Actor, start, end time.Time) (*model.AvailabilitySlot, error) {
	if err := requireRole(actor, model.RoleTeacher); err != nil {
		return nil, err
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if !start.After(s.now()) {
		return nil, apperr.Validation("slot must start in the future")
	}

	slot := &model.AvailabilitySlot{
		TeacherID:  actor.UserID,
		SlotStart:  start,
		SlotEnd:    end,
		IsBookable: true,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.slots.LockTeacher(ctx, actor.UserID); err != nil {
			return err
		}

		overlaps, err := s.slots.HasOverlap(ctx, actor.UserID, start, end)
		if err != nil {
			return err
		}
		if overlaps {
			return apperr.Conflict("slot overlaps an existing slot")
		}

		return s.slots.Create(ctx, slot)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Manual slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("teacher_id", slot.TeacherID),
		zap.Time("start", slot.SlotStart))

	return slot, nil
}

// DeleteSlot удаляет свободный слот учителя
func (s *ScheduleService) DeleteSlot(ctx context.Context, actor model.Actor, slotID int64) error {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return err
	}
	if err := requireTeacherOwner(actor, slot.TeacherID); err != nil {
		return err
	}

	deleted, err := s.slots.DeleteBookable(ctx, slotID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.Conflict("slot %d is booked and cannot be deleted", slotID)
	}

	s.logger.Info("Slot deleted", zap.Int64("slot_id", slotID))
	return nil
}

// ListBookable возвращает свободные слоты учителя в диапазоне. Пустой from - с текущего момента.
func (s *ScheduleService) ListBookable(ctx context.Context, teacherID int64, from, to time.Time, limit int) ([]*model.AvailabilitySlot, error) {
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = from.Add(s.horizon)
	}
	if !to.After(from) {
		return nil, apperr.Validation("range end must be after range start")
	}

	return s.slots.ListBookable(ctx, teacherID, from, to, limit)
}

// ListShifts возвращает смены учителя
func (s *ScheduleService) ListShifts(ctx context.Context, actor model.Actor) ([]*model.Shift, error) {
	if err := requireRole(actor, model.RoleTeacher); err != nil {
		return nil, err
	}
	return s.shifts.GetByTeacherID(ctx, actor.UserID)
}

func (s *ScheduleService) ownedShift(ctx context.Context, actor model.Actor, id int64) (*model.Shift, error) {
	shift, err := s.shifts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTeacherOwner(actor, shift.TeacherID); err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *ScheduleService) validate(shift *model.Shift) error {
	return recurrence.ValidateShift(shift)
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start and end are required")
	}
	if !end.After(start) {
		return apperr.Validation("end must be after start")
	}
	if end.Sub(start) > maxSlotDuration {
		return apperr.Validation("slot cannot be longer than %s", maxSlotDuration)
	}
	return nil
}
