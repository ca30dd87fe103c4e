package memory

import (
	"context"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type SlotRepository struct {
	db *DB
}

func NewSlotRepository(db *DB) *SlotRepository {
	return &SlotRepository{db: db}
}

func (r *SlotRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	r.insert(slot)
	return nil
}

func (r *SlotRepository) insert(slot *model.AvailabilitySlot) {
	slot.ID = r.db.data.nextID()
	slot.CreatedAt = r.db.clock()
	c := *slot
	r.db.data.slots[slot.ID] = &c
}

// InsertGenerated повторяет уникальный индекс (shift_id, slot_start).
func (r *SlotRepository) InsertGenerated(ctx context.Context, slot *model.AvailabilitySlot) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	if slot.ShiftID != nil {
		for _, s := range r.db.data.slots {
			if s.ShiftID != nil && *s.ShiftID == *slot.ShiftID && s.SlotStart.Equal(slot.SlotStart) {
				return false, nil
			}
		}
	}

	slot.IsBookable = true
	r.insert(slot)
	return true, nil
}

func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.AvailabilitySlot, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	slot, ok := r.db.data.slots[id]
	if !ok {
		return nil, apperr.NotFound("slot %d not found", id)
	}
	c := *slot
	return &c, nil
}

func (r *SlotRepository) ListBookable(ctx context.Context, teacherID int64, from, to time.Time, limit int) ([]*model.AvailabilitySlot, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	var slots []*model.AvailabilitySlot
	for _, s := range r.db.data.slots {
		if s.TeacherID != teacherID || !s.IsBookable {
			continue
		}
		if s.SlotStart.Before(from) || !s.SlotStart.Before(to) {
			continue
		}
		c := *s
		slots = append(slots, &c)
	}

	slices.SortFunc(slots, func(a, b *model.AvailabilitySlot) int {
		return a.SlotStart.Compare(b.SlotStart)
	})
	if limit > 0 && len(slots) > limit {
		slots = slots[:limit]
	}
	return slots, nil
}

func (r *SlotRepository) HasOverlap(ctx context.Context, teacherID int64, start, end time.Time) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	for _, s := range r.db.data.slots {
		if s.TeacherID == teacherID && s.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

// LockTeacher ничего не делает: транзакция уже держит мьютекс всей DB.
func (r *SlotRepository) LockTeacher(context.Context, int64) error {
	return nil
}

func (r *SlotRepository) Claim(ctx context.Context, slotID int64) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	s, ok := r.db.data.slots[slotID]
	if !ok || !s.IsBookable {
		return false, nil
	}
	s.IsBookable = false
	return true, nil
}

func (r *SlotRepository) Reopen(ctx context.Context, slotID int64) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	s, ok := r.db.data.slots[slotID]
	if !ok {
		return false, apperr.NotFound("slot %d not found", slotID)
	}

	if s.ShiftID != nil {
		shift, ok := r.db.data.shifts[*s.ShiftID]
		if !ok || !shift.Published {
			r.remove(slotID)
			return false, nil
		}
	}

	s.IsBookable = true
	return true, nil
}

func (r *SlotRepository) DeleteBookable(ctx context.Context, slotID int64) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	s, ok := r.db.data.slots[slotID]
	if !ok || !s.IsBookable {
		return false, nil
	}
	r.remove(slotID)
	return true, nil
}

func (r *SlotRepository) RetractGenerated(ctx context.Context, shiftID int64) (int64, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	var n int64
	for id, s := range r.db.data.slots {
		if s.ShiftID != nil && *s.ShiftID == shiftID && s.IsBookable {
			r.remove(id)
			n++
		}
	}
	return n, nil
}

// remove повторяет ON DELETE SET NULL для bookings.slot_id.
func (r *SlotRepository) remove(slotID int64) {
	delete(r.db.data.slots, slotID)
	for _, b := range r.db.data.bookings {
		if b.SlotID == slotID {
			b.SlotID = 0
		}
	}
}
