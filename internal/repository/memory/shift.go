package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type ShiftRepository struct {
	db *DB
}

func NewShiftRepository(db *DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

func (r *ShiftRepository) Create(ctx context.Context, shift *model.Shift) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	now := r.db.clock()
	shift.ID = r.db.data.nextID()
	shift.CreatedAt = now
	shift.UpdatedAt = now
	c := *shift
	r.db.data.shifts[shift.ID] = &c
	return nil
}

func (r *ShiftRepository) GetByID(ctx context.Context, id int64) (*model.Shift, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	shift, ok := r.db.data.shifts[id]
	if !ok {
		return nil, apperr.NotFound("shift %d not found", id)
	}
	c := *shift
	return &c, nil
}

func (r *ShiftRepository) Update(ctx context.Context, shift *model.Shift) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	stored, ok := r.db.data.shifts[shift.ID]
	if !ok {
		return apperr.NotFound("shift %d not found", shift.ID)
	}

	shift.CreatedAt = stored.CreatedAt
	shift.UpdatedAt = r.db.clock()
	c := *shift
	r.db.data.shifts[shift.ID] = &c
	return nil
}

func (r *ShiftRepository) Delete(ctx context.Context, id int64) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	if _, ok := r.db.data.shifts[id]; !ok {
		return apperr.NotFound("shift %d not found", id)
	}
	delete(r.db.data.shifts, id)
	return nil
}

func (r *ShiftRepository) GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.Shift, error) {
	return r.filter(ctx, func(s *model.Shift) bool { return s.TeacherID == teacherID }), nil
}

func (r *ShiftRepository) GetAllPublished(ctx context.Context) ([]*model.Shift, error) {
	return r.filter(ctx, func(s *model.Shift) bool { return s.Published }), nil
}

func (r *ShiftRepository) filter(ctx context.Context, keep func(*model.Shift) bool) []*model.Shift {
	unlock := r.db.lock(ctx)
	defer unlock()

	var shifts []*model.Shift
	for _, s := range r.db.data.shifts {
		if keep(s) {
			c := *s
			shifts = append(shifts, &c)
		}
	}
	slices.SortFunc(shifts, func(a, b *model.Shift) int {
		if n := cmp.Compare(a.TeacherID, b.TeacherID); n != 0 {
			return n
		}
		return a.StartTime.Compare(b.StartTime)
	})
	return shifts
}
