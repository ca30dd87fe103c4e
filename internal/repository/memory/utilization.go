package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type UtilizationRepository struct {
	db *DB
}

func NewUtilizationRepository(db *DB) *UtilizationRepository {
	return &UtilizationRepository{db: db}
}

func (r *UtilizationRepository) Utilization(ctx context.Context, from, to time.Time, teacherID int64) ([]*model.TeacherUtilization, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	inPeriod := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }
	byTeacher := make(map[int64]*model.TeacherUtilization)
	row := func(id int64) *model.TeacherUtilization {
		u, ok := byTeacher[id]
		if !ok {
			u = &model.TeacherUtilization{TeacherID: id}
			byTeacher[id] = u
		}
		return u
	}

	for _, s := range r.db.data.slots {
		if (teacherID == 0 || s.TeacherID == teacherID) && inPeriod(s.SlotStart) {
			row(s.TeacherID).TotalSlots++
		}
	}
	for _, b := range r.db.data.bookings {
		if teacherID != 0 && b.TeacherID != teacherID {
			continue
		}
		if (b.Status == model.BookingStatusConfirmed || b.Status == model.BookingStatusDone) && inPeriod(b.StartTime) {
			row(b.TeacherID).SlotsBooked++
		}
	}

	result := make([]*model.TeacherUtilization, 0, len(byTeacher))
	for _, u := range byTeacher {
		result = append(result, u)
	}
	slices.SortFunc(result, func(a, b *model.TeacherUtilization) int {
		return cmp.Compare(a.TeacherID, b.TeacherID)
	})
	return result, nil
}
