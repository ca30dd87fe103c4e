package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

func mondayShift() ShiftInput {
	return ShiftInput{
		StartTime:      time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC),
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=MO",
		Published:      true,
	}
}

func TestCreateShift_WeeklyMondayFourWeeks(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	shift, generated, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)
	assert.Equal(t, 4, generated)

	slots, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	for i, slot := range slots {
		assert.Equal(t, time.Date(2024, 9, 2+7*i, 9, 0, 0, 0, time.UTC), slot.SlotStart)
		assert.Equal(t, time.Hour, slot.SlotEnd.Sub(slot.SlotStart))
		assert.Equal(t, model.ShiftSource(shift.ID), slot.Source())
		assert.Equal(t, time.Monday, slot.SlotStart.Weekday())
	}
}

func TestCreateShift_NonRecurringGivesOneSlot(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	in := ShiftInput{
		StartTime: time.Date(2024, 9, 5, 15, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 9, 5, 16, 30, 0, 0, time.UTC),
		Published: true,
	}
	_, generated, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), in)
	require.NoError(t, err)
	assert.Equal(t, 1, generated)

	slots, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, in.StartTime, slots[0].SlotStart)
	assert.Equal(t, in.EndTime, slots[0].SlotEnd)
}

func TestExpandShift_Idempotent(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	shift, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)

	generated, err := f.schedule.ExpandShift(f.ctx, actor(f.teacher), shift.ID)
	require.NoError(t, err)
	assert.Zero(t, generated)

	total, err := f.schedule.ExpandAll(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	slots, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, slots, 4)
}

func TestExpandAll_SlidesWindow(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	_, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)

	f.now = f.now.Add(7 * 24 * time.Hour)
	total, err := f.schedule.ExpandAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestCreateShift_UnpublishedDoesNotExpand(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	in := mondayShift()
	in.Published = false
	shift, generated, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), in)
	require.NoError(t, err)
	assert.Zero(t, generated)

	_, err = f.schedule.ExpandShift(f.ctx, actor(f.teacher), shift.ID)
	assert.True(t, apperr.IsConflict(err))
}

func TestCreateShift_Validation(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	tests := []struct {
		name string
		in   ShiftInput
	}{
		{"end before start", ShiftInput{
			StartTime: fixtureStart.Add(2 * time.Hour),
			EndTime:   fixtureStart.Add(time.Hour),
		}},
		{"bad rule", ShiftInput{
			StartTime:      fixtureStart.Add(time.Hour),
			EndTime:        fixtureStart.Add(2 * time.Hour),
			RecurrenceRule: "FREQ=SOMETIMES",
		}},
		{"hourly rule", ShiftInput{
			StartTime:      fixtureStart.Add(time.Hour),
			EndTime:        fixtureStart.Add(2 * time.Hour),
			RecurrenceRule: "FREQ=HOURLY",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), tt.in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestCreateShift_OnlyTeachers(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	_, _, err := f.schedule.CreateShift(f.ctx, actor(f.student), mondayShift())
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestDeleteShift_PreservesConsumedSlots(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)
	f.fund(t, f.student, 60)

	shift, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)

	slots, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	booked := slots[1]

	booking, err := f.bookings.Create(f.ctx, actor(f.student), booked.ID, 0)
	require.NoError(t, err)

	require.NoError(t, f.schedule.DeleteShift(f.ctx, actor(f.teacher), shift.ID))

	remaining, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	consumed, err := f.slots.GetByID(f.ctx, booked.ID)
	require.NoError(t, err)
	assert.False(t, consumed.IsBookable)
	assert.Equal(t, model.ShiftSource(shift.ID), consumed.Source())

	stored, err := f.bookRepo.GetByID(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booked.ID, stored.SlotID)
}

func TestUpdateShift_KeepsExistingSlots(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)
	f.fund(t, f.student, 60)

	shift, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)

	slots, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	_, err = f.bookings.Create(f.ctx, actor(f.student), slots[0].ID, 0)
	require.NoError(t, err)

	in := mondayShift()
	in.StartTime = in.StartTime.Add(2 * time.Hour)
	in.EndTime = in.EndTime.Add(2 * time.Hour)
	_, generated, err := f.schedule.UpdateShift(f.ctx, actor(f.teacher), shift.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 4, generated)

	// слоты старого шаблона остались как были
	for _, old := range slots {
		kept, err := f.slots.GetByID(f.ctx, old.ID)
		require.NoError(t, err)
		assert.Equal(t, old.SlotStart, kept.SlotStart)
		assert.Equal(t, old.SlotEnd, kept.SlotEnd)
	}

	free, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, free, 7)

	hours := map[int]int{}
	for _, s := range free {
		hours[s.SlotStart.Hour()]++
	}
	assert.Equal(t, map[int]int{9: 3, 11: 4}, hours)
}

func TestUpdateShift_OverlappingTemplateAddsNothing(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	shift, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)

	in := mondayShift()
	in.EndTime = in.EndTime.Add(30 * time.Minute)
	_, generated, err := f.schedule.UpdateShift(f.ctx, actor(f.teacher), shift.ID, in)
	require.NoError(t, err)
	assert.Zero(t, generated)

	free, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, free, 4)
	for _, s := range free {
		assert.Equal(t, time.Hour, s.SlotEnd.Sub(s.SlotStart))
	}
}

func TestUpdateShift_UnpublishRetractsFreeSlots(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	shift, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)

	in := mondayShift()
	in.Published = false
	_, _, err = f.schedule.UpdateShift(f.ctx, actor(f.teacher), shift.ID, in)
	require.NoError(t, err)

	free, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestManualSlot_RejectsOverlap(t *testing.T) {
	f := newFixture(t, DebitEarliestExpiry)

	start := time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC)
	slot := f.manualSlot(t, start, time.Hour)
	assert.Equal(t, model.SlotSourceManual, slot.Source())

	_, err := f.schedule.CreateManualSlot(f.ctx, actor(f.teacher), start.Add(30*time.Minute), start.Add(90*time.Minute))
	assert.True(t, apperr.IsConflict(err))

	_, err = f.schedule.CreateManualSlot(f.ctx, actor(f.teacher), fixtureStart.Add(-time.Hour), fixtureStart)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteSlot(t *testing.T) {
	f := newFixture(t, DebitDisabled)

	free := f.manualSlot(t, time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC), time.Hour)
	taken := f.manualSlot(t, time.Date(2024, 9, 3, 12, 0, 0, 0, time.UTC), time.Hour)
	_, err := f.bookings.Create(f.ctx, actor(f.student), taken.ID, 0)
	require.NoError(t, err)

	err = f.schedule.DeleteSlot(f.ctx, actor(f.student), free.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, f.schedule.DeleteSlot(f.ctx, actor(f.teacher), free.ID))
	_, err = f.slots.GetByID(f.ctx, free.ID)
	assert.True(t, apperr.IsNotFound(err))

	err = f.schedule.DeleteSlot(f.ctx, actor(f.teacher), taken.ID)
	assert.True(t, apperr.IsConflict(err))
}
