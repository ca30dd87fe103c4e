package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

func TestUtilizationReport(t *testing.T) {
	f := newFixture(t, DebitDisabled)
	admin := f.addUser(t, "admin@example.com", model.RoleAdmin, nil)
	idle := f.addUser(t, "idle@example.com", model.RoleTeacher, nil)

	_, _, err := f.schedule.CreateShift(f.ctx, actor(f.teacher), mondayShift())
	require.NoError(t, err)

	slots, err := f.schedule.ListBookable(f.ctx, f.teacher.ID, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	_, err = f.bookings.Create(f.ctx, actor(f.student), slots[0].ID, 0)
	require.NoError(t, err)

	from, to := fixtureStart, fixtureStart.AddDate(0, 1, 0)

	report, err := f.util.Report(f.ctx, actor(admin), from, to)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, f.teacher.ID, report[0].TeacherID)
	assert.Equal(t, 4, report[0].TotalSlots)
	assert.Equal(t, 1, report[0].SlotsBooked)
	assert.InDelta(t, 0.25, report[0].UtilizationRate, 1e-9)

	row, err := f.util.ForTeacher(f.ctx, actor(idle), idle.ID, from, to)
	require.NoError(t, err)
	assert.Zero(t, row.TotalSlots)
	assert.Zero(t, row.UtilizationRate)

	_, err = f.util.Report(f.ctx, actor(f.teacher), from, to)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.util.Report(f.ctx, actor(admin), to, from)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUtilization_CanceledBookingsNotCounted(t *testing.T) {
	f := newFixture(t, DebitDisabled)
	admin := f.addUser(t, "admin@example.com", model.RoleAdmin, nil)

	slot := f.manualSlot(t, time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC), time.Hour)
	booking, err := f.bookings.Create(f.ctx, actor(f.student), slot.ID, 0)
	require.NoError(t, err)
	_, err = f.bookings.Cancel(f.ctx, actor(f.student), booking.ID)
	require.NoError(t, err)

	report, err := f.util.Report(f.ctx, actor(admin), fixtureStart, fixtureStart.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, 1, report[0].TotalSlots)
	assert.Zero(t, report[0].SlotsBooked)
	assert.Zero(t, report[0].UtilizationRate)
}
