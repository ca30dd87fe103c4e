package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBookingStatus(t *testing.T) {
	tests := []struct {
		from BookingStatus
		ev   BookingEvent
		want BookingStatus
		ok   bool
	}{
		{BookingStatusPending, BookingEventApprove, BookingStatusConfirmed, true},
		{BookingStatusPending, BookingEventReject, BookingStatusCanceled, true},
		{BookingStatusPending, BookingEventCancel, BookingStatusCanceled, true},
		{BookingStatusConfirmed, BookingEventCancel, BookingStatusCanceled, true},
		{BookingStatusConfirmed, BookingEventComplete, BookingStatusDone, true},
		{BookingStatusConfirmed, BookingEventApprove, "", false},
		{BookingStatusPending, BookingEventComplete, "", false},
		{BookingStatusCanceled, BookingEventApprove, "", false},
		{BookingStatusDone, BookingEventCancel, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			got, ok := NextBookingStatus(tt.from, tt.ev)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, s := range []BookingStatus{BookingStatusCanceled, BookingStatusDone} {
		require.True(t, s.Terminal())
		for _, ev := range []BookingEvent{BookingEventApprove, BookingEventReject, BookingEventCancel, BookingEventComplete} {
			_, ok := NextBookingStatus(s, ev)
			assert.False(t, ok, "%s --%s--> should be rejected", s, ev)
		}
	}
}

func TestEffectiveStatus_ConfirmedInPastIsDone(t *testing.T) {
	b := &Booking{
		StartTime: time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 9, 1, 11, 0, 0, 0, time.UTC),
		Status:    BookingStatusConfirmed,
	}

	assert.Equal(t, BookingStatusDone, b.EffectiveStatus(time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, BookingStatusConfirmed, b.EffectiveStatus(time.Date(2024, 9, 1, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, BookingStatusConfirmed, b.Status, "derived status must not mutate the booking")

	b.Status = BookingStatusPending
	assert.Equal(t, BookingStatusPending, b.EffectiveStatus(time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)))
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	b := &Booking{StartTime: start, EndTime: start.Add(45 * time.Minute)}
	assert.Equal(t, 45, b.DurationMinutes())

	b.EndTime = start.Add(45*time.Minute + 10*time.Second)
	assert.Equal(t, 46, b.DurationMinutes())
}

func TestSlotSource(t *testing.T) {
	id := int64(42)
	assert.Equal(t, "manual", (&AvailabilitySlot{}).Source())
	assert.Equal(t, "shift:42", (&AvailabilitySlot{ShiftID: &id}).Source())
}

func TestComputeRate_ZeroSlots(t *testing.T) {
	u := TeacherUtilization{TotalSlots: 0, SlotsBooked: 0}
	u.ComputeRate()
	assert.Equal(t, 0.0, u.UtilizationRate)

	u = TeacherUtilization{TotalSlots: 4, SlotsBooked: 1}
	u.ComputeRate()
	assert.InDelta(t, 0.25, u.UtilizationRate, 1e-9)
}
