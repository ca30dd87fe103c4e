package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

func TestWithinTx_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	slots := NewSlotRepository(db)

	start := time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC)
	slot := &model.AvailabilitySlot{TeacherID: 1, SlotStart: start, SlotEnd: start.Add(time.Hour), IsBookable: true}
	require.NoError(t, slots.Create(ctx, slot))

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := slots.Claim(ctx, slot.ID)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := slots.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBookable)
}

func TestWithinTx_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	shifts := NewShiftRepository(db)

	err := db.WithinTx(ctx, func(ctx context.Context) error {
		return db.WithinTx(ctx, func(ctx context.Context) error {
			return shifts.Create(ctx, &model.Shift{TeacherID: 1})
		})
	})
	require.NoError(t, err)

	list, err := shifts.GetByTeacherID(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSlotRepository_InsertGeneratedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	slots := NewSlotRepository(NewDB())

	shiftID := int64(7)
	start := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	mk := func() *model.AvailabilitySlot {
		return &model.AvailabilitySlot{TeacherID: 1, SlotStart: start, SlotEnd: start.Add(time.Hour), ShiftID: &shiftID}
	}

	ok, err := slots.InsertGenerated(ctx, mk())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = slots.InsertGenerated(ctx, mk())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlotRepository_ReopenRemovesSlotOfMissingShift(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	shifts := NewShiftRepository(db)
	slots := NewSlotRepository(db)

	start := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)
	shift := &model.Shift{TeacherID: 1, StartTime: start, EndTime: start.Add(time.Hour), Published: true}
	require.NoError(t, shifts.Create(ctx, shift))

	live := &model.AvailabilitySlot{TeacherID: 1, SlotStart: start, SlotEnd: start.Add(time.Hour), ShiftID: &shift.ID}
	_, err := slots.InsertGenerated(ctx, live)
	require.NoError(t, err)
	_, err = slots.Claim(ctx, live.ID)
	require.NoError(t, err)

	reopened, err := slots.Reopen(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, reopened)

	_, err = slots.Claim(ctx, live.ID)
	require.NoError(t, err)
	require.NoError(t, shifts.Delete(ctx, shift.ID))

	reopened, err = slots.Reopen(ctx, live.ID)
	require.NoError(t, err)
	assert.False(t, reopened)

	_, err = slots.GetByID(ctx, live.ID)
	assert.True(t, apperr.IsNotFound(err))

	_, err = slots.Reopen(ctx, live.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestBookingRepository_OneActiveBookingPerSlot(t *testing.T) {
	ctx := context.Background()
	bookings := NewBookingRepository(NewDB())

	b := func(status model.BookingStatus) *model.Booking {
		return &model.Booking{TeacherID: 1, StudentID: 2, SlotID: 3, Status: status}
	}

	require.NoError(t, bookings.Create(ctx, b(model.BookingStatusCanceled)))
	require.NoError(t, bookings.Create(ctx, b(model.BookingStatusPending)))

	err := bookings.Create(ctx, b(model.BookingStatusConfirmed))
	assert.True(t, errors.Is(err, apperr.SlotUnavailable()))
}

func TestBalanceRepository_DebitGuards(t *testing.T) {
	ctx := context.Background()
	balances := NewBalanceRepository(NewDB())
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

	bal := &model.TicketBalance{StudentID: 1, TeacherID: 2, RemainingMinutes: 90, ExpiresAt: now.Add(time.Hour), PaymentID: "p1"}
	ok, err := balances.InsertIfAbsent(ctx, bal)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = balances.Debit(ctx, bal.ID, 60, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = balances.Debit(ctx, bal.ID, 60, now)
	require.NoError(t, err)
	assert.False(t, ok, "remaining would go negative")

	ok, err = balances.Debit(ctx, bal.ID, 30, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "expired")
}

func TestUserRepository_GuardianStudents(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	users := NewUserRepository(db)

	guardian := &model.User{Email: "p@example.com", Role: model.RoleGuardian}
	require.NoError(t, db.AddUser(ctx, guardian))

	_, err := users.GetFirstStudentOfGuardian(ctx, guardian.ID)
	assert.True(t, apperr.IsNotFound(err))

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := &model.User{Email: "b@example.com", Role: model.RoleStudent, GuardianID: &guardian.ID, CreatedAt: t0.Add(time.Hour)}
	first := &model.User{Email: "a@example.com", Role: model.RoleStudent, GuardianID: &guardian.ID, CreatedAt: t0}
	require.NoError(t, db.AddUser(ctx, second))
	require.NoError(t, db.AddUser(ctx, first))

	got, err := users.GetFirstStudentOfGuardian(ctx, guardian.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	err = db.AddUser(ctx, &model.User{Email: "A@example.com", Role: model.RoleStudent})
	assert.True(t, apperr.IsConflict(err))
}
