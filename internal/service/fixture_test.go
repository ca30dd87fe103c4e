package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/notify"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/memory"
)

var fixtureStart = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingSender) Send(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSender) kinds() map[notify.Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[notify.Kind]int)
	for _, m := range r.msgs {
		out[m.Kind]++
	}
	return out
}

type fixture struct {
	ctx context.Context
	now time.Time

	db       *memory.DB
	slots    *memory.SlotRepository
	bookRepo *memory.BookingRepository
	balances *memory.BalanceRepository

	schedule *ScheduleService
	bookings *BookingService
	ledger   *LedgerService
	util     *UtilizationService
	profiles *ProfileService
	notifier *Notifier
	sent     *recordingSender

	teacher   *model.User
	student   *model.User
	guardian  *model.User
	ward      *model.User // студент guardian
	guardian2 *model.User
	ward2     *model.User

	payments atomic.Int64
}

func newFixture(t *testing.T, policy DebitPolicy) *fixture {
	t.Helper()

	f := &fixture{ctx: context.Background(), now: fixtureStart}
	clock := func() time.Time { return f.now }
	logger := zap.NewNop()

	f.db = memory.NewDB().WithClock(clock)
	f.slots = memory.NewSlotRepository(f.db)
	f.bookRepo = memory.NewBookingRepository(f.db)
	f.balances = memory.NewBalanceRepository(f.db)
	shifts := memory.NewShiftRepository(f.db)
	users := memory.NewUserRepository(f.db)
	tickets := memory.NewTicketRepository(f.db)

	f.sent = &recordingSender{}
	f.notifier = NewNotifier(f.sent, users, time.Second, time.UTC, logger)
	f.schedule = NewScheduleService(f.db, shifts, f.slots, 28*24*time.Hour, time.UTC, clock, logger)
	f.ledger = NewLedgerService(tickets, f.balances, users, policy, clock, logger)
	f.bookings = NewBookingService(f.db, f.slots, f.bookRepo, users, f.ledger, f.notifier, 24*time.Hour, clock, logger)
	f.util = NewUtilizationService(memory.NewUtilizationRepository(f.db))
	f.profiles = NewProfileService(users, f.slots, tickets, 20, 28*24*time.Hour, clock, logger)

	f.teacher = f.addUser(t, "teacher@example.com", model.RoleTeacher, nil)
	f.student = f.addUser(t, "student@example.com", model.RoleStudent, nil)
	f.guardian = f.addUser(t, "parent1@example.com", model.RoleGuardian, nil)
	f.ward = f.addUser(t, "kid1@example.com", model.RoleStudent, &f.guardian.ID)
	f.guardian2 = f.addUser(t, "parent2@example.com", model.RoleGuardian, nil)
	f.ward2 = f.addUser(t, "kid2@example.com", model.RoleStudent, &f.guardian2.ID)

	return f
}

func (f *fixture) addUser(t *testing.T, email string, role model.Role, guardianID *int64) *model.User {
	t.Helper()
	u := &model.User{Email: email, DisplayName: email, Role: role, GuardianID: guardianID}
	require.NoError(t, f.db.AddUser(f.ctx, u))
	return u
}

func actor(u *model.User) model.Actor {
	return model.Actor{UserID: u.ID, Role: u.Role}
}

// manualSlot создаёт свободный слот учителя
func (f *fixture) manualSlot(t *testing.T, start time.Time, d time.Duration) *model.AvailabilitySlot {
	t.Helper()
	slot, err := f.schedule.CreateManualSlot(f.ctx, actor(f.teacher), start, start.Add(d))
	require.NoError(t, err)
	return slot
}

// fund зачисляет студенту minutes минут у учителя fixture
func (f *fixture) fund(t *testing.T, student *model.User, minutes int) *model.TicketBalance {
	t.Helper()

	product, err := f.ledger.CreateProduct(f.ctx, actor(f.teacher), ProductInput{
		Name:       "pack",
		Minutes:    minutes,
		BundleQty:  1,
		PriceCents: 1000,
		ValidDays:  30,
		IsActive:   true,
	})
	require.NoError(t, err)

	balance, created, err := f.ledger.Credit(f.ctx, model.PaymentCompleted{
		TicketID:   product.ID,
		PayerEmail: student.Email,
		AmountPaid: decimal.NewFromInt(10),
		PaymentID:  fmt.Sprintf("pay-%d", f.payments.Add(1)),
	})
	require.NoError(t, err)
	require.True(t, created)
	return balance
}

func (f *fixture) balance(t *testing.T, id int64) *model.TicketBalance {
	t.Helper()
	for _, u := range []*model.User{f.student, f.ward, f.ward2} {
		list, err := f.balances.GetByStudentID(f.ctx, u.ID)
		require.NoError(t, err)
		for _, b := range list {
			if b.ID == id {
				return b
			}
		}
	}
	t.Fatalf("balance %d not found", id)
	return nil
}
