// Package memory хранит все сущности сервиса в памяти процесса.
// Используется в тестах и при STORAGE=memory.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type state struct {
	seq      int64
	users    map[int64]*model.User
	profiles map[int64]*model.TeacherProfile
	shifts   map[int64]*model.Shift
	slots    map[int64]*model.AvailabilitySlot
	bookings map[int64]*model.Booking
	products map[int64]*model.TicketProduct
	balances map[int64]*model.TicketBalance
}

func newState() *state {
	return &state{
		users:    make(map[int64]*model.User),
		profiles: make(map[int64]*model.TeacherProfile),
		shifts:   make(map[int64]*model.Shift),
		slots:    make(map[int64]*model.AvailabilitySlot),
		bookings: make(map[int64]*model.Booking),
		products: make(map[int64]*model.TicketProduct),
		balances: make(map[int64]*model.TicketBalance),
	}
}

func cloneMap[V any](m map[int64]*V) map[int64]*V {
	out := make(map[int64]*V, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:      s.seq,
		users:    cloneMap(s.users),
		profiles: cloneMap(s.profiles),
		shifts:   cloneMap(s.shifts),
		slots:    cloneMap(s.slots),
		bookings: cloneMap(s.bookings),
		products: cloneMap(s.products),
		balances: cloneMap(s.balances),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// DB общее состояние всех репозиториев. Транзакция держит мьютекс целиком
// и откатывает состояние к снимку, если fn вернула ошибку.
type DB struct {
	mu    sync.Mutex
	data  *state
	clock func() time.Time
}

type txKey struct{}

func NewDB() *DB {
	return &DB{data: newState(), clock: time.Now}
}

// WithClock подменяет источник времени для created_at/updated_at.
func (db *DB) WithClock(clock func() time.Time) *DB {
	db.clock = clock
	return db
}

func (db *DB) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*DB)
	return ok && owner == db
}

// lock берёт мьютекс, если вызов не внутри транзакции этой же DB.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// WithinTx реализует service.Transactor.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.data = snapshot
		return err
	}
	return nil
}

// AddUser заводит пользователя справочника. Заменяет синхронизацию с сервисом идентификации.
func (db *DB) AddUser(ctx context.Context, user *model.User) error {
	if !user.Role.Valid() {
		return apperr.Validation("unknown role %q", user.Role)
	}

	unlock := db.lock(ctx)
	defer unlock()

	for _, u := range db.data.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperr.Conflict("user with email %q already exists", user.Email)
		}
	}

	user.ID = db.data.nextID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = db.clock()
	}
	c := *user
	db.data.users[user.ID] = &c
	return nil
}
