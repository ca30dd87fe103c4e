package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

// Transactor выполняет fn в одной транзакции хранилища. Репозитории,
// вызванные с переданным ctx, работают внутри этой транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ShiftRepository interface {
	Create(ctx context.Context, shift *model.Shift) error
	GetByID(ctx context.Context, id int64) (*model.Shift, error)
	Update(ctx context.Context, shift *model.Shift) error
	Delete(ctx context.Context, id int64) error
	GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.Shift, error)
	GetAllPublished(ctx context.Context) ([]*model.Shift, error)
}

type SlotRepository interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	// InsertGenerated вставляет слот смены, если (shift_id, slot_start) ещё нет.
	InsertGenerated(ctx context.Context, slot *model.AvailabilitySlot) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.AvailabilitySlot, error)
	ListBookable(ctx context.Context, teacherID int64, from, to time.Time, limit int) ([]*model.AvailabilitySlot, error)
	// HasOverlap проверяет пересечение с любым слотом учителя, свободным или занятым.
	HasOverlap(ctx context.Context, teacherID int64, start, end time.Time) (bool, error)
	// LockTeacher сериализует генерацию слотов одного учителя до конца транзакции.
	LockTeacher(ctx context.Context, teacherID int64) error
	// Claim атомарно снимает слот с продажи; false - слот уже занят.
	Claim(ctx context.Context, slotID int64) (bool, error)
	// Reopen возвращает слот в продажу; false - слот удалён, его смены больше нет или она снята с публикации.
	Reopen(ctx context.Context, slotID int64) (bool, error)
	DeleteBookable(ctx context.Context, slotID int64) (bool, error)
	RetractGenerated(ctx context.Context, shiftID int64) (int64, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	// UpdateStatus сохраняет статус и поля леджера, если текущий статус равен from.
	UpdateStatus(ctx context.Context, booking *model.Booking, from model.BookingStatus) (bool, error)
	GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.Booking, error)
	GetByStudentID(ctx context.Context, studentID int64) ([]*model.Booking, error)
	GetConfirmedEndedBefore(ctx context.Context, before time.Time) ([]*model.Booking, error)
	GetDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error)
	MarkReminded(ctx context.Context, id int64, at time.Time) (bool, error)
}

type TicketRepository interface {
	CreateProduct(ctx context.Context, product *model.TicketProduct) error
	GetProduct(ctx context.Context, id int64) (*model.TicketProduct, error)
	UpdateProduct(ctx context.Context, product *model.TicketProduct) error
	GetActiveProducts(ctx context.Context, teacherID int64) ([]*model.TicketProduct, error)
}

type BalanceRepository interface {
	// InsertIfAbsent вставляет баланс; false - баланс с таким payment_id уже есть.
	InsertIfAbsent(ctx context.Context, balance *model.TicketBalance) (bool, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*model.TicketBalance, error)
	GetByStudentID(ctx context.Context, studentID int64) ([]*model.TicketBalance, error)
	// GetDebitCandidates балансы студента у учителя, с которых можно списать minutes на момент now.
	GetDebitCandidates(ctx context.Context, studentID, teacherID int64, minutes int, now time.Time) ([]*model.TicketBalance, error)
	// Debit условно уменьшает остаток; false - остатка уже не хватает или баланс истёк.
	Debit(ctx context.Context, balanceID int64, minutes int, now time.Time) (bool, error)
	Refund(ctx context.Context, balanceID int64, minutes int) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetFirstStudentOfGuardian(ctx context.Context, guardianID int64) (*model.User, error)
	GetTeacherProfile(ctx context.Context, teacherID int64) (*model.TeacherProfile, error)
	GetTeacherProfileByHandle(ctx context.Context, handle string) (*model.TeacherProfile, error)
	UpsertTeacherProfile(ctx context.Context, profile *model.TeacherProfile) error
}

type UtilizationRepository interface {
	// Utilization считает слоты и занятые бронирования по учителям; teacherID 0 - все учителя.
	Utilization(ctx context.Context, from, to time.Time, teacherID int64) ([]*model.TeacherUtilization, error)
}

// Clock источник текущего времени, подменяется в тестах.
type Clock func() time.Time
