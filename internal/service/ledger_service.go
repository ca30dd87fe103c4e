package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

// DebitPolicy порядок, в котором выбираются балансы для списания.
type DebitPolicy string

const (
	DebitEarliestExpiry DebitPolicy = "earliest_expiry"
	DebitOldestPurchase DebitPolicy = "oldest_purchase"
	DebitDisabled       DebitPolicy = "disabled" // подтверждение без списания
)

// ParseDebitPolicy разбирает значение LEDGER_DEBIT_POLICY
func ParseDebitPolicy(s string) (DebitPolicy, error) {
	switch p := DebitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DebitEarliestExpiry, nil
	case DebitEarliestExpiry, DebitOldestPurchase, DebitDisabled:
		return p, nil
	}
	return "", fmt.Errorf("unknown debit policy %q", s)
}

// ProductInput поля продукта, которые задаёт учитель.
type ProductInput struct {
	Name       string
	Minutes    int
	BundleQty  int
	PriceCents int64
	ValidDays  int
	IsActive   bool
}

func (in ProductInput) validate() error {
	if in.Minutes <= 0 {
		return apperr.Validation("minutes must be positive")
	}
	if in.BundleQty <= 0 {
		return apperr.Validation("bundle quantity must be positive")
	}
	if in.ValidDays <= 0 {
		return apperr.Validation("valid days must be positive")
	}
	if in.PriceCents < 0 {
		return apperr.Validation("price cannot be negative")
	}
	return nil
}

// LedgerService продукты, зачисления по оплатам и списания минут.
type LedgerService struct {
	tickets  TicketRepository
	balances BalanceRepository
	users    UserRepository
	policy   DebitPolicy
	now      Clock
	logger   *zap.Logger
}

func NewLedgerService(
	tickets TicketRepository,
	balances BalanceRepository,
	users UserRepository,
	policy DebitPolicy,
	now Clock,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		tickets:  tickets,
		balances: balances,
		users:    users,
		policy:   policy,
		now:      now,
		logger:   logger,
	}
}

// CreateProduct создаёт продукт учителя
func (s *LedgerService) CreateProduct(ctx context.Context, actor model.Actor, in ProductInput) (*model.TicketProduct, error) {
	if err := requireRole(actor, model.RoleTeacher); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &model.TicketProduct{
		TeacherID:  actor.UserID,
		Name:       in.Name,
		Minutes:    in.Minutes,
		BundleQty:  in.BundleQty,
		PriceCents: in.PriceCents,
		ValidDays:  in.ValidDays,
		IsActive:   in.IsActive,
	}
	if err := s.tickets.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Ticket product created",
		zap.Int64("product_id", product.ID),
		zap.Int64("teacher_id", product.TeacherID),
		zap.Int("total_minutes", product.TotalMinutes()))

	return product, nil
}

// UpdateProduct обновляет продукт. Уже купленные балансы не меняются.
func (s *LedgerService) UpdateProduct(ctx context.Context, actor model.Actor, id int64, in ProductInput) (*model.TicketProduct, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	product, err := s.tickets.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireTeacherOwner(actor, product.TeacherID); err != nil {
		return nil, err
	}

	product.Name = in.Name
	product.Minutes = in.Minutes
	product.BundleQty = in.BundleQty
	product.PriceCents = in.PriceCents
	product.ValidDays = in.ValidDays
	product.IsActive = in.IsActive

	if err := s.tickets.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// ListActiveProducts возвращает продаваемые продукты учителя
func (s *LedgerService) ListActiveProducts(ctx context.Context, teacherID int64) ([]*model.TicketProduct, error) {
	return s.tickets.GetActiveProducts(ctx, teacherID)
}

// Credit зачисляет минуты по успешной оплате. Повтор того же PaymentID
// возвращает ранее созданный баланс и created=false.
func (s *LedgerService) Credit(ctx context.Context, ev model.PaymentCompleted) (*model.TicketBalance, bool, error) {
	if strings.TrimSpace(ev.PaymentID) == "" {
		return nil, false, apperr.Validation("payment id is required")
	}

	product, err := s.tickets.GetProduct(ctx, ev.TicketID)
	if err != nil {
		return nil, false, err
	}

	student, err := s.resolveStudent(ctx, ev)
	if err != nil {
		return nil, false, err
	}

	if !ev.AmountPaid.Equal(product.PriceAmount()) {
		s.logger.Warn("Payment amount differs from product price",
			zap.String("payment_id", ev.PaymentID),
			zap.Int64("product_id", product.ID),
			zap.String("paid", ev.AmountPaid.String()),
			zap.String("price", product.PriceAmount().String()))
	}
	if !product.IsActive {
		s.logger.Warn("Payment for inactive product",
			zap.String("payment_id", ev.PaymentID),
			zap.Int64("product_id", product.ID))
	}

	now := s.now()
	balance := &model.TicketBalance{
		StudentID:        student.ID,
		TicketID:         product.ID,
		TeacherID:        product.TeacherID,
		RemainingMinutes: product.TotalMinutes(),
		PurchasedAt:      now,
		ExpiresAt:        now.AddDate(0, 0, product.ValidDays),
		PaymentID:        ev.PaymentID,
	}

	created, err := s.balances.InsertIfAbsent(ctx, balance)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.balances.GetByPaymentID(ctx, ev.PaymentID)
		if err != nil {
			return nil, false, err
		}
		s.logger.Info("Duplicate payment ignored",
			zap.String("payment_id", ev.PaymentID),
			zap.Int64("balance_id", existing.ID))
		return existing, false, nil
	}

	s.logger.Info("Balance credited",
		zap.String("payment_id", ev.PaymentID),
		zap.Int64("balance_id", balance.ID),
		zap.Int64("student_id", balance.StudentID),
		zap.Int("minutes", balance.RemainingMinutes),
		zap.Time("expires_at", balance.ExpiresAt))

	return balance, true, nil
}

// resolveStudent: явный StudentID важнее email; опекун платит за самого раннего своего студента.
func (s *LedgerService) resolveStudent(ctx context.Context, ev model.PaymentCompleted) (*model.User, error) {
	if ev.StudentID != nil {
		student, err := s.users.GetByID(ctx, *ev.StudentID)
		if err != nil {
			return nil, err
		}
		if student.Role != model.RoleStudent {
			return nil, apperr.Validation("user %d is not a student", student.ID)
		}
		return student, nil
	}

	payer, err := s.users.GetByEmail(ctx, ev.PayerEmail)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Validation("unknown payer %q", ev.PayerEmail)
		}
		return nil, err
	}

	switch payer.Role {
	case model.RoleStudent:
		return payer, nil
	case model.RoleGuardian:
		student, err := s.users.GetFirstStudentOfGuardian(ctx, payer.ID)
		if err != nil {
			if apperr.IsNotFound(err) {
				return nil, apperr.Validation("guardian %q has no students", ev.PayerEmail)
			}
			return nil, err
		}
		return student, nil
	}
	return nil, apperr.Validation("payer %q cannot own a balance", ev.PayerEmail)
}

// DebitForBooking списывает минуты занятия. Вызывается внутри транзакции
// перехода в confirmed; при успехе заполняет TicketBalanceID и DebitedMinutes.
func (s *LedgerService) DebitForBooking(ctx context.Context, booking *model.Booking) error {
	if s.policy == DebitDisabled {
		return nil
	}

	minutes := booking.DurationMinutes()
	now := s.now()

	candidates, err := s.balances.GetDebitCandidates(ctx, booking.StudentID, booking.TeacherID, minutes, now)
	if err != nil {
		return err
	}
	s.order(candidates)

	for _, b := range candidates {
		ok, err := s.balances.Debit(ctx, b.ID, minutes, now)
		if err != nil {
			return err
		}
		if !ok {
			// баланс перехватила параллельная транзакция
			continue
		}

		id := b.ID
		booking.TicketBalanceID = &id
		booking.DebitedMinutes = minutes
		return nil
	}

	available, err := s.usableMinutes(ctx, booking.StudentID, booking.TeacherID, now)
	if err != nil {
		return err
	}
	return &apperr.InsufficientBalanceError{
		StudentID: booking.StudentID,
		TeacherID: booking.TeacherID,
		Requested: minutes,
		Available: available,
	}
}

// RefundBooking возвращает списанные минуты на тот же баланс
func (s *LedgerService) RefundBooking(ctx context.Context, booking *model.Booking) error {
	if booking.TicketBalanceID == nil || booking.DebitedMinutes == 0 {
		return nil
	}

	if err := s.balances.Refund(ctx, *booking.TicketBalanceID, booking.DebitedMinutes); err != nil {
		return fmt.Errorf("refund booking %d: %w", booking.ID, err)
	}

	s.logger.Info("Minutes refunded",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("balance_id", *booking.TicketBalanceID),
		zap.Int("minutes", booking.DebitedMinutes))

	booking.DebitedMinutes = 0
	return nil
}

func (s *LedgerService) order(candidates []*model.TicketBalance) {
	slices.SortStableFunc(candidates, func(a, b *model.TicketBalance) int {
		var n int
		if s.policy == DebitOldestPurchase {
			n = a.PurchasedAt.Compare(b.PurchasedAt)
		} else {
			n = a.ExpiresAt.Compare(b.ExpiresAt)
		}
		if n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func (s *LedgerService) usableMinutes(ctx context.Context, studentID, teacherID int64, now time.Time) (int, error) {
	balances, err := s.balances.GetByStudentID(ctx, studentID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, b := range balances {
		if b.TeacherID == teacherID && b.UsableAt(now) {
			total += b.RemainingMinutes
		}
	}
	return total, nil
}

// Balances сводка балансов студента для него самого, опекуна или администратора
func (s *LedgerService) Balances(ctx context.Context, actor model.Actor, studentID int64) (*model.BalanceSummary, error) {
	if actor.Role != model.RoleAdmin {
		ok, err := actsForStudent(ctx, s.users, actor, studentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("not allowed to view balances of student %d", studentID)
		}
	}

	balances, err := s.balances.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	summary := &model.BalanceSummary{StudentID: studentID, Balances: balances}
	for _, b := range balances {
		if b.UsableAt(now) {
			summary.UsableMinutes += b.RemainingMinutes
		} else if !now.Before(b.ExpiresAt) {
			summary.ExpiredMinutes += b.RemainingMinutes
		}
	}
	if summary.Balances == nil {
		summary.Balances = []*model.TicketBalance{}
	}
	return summary, nil
}
