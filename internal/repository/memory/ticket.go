package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
)

type TicketRepository struct {
	db *DB
}

func NewTicketRepository(db *DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) CreateProduct(ctx context.Context, product *model.TicketProduct) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	product.ID = r.db.data.nextID()
	product.CreatedAt = r.db.clock()
	c := *product
	r.db.data.products[product.ID] = &c
	return nil
}

func (r *TicketRepository) GetProduct(ctx context.Context, id int64) (*model.TicketProduct, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	p, ok := r.db.data.products[id]
	if !ok {
		return nil, apperr.NotFound("ticket product %d not found", id)
	}
	c := *p
	return &c, nil
}

func (r *TicketRepository) UpdateProduct(ctx context.Context, product *model.TicketProduct) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	stored, ok := r.db.data.products[product.ID]
	if !ok {
		return apperr.NotFound("ticket product %d not found", product.ID)
	}

	product.TeacherID = stored.TeacherID
	product.CreatedAt = stored.CreatedAt
	c := *product
	r.db.data.products[product.ID] = &c
	return nil
}

func (r *TicketRepository) GetActiveProducts(ctx context.Context, teacherID int64) ([]*model.TicketProduct, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	var products []*model.TicketProduct
	for _, p := range r.db.data.products {
		if p.TeacherID == teacherID && p.IsActive {
			c := *p
			products = append(products, &c)
		}
	}
	slices.SortFunc(products, func(a, b *model.TicketProduct) int {
		if n := cmp.Compare(a.PriceCents, b.PriceCents); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return products, nil
}

type BalanceRepository struct {
	db *DB
}

func NewBalanceRepository(db *DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) InsertIfAbsent(ctx context.Context, balance *model.TicketBalance) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	for _, b := range r.db.data.balances {
		if b.PaymentID == balance.PaymentID {
			return false, nil
		}
	}

	balance.ID = r.db.data.nextID()
	c := *balance
	r.db.data.balances[balance.ID] = &c
	return true, nil
}

func (r *BalanceRepository) GetByPaymentID(ctx context.Context, paymentID string) (*model.TicketBalance, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	for _, b := range r.db.data.balances {
		if b.PaymentID == paymentID {
			c := *b
			return &c, nil
		}
	}
	return nil, apperr.NotFound("balance for payment %q not found", paymentID)
}

func (r *BalanceRepository) GetByStudentID(ctx context.Context, studentID int64) ([]*model.TicketBalance, error) {
	return r.filter(ctx, func(b *model.TicketBalance) bool { return b.StudentID == studentID }), nil
}

func (r *BalanceRepository) GetDebitCandidates(ctx context.Context, studentID, teacherID int64, minutes int, now time.Time) ([]*model.TicketBalance, error) {
	return r.filter(ctx, func(b *model.TicketBalance) bool {
		return b.StudentID == studentID &&
			b.TeacherID == teacherID &&
			b.RemainingMinutes >= minutes &&
			now.Before(b.ExpiresAt)
	}), nil
}

func (r *BalanceRepository) Debit(ctx context.Context, balanceID int64, minutes int, now time.Time) (bool, error) {
	unlock := r.db.lock(ctx)
	defer unlock()

	b, ok := r.db.data.balances[balanceID]
	if !ok || b.RemainingMinutes < minutes || !now.Before(b.ExpiresAt) {
		return false, nil
	}
	b.RemainingMinutes -= minutes
	return true, nil
}

func (r *BalanceRepository) Refund(ctx context.Context, balanceID int64, minutes int) error {
	unlock := r.db.lock(ctx)
	defer unlock()

	b, ok := r.db.data.balances[balanceID]
	if !ok {
		return apperr.NotFound("balance %d not found", balanceID)
	}
	b.RemainingMinutes += minutes
	return nil
}

func (r *BalanceRepository) filter(ctx context.Context, keep func(*model.TicketBalance) bool) []*model.TicketBalance {
	unlock := r.db.lock(ctx)
	defer unlock()

	var balances []*model.TicketBalance
	for _, b := range r.db.data.balances {
		if keep(b) {
			c := *b
			balances = append(balances, &c)
		}
	}
	slices.SortFunc(balances, func(a, b *model.TicketBalance) int {
		if n := a.ExpiresAt.Compare(b.ExpiresAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return balances
}
