package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
)

const balanceColumns = `id, student_id, ticket_id, teacher_id, remaining_minutes, purchased_at, expires_at, payment_id`

// BalanceRepository леджер купленных минут
type BalanceRepository struct {
	*base.Repository
}

func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{Repository: base.NewRepository(pool)}
}

func scanBalance(row rowScanner) (*model.TicketBalance, error) {
	var b model.TicketBalance
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.TicketID,
		&b.TeacherID,
		&b.RemainingMinutes,
		&b.PurchasedAt,
		&b.ExpiresAt,
		&b.PaymentID,
	)
	return &b, err
}

// InsertIfAbsent зачисляет покупку; повтор того же payment_id ничего не делает
func (r *BalanceRepository) InsertIfAbsent(ctx context.Context, balance *model.TicketBalance) (bool, error) {
	query := `
		INSERT INTO ticket_balances (student_id, ticket_id, teacher_id, remaining_minutes, purchased_at, expires_at, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (payment_id) DO NOTHING
		RETURNING id
	`

	err := r.QueryRow(
		ctx, query,
		balance.StudentID,
		balance.TicketID,
		balance.TeacherID,
		balance.RemainingMinutes,
		balance.PurchasedAt,
		balance.ExpiresAt,
		balance.PaymentID,
	).Scan(&balance.ID)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert ticket balance: %w", err)
	}

	return true, nil
}

// GetByPaymentID получает баланс по идентификатору платежа
func (r *BalanceRepository) GetByPaymentID(ctx context.Context, paymentID string) (*model.TicketBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM ticket_balances WHERE payment_id = $1`

	balance, err := scanBalance(r.QueryRow(ctx, query, paymentID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("balance for payment %q not found", paymentID)
		}
		return nil, fmt.Errorf("get balance by payment: %w", err)
	}

	return balance, nil
}

// GetByStudentID получает все балансы студента
func (r *BalanceRepository) GetByStudentID(ctx context.Context, studentID int64) ([]*model.TicketBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM ticket_balances WHERE student_id = $1 ORDER BY expires_at, id`

	return r.list(ctx, "get balances by student", query, studentID)
}

// GetDebitCandidates получает балансы, которых хватает на занятие
func (r *BalanceRepository) GetDebitCandidates(ctx context.Context, studentID, teacherID int64, minutes int, now time.Time) ([]*model.TicketBalance, error) {
	query := `
		SELECT ` + balanceColumns + `
		FROM ticket_balances
		WHERE student_id = $1
		  AND teacher_id = $2
		  AND remaining_minutes >= $3
		  AND expires_at > $4
		ORDER BY expires_at, id
	`

	return r.list(ctx, "get debit candidates", query, studentID, teacherID, minutes, now)
}

// Debit списывает минуты с баланса, не допуская отрицательного остатка
func (r *BalanceRepository) Debit(ctx context.Context, balanceID int64, minutes int, now time.Time) (bool, error) {
	query := `
		UPDATE ticket_balances
		SET remaining_minutes = remaining_minutes - $2
		WHERE id = $1 AND remaining_minutes >= $2 AND expires_at > $3
	`

	affected, err := r.ExecAffected(ctx, query, balanceID, minutes, now)
	if err != nil {
		return false, fmt.Errorf("debit balance: %w", err)
	}

	return affected == 1, nil
}

// Refund возвращает минуты на баланс
func (r *BalanceRepository) Refund(ctx context.Context, balanceID int64, minutes int) error {
	query := `UPDATE ticket_balances SET remaining_minutes = remaining_minutes + $2 WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, balanceID, minutes)
	if err != nil {
		return fmt.Errorf("refund balance: %w", err)
	}

	if affected == 0 {
		return apperr.NotFound("balance %d not found", balanceID)
	}

	return nil
}

func (r *BalanceRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.TicketBalance, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var balances []*model.TicketBalance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, balance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return balances, nil
}
