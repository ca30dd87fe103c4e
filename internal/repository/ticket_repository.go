package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/Freeeeeet/tutor_scheduler/internal/repository/base"
)

const productColumns = `id, teacher_id, name, minutes, bundle_qty, price_cents, valid_days, is_active, created_at`

// TicketRepository хранит продукты-пакеты минут
type TicketRepository struct {
	*base.Repository
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{Repository: base.NewRepository(pool)}
}

func scanProduct(row rowScanner) (*model.TicketProduct, error) {
	var p model.TicketProduct
	err := row.Scan(
		&p.ID,
		&p.TeacherID,
		&p.Name,
		&p.Minutes,
		&p.BundleQty,
		&p.PriceCents,
		&p.ValidDays,
		&p.IsActive,
		&p.CreatedAt,
	)
	return &p, err
}

// CreateProduct создаёт продукт
func (r *TicketRepository) CreateProduct(ctx context.Context, product *model.TicketProduct) error {
	query := `
		INSERT INTO ticket_products (teacher_id, name, minutes, bundle_qty, price_cents, valid_days, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.QueryRow(
		ctx, query,
		product.TeacherID,
		product.Name,
		product.Minutes,
		product.BundleQty,
		product.PriceCents,
		product.ValidDays,
		product.IsActive,
	).Scan(&product.ID, &product.CreatedAt)

	if err != nil {
		return fmt.Errorf("create ticket product: %w", err)
	}

	return nil
}

// GetProduct получает продукт по ID
func (r *TicketRepository) GetProduct(ctx context.Context, id int64) (*model.TicketProduct, error) {
	query := `SELECT ` + productColumns + ` FROM ticket_products WHERE id = $1`

	product, err := scanProduct(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("ticket product %d not found", id)
		}
		return nil, fmt.Errorf("get ticket product: %w", err)
	}

	return product, nil
}

// UpdateProduct обновляет продукт
func (r *TicketRepository) UpdateProduct(ctx context.Context, product *model.TicketProduct) error {
	query := `
		UPDATE ticket_products
		SET name = $2, minutes = $3, bundle_qty = $4, price_cents = $5, valid_days = $6, is_active = $7
		WHERE id = $1
	`

	affected, err := r.ExecAffected(
		ctx, query,
		product.ID,
		product.Name,
		product.Minutes,
		product.BundleQty,
		product.PriceCents,
		product.ValidDays,
		product.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update ticket product: %w", err)
	}

	if affected == 0 {
		return apperr.NotFound("ticket product %d not found", product.ID)
	}

	return nil
}

// GetActiveProducts получает активные продукты учителя
func (r *TicketRepository) GetActiveProducts(ctx context.Context, teacherID int64) ([]*model.TicketProduct, error) {
	query := `
		SELECT ` + productColumns + `
		FROM ticket_products
		WHERE teacher_id = $1 AND is_active = true
		ORDER BY price_cents, id
	`

	rows, err := r.Query(ctx, query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get active ticket products: %w", err)
	}
	defer rows.Close()

	var products []*model.TicketProduct
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get active ticket products: %w", err)
	}

	return products, nil
}
