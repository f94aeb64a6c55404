package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/medsupply-orders/internal/catalog/application"
	"github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/database"
)

const productColumns = `id, name, description, price, unit, stock_quantity, created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

var (
	_ application.ProductRepository = (*Repository)(nil)
	_ application.StockRepository   = (*Repository)(nil)
)

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO products (name, description, price, unit, stock_quantity)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+productColumns,
		p.Name, p.Description, p.Price, p.Unit, p.StockQuantity)
	created, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, mapErr("insert product", p.Name, err)
	}
	return created, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		return domain.Product{}, mapErr("get product", "", err)
	}
	return p, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	row := r.pool.QueryRow(ctx, `UPDATE products
		SET name=$2, description=$3, price=$4, unit=$5, stock_quantity=$6, updated_at=now()
		WHERE id=$1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Price, p.Unit, p.StockQuantity)
	updated, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, mapErr("update product", p.Name, err)
	}
	return updated, nil
}

// DeleteProduct leaves order items in place; their product_id is nulled and the
// name and price snapshots survive.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapErr("delete product", "", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, mapErr("list products", "", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapErr("scan product", "", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list products", "", err)
	}
	return out, nil
}

func (r *Repository) ApplyStockMovements(ctx context.Context, movements []domain.StockMovement) error {
	batch := &pgx.Batch{}
	for _, m := range movements {
		batch.Queue(`UPDATE products SET stock_quantity=GREATEST(stock_quantity-$2, 0), updated_at=now() WHERE id=$1`,
			m.ProductID, m.Quantity)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return mapErr("apply stock movements", "", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Unit, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func mapErr(op, name string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if constraint, ok := database.UniqueViolation(err); ok {
		return &apperr.ConstraintError{Constraint: constraint, Message: fmt.Sprintf("product %q already exists", name)}
	}
	if msg, ok := database.DataException(err); ok {
		return apperr.NewValidation("", fmt.Sprintf("product %q: %s", name, msg))
	}
	if database.IsServerError(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperr.Transient(op, err)
}
