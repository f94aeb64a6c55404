package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/dmehra2102/medsupply-orders/internal/catalog/domain"
	"github.com/dmehra2102/medsupply-orders/internal/order/application"
	"github.com/dmehra2102/medsupply-orders/internal/order/domain"
	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/database"
	"github.com/dmehra2102/medsupply-orders/pkg/tracing"
)

const (
	idempotencyConstraint = "orders_idempotency_key_key"
	aggregateOrder        = "order"
)

const orderColumns = `o.id, o.customer_id, c.name, o.delivery_date, o.delivery_route,
	o.preferred_delivery_method, o.request_status, o.subtotal, o.vat_amount,
	o.total_amount, o.status, o.idempotency_key, o.created_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

var _ application.OrderRepository = (*Repository)(nil)

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, n domain.NewOrder) (domain.Order, bool, error) {
	if err := n.Validate(); err != nil {
		return domain.Order{}, false, err
	}
	if n.IdempotencyKey != "" {
		o, err := r.getByKey(ctx, n.IdempotencyKey)
		if err == nil {
			return o, true, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, false, err
		}
	}

	o, err := r.create(ctx, n)
	if constraint, ok := database.UniqueViolation(err); ok && constraint == idempotencyConstraint {
		// A concurrent request with the same key won the race.
		existing, gerr := r.getByKey(ctx, n.IdempotencyKey)
		if gerr != nil {
			return domain.Order{}, false, gerr
		}
		r.log.Info("idempotency race resolved", "order_id", existing.ID)
		return existing, true, nil
	}
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, false, nil
}

func (r *Repository) create(ctx context.Context, n domain.NewOrder) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, wrap("begin order tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	customerID, customerName, err := resolveCustomer(ctx, tx, n.Customer)
	if err != nil {
		return domain.Order{}, err
	}

	o := n.Order(customerID)
	o.CustomerName = customerName
	err = tx.QueryRow(ctx, `INSERT INTO orders (customer_id, delivery_date, delivery_route, preferred_delivery_method, request_status, status, idempotency_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`,
		customerID, o.DeliveryDate, o.DeliveryRoute, string(o.PreferredDeliveryMethod), string(o.RequestStatus), string(o.Status), nullable(o.IdempotencyKey),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, wrap("insert order", err)
	}

	for _, req := range n.Items {
		p, err := lookupProduct(ctx, tx, req)
		if err != nil {
			return domain.Order{}, err
		}
		o.AddItem(p, req.Quantity)
	}
	o.Finalize()
	if err := o.CheckLimits(); err != nil {
		return domain.Order{}, err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			o.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice, item.Subtotal)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range o.Items {
		if err := br.QueryRow().Scan(&o.Items[i].ID); err != nil {
			_ = br.Close()
			return domain.Order{}, wrap("insert order item", err)
		}
	}
	if err := br.Close(); err != nil {
		return domain.Order{}, wrap("insert order items", err)
	}

	if err := o.Verify(); err != nil {
		return domain.Order{}, fmt.Errorf("order %d totals: %w", o.ID, err)
	}
	_, err = tx.Exec(ctx, `UPDATE orders SET subtotal=$2, vat_amount=$3, total_amount=$4 WHERE id=$1`,
		o.ID, o.Subtotal, o.VATAmount, o.TotalAmount)
	if err != nil {
		return domain.Order{}, wrap("update order totals", err)
	}

	if err := insertOutbox(ctx, tx, o.ID, domain.EventOrderCreated, domain.NewOrderCreated(o)); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, wrap("commit order", err)
	}
	return o, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+`
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE o.id=$1`, id))
	if err != nil {
		return domain.Order{}, err
	}
	o.Items, err = r.items(ctx, o.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) getByKey(ctx context.Context, key string) (domain.Order, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM orders WHERE idempotency_key=$1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, wrap("lookup idempotency key", err)
	}
	return r.Get(ctx, id)
}

func (r *Repository) List(ctx context.Context, f application.ListFilter) ([]domain.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+`
		FROM orders o JOIN customers c ON c.id = o.customer_id
		WHERE ($1 = '' OR o.status = $1)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2`, string(f.Status), limit)
	if err != nil {
		return nil, wrap("list orders", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list orders", err)
	}
	return out, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Order{}, wrap("begin status tx", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var from string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, wrap("lock order", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, string(status)); err != nil {
		return domain.Order{}, wrap("update order status", err)
	}
	if domain.OrderStatus(from) != status {
		event := domain.OrderStatusChanged{OrderID: id, From: domain.OrderStatus(from), To: status}
		if err := insertOutbox(ctx, tx, id, domain.EventOrderStatusChanged, event); err != nil {
			return domain.Order{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, wrap("commit status", err)
	}
	return r.Get(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return wrap("delete order", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, wrap("load order items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		it := domain.OrderItem{OrderID: orderID}
		var productID *int64
		if err := rows.Scan(&it.ID, &productID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, wrap("scan order item", err)
		}
		if productID != nil {
			it.ProductID = *productID
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("load order items", err)
	}
	return items, nil
}

func resolveCustomer(ctx context.Context, tx pgx.Tx, c domain.Customer) (int64, string, error) {
	if key := c.EmailKey(); key != "" {
		var id int64
		var name string
		err := tx.QueryRow(ctx, `SELECT id, name FROM customers WHERE lower(email)=$1 ORDER BY id LIMIT 1`, key).Scan(&id, &name)
		if err == nil {
			return id, name, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, "", wrap("lookup customer", err)
		}
	}
	var id int64
	err := tx.QueryRow(ctx, `INSERT INTO customers (name, email, phone, delivery_address)
		VALUES ($1,$2,$3,$4)
		RETURNING id`,
		c.Name, nullable(c.Email), c.Phone, c.DeliveryAddress,
	).Scan(&id)
	if err != nil {
		return 0, "", wrap("insert customer", err)
	}
	return id, c.Name, nil
}

func lookupProduct(ctx context.Context, tx pgx.Tx, req domain.ItemRequest) (catalog.Product, error) {
	var row pgx.Row
	if req.ProductID > 0 {
		row = tx.QueryRow(ctx, `SELECT id, name, price FROM products WHERE id=$1 FOR SHARE`, req.ProductID)
	} else {
		row = tx.QueryRow(ctx, `SELECT id, name, price FROM products WHERE name=$1 FOR SHARE`, req.ProductName)
	}
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, &domain.ProductNotFoundError{ID: req.ProductID, Name: req.ProductName}
	}
	if err != nil {
		return catalog.Product{}, wrap("lookup product", err)
	}
	return p, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, orderID int64, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	headers := map[string]string{"content-type": "application/json"}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		aggregateOrder, strconv.FormatInt(orderID, 10), eventType, payload, headers, tracing.Traceparent(ctx))
	if err != nil {
		return wrap("insert outbox", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                      domain.Order
		method, urgency, state string
		key                    *string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.DeliveryDate, &o.DeliveryRoute,
		&method, &urgency, &o.Subtotal, &o.VATAmount, &o.TotalAmount, &state, &key, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, wrap("scan order", err)
	}
	o.PreferredDeliveryMethod = domain.DeliveryMethod(method)
	o.RequestStatus = domain.RequestStatus(urgency)
	o.Status = domain.OrderStatus(state)
	if key != nil {
		o.IdempotencyKey = *key
	}
	return o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// wrap keeps server-side rejections as plain errors and marks everything else
// (dropped connections, timeouts) as transient. Unique violations become
// constraint errors and data exceptions become validation errors.
func wrap(op string, err error) error {
	if database.IsServerError(err) {
		if constraint, ok := database.UniqueViolation(err); ok {
			return fmt.Errorf("%s: %w", op, errors.Join(err, &apperr.ConstraintError{Constraint: constraint}))
		}
		if msg, ok := database.DataException(err); ok {
			return fmt.Errorf("%s: %w", op, errors.Join(err, apperr.NewValidation("", msg)))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperr.Transient(op, err)
}
