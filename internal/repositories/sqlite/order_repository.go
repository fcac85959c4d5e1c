package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

type orderRepository struct {
	provider *Provider
}

// NewOrderRepository builds the SQLite-backed order repository.
func NewOrderRepository(provider *Provider) (repositories.OrderRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("sqlite provider is required")
	}
	return &orderRepository{provider: provider}, nil
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	const query = `
		INSERT INTO orders (id, number, client_id, status, contact_name, contact_email,
			contact_phone, total, currency, staff_note, processed_by, processed_at,
			completed_at, cancelled_at, cancel_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	q := r.provider.q(ctx)
	_, err := q.ExecContext(ctx, query,
		order.ID, order.Number, order.ClientID, order.Status,
		order.ContactName, order.ContactEmail, order.ContactPhone,
		order.Total, order.Currency, order.StaffNote,
		nullableString(order.ProcessedBy), nullableTime(order.ProcessedAt),
		nullableTime(order.CompletedAt), nullableTime(order.CancelledAt),
		nullableString(order.CancelReason), order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return wrapError("orders.insert", err)
	}

	const itemQuery = `
		INSERT INTO order_items (id, order_id, product_id, company_id, product_name, sku, quantity, unit_price, subtotal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, item := range order.Items {
		if _, err := q.ExecContext(ctx, itemQuery,
			item.ID, item.OrderID, item.ProductID, item.CompanyID,
			item.ProductName, item.SKU, item.Quantity, item.UnitPrice, item.Subtotal); err != nil {
			return wrapError("orders.insert_item", err)
		}
	}
	return nil
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) error {
	const query = `
		UPDATE orders
		SET status = ?, staff_note = ?, processed_by = ?, processed_at = ?,
			completed_at = ?, cancelled_at = ?, cancel_reason = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.provider.q(ctx).ExecContext(ctx, query,
		order.Status, order.StaffNote,
		nullableString(order.ProcessedBy), nullableTime(order.ProcessedAt),
		nullableTime(order.CompletedAt), nullableTime(order.CancelledAt),
		nullableString(order.CancelReason), order.UpdatedAt, order.ID)
	if err != nil {
		return wrapError("orders.update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("orders.update")
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (domain.Order, error) {
	const query = `
		SELECT id, number, client_id, status, contact_name, contact_email, contact_phone,
			total, currency, staff_note, processed_by, processed_at, completed_at,
			cancelled_at, cancel_reason, created_at, updated_at
		FROM orders WHERE id = ?
	`
	order, err := scanOrder(r.provider.q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, notFoundError("orders.find_by_id")
	}
	if err != nil {
		return domain.Order{}, wrapError("orders.find_by_id", err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ClientID != "" {
		conds = append(conds, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}

	query := `
		SELECT id, number, client_id, status, contact_name, contact_email, contact_phone,
			total, currency, staff_note, processed_by, processed_at, completed_at,
			cancelled_at, cancel_reason, created_at, updated_at
		FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.provider.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("orders.list", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, wrapError("orders.list", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("orders.list", err)
	}
	return orders, nil
}

func (r *orderRepository) listItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const query = `
		SELECT id, order_id, product_id, company_id, product_name, sku, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = ? ORDER BY id
	`
	rows, err := r.provider.q(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, wrapError("orders.list_items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.CompanyID,
			&item.ProductName, &item.SKU, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, wrapError("orders.list_items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("orders.list_items", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order        domain.Order
		processedBy  sql.NullString
		processedAt  sql.NullTime
		completedAt  sql.NullTime
		cancelledAt  sql.NullTime
		cancelReason sql.NullString
	)
	err := row.Scan(&order.ID, &order.Number, &order.ClientID, &order.Status,
		&order.ContactName, &order.ContactEmail, &order.ContactPhone,
		&order.Total, &order.Currency, &order.StaffNote,
		&processedBy, &processedAt, &completedAt, &cancelledAt, &cancelReason,
		&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	if processedBy.Valid {
		order.ProcessedBy = &processedBy.String
	}
	if processedAt.Valid {
		t := processedAt.Time
		order.ProcessedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		order.CompletedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		order.CancelledAt = &t
	}
	if cancelReason.Valid {
		order.CancelReason = &cancelReason.String
	}
	return order, nil
}
