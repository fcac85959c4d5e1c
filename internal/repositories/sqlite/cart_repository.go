package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

type cartRepository struct {
	provider *Provider
}

// NewCartRepository builds the SQLite-backed cart repository.
func NewCartRepository(provider *Provider) (repositories.CartRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("sqlite provider is required")
	}
	return &cartRepository{provider: provider}, nil
}

func (r *cartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	const query = `
		INSERT INTO carts (id, number, client_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.provider.q(ctx).ExecContext(ctx, query,
		cart.ID, cart.Number, cart.ClientID, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		return wrapError("carts.insert", err)
	}
	return nil
}

func (r *cartRepository) FindByID(ctx context.Context, id string) (domain.Cart, error) {
	const query = `
		SELECT id, number, client_id, created_at, updated_at
		FROM carts WHERE id = ?
	`
	var cart domain.Cart
	err := r.provider.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&cart.ID, &cart.Number, &cart.ClientID, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, notFoundError("carts.find_by_id")
	}
	if err != nil {
		return domain.Cart{}, wrapError("carts.find_by_id", err)
	}

	items, err := r.listItems(ctx, id)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Items = items
	return cart, nil
}

func (r *cartRepository) listItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	const query = `
		SELECT id, cart_id, product_id, quantity, price_snapshot, price_tier, added_at, updated_at
		FROM cart_items WHERE cart_id = ? ORDER BY added_at, id
	`
	rows, err := r.provider.q(ctx).QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, wrapError("carts.list_items", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		var updatedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&item.PriceSnapshot, &item.PriceTier, &item.AddedAt, &updatedAt); err != nil {
			return nil, wrapError("carts.list_items", err)
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			item.UpdatedAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("carts.list_items", err)
	}
	return items, nil
}

func (r *cartRepository) Delete(ctx context.Context, id string) error {
	q := r.provider.q(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, id); err != nil {
		return wrapError("carts.delete", err)
	}
	res, err := q.ExecContext(ctx, `DELETE FROM carts WHERE id = ?`, id)
	if err != nil {
		return wrapError("carts.delete", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("carts.delete")
	}
	return nil
}

func (r *cartRepository) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := r.provider.q(ctx).ExecContext(ctx,
		`UPDATE carts SET updated_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return wrapError("carts.touch", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("carts.touch")
	}
	return nil
}

func (r *cartRepository) InsertItem(ctx context.Context, item domain.CartItem) error {
	const query = `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price_snapshot, price_tier, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.provider.q(ctx).ExecContext(ctx, query,
		item.ID, item.CartID, item.ProductID, item.Quantity,
		item.PriceSnapshot, item.PriceTier, item.AddedAt, nullableTime(item.UpdatedAt))
	if err != nil {
		return wrapError("carts.insert_item", err)
	}
	return nil
}

func (r *cartRepository) UpdateItem(ctx context.Context, item domain.CartItem) error {
	const query = `
		UPDATE cart_items
		SET quantity = ?, price_snapshot = ?, price_tier = ?, updated_at = ?
		WHERE cart_id = ? AND id = ?
	`
	res, err := r.provider.q(ctx).ExecContext(ctx, query,
		item.Quantity, item.PriceSnapshot, item.PriceTier, nullableTime(item.UpdatedAt),
		item.CartID, item.ID)
	if err != nil {
		return wrapError("carts.update_item", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("carts.update_item")
	}
	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID string) error {
	res, err := r.provider.q(ctx).ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = ? AND id = ?`, cartID, itemID)
	if err != nil {
		return wrapError("carts.delete_item", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("carts.delete_item")
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
