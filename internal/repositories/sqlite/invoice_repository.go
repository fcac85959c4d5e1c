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

type invoiceRepository struct {
	provider *Provider
}

// NewInvoiceRepository builds the SQLite-backed invoice repository. Quotes
// and final invoices share one table discriminated by the type column.
func NewInvoiceRepository(provider *Provider) (repositories.InvoiceRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("sqlite provider is required")
	}
	return &invoiceRepository{provider: provider}, nil
}

const invoiceColumns = `id, number, type, client_id, cart_id, order_id, total, currency, notes,
	valid_until, converted_to_order, converted_at, is_cancelled, cancellation_reason,
	cancelled_at, document_path, created_at, updated_at`

func (r *invoiceRepository) Insert(ctx context.Context, invoice domain.Invoice) error {
	const query = `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.provider.q(ctx).ExecContext(ctx, query,
		invoice.ID, invoice.Number, invoice.Type, invoice.ClientID,
		nullableString(invoice.CartID), nullableString(invoice.OrderID),
		invoice.Total, invoice.Currency, invoice.Notes,
		nullableTime(invoice.ValidUntil), invoice.ConvertedToOrder, nullableTime(invoice.ConvertedAt),
		invoice.IsCancelled, nullableString(invoice.CancellationReason), nullableTime(invoice.CancelledAt),
		nullableString(invoice.DocumentPath), invoice.CreatedAt, invoice.UpdatedAt)
	if err != nil {
		return wrapError("invoices.insert", err)
	}
	return nil
}

func (r *invoiceRepository) Update(ctx context.Context, invoice domain.Invoice) error {
	const query = `
		UPDATE invoices
		SET order_id = ?, notes = ?, converted_to_order = ?, converted_at = ?,
			is_cancelled = ?, cancellation_reason = ?, cancelled_at = ?,
			document_path = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := r.provider.q(ctx).ExecContext(ctx, query,
		nullableString(invoice.OrderID), invoice.Notes,
		invoice.ConvertedToOrder, nullableTime(invoice.ConvertedAt),
		invoice.IsCancelled, nullableString(invoice.CancellationReason), nullableTime(invoice.CancelledAt),
		nullableString(invoice.DocumentPath), invoice.UpdatedAt, invoice.ID)
	if err != nil {
		return wrapError("invoices.update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("invoices.update")
	}
	return nil
}

func (r *invoiceRepository) FindByID(ctx context.Context, id string) (domain.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`
	invoice, err := scanInvoice(r.provider.q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, notFoundError("invoices.find_by_id")
	}
	if err != nil {
		return domain.Invoice{}, wrapError("invoices.find_by_id", err)
	}
	return invoice, nil
}

func (r *invoiceRepository) FindByOrderID(ctx context.Context, orderID string) (domain.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE order_id = ? AND type = ? ORDER BY created_at DESC LIMIT 1`
	invoice, err := scanInvoice(r.provider.q(ctx).QueryRowContext(ctx, query, orderID, domain.InvoiceTypeFinal))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, notFoundError("invoices.find_by_order_id")
	}
	if err != nil {
		return domain.Invoice{}, wrapError("invoices.find_by_order_id", err)
	}
	return invoice, nil
}

func (r *invoiceRepository) FindActiveQuote(ctx context.Context, cartID string, now time.Time) (domain.Invoice, error) {
	const query = `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE cart_id = ? AND type = ? AND converted_to_order = 0
			AND (valid_until IS NULL OR valid_until >= ?)
		ORDER BY created_at DESC LIMIT 1`
	invoice, err := scanInvoice(r.provider.q(ctx).QueryRowContext(ctx, query, cartID, domain.InvoiceTypeQuote, now))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, notFoundError("invoices.find_active_quote")
	}
	if err != nil {
		return domain.Invoice{}, wrapError("invoices.find_active_quote", err)
	}
	return invoice, nil
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		invoice            domain.Invoice
		cartID             sql.NullString
		orderID            sql.NullString
		validUntil         sql.NullTime
		convertedAt        sql.NullTime
		cancellationReason sql.NullString
		cancelledAt        sql.NullTime
		documentPath       sql.NullString
	)
	err := row.Scan(&invoice.ID, &invoice.Number, &invoice.Type, &invoice.ClientID,
		&cartID, &orderID, &invoice.Total, &invoice.Currency, &invoice.Notes,
		&validUntil, &invoice.ConvertedToOrder, &convertedAt,
		&invoice.IsCancelled, &cancellationReason, &cancelledAt,
		&documentPath, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return domain.Invoice{}, err
	}
	if cartID.Valid {
		invoice.CartID = &cartID.String
	}
	if orderID.Valid {
		invoice.OrderID = &orderID.String
	}
	if validUntil.Valid {
		t := validUntil.Time
		invoice.ValidUntil = &t
	}
	if convertedAt.Valid {
		t := convertedAt.Time
		invoice.ConvertedAt = &t
	}
	if cancellationReason.Valid {
		invoice.CancellationReason = &cancellationReason.String
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		invoice.CancelledAt = &t
	}
	if documentPath.Valid {
		invoice.DocumentPath = &documentPath.String
	}
	return invoice, nil
}
