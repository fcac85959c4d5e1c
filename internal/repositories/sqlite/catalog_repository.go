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

type catalogRepository struct {
	provider *Provider
}

// NewCatalogRepository builds the SQLite-backed catalog repository covering
// vendor companies, products, and tiered prices.
func NewCatalogRepository(provider *Provider) (repositories.CatalogRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("sqlite provider is required")
	}
	return &catalogRepository{provider: provider}, nil
}

func (r *catalogRepository) FindCompany(ctx context.Context, id string) (domain.VendorCompany, error) {
	const query = `
		SELECT id, name, email, is_active, is_verified, deactivated_by, deactivated_at, created_at, updated_at
		FROM vendor_companies WHERE id = ?
	`
	var (
		company       domain.VendorCompany
		deactivatedBy sql.NullString
		deactivatedAt sql.NullTime
	)
	err := r.provider.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&company.ID, &company.Name, &company.Email, &company.IsActive, &company.IsVerified,
		&deactivatedBy, &deactivatedAt, &company.CreatedAt, &company.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.VendorCompany{}, notFoundError("catalog.find_company")
	}
	if err != nil {
		return domain.VendorCompany{}, wrapError("catalog.find_company", err)
	}
	if deactivatedBy.Valid {
		company.DeactivatedBy = &deactivatedBy.String
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		company.DeactivatedAt = &t
	}
	return company, nil
}

func (r *catalogRepository) SetCompanyActive(ctx context.Context, id string, active bool, by *string, at time.Time) error {
	var (
		query string
		args  []any
	)
	if active {
		query = `UPDATE vendor_companies
			SET is_active = 1, deactivated_by = NULL, deactivated_at = NULL, updated_at = ?
			WHERE id = ?`
		args = []any{at, id}
	} else {
		query = `UPDATE vendor_companies
			SET is_active = 0, deactivated_by = ?, deactivated_at = ?, updated_at = ?
			WHERE id = ?`
		args = []any{nullableString(by), at, at, id}
	}
	res, err := r.provider.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError("catalog.set_company_active", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFoundError("catalog.set_company_active")
	}
	return nil
}

func (r *catalogRepository) FindProduct(ctx context.Context, id string) (domain.Product, error) {
	const query = `
		SELECT id, company_id, name, sku, is_active, created_at, updated_at
		FROM products WHERE id = ?
	`
	var product domain.Product
	err := r.provider.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.CompanyID, &product.Name, &product.SKU,
		&product.IsActive, &product.CreatedAt, &product.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, notFoundError("catalog.find_product")
	}
	if err != nil {
		return domain.Product{}, wrapError("catalog.find_product", err)
	}
	return product, nil
}

// ActivePrice joins through product and company so an inactive owner at any
// level makes the price unresolvable.
func (r *catalogRepository) ActivePrice(ctx context.Context, productID string, tier domain.PriceTier) (domain.ProductPrice, error) {
	const query = `
		SELECT pp.id, pp.product_id, pp.tier, pp.amount, pp.currency, pp.is_active, pp.created_at, pp.updated_at
		FROM product_prices pp
		JOIN products p ON p.id = pp.product_id
		JOIN vendor_companies vc ON vc.id = p.company_id
		WHERE pp.product_id = ? AND pp.tier = ?
			AND pp.is_active = 1 AND p.is_active = 1 AND vc.is_active = 1
		ORDER BY pp.updated_at DESC LIMIT 1
	`
	var price domain.ProductPrice
	err := r.provider.q(ctx).QueryRowContext(ctx, query, productID, tier).Scan(
		&price.ID, &price.ProductID, &price.Tier, &price.Amount, &price.Currency,
		&price.IsActive, &price.CreatedAt, &price.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProductPrice{}, notFoundError("catalog.active_price")
	}
	if err != nil {
		return domain.ProductPrice{}, wrapError("catalog.active_price", err)
	}
	return price, nil
}

func (r *catalogRepository) DeactivateCatalog(ctx context.Context, companyID string, at time.Time) (int64, int64, error) {
	q := r.provider.q(ctx)
	prodRes, err := q.ExecContext(ctx,
		`UPDATE products SET is_active = 0, updated_at = ? WHERE company_id = ? AND is_active = 1`,
		at, companyID)
	if err != nil {
		return 0, 0, wrapError("catalog.deactivate_products", err)
	}
	priceRes, err := q.ExecContext(ctx,
		`UPDATE product_prices SET is_active = 0, updated_at = ?
		 WHERE is_active = 1 AND product_id IN (SELECT id FROM products WHERE company_id = ?)`,
		at, companyID)
	if err != nil {
		return 0, 0, wrapError("catalog.deactivate_prices", err)
	}
	products, _ := prodRes.RowsAffected()
	prices, _ := priceRes.RowsAffected()
	return products, prices, nil
}

func (r *catalogRepository) ReactivateCatalog(ctx context.Context, companyID string, at time.Time) (int64, int64, error) {
	q := r.provider.q(ctx)
	prodRes, err := q.ExecContext(ctx,
		`UPDATE products SET is_active = 1, updated_at = ? WHERE company_id = ? AND is_active = 0`,
		at, companyID)
	if err != nil {
		return 0, 0, wrapError("catalog.reactivate_products", err)
	}
	priceRes, err := q.ExecContext(ctx,
		`UPDATE product_prices SET is_active = 1, updated_at = ?
		 WHERE is_active = 0 AND product_id IN (SELECT id FROM products WHERE company_id = ?)`,
		at, companyID)
	if err != nil {
		return 0, 0, wrapError("catalog.reactivate_prices", err)
	}
	products, _ := prodRes.RowsAffected()
	prices, _ := priceRes.RowsAffected()
	return products, prices, nil
}
