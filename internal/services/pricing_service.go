package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

// ErrPriceInvalidInput indicates the caller supplied invalid pricing parameters.
var ErrPriceInvalidInput = errors.New("pricing service: invalid input")

// ErrPriceNotFound indicates no active price exists for the product at the tier.
var ErrPriceNotFound = errors.New("pricing service: price not found")

// ErrPriceUnavailable indicates the pricing backend cannot fulfil the request.
var ErrPriceUnavailable = errors.New("pricing service: unavailable")

// PricingServiceDeps wires the catalog lookup for price resolution.
type PricingServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type pricingService struct {
	catalog repositories.CatalogRepository
}

// NewPricingService constructs a PricingService enforcing dependency validation.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("pricing service: catalog repository is required")
	}
	return &pricingService{catalog: deps.Catalog}, nil
}

// ActivePrice resolves the price for a product at a tier. Missing rows and
// rows hidden behind an inactive product, price, or vendor company all
// surface as ErrPriceNotFound.
func (s *pricingService) ActivePrice(ctx context.Context, productID string, tier PriceTier) (ProductPrice, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ProductPrice{}, fmt.Errorf("%w: product id is required", ErrPriceInvalidInput)
	}
	if !validTier(tier) {
		return ProductPrice{}, fmt.Errorf("%w: unknown price tier %q", ErrPriceInvalidInput, tier)
	}

	price, err := s.catalog.ActivePrice(ctx, productID, tier)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return ProductPrice{}, fmt.Errorf("%w: product %s tier %s", ErrPriceNotFound, productID, tier)
		}
		return ProductPrice{}, ErrPriceUnavailable
	}
	return price, nil
}

func validTier(tier PriceTier) bool {
	for _, known := range domain.KnownPriceTiers {
		if tier == known {
			return true
		}
	}
	return false
}
