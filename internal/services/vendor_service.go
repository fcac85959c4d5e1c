package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vendorlane/api/internal/repositories"
)

// ErrVendorInvalidInput indicates the caller supplied invalid vendor parameters.
var ErrVendorInvalidInput = errors.New("vendor service: invalid input")

// ErrVendorNotFound indicates the requested vendor company does not exist.
var ErrVendorNotFound = errors.New("vendor service: not found")

// ErrVendorConflict indicates the company could not be updated due to concurrent modifications.
var ErrVendorConflict = errors.New("vendor service: conflict")

// ErrVendorUnavailable indicates the vendor backend cannot fulfil the request.
var ErrVendorUnavailable = errors.New("vendor service: unavailable")

// ErrVendorCompanyInactive indicates a catalog operation requires an active company.
var ErrVendorCompanyInactive = errors.New("vendor service: company is inactive")

// VendorServiceDeps wires the catalog repository for vendor lifecycle operations.
type VendorServiceDeps struct {
	Catalog       repositories.CatalogRepository
	Notifications NotificationService
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	Logger        func(context.Context, string, map[string]any)
}

type vendorService struct {
	catalog       repositories.CatalogRepository
	notifications NotificationService
	uow           repositories.UnitOfWork
	now           func() time.Time
	logger        func(context.Context, string, map[string]any)
}

// NewVendorService constructs a VendorService enforcing dependency validation.
func NewVendorService(deps VendorServiceDeps) (VendorService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("vendor service: catalog repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	uow := deps.UnitOfWork
	if uow == nil {
		uow = noopUnitOfWork{}
	}

	return &vendorService{
		catalog:       deps.Catalog,
		notifications: deps.Notifications,
		uow:           uow,
		now:           func() time.Time { return clock().UTC() },
		logger:        logger,
	}, nil
}

// Deactivate suspends the company and its entire catalog in one transaction:
// the company flag, every product, and every price flip together or not at
// all. Already-inactive companies deactivate idempotently.
func (s *vendorService) Deactivate(ctx context.Context, cmd DeactivateVendorCommand) (VendorCascadeResult, error) {
	companyID := strings.TrimSpace(cmd.CompanyID)
	if companyID == "" {
		return VendorCascadeResult{}, fmt.Errorf("%w: company id is required", ErrVendorInvalidInput)
	}

	var result VendorCascadeResult
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		company, err := s.catalog.FindCompany(ctx, companyID)
		if err != nil {
			return err
		}

		now := s.now()
		var by *string
		if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
			by = &actor
		}
		if err := s.catalog.SetCompanyActive(ctx, company.ID, false, by, now); err != nil {
			return err
		}
		products, prices, err := s.catalog.DeactivateCatalog(ctx, company.ID, now)
		if err != nil {
			return err
		}

		company.IsActive = false
		company.DeactivatedBy = by
		company.DeactivatedAt = &now
		company.UpdatedAt = now
		result = VendorCascadeResult{Company: company, Products: products, Prices: prices}
		return nil
	})
	if err != nil {
		return VendorCascadeResult{}, s.translateRepoError(err)
	}

	s.logger(ctx, "vendor.company.deactivated", map[string]any{
		"company_id": result.Company.ID,
		"products":   result.Products,
		"prices":     result.Prices,
	})
	if s.notifications != nil {
		if _, err := s.notifications.Dispatch(ctx, NotificationEvent{
			Event:     "vendor.company.deactivated",
			Recipient: result.Company.Email,
			Payload: map[string]any{
				"company_id":   result.Company.ID,
				"company_name": result.Company.Name,
			},
		}); err != nil {
			s.logger(ctx, "vendor.notification.failed", map[string]any{
				"company_id": result.Company.ID,
				"error":      err.Error(),
			})
		}
	}
	return result, nil
}

// Activate re-enables the company flag only. The catalog stays inactive
// until ReactivateCatalog is called explicitly, so a returning vendor
// re-lists products deliberately rather than as a side effect.
func (s *vendorService) Activate(ctx context.Context, companyID string) (VendorCompany, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return VendorCompany{}, fmt.Errorf("%w: company id is required", ErrVendorInvalidInput)
	}

	var company VendorCompany
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		company, err = s.catalog.FindCompany(ctx, companyID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.catalog.SetCompanyActive(ctx, company.ID, true, nil, now); err != nil {
			return err
		}
		company.IsActive = true
		company.DeactivatedBy = nil
		company.DeactivatedAt = nil
		company.UpdatedAt = now
		return nil
	})
	if err != nil {
		return VendorCompany{}, s.translateRepoError(err)
	}

	s.logger(ctx, "vendor.company.activated", map[string]any{"company_id": company.ID})
	return company, nil
}

// ReactivateCatalog re-enables the company's products and prices. The
// company itself must already be active.
func (s *vendorService) ReactivateCatalog(ctx context.Context, companyID string) (VendorCascadeResult, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return VendorCascadeResult{}, fmt.Errorf("%w: company id is required", ErrVendorInvalidInput)
	}

	var result VendorCascadeResult
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		company, err := s.catalog.FindCompany(ctx, companyID)
		if err != nil {
			return err
		}
		if !company.IsActive {
			return fmt.Errorf("%w: %s", ErrVendorCompanyInactive, company.ID)
		}
		products, prices, err := s.catalog.ReactivateCatalog(ctx, company.ID, s.now())
		if err != nil {
			return err
		}
		result = VendorCascadeResult{Company: company, Products: products, Prices: prices}
		return nil
	})
	if err != nil {
		return VendorCascadeResult{}, s.translateRepoError(err)
	}

	s.logger(ctx, "vendor.catalog.reactivated", map[string]any{
		"company_id": result.Company.ID,
		"products":   result.Products,
		"prices":     result.Prices,
	})
	return result, nil
}

func (s *vendorService) GetCompany(ctx context.Context, companyID string) (VendorCompany, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return VendorCompany{}, fmt.Errorf("%w: company id is required", ErrVendorInvalidInput)
	}
	company, err := s.catalog.FindCompany(ctx, companyID)
	if err != nil {
		return VendorCompany{}, s.translateRepoError(err)
	}
	return company, nil
}

func (s *vendorService) translateRepoError(err error) error {
	return mapRepositoryError(err, ErrVendorNotFound, ErrVendorConflict, ErrVendorUnavailable)
}
