package services

import (
	"context"
	"errors"
	"testing"

	"github.com/vendorlane/api/internal/domain"
)

type vendorFixture struct {
	service    VendorService
	catalog    *stubCatalogRepo
	dispatcher *recordingDispatcher
}

func newVendorFixture(t *testing.T) *vendorFixture {
	t.Helper()

	catalog := newStubCatalogRepo()
	catalog.addCompany(domain.VendorCompany{
		ID:         "vnd_1",
		Name:       "Nordic Panels",
		Email:      "office@nordicpanels.example",
		IsActive:   true,
		IsVerified: true,
		CreatedAt:  testClock,
		UpdatedAt:  testClock,
	})
	catalog.cascade.products = 4
	catalog.cascade.prices = 11

	dispatcher := &recordingDispatcher{}
	service, err := NewVendorService(VendorServiceDeps{
		Catalog:       catalog,
		Notifications: dispatcher,
		Clock:         fixedClock(testClock),
	})
	if err != nil {
		t.Fatalf("NewVendorService: %v", err)
	}
	return &vendorFixture{service: service, catalog: catalog, dispatcher: dispatcher}
}

func TestVendorServiceDeactivateCascades(t *testing.T) {
	f := newVendorFixture(t)

	result, err := f.service.Deactivate(context.Background(), DeactivateVendorCommand{CompanyID: "vnd_1", ActorID: "admin_1"})
	if err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if result.Company.IsActive {
		t.Fatal("expected company inactive")
	}
	if result.Company.DeactivatedBy == nil || *result.Company.DeactivatedBy != "admin_1" {
		t.Fatalf("expected DeactivatedBy admin_1, got %v", result.Company.DeactivatedBy)
	}
	if result.Company.DeactivatedAt == nil {
		t.Fatal("expected DeactivatedAt set")
	}
	if result.Products != 4 || result.Prices != 11 {
		t.Fatalf("expected cascade counts 4/11, got %d/%d", result.Products, result.Prices)
	}
	if len(f.catalog.deactivated) != 1 || f.catalog.deactivated[0] != "vnd_1" {
		t.Fatalf("expected catalog cascade for vnd_1, got %v", f.catalog.deactivated)
	}
	if names := f.dispatcher.eventNames(); len(names) != 1 || names[0] != "vendor.company.deactivated" {
		t.Fatalf("expected vendor.company.deactivated dispatch, got %v", names)
	}
}

func TestVendorServiceDeactivateUnknownCompany(t *testing.T) {
	f := newVendorFixture(t)

	_, err := f.service.Deactivate(context.Background(), DeactivateVendorCommand{CompanyID: "vnd_missing"})
	if !errors.Is(err, ErrVendorNotFound) {
		t.Fatalf("expected ErrVendorNotFound, got %v", err)
	}
}

func TestVendorServiceActivateLeavesCatalogInactive(t *testing.T) {
	f := newVendorFixture(t)
	if _, err := f.service.Deactivate(context.Background(), DeactivateVendorCommand{CompanyID: "vnd_1", ActorID: "admin_1"}); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	company, err := f.service.Activate(context.Background(), "vnd_1")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if !company.IsActive {
		t.Fatal("expected company active")
	}
	if company.DeactivatedBy != nil || company.DeactivatedAt != nil {
		t.Fatalf("expected deactivation audit cleared, got %v / %v", company.DeactivatedBy, company.DeactivatedAt)
	}
	// Activation flips only the company flag. The catalog needs an
	// explicit reactivation call.
	if len(f.catalog.reactivated) != 0 {
		t.Fatalf("expected no catalog reactivation, got %v", f.catalog.reactivated)
	}
}

func TestVendorServiceReactivateCatalog(t *testing.T) {
	f := newVendorFixture(t)

	result, err := f.service.ReactivateCatalog(context.Background(), "vnd_1")
	if err != nil {
		t.Fatalf("ReactivateCatalog: %v", err)
	}
	if result.Products != 4 || result.Prices != 11 {
		t.Fatalf("expected cascade counts 4/11, got %d/%d", result.Products, result.Prices)
	}
	if len(f.catalog.reactivated) != 1 {
		t.Fatalf("expected one catalog reactivation, got %v", f.catalog.reactivated)
	}
}

func TestVendorServiceReactivateCatalogRequiresActiveCompany(t *testing.T) {
	f := newVendorFixture(t)
	if _, err := f.service.Deactivate(context.Background(), DeactivateVendorCommand{CompanyID: "vnd_1"}); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	_, err := f.service.ReactivateCatalog(context.Background(), "vnd_1")
	if !errors.Is(err, ErrVendorCompanyInactive) {
		t.Fatalf("expected ErrVendorCompanyInactive, got %v", err)
	}
	if len(f.catalog.reactivated) != 0 {
		t.Fatalf("expected no catalog reactivation, got %v", f.catalog.reactivated)
	}
}

func TestVendorServiceGetCompany(t *testing.T) {
	f := newVendorFixture(t)

	company, err := f.service.GetCompany(context.Background(), "vnd_1")
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if company.Name != "Nordic Panels" {
		t.Fatalf("expected Nordic Panels, got %q", company.Name)
	}

	if _, err := f.service.GetCompany(context.Background(), "  "); !errors.Is(err, ErrVendorInvalidInput) {
		t.Fatalf("expected ErrVendorInvalidInput, got %v", err)
	}
}
