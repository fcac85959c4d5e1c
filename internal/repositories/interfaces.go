package repositories

import (
	"context"
	"time"

	"github.com/vendorlane/api/internal/domain"
)

// RepositoryError categorises storage failures so services can translate them
// into their own sentinel errors without knowing the backing store.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork runs fn within a single storage transaction. Implementations
// must join an already-running transaction carried by ctx so that nested
// service calls share one atomic scope.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClientRepository reads client accounts.
type ClientRepository interface {
	FindByID(ctx context.Context, id string) (domain.Client, error)
}

// CartRepository persists carts and their items. FindByID loads items
// eagerly; item mutations address rows individually.
type CartRepository interface {
	Insert(ctx context.Context, cart domain.Cart) error
	FindByID(ctx context.Context, id string) (domain.Cart, error)
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
	InsertItem(ctx context.Context, item domain.CartItem) error
	UpdateItem(ctx context.Context, item domain.CartItem) error
	DeleteItem(ctx context.Context, cartID, itemID string) error
}

// OrderRepository persists orders together with their denormalised items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// OrderListFilter narrows List results. Zero values mean "any".
type OrderListFilter struct {
	ClientID string
	Status   domain.OrderStatus
	Limit    int
}

// InvoiceRepository persists quote and invoice rows in one table.
type InvoiceRepository interface {
	Insert(ctx context.Context, invoice domain.Invoice) error
	Update(ctx context.Context, invoice domain.Invoice) error
	FindByID(ctx context.Context, id string) (domain.Invoice, error)
	// FindByOrderID returns the final invoice referencing the order, if any.
	FindByOrderID(ctx context.Context, orderID string) (domain.Invoice, error)
	// FindActiveQuote returns an unconverted, unexpired quote for the cart.
	FindActiveQuote(ctx context.Context, cartID string, now time.Time) (domain.Invoice, error)
}

// CatalogRepository covers the vendor-company side of the catalog: company
// flags, product lookups, tiered price resolution, and the activation cascade.
type CatalogRepository interface {
	FindCompany(ctx context.Context, id string) (domain.VendorCompany, error)
	SetCompanyActive(ctx context.Context, id string, active bool, by *string, at time.Time) error
	FindProduct(ctx context.Context, id string) (domain.Product, error)
	// ActivePrice resolves the active price for a product at a tier,
	// requiring the product and its owning company to be active as well.
	ActivePrice(ctx context.Context, productID string, tier domain.PriceTier) (domain.ProductPrice, error)
	// DeactivateCatalog flips every product and price of the company
	// inactive, returning the affected row counts.
	DeactivateCatalog(ctx context.Context, companyID string, at time.Time) (products, prices int64, err error)
	// ReactivateCatalog flips the company's products and prices back on.
	ReactivateCatalog(ctx context.Context, companyID string, at time.Time) (products, prices int64, err error)
}

// NotificationRepository persists notification delivery records.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	Update(ctx context.Context, notification domain.Notification) error
	FindByID(ctx context.Context, id string) (domain.Notification, error)
	// ListPending returns pending rows whose scheduled_for is unset or due,
	// oldest first, capped at limit.
	ListPending(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
}

// CounterRepository increments named counters atomically. Next returns the
// post-increment value and creates the counter on first use.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}
