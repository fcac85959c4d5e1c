package services

import (
	"context"
	"time"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Client              = domain.Client
	VendorCompany       = domain.VendorCompany
	Product             = domain.Product
	ProductPrice        = domain.ProductPrice
	PriceTier           = domain.PriceTier
	Cart                = domain.Cart
	CartItem            = domain.CartItem
	Invoice             = domain.Invoice
	InvoiceType         = domain.InvoiceType
	Order               = domain.Order
	OrderItem           = domain.OrderItem
	OrderStatus         = domain.OrderStatus
	Notification        = domain.Notification
	NotificationStatus  = domain.NotificationStatus
	NotificationChannel = domain.NotificationChannel
	OrderListFilter     = repositories.OrderListFilter
)

// CartService manages the mutable cart ledger: item lines with their price
// snapshots, captured at add time and held until checkout.
type CartService interface {
	CreateCart(ctx context.Context, clientID string) (Cart, error)
	GetCart(ctx context.Context, cartID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, cartID, itemID string) (Cart, error)
	Total(ctx context.Context, cartID string) (int64, error)
	ClearAndDelete(ctx context.Context, cartID string) error
}

// PricingService resolves the single active price for a product at a tier.
type PricingService interface {
	ActivePrice(ctx context.Context, productID string, tier PriceTier) (ProductPrice, error)
}

// InvoiceService covers both invoice variants: time-boxed quotes created
// from carts, and final invoices generated from orders.
type InvoiceService interface {
	CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (Invoice, error)
	HasActiveQuote(ctx context.Context, cartID string) (bool, error)
	ConvertToOrder(ctx context.Context, quoteID string) (Order, error)
	GenerateFromOrder(ctx context.Context, cmd GenerateInvoiceCommand) (Invoice, error)
	CancelInvoice(ctx context.Context, cmd CancelInvoiceCommand) (Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (Invoice, error)
}

// OrderService encapsulates order creation and the guarded status lifecycle.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CreateOrderFromCartCommand) (Order, error)
	CreateManual(ctx context.Context, cmd CreateManualOrderCommand) (Order, error)
	UpdateStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error)
}

// VendorService controls vendor company activation and the catalog cascade.
type VendorService interface {
	Deactivate(ctx context.Context, cmd DeactivateVendorCommand) (VendorCascadeResult, error)
	Activate(ctx context.Context, companyID string) (VendorCompany, error)
	ReactivateCatalog(ctx context.Context, companyID string) (VendorCascadeResult, error)
	GetCompany(ctx context.Context, companyID string) (VendorCompany, error)
}

// NotificationService dispatches business events over the real-time channel
// with a durable fallback, and manages the delivery lifecycle.
type NotificationService interface {
	Dispatch(ctx context.Context, event NotificationEvent) (Notification, error)
	Pending(ctx context.Context, limit int) ([]Notification, error)
	DeliverPending(ctx context.Context, limit int) (DeliveryReport, error)
	MarkSent(ctx context.Context, notificationID string) (Notification, error)
	MarkFailed(ctx context.Context, notificationID, reason string) (Notification, error)
	Cancel(ctx context.Context, notificationID string) (Notification, error)
}

// CounterService manages named counter sequences and the human-readable
// document numbers layered on top of them.
type CounterService interface {
	Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error)
	NextCartNumber(ctx context.Context) (string, error)
	NextQuoteNumber(ctx context.Context) (string, error)
	NextInvoiceNumber(ctx context.Context) (string, error)
	NextOrderNumber(ctx context.Context) (string, error)
}

// RealTimeNotifier attempts immediate delivery of an event. Failures are
// reported to the caller and never retried by the notifier itself.
type RealTimeNotifier interface {
	Notify(ctx context.Context, event NotificationEvent) error
}

// Messenger delivers a durable notification over its fallback channel.
type Messenger interface {
	Send(ctx context.Context, channel NotificationChannel, recipient string, payload map[string]any) error
}

// DocumentRenderer renders an invoice to a stored document and returns its path.
type DocumentRenderer interface {
	Render(ctx context.Context, invoice Invoice) (string, error)
}

// CounterValue carries both the raw sequence value and its formatted form.
type CounterValue struct {
	Value     int64
	Formatted string
}

// CounterGenerationOptions controls how counter values are incremented and formatted.
type CounterGenerationOptions struct {
	Step      int64
	Prefix    string
	Suffix    string
	PadLength int
	Formatter func(now time.Time, seq int64) string
}

// AddCartItemCommand adds or merges a product line into a cart.
type AddCartItemCommand struct {
	CartID    string
	ProductID string
	Quantity  int
}

// UpdateCartQuantityCommand sets an item line to an absolute quantity.
type UpdateCartQuantityCommand struct {
	CartID   string
	ItemID   string
	Quantity int
}

// CreateQuoteCommand creates a time-boxed quote from a cart.
type CreateQuoteCommand struct {
	CartID string
	// ValidDays overrides the configured validity window when positive.
	ValidDays int
	Notes     string
}

// GenerateInvoiceCommand creates the final invoice for an order.
type GenerateInvoiceCommand struct {
	OrderID string
	Notes   string
}

// CancelInvoiceCommand voids a final invoice with an explanation.
type CancelInvoiceCommand struct {
	InvoiceID string
	Reason    string
}

// CreateOrderFromCartCommand converts a cart into an order.
type CreateOrderFromCartCommand struct {
	CartID string
	// QuoteNumber, when set, is recorded in the staff note so the order
	// keeps a back-reference to the quote it originated from.
	QuoteNumber string
	StaffNote   string
}

// ManualOrderLine is one product line of a staff-entered order.
type ManualOrderLine struct {
	ProductID string
	Quantity  int
}

// CreateManualOrderCommand creates an order on behalf of a client, priced at
// the client's tier at entry time.
type CreateManualOrderCommand struct {
	ClientID  string
	Lines     []ManualOrderLine
	StaffNote string
	CreatedBy string
}

// OrderStatusCommand requests a lifecycle transition. Reason is required
// when Status is cancelled.
type OrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	ActorID string
	Reason  string
}

// CancelOrderCommand cancels an order with a mandatory reason.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	ActorID string
}

// DeactivateVendorCommand suspends a vendor company and its catalog.
type DeactivateVendorCommand struct {
	CompanyID string
	ActorID   string
}

// VendorCascadeResult reports the rows touched by an activation cascade.
type VendorCascadeResult struct {
	Company  VendorCompany
	Products int64
	Prices   int64
}

// NotificationEvent is a business event handed to the dispatcher.
type NotificationEvent struct {
	ClientID  string
	Event     string
	Recipient string
	Payload   map[string]any
}

// DeliveryReport summarises one redelivery sweep.
type DeliveryReport struct {
	Attempted int
	Sent      int
	Failed    int
}
