package domain

import (
	"strings"
	"time"
)

// PriceTier classifies a client for price resolution purposes.
type PriceTier string

const (
	// TierAnonymous applies to unauthenticated storefront visitors.
	TierAnonymous PriceTier = "anonymous"
	// TierRegistered applies to signed-up retail clients.
	TierRegistered PriceTier = "registered"
	// TierInstaller applies to trade clients buying for installation work.
	TierInstaller PriceTier = "installer"
	// TierProfessional applies to high-volume professional accounts.
	TierProfessional PriceTier = "professional"
)

// KnownPriceTiers lists every tier accepted by the pricing layer.
var KnownPriceTiers = []PriceTier{TierAnonymous, TierRegistered, TierInstaller, TierProfessional}

// Client captures the account that owns carts, orders, and notifications.
type Client struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Tier      PriceTier
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasContact reports whether the client carries the minimal contact data
// required for quotes and order notifications.
func (c Client) HasContact() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.Phone) != ""
}

// VendorCompany owns products in the shared catalog.
type VendorCompany struct {
	ID            string
	Name          string
	Email         string
	IsActive      bool
	IsVerified    bool
	DeactivatedBy *string
	DeactivatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Product is a vendor-owned catalog entry.
type Product struct {
	ID        string
	CompanyID string
	Name      string
	SKU       string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductPrice stores the amount charged for a product at a given tier, in
// the smallest currency unit.
type ProductPrice struct {
	ID        string
	ProductID string
	Tier      PriceTier
	Amount    int64
	Currency  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cart aggregates items a client intends to order. Carts are mutable until
// converted into an order, at which point the row is deleted outright.
type Cart struct {
	ID        string
	Number    string
	ClientID  string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem stores one product line in a cart. PriceSnapshot and PriceTier
// are captured when the line is added or re-added and never recalculated
// implicitly afterwards.
type CartItem struct {
	ID            string
	CartID        string
	ProductID     string
	Quantity      int
	PriceSnapshot int64
	PriceTier     PriceTier
	AddedAt       time.Time
	UpdatedAt     *time.Time
}

// Total sums quantity × price snapshot over the cart's items.
func (c Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.PriceSnapshot * int64(item.Quantity)
	}
	return total
}

// InvoiceType distinguishes the two variants of the invoice document.
type InvoiceType string

const (
	// InvoiceTypeQuote is a time-boxed, price-locked snapshot of a cart.
	InvoiceTypeQuote InvoiceType = "quote"
	// InvoiceTypeFinal is the billing document generated from an order.
	InvoiceTypeFinal InvoiceType = "invoice"
)

// Invoice is either a quote referencing a cart or a final invoice
// referencing an order. Exactly one source reference is set per variant.
type Invoice struct {
	ID       string
	Number   string
	Type     InvoiceType
	ClientID string
	CartID   *string
	OrderID  *string
	Total    int64
	Currency string
	Notes    string

	// Quote variant fields.
	ValidUntil       *time.Time
	ConvertedToOrder bool
	ConvertedAt      *time.Time

	// Final variant fields.
	IsCancelled        bool
	CancellationReason *string
	CancelledAt        *time.Time

	DocumentPath *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether a quote's validity window has passed at the given
// instant. Final invoices never expire.
func (i Invoice) Expired(now time.Time) bool {
	if i.Type != InvoiceTypeQuote || i.ValidUntil == nil {
		return false
	}
	return i.ValidUntil.Before(now)
}

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	// OrderStatusNew indicates a client-originated order awaiting staff pickup.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusProcessing indicates staff are actively handling the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted is terminal; the order was fulfilled.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled is terminal; the order was abandoned with a reason.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Order is a committed transaction. Contact and totals are denormalised at
// creation time and never recomputed from live client or product data.
type Order struct {
	ID           string
	Number       string
	ClientID     string
	Status       OrderStatus
	ContactName  string
	ContactEmail string
	ContactPhone string
	Total        int64
	Currency     string
	StaffNote    string
	Items        []OrderItem
	ProcessedBy  *string
	ProcessedAt  *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem denormalises the product at order-creation time so later catalog
// edits never rewrite committed orders.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   string
	CompanyID   string
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   int64
	Subtotal    int64
}

// NotificationStatus enumerates delivery states for a notification record.
type NotificationStatus string

const (
	// NotificationStatusPending means the record awaits (re)delivery.
	NotificationStatusPending NotificationStatus = "pending"
	// NotificationStatusSent means delivery succeeded on some channel.
	NotificationStatusSent NotificationStatus = "sent"
	// NotificationStatusFailed means the retry budget is exhausted.
	NotificationStatusFailed NotificationStatus = "failed"
	// NotificationStatusCancelled means an operator withdrew the notification.
	NotificationStatusCancelled NotificationStatus = "cancelled"
)

// NotificationChannel names the transport a notification is routed over.
type NotificationChannel string

const (
	// ChannelRealtime is the preferred low-latency channel.
	ChannelRealtime NotificationChannel = "realtime"
	// ChannelEmail is the durable fallback channel.
	ChannelEmail NotificationChannel = "email"
)

// Notification is the durable record of a business event delivery. A row is
// written for every dispatched event regardless of the real-time outcome.
type Notification struct {
	ID           string
	ClientID     string
	Event        string
	Channel      NotificationChannel
	Status       NotificationStatus
	Recipient    string
	Payload      map[string]any
	RetryCount   int
	MaxRetries   int
	ScheduledFor *time.Time
	LastError    *string
	SentAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
