package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

// ErrInvoiceInvalidInput indicates the caller supplied invalid invoice parameters.
var ErrInvoiceInvalidInput = errors.New("invoice service: invalid input")

// ErrInvoiceNotFound indicates the requested invoice does not exist.
var ErrInvoiceNotFound = errors.New("invoice service: not found")

// ErrInvoiceConflict indicates the invoice could not be updated due to concurrent modifications.
var ErrInvoiceConflict = errors.New("invoice service: conflict")

// ErrInvoiceUnavailable indicates the invoice backend cannot fulfil the request.
var ErrInvoiceUnavailable = errors.New("invoice service: unavailable")

// ErrCartEmpty indicates a quote was requested for a cart with no items.
var ErrCartEmpty = errors.New("invoice service: cart is empty")

// ErrQuoteMissingContact indicates the client lacks both email and phone.
var ErrQuoteMissingContact = errors.New("invoice service: client has no contact data")

// ErrInvoiceNotAQuote indicates a quote-only operation targeted a final invoice.
var ErrInvoiceNotAQuote = errors.New("invoice service: not a quote")

// ErrQuoteAlreadyConverted indicates the quote was already turned into an order.
var ErrQuoteAlreadyConverted = errors.New("invoice service: quote already converted")

// ErrQuoteExpired indicates the quote's validity window has passed.
var ErrQuoteExpired = errors.New("invoice service: quote expired")

// ErrOrderDuplicateInvoice indicates the order already has a final invoice.
var ErrOrderDuplicateInvoice = errors.New("invoice service: order already invoiced")

// ErrInvoiceNotCancellable indicates cancellation targeted a quote row.
var ErrInvoiceNotCancellable = errors.New("invoice service: only final invoices can be cancelled")

const defaultQuoteValidDays = 14

// InvoiceServiceDeps wires the repositories and collaborators for quote and
// invoice operations.
type InvoiceServiceDeps struct {
	Repository    repositories.InvoiceRepository
	Carts         repositories.CartRepository
	Clients       repositories.ClientRepository
	Orders        OrderService
	Counters      CounterService
	Notifications NotificationService
	Renderer      DocumentRenderer
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	// QuoteValidDays is the default validity window when the command does
	// not override it.
	QuoteValidDays  int
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type invoiceService struct {
	repo          repositories.InvoiceRepository
	carts         repositories.CartRepository
	clients       repositories.ClientRepository
	orders        OrderService
	counters      CounterService
	notifications NotificationService
	renderer      DocumentRenderer
	uow           repositories.UnitOfWork
	newID         func() string
	now           func() time.Time
	validDays     int
	currency      string
	logger        func(context.Context, string, map[string]any)
}

// NewInvoiceService constructs an InvoiceService enforcing dependency validation.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceService, error) {
	if deps.Repository == nil {
		return nil, errors.New("invoice service: repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("invoice service: cart repository is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("invoice service: client repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("invoice service: counter service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	validDays := deps.QuoteValidDays
	if validDays <= 0 {
		validDays = defaultQuoteValidDays
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "EUR"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	uow := deps.UnitOfWork
	if uow == nil {
		uow = noopUnitOfWork{}
	}

	return &invoiceService{
		repo:          deps.Repository,
		carts:         deps.Carts,
		clients:       deps.Clients,
		orders:        deps.Orders,
		counters:      deps.Counters,
		notifications: deps.Notifications,
		renderer:      deps.Renderer,
		uow:           uow,
		newID:         idGen,
		now:           func() time.Time { return clock().UTC() },
		validDays:     validDays,
		currency:      currency,
		logger:        logger,
	}, nil
}

// CreateQuote snapshots the cart into a time-boxed quote. The cart stays
// untouched; its items keep their price snapshots and the quote freezes the
// total as of creation.
func (s *invoiceService) CreateQuote(ctx context.Context, cmd CreateQuoteCommand) (Invoice, error) {
	cartID := strings.TrimSpace(cmd.CartID)
	if cartID == "" {
		return Invoice{}, fmt.Errorf("%w: cart id is required", ErrInvoiceInvalidInput)
	}

	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return Invoice{}, s.translateRepoError(err)
	}
	if len(cart.Items) == 0 {
		return Invoice{}, fmt.Errorf("%w: cart %s", ErrCartEmpty, cartID)
	}

	client, err := s.clients.FindByID(ctx, cart.ClientID)
	if err != nil {
		return Invoice{}, s.translateRepoError(err)
	}
	if !client.HasContact() {
		return Invoice{}, fmt.Errorf("%w: client %s", ErrQuoteMissingContact, client.ID)
	}

	validDays := cmd.ValidDays
	if validDays <= 0 {
		validDays = s.validDays
	}

	var quote Invoice
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		number, err := s.counters.NextQuoteNumber(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		validUntil := now.AddDate(0, 0, validDays)
		quote = Invoice{
			ID:         "inv_" + s.newID(),
			Number:     number,
			Type:       domain.InvoiceTypeQuote,
			ClientID:   client.ID,
			CartID:     &cart.ID,
			Total:      cart.Total(),
			Currency:   s.currency,
			Notes:      strings.TrimSpace(cmd.Notes),
			ValidUntil: &validUntil,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return s.repo.Insert(ctx, quote)
	})
	if err != nil {
		return Invoice{}, s.translateRepoError(err)
	}

	s.renderDocument(ctx, &quote)
	s.logger(ctx, "quote.created", map[string]any{
		"invoice_id": quote.ID,
		"number":     quote.Number,
		"cart_id":    cart.ID,
		"total":      quote.Total,
	})
	s.publishEvent(ctx, client, "quote.created", map[string]any{
		"quote_number": quote.Number,
		"total":        quote.Total,
		"currency":     quote.Currency,
		"valid_until":  quote.ValidUntil.Format(time.RFC3339),
	})
	return quote, nil
}

// HasActiveQuote reports whether the cart already has an unconverted,
// unexpired quote. Callers enforcing one-active-quote-per-cart check this
// before CreateQuote.
func (s *invoiceService) HasActiveQuote(ctx context.Context, cartID string) (bool, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return false, fmt.Errorf("%w: cart id is required", ErrInvoiceInvalidInput)
	}
	_, err := s.repo.FindActiveQuote(ctx, cartID, s.now())
	if err != nil {
		if isRepoNotFound(err) {
			return false, nil
		}
		return false, s.translateRepoError(err)
	}
	return true, nil
}

// ConvertToOrder turns an unexpired, unconverted quote into an order. The
// order creation and the quote's conversion flags commit in one transaction,
// so a quote can never be converted twice and a failed order leaves the
// quote reusable.
func (s *invoiceService) ConvertToOrder(ctx context.Context, quoteID string) (Order, error) {
	quoteID = strings.TrimSpace(quoteID)
	if quoteID == "" {
		return Order{}, fmt.Errorf("%w: quote id is required", ErrInvoiceInvalidInput)
	}
	if s.orders == nil {
		return Order{}, ErrInvoiceUnavailable
	}

	var order Order
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		quote, err := s.repo.FindByID(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote.Type != domain.InvoiceTypeQuote {
			return fmt.Errorf("%w: %s", ErrInvoiceNotAQuote, quote.ID)
		}
		if quote.ConvertedToOrder {
			return fmt.Errorf("%w: %s", ErrQuoteAlreadyConverted, quote.ID)
		}
		now := s.now()
		if quote.Expired(now) {
			return fmt.Errorf("%w: %s expired %s", ErrQuoteExpired, quote.ID, quote.ValidUntil.Format(time.RFC3339))
		}
		if quote.CartID == nil {
			return fmt.Errorf("%w: quote %s has no cart", ErrInvoiceInvalidInput, quote.ID)
		}

		order, err = s.orders.CreateFromCart(ctx, CreateOrderFromCartCommand{
			CartID:      *quote.CartID,
			QuoteNumber: quote.Number,
		})
		if err != nil {
			return err
		}

		quote.ConvertedToOrder = true
		quote.ConvertedAt = &now
		quote.OrderID = &order.ID
		quote.UpdatedAt = now
		return s.repo.Update(ctx, quote)
	})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "quote.converted", map[string]any{"quote_id": quoteID, "order_id": order.ID})
	return order, nil
}

// GenerateFromOrder creates the final invoice for an order. An order gets at
// most one final invoice.
func (s *invoiceService) GenerateFromOrder(ctx context.Context, cmd GenerateInvoiceCommand) (Invoice, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Invoice{}, fmt.Errorf("%w: order id is required", ErrInvoiceInvalidInput)
	}
	if s.orders == nil {
		return Invoice{}, ErrInvoiceUnavailable
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return Invoice{}, err
	}

	var invoice Invoice
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		// The duplicate check shares the insert's transaction so two
		// concurrent callers serialise on the same scope.
		if _, err := s.repo.FindByOrderID(ctx, order.ID); err == nil {
			return fmt.Errorf("%w: order %s", ErrOrderDuplicateInvoice, order.ID)
		} else if !isRepoNotFound(err) {
			return err
		}

		number, err := s.counters.NextInvoiceNumber(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		invoice = Invoice{
			ID:        "inv_" + s.newID(),
			Number:    number,
			Type:      domain.InvoiceTypeFinal,
			ClientID:  order.ClientID,
			OrderID:   &order.ID,
			Total:     order.Total,
			Currency:  order.Currency,
			Notes:     strings.TrimSpace(cmd.Notes),
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.Insert(ctx, invoice)
	})
	if err != nil {
		// The unique index on final invoices backstops the lookup: a
		// conflicting insert means another caller invoiced the order first.
		if isRepoConflict(err) {
			return Invoice{}, fmt.Errorf("%w: order %s", ErrOrderDuplicateInvoice, order.ID)
		}
		return Invoice{}, s.translateRepoError(err)
	}

	s.renderDocument(ctx, &invoice)
	s.logger(ctx, "invoice.generated", map[string]any{
		"invoice_id": invoice.ID,
		"number":     invoice.Number,
		"order_id":   order.ID,
	})
	if s.notifications != nil {
		recipient := order.ContactEmail
		if recipient == "" {
			recipient = order.ContactPhone
		}
		if _, err := s.notifications.Dispatch(ctx, NotificationEvent{
			ClientID:  order.ClientID,
			Event:     "invoice.generated",
			Recipient: recipient,
			Payload: map[string]any{
				"invoice_number": invoice.Number,
				"order_number":   order.Number,
				"total":          invoice.Total,
				"currency":       invoice.Currency,
			},
		}); err != nil {
			s.logger(ctx, "invoice.notification.failed", map[string]any{
				"invoice_id": invoice.ID,
				"error":      err.Error(),
			})
		}
	}
	return invoice, nil
}

// CancelInvoice voids a final invoice. Cancellation is monotonic: a
// cancelled invoice stays cancelled with its original reason.
func (s *invoiceService) CancelInvoice(ctx context.Context, cmd CancelInvoiceCommand) (Invoice, error) {
	invoiceID := strings.TrimSpace(cmd.InvoiceID)
	if invoiceID == "" {
		return Invoice{}, fmt.Errorf("%w: invoice id is required", ErrInvoiceInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Invoice{}, fmt.Errorf("%w: cancellation reason is required", ErrInvoiceInvalidInput)
	}

	var invoice Invoice
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		invoice, err = s.repo.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Type != domain.InvoiceTypeFinal {
			return fmt.Errorf("%w: %s", ErrInvoiceNotCancellable, invoice.ID)
		}
		if invoice.IsCancelled {
			return nil
		}
		now := s.now()
		invoice.IsCancelled = true
		invoice.CancellationReason = &reason
		invoice.CancelledAt = &now
		invoice.UpdatedAt = now
		return s.repo.Update(ctx, invoice)
	})
	if err != nil {
		return Invoice{}, s.translateRepoError(err)
	}

	s.logger(ctx, "invoice.cancelled", map[string]any{"invoice_id": invoice.ID, "reason": reason})
	return invoice, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return Invoice{}, fmt.Errorf("%w: invoice id is required", ErrInvoiceInvalidInput)
	}
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return Invoice{}, s.translateRepoError(err)
	}
	return invoice, nil
}

// renderDocument stores the rendered document path when a renderer is wired.
// Rendering failures are logged, never surfaced.
func (s *invoiceService) renderDocument(ctx context.Context, invoice *Invoice) {
	if s.renderer == nil {
		return
	}
	path, err := s.renderer.Render(ctx, *invoice)
	if err != nil {
		s.logger(ctx, "invoice.render.failed", map[string]any{
			"invoice_id": invoice.ID,
			"error":      err.Error(),
		})
		return
	}
	invoice.DocumentPath = &path
	invoice.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, *invoice); err != nil {
		s.logger(ctx, "invoice.render.persist_failed", map[string]any{
			"invoice_id": invoice.ID,
			"error":      err.Error(),
		})
	}
}

func (s *invoiceService) publishEvent(ctx context.Context, client Client, event string, payload map[string]any) {
	if s.notifications == nil {
		return
	}
	recipient := client.Email
	if recipient == "" {
		recipient = client.Phone
	}
	if _, err := s.notifications.Dispatch(ctx, NotificationEvent{
		ClientID:  client.ID,
		Event:     event,
		Recipient: recipient,
		Payload:   payload,
	}); err != nil {
		s.logger(ctx, "invoice.notification.failed", map[string]any{
			"event": event,
			"error": err.Error(),
		})
	}
}

func (s *invoiceService) translateRepoError(err error) error {
	return mapRepositoryError(err, ErrInvoiceNotFound, ErrInvoiceConflict, ErrInvoiceUnavailable)
}
