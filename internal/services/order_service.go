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

// ErrOrderInvalidInput indicates the caller supplied invalid order parameters.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderConflict indicates the order could not be updated due to concurrent modifications.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// ErrOrderCartEmpty indicates order creation was attempted from a cart with no items.
var ErrOrderCartEmpty = errors.New("order service: cart is empty")

// ErrOrderTerminal indicates the order already reached a terminal status.
var ErrOrderTerminal = errors.New("order service: order is terminal")

// ErrOrderInvalidTransition indicates the requested status change is not allowed.
var ErrOrderInvalidTransition = errors.New("order service: invalid status transition")

// ErrOrderNoPriceForTier indicates a manual order line has no active price at the client's tier.
var ErrOrderNoPriceForTier = errors.New("order service: no price for tier")

// ErrOrderCancelReasonRequired indicates cancellation was requested without a reason.
var ErrOrderCancelReasonRequired = errors.New("order service: cancel reason is required")

// orderTransitions is the only authority on forward movement through the
// order lifecycle. Terminal states are checked before this map is consulted.
var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusNew:        {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusCompleted, domain.OrderStatusCancelled},
}

func canTransition(from, to domain.OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderServiceDeps wires the repositories and collaborators for order operations.
type OrderServiceDeps struct {
	Repository      repositories.OrderRepository
	Carts           repositories.CartRepository
	Clients         repositories.ClientRepository
	Catalog         repositories.CatalogRepository
	Pricing         PricingService
	Counters        CounterService
	Notifications   NotificationService
	UnitOfWork      repositories.UnitOfWork
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type orderService struct {
	repo          repositories.OrderRepository
	carts         repositories.CartRepository
	clients       repositories.ClientRepository
	catalog       repositories.CatalogRepository
	pricing       PricingService
	counters      CounterService
	notifications NotificationService
	uow           repositories.UnitOfWork
	newID         func() string
	now           func() time.Time
	currency      string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errors.New("order service: repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("order service: client repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
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

	return &orderService{
		repo:          deps.Repository,
		carts:         deps.Carts,
		clients:       deps.Clients,
		catalog:       deps.Catalog,
		pricing:       deps.Pricing,
		counters:      deps.Counters,
		notifications: deps.Notifications,
		uow:           uow,
		newID:         idGen,
		now:           func() time.Time { return clock().UTC() },
		currency:      currency,
		logger:        logger,
	}, nil
}

// CreateFromCart converts a cart into an order atomically: the order and its
// denormalised items are written and the cart is deleted in one transaction.
// Contact data is copied from the client so later account edits never touch
// the committed order.
func (s *orderService) CreateFromCart(ctx context.Context, cmd CreateOrderFromCartCommand) (Order, error) {
	cartID := strings.TrimSpace(cmd.CartID)
	if cartID == "" {
		return Order{}, fmt.Errorf("%w: cart id is required", ErrOrderInvalidInput)
	}

	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if len(cart.Items) == 0 {
		return Order{}, fmt.Errorf("%w: cart %s", ErrOrderCartEmpty, cartID)
	}

	client, err := s.clients.FindByID(ctx, cart.ClientID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	staffNote := strings.TrimSpace(cmd.StaffNote)
	if quote := strings.TrimSpace(cmd.QuoteNumber); quote != "" {
		ref := "Converted from quote " + quote
		if staffNote != "" {
			staffNote = ref + "\n" + staffNote
		} else {
			staffNote = ref
		}
	}

	var order Order
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		number, err := s.counters.NextOrderNumber(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		order = Order{
			ID:           "ord_" + s.newID(),
			Number:       number,
			ClientID:     client.ID,
			Status:       domain.OrderStatusNew,
			ContactName:  client.Name,
			ContactEmail: client.Email,
			ContactPhone: client.Phone,
			Currency:     s.currency,
			StaffNote:    staffNote,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		for _, line := range cart.Items {
			product, err := s.catalog.FindProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			item := domain.OrderItem{
				ID:          "oit_" + s.newID(),
				OrderID:     order.ID,
				ProductID:   product.ID,
				CompanyID:   product.CompanyID,
				ProductName: product.Name,
				SKU:         product.SKU,
				Quantity:    line.Quantity,
				UnitPrice:   line.PriceSnapshot,
				Subtotal:    line.PriceSnapshot * int64(line.Quantity),
			}
			order.Total += item.Subtotal
			order.Items = append(order.Items, item)
		}

		if err := s.repo.Insert(ctx, order); err != nil {
			return err
		}
		return s.carts.Delete(ctx, cart.ID)
	})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"order_id":  order.ID,
		"number":    order.Number,
		"client_id": order.ClientID,
		"total":     order.Total,
	})
	s.publishEvent(ctx, order, "order.created", map[string]any{
		"order_number": order.Number,
		"total":        order.Total,
		"currency":     order.Currency,
	})
	return order, nil
}

// CreateManual creates an order on behalf of a client from explicit product
// lines, priced at the client's tier. Any line without an active price at
// that tier aborts the whole order before anything is written.
func (s *orderService) CreateManual(ctx context.Context, cmd CreateManualOrderCommand) (Order, error) {
	clientID := strings.TrimSpace(cmd.ClientID)
	if clientID == "" {
		return Order{}, fmt.Errorf("%w: client id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: at least one line is required", ErrOrderInvalidInput)
	}
	for _, line := range cmd.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return Order{}, fmt.Errorf("%w: line product id is required", ErrOrderInvalidInput)
		}
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: line quantity must be positive", ErrOrderInvalidInput)
		}
	}
	if s.pricing == nil {
		return Order{}, ErrOrderUnavailable
	}

	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	type pricedLine struct {
		product domain.Product
		price   domain.ProductPrice
		qty     int
	}
	priced := make([]pricedLine, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		productID := strings.TrimSpace(line.ProductID)
		product, err := s.catalog.FindProduct(ctx, productID)
		if err != nil {
			return Order{}, s.translateRepoError(err)
		}
		price, err := s.pricing.ActivePrice(ctx, productID, client.Tier)
		if err != nil {
			if errors.Is(err, ErrPriceNotFound) {
				return Order{}, fmt.Errorf("%w: product %s tier %s", ErrOrderNoPriceForTier, productID, client.Tier)
			}
			return Order{}, err
		}
		priced = append(priced, pricedLine{product: product, price: price, qty: line.Quantity})
	}

	actor := strings.TrimSpace(cmd.CreatedBy)

	var order Order
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		number, err := s.counters.NextOrderNumber(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		order = Order{
			ID:           "ord_" + s.newID(),
			Number:       number,
			ClientID:     client.ID,
			Status:       domain.OrderStatusProcessing,
			ContactName:  client.Name,
			ContactEmail: client.Email,
			ContactPhone: client.Phone,
			Currency:     s.currency,
			StaffNote:    strings.TrimSpace(cmd.StaffNote),
			ProcessedAt:  &now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if actor != "" {
			order.ProcessedBy = &actor
		}
		for _, line := range priced {
			item := domain.OrderItem{
				ID:          "oit_" + s.newID(),
				OrderID:     order.ID,
				ProductID:   line.product.ID,
				CompanyID:   line.product.CompanyID,
				ProductName: line.product.Name,
				SKU:         line.product.SKU,
				Quantity:    line.qty,
				UnitPrice:   line.price.Amount,
				Subtotal:    line.price.Amount * int64(line.qty),
			}
			order.Total += item.Subtotal
			order.Items = append(order.Items, item)
		}
		return s.repo.Insert(ctx, order)
	})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.created.manual", map[string]any{
		"order_id":  order.ID,
		"number":    order.Number,
		"client_id": order.ClientID,
		"actor":     actor,
	})
	s.publishEvent(ctx, order, "order.created", map[string]any{
		"order_number": order.Number,
		"total":        order.Total,
		"currency":     order.Currency,
	})
	return order, nil
}

// UpdateStatus moves an order through its lifecycle. Terminal orders reject
// every transition. Re-requesting the current status only refreshes
// UpdatedAt and sends no notification.
func (s *orderService) UpdateStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.Status
	switch target {
	case domain.OrderStatusNew, domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled:
	default:
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}
	if target == domain.OrderStatusCancelled {
		// Cancellation keeps its mandatory reason even when requested
		// through the status surface.
		return s.Cancel(ctx, CancelOrderCommand{OrderID: orderID, Reason: cmd.Reason, ActorID: cmd.ActorID})
	}

	var (
		order   Order
		changed bool
	)
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Status.Terminal() {
			return fmt.Errorf("%w: order %s is %s", ErrOrderTerminal, order.ID, order.Status)
		}

		now := s.now()
		if order.Status == target {
			order.UpdatedAt = now
			return s.repo.Update(ctx, order)
		}
		if !canTransition(order.Status, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, target)
		}

		previous := order.Status
		order.Status = target
		order.UpdatedAt = now
		switch target {
		case domain.OrderStatusProcessing:
			order.ProcessedAt = &now
			if actor := strings.TrimSpace(cmd.ActorID); actor != "" {
				order.ProcessedBy = &actor
			}
		case domain.OrderStatusCompleted:
			order.CompletedAt = &now
		}
		if err := s.repo.Update(ctx, order); err != nil {
			return err
		}
		changed = true
		s.logger(ctx, "order.status.changed", map[string]any{
			"order_id": order.ID,
			"from":     string(previous),
			"to":       string(target),
		})
		return nil
	})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	if changed {
		s.publishEvent(ctx, order, "order.status.changed", map[string]any{
			"order_number": order.Number,
			"status":       string(order.Status),
		})
	}
	return order, nil
}

// Cancel moves the order to its cancelled terminal state with a mandatory reason.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return Order{}, ErrOrderCancelReasonRequired
	}

	var order Order
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return fmt.Errorf("%w: order %s is %s", ErrOrderTerminal, order.ID, order.Status)
		}
		if !canTransition(order.Status, domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, order.Status, domain.OrderStatusCancelled)
		}

		now := s.now()
		order.Status = domain.OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelReason = &reason
		order.UpdatedAt = now
		return s.repo.Update(ctx, order)
	})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.cancelled", map[string]any{"order_id": order.ID, "reason": reason})
	s.publishEvent(ctx, order, "order.status.changed", map[string]any{
		"order_number": order.Number,
		"status":       string(order.Status),
		"reason":       reason,
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error) {
	orders, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

// publishEvent dispatches a notification without letting delivery problems
// surface to the business operation. Dispatch waits for the enclosing
// transaction to commit, so a rolled-back write never produces an event.
func (s *orderService) publishEvent(ctx context.Context, order Order, event string, payload map[string]any) {
	if s.notifications == nil {
		return
	}
	recipient := order.ContactEmail
	if recipient == "" {
		recipient = order.ContactPhone
	}
	repositories.AfterCommit(ctx, func(ctx context.Context) {
		if _, err := s.notifications.Dispatch(ctx, NotificationEvent{
			ClientID:  order.ClientID,
			Event:     event,
			Recipient: recipient,
			Payload:   payload,
		}); err != nil {
			s.logger(ctx, "order.notification.failed", map[string]any{
				"order_id": order.ID,
				"event":    event,
				"error":    err.Error(),
			})
		}
	})
}

func (s *orderService) translateRepoError(err error) error {
	return mapRepositoryError(err, ErrOrderNotFound, ErrOrderConflict, ErrOrderUnavailable)
}
