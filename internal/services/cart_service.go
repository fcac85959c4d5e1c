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

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClientsRequired    = errors.New("cart service: client repository is required")
	errCartPricingRequired    = errors.New("cart service: pricing service is required")
	errCartCountersRequired   = errors.New("cart service: counter service is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the requested cart or cart item does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartClientNotFound indicates the owning client account does not exist.
var ErrCartClientNotFound = errors.New("cart service: client not found")

// CartServiceDeps wires the repositories and collaborators for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Clients     repositories.ClientRepository
	Pricing     PricingService
	Counters    CounterService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type cartService struct {
	repo     repositories.CartRepository
	clients  repositories.ClientRepository
	pricing  PricingService
	counters CounterService
	uow      repositories.UnitOfWork
	newID    func() string
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clients == nil {
		return nil, errCartClientsRequired
	}
	if deps.Pricing == nil {
		return nil, errCartPricingRequired
	}
	if deps.Counters == nil {
		return nil, errCartCountersRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
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

	return &cartService{
		repo:     deps.Repository,
		clients:  deps.Clients,
		pricing:  deps.Pricing,
		counters: deps.Counters,
		uow:      uow,
		newID:    idGen,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// CreateCart opens an empty cart for the client with a freshly minted number.
func (s *cartService) CreateCart(ctx context.Context, clientID string) (Cart, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return Cart{}, fmt.Errorf("%w: client id is required", ErrCartInvalidInput)
	}

	if _, err := s.clients.FindByID(ctx, clientID); err != nil {
		if isRepoNotFound(err) {
			return Cart{}, fmt.Errorf("%w: %s", ErrCartClientNotFound, clientID)
		}
		return Cart{}, s.translateRepoError(err)
	}

	var cart Cart
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		number, err := s.counters.NextCartNumber(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		cart = Cart{
			ID:        "crt_" + s.newID(),
			Number:    number,
			ClientID:  clientID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.Insert(ctx, cart)
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.created", map[string]any{"cart_id": cart.ID, "client_id": clientID})
	return cart, nil
}

func (s *cartService) GetCart(ctx context.Context, cartID string) (Cart, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// AddItem adds a product line or merges into the existing line for the same
// product. Either way the price snapshot and tier are refreshed from the
// client's current tier, so a re-add after a price change picks up the new
// amount.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	cartID := strings.TrimSpace(cmd.CartID)
	productID := strings.TrimSpace(cmd.ProductID)
	if cartID == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}

	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	client, err := s.clients.FindByID(ctx, cart.ClientID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, fmt.Errorf("%w: %s", ErrCartClientNotFound, cart.ClientID)
		}
		return Cart{}, s.translateRepoError(err)
	}

	price, err := s.pricing.ActivePrice(ctx, productID, client.Tier)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		if existing, ok := findCartItem(cart, productID); ok {
			existing.Quantity += cmd.Quantity
			existing.PriceSnapshot = price.Amount
			existing.PriceTier = client.Tier
			existing.UpdatedAt = &now
			if err := s.repo.UpdateItem(ctx, existing); err != nil {
				return err
			}
		} else {
			item := domain.CartItem{
				ID:            "cti_" + s.newID(),
				CartID:        cart.ID,
				ProductID:     productID,
				Quantity:      cmd.Quantity,
				PriceSnapshot: price.Amount,
				PriceTier:     client.Tier,
				AddedAt:       now,
			}
			if err := s.repo.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		return s.repo.Touch(ctx, cart.ID, now)
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"cart_id":    cart.ID,
		"product_id": productID,
		"quantity":   cmd.Quantity,
		"tier":       string(client.Tier),
	})
	return s.GetCart(ctx, cart.ID)
}

// UpdateQuantity sets an item line to an absolute quantity. A quantity of
// zero or less removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateCartQuantityCommand) (Cart, error) {
	cartID := strings.TrimSpace(cmd.CartID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if cartID == "" {
		return Cart{}, fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	if itemID == "" {
		return Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	item, ok := findCartItemByID(cart, itemID)
	if !ok {
		return Cart{}, fmt.Errorf("%w: item %s", ErrCartNotFound, itemID)
	}

	now := s.now()
	err = s.uow.RunInTx(ctx, func(ctx context.Context) error {
		if cmd.Quantity <= 0 {
			if err := s.repo.DeleteItem(ctx, cart.ID, item.ID); err != nil {
				return err
			}
		} else {
			item.Quantity = cmd.Quantity
			item.UpdatedAt = &now
			if err := s.repo.UpdateItem(ctx, item); err != nil {
				return err
			}
		}
		return s.repo.Touch(ctx, cart.ID, now)
	})
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.GetCart(ctx, cart.ID)
}

func (s *cartService) RemoveItem(ctx context.Context, cartID, itemID string) (Cart, error) {
	return s.UpdateQuantity(ctx, UpdateCartQuantityCommand{CartID: cartID, ItemID: itemID, Quantity: 0})
}

// Total recomputes the cart total from stored snapshots, never from live prices.
func (s *cartService) Total(ctx context.Context, cartID string) (int64, error) {
	cart, err := s.GetCart(ctx, cartID)
	if err != nil {
		return 0, err
	}
	return cart.Total(), nil
}

// ClearAndDelete removes the cart and its items outright.
func (s *cartService) ClearAndDelete(ctx context.Context, cartID string) error {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return fmt.Errorf("%w: cart id is required", ErrCartInvalidInput)
	}
	if err := s.repo.Delete(ctx, cartID); err != nil {
		return s.translateRepoError(err)
	}
	s.logger(ctx, "cart.deleted", map[string]any{"cart_id": cartID})
	return nil
}

func (s *cartService) translateRepoError(err error) error {
	return mapRepositoryError(err, ErrCartNotFound, ErrCartConflict, ErrCartUnavailable)
}

func findCartItem(cart Cart, productID string) (domain.CartItem, bool) {
	for _, item := range cart.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return domain.CartItem{}, false
}

func findCartItemByID(cart Cart, itemID string) (domain.CartItem, bool) {
	for _, item := range cart.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return domain.CartItem{}, false
}
