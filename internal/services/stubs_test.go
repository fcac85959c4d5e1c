package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

// fixedClock returns a deterministic clock for tests.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

// stubRepoError implements repositories.RepositoryError for stub repositories.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return e.msg }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

var errStubNotFound = stubRepoError{msg: "stub: not found", notFound: true}

var errStubConflict = stubRepoError{msg: "stub: conflict", conflict: true}

type txMarker struct{}

// txUnitOfWork emulates a transactional store: nested calls join the ambient
// scope and after-commit hooks run only once the outermost call returns
// cleanly.
type txUnitOfWork struct {
	mu      sync.Mutex
	commits int
}

func (u *txUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	hookCtx, flush := repositories.CollectCommitHooks(ctx)
	if err := fn(context.WithValue(hookCtx, txMarker{}, struct{}{})); err != nil {
		return err
	}
	u.mu.Lock()
	u.commits++
	u.mu.Unlock()
	flush(ctx)
	return nil
}

func (u *txUnitOfWork) committed() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.commits
}

type stubClientRepo struct {
	mu      sync.Mutex
	clients map[string]domain.Client
}

func newStubClientRepo(clients ...domain.Client) *stubClientRepo {
	repo := &stubClientRepo{clients: make(map[string]domain.Client)}
	for _, c := range clients {
		repo.clients[c.ID] = c
	}
	return repo
}

func (r *stubClientRepo) FindByID(_ context.Context, id string) (domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[id]
	if !ok {
		return domain.Client{}, errStubNotFound
	}
	return client, nil
}

type stubCartRepo struct {
	mu       sync.Mutex
	carts    map[string]domain.Cart
	inserted []domain.Cart
	updated  []domain.CartItem
	deleted  []string
	touched  []string
}

func newStubCartRepo(carts ...domain.Cart) *stubCartRepo {
	repo := &stubCartRepo{carts: make(map[string]domain.Cart)}
	for _, c := range carts {
		repo.carts[c.ID] = c
	}
	return repo
}

func (r *stubCartRepo) Insert(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[cart.ID] = cart
	r.inserted = append(r.inserted, cart)
	return nil
}

func (r *stubCartRepo) FindByID(_ context.Context, id string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[id]
	if !ok {
		return domain.Cart{}, errStubNotFound
	}
	return cart, nil
}

func (r *stubCartRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[id]; !ok {
		return errStubNotFound
	}
	delete(r.carts, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubCartRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[id]
	if !ok {
		return errStubNotFound
	}
	cart.UpdatedAt = at
	r.carts[id] = cart
	r.touched = append(r.touched, id)
	return nil
}

func (r *stubCartRepo) InsertItem(_ context.Context, item domain.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[item.CartID]
	if !ok {
		return errStubNotFound
	}
	cart.Items = append(cart.Items, item)
	r.carts[item.CartID] = cart
	return nil
}

func (r *stubCartRepo) UpdateItem(_ context.Context, item domain.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[item.CartID]
	if !ok {
		return errStubNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ID == item.ID {
			cart.Items[i] = item
			r.carts[item.CartID] = cart
			r.updated = append(r.updated, item)
			return nil
		}
	}
	return errStubNotFound
}

func (r *stubCartRepo) DeleteItem(_ context.Context, cartID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[cartID]
	if !ok {
		return errStubNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			r.carts[cartID] = cart
			return nil
		}
	}
	return errStubNotFound
}

type stubOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	inserted []domain.Order
	updated  []domain.Order
}

func newStubOrderRepo(orders ...domain.Order) *stubOrderRepo {
	repo := &stubOrderRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (r *stubOrderRepo) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	r.inserted = append(r.inserted, order)
	return nil
}

func (r *stubOrderRepo) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return errStubNotFound
	}
	r.orders[order.ID] = order
	r.updated = append(r.updated, order)
	return nil
}

func (r *stubOrderRepo) FindByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, errStubNotFound
	}
	return order, nil
}

func (r *stubOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, order := range r.orders {
		if filter.ClientID != "" && order.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

type stubInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]domain.Invoice
	inserted []domain.Invoice
	updated  []domain.Invoice
	// updateErr, when set, fails every Update call.
	updateErr error
	// onFindByOrder runs at the start of FindByOrderID, outside the lock.
	onFindByOrder func()
}

func newStubInvoiceRepo(invoices ...domain.Invoice) *stubInvoiceRepo {
	repo := &stubInvoiceRepo{invoices: make(map[string]domain.Invoice)}
	for _, inv := range invoices {
		repo.invoices[inv.ID] = inv
	}
	return repo
}

func (r *stubInvoiceRepo) Insert(_ context.Context, invoice domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirror the schema: at most one final invoice per order.
	if invoice.Type == domain.InvoiceTypeFinal && invoice.OrderID != nil {
		for _, existing := range r.invoices {
			if existing.Type == domain.InvoiceTypeFinal && existing.OrderID != nil && *existing.OrderID == *invoice.OrderID {
				return errStubConflict
			}
		}
	}
	r.invoices[invoice.ID] = invoice
	r.inserted = append(r.inserted, invoice)
	return nil
}

func (r *stubInvoiceRepo) Update(_ context.Context, invoice domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.invoices[invoice.ID]; !ok {
		return errStubNotFound
	}
	r.invoices[invoice.ID] = invoice
	r.updated = append(r.updated, invoice)
	return nil
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, id string) (domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	invoice, ok := r.invoices[id]
	if !ok {
		return domain.Invoice{}, errStubNotFound
	}
	return invoice, nil
}

func (r *stubInvoiceRepo) FindByOrderID(_ context.Context, orderID string) (domain.Invoice, error) {
	if r.onFindByOrder != nil {
		r.onFindByOrder()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, invoice := range r.invoices {
		if invoice.Type == domain.InvoiceTypeFinal && invoice.OrderID != nil && *invoice.OrderID == orderID {
			return invoice, nil
		}
	}
	return domain.Invoice{}, errStubNotFound
}

func (r *stubInvoiceRepo) FindActiveQuote(_ context.Context, cartID string, now time.Time) (domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, invoice := range r.invoices {
		if invoice.Type != domain.InvoiceTypeQuote || invoice.ConvertedToOrder {
			continue
		}
		if invoice.CartID == nil || *invoice.CartID != cartID {
			continue
		}
		if invoice.ValidUntil != nil && invoice.ValidUntil.Before(now) {
			continue
		}
		return invoice, nil
	}
	return domain.Invoice{}, errStubNotFound
}

type stubCatalogRepo struct {
	mu          sync.Mutex
	companies   map[string]domain.VendorCompany
	products    map[string]domain.Product
	prices      map[string]map[domain.PriceTier]domain.ProductPrice
	setActive   []bool
	deactivated []string
	reactivated []string
	cascade     struct {
		products int64
		prices   int64
	}
}

func newStubCatalogRepo() *stubCatalogRepo {
	return &stubCatalogRepo{
		companies: make(map[string]domain.VendorCompany),
		products:  make(map[string]domain.Product),
		prices:    make(map[string]map[domain.PriceTier]domain.ProductPrice),
	}
}

func (r *stubCatalogRepo) addCompany(company domain.VendorCompany) {
	r.companies[company.ID] = company
}

func (r *stubCatalogRepo) addProduct(product domain.Product) {
	r.products[product.ID] = product
}

func (r *stubCatalogRepo) addPrice(price domain.ProductPrice) {
	tiers, ok := r.prices[price.ProductID]
	if !ok {
		tiers = make(map[domain.PriceTier]domain.ProductPrice)
		r.prices[price.ProductID] = tiers
	}
	tiers[price.Tier] = price
}

func (r *stubCatalogRepo) FindCompany(_ context.Context, id string) (domain.VendorCompany, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	company, ok := r.companies[id]
	if !ok {
		return domain.VendorCompany{}, errStubNotFound
	}
	return company, nil
}

func (r *stubCatalogRepo) SetCompanyActive(_ context.Context, id string, active bool, by *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	company, ok := r.companies[id]
	if !ok {
		return errStubNotFound
	}
	company.IsActive = active
	company.DeactivatedBy = by
	if active {
		company.DeactivatedAt = nil
	} else {
		company.DeactivatedAt = &at
	}
	company.UpdatedAt = at
	r.companies[id] = company
	r.setActive = append(r.setActive, active)
	return nil
}

func (r *stubCatalogRepo) FindProduct(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return domain.Product{}, errStubNotFound
	}
	return product, nil
}

func (r *stubCatalogRepo) ActivePrice(_ context.Context, productID string, tier domain.PriceTier) (domain.ProductPrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	price, ok := r.prices[productID][tier]
	if !ok || !price.IsActive {
		return domain.ProductPrice{}, errStubNotFound
	}
	return price, nil
}

func (r *stubCatalogRepo) DeactivateCatalog(_ context.Context, companyID string, _ time.Time) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivated = append(r.deactivated, companyID)
	return r.cascade.products, r.cascade.prices, nil
}

func (r *stubCatalogRepo) ReactivateCatalog(_ context.Context, companyID string, _ time.Time) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactivated = append(r.reactivated, companyID)
	return r.cascade.products, r.cascade.prices, nil
}

type stubNotificationRepo struct {
	mu       sync.Mutex
	records  map[string]domain.Notification
	inserted []domain.Notification
	updated  []domain.Notification
}

func newStubNotificationRepo(records ...domain.Notification) *stubNotificationRepo {
	repo := &stubNotificationRepo{records: make(map[string]domain.Notification)}
	for _, n := range records {
		repo.records[n.ID] = n
	}
	return repo
}

func (r *stubNotificationRepo) Insert(_ context.Context, notification domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[notification.ID] = notification
	r.inserted = append(r.inserted, notification)
	return nil
}

func (r *stubNotificationRepo) Update(_ context.Context, notification domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[notification.ID]; !ok {
		return errStubNotFound
	}
	r.records[notification.ID] = notification
	r.updated = append(r.updated, notification)
	return nil
}

func (r *stubNotificationRepo) FindByID(_ context.Context, id string) (domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	notification, ok := r.records[id]
	if !ok {
		return domain.Notification{}, errStubNotFound
	}
	return notification, nil
}

func (r *stubNotificationRepo) ListPending(_ context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, notification := range r.records {
		if notification.Status != domain.NotificationStatusPending {
			continue
		}
		if notification.ScheduledFor != nil && notification.ScheduledFor.After(now) {
			continue
		}
		out = append(out, notification)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type stubCounterRepo struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newStubCounterRepo() *stubCounterRepo {
	return &stubCounterRepo{counts: make(map[string]int64)}
}

func (r *stubCounterRepo) Next(_ context.Context, counterID string, step int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[counterID] += step
	return r.counts[counterID], nil
}

// recordingNotifier captures dispatched events and succeeds or fails per the
// configured error.
type recordingNotifier struct {
	mu     sync.Mutex
	events []NotificationEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

// recordingDispatcher implements NotificationService for services that only
// call Dispatch.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []NotificationEvent
	err    error
	// onDispatch runs at the start of Dispatch, outside the lock.
	onDispatch func()
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event NotificationEvent) (Notification, error) {
	if d.onDispatch != nil {
		d.onDispatch()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	if d.err != nil {
		return Notification{}, d.err
	}
	return Notification{ID: "ntf_stub", Event: event.Event}, nil
}

func (d *recordingDispatcher) Pending(context.Context, int) ([]Notification, error) {
	return nil, nil
}

func (d *recordingDispatcher) DeliverPending(context.Context, int) (DeliveryReport, error) {
	return DeliveryReport{}, nil
}

func (d *recordingDispatcher) MarkSent(context.Context, string) (Notification, error) {
	return Notification{}, errors.New("not implemented")
}

func (d *recordingDispatcher) MarkFailed(context.Context, string, string) (Notification, error) {
	return Notification{}, errors.New("not implemented")
}

func (d *recordingDispatcher) Cancel(context.Context, string) (Notification, error) {
	return Notification{}, errors.New("not implemented")
}

func (d *recordingDispatcher) eventNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.events))
	for _, event := range d.events {
		names = append(names, event.Event)
	}
	return names
}

// stubMessenger fails for recipients listed in failFor.
type stubMessenger struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
}

func (m *stubMessenger) Send(_ context.Context, _ NotificationChannel, recipient string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failFor[recipient]; ok {
		return err
	}
	m.sent = append(m.sent, recipient)
	return nil
}

func newCounters(t time.Time) CounterService {
	counters, err := NewCounterService(CounterServiceDeps{
		Repository: newStubCounterRepo(),
		Clock:      fixedClock(t),
	})
	if err != nil {
		panic(err)
	}
	return counters
}
