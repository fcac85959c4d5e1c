package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

func quoteFixture(cartID string, validUntil time.Time) domain.Invoice {
	return domain.Invoice{
		ID:         "inv_1",
		Number:     "QUO-20260305-0001",
		Type:       domain.InvoiceTypeQuote,
		ClientID:   "cl_1",
		CartID:     &cartID,
		Total:      5900,
		Currency:   "EUR",
		ValidUntil: &validUntil,
		CreatedAt:  testStamp,
		UpdatedAt:  testStamp,
	}
}

func TestInvoiceRepositoryFindActiveQuote(t *testing.T) {
	provider := newTestProvider(t)
	seedClient(t, provider, defaultClient())
	repo, err := NewInvoiceRepository(provider)
	require.NoError(t, err)

	ctx := context.Background()
	quote := quoteFixture("crt_1", testStamp.AddDate(0, 0, 14))
	require.NoError(t, repo.Insert(ctx, quote))

	found, err := repo.FindActiveQuote(ctx, "crt_1", testStamp)
	require.NoError(t, err)
	require.Equal(t, quote.ID, found.ID)
	require.Equal(t, quote.Number, found.Number)
	require.EqualValues(t, 5900, found.Total)
	require.NotNil(t, found.ValidUntil)
}

func TestInvoiceRepositoryFindActiveQuoteSkipsExpired(t *testing.T) {
	provider := newTestProvider(t)
	seedClient(t, provider, defaultClient())
	repo, err := NewInvoiceRepository(provider)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, quoteFixture("crt_1", testStamp.Add(-time.Hour))))

	_, err = repo.FindActiveQuote(ctx, "crt_1", testStamp)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsNotFound())
}

func TestInvoiceRepositoryFindActiveQuoteSkipsConverted(t *testing.T) {
	provider := newTestProvider(t)
	seedClient(t, provider, defaultClient())
	repo, err := NewInvoiceRepository(provider)
	require.NoError(t, err)

	ctx := context.Background()
	quote := quoteFixture("crt_1", testStamp.AddDate(0, 0, 14))
	require.NoError(t, repo.Insert(ctx, quote))

	orderID := "ord_1"
	convertedAt := testStamp
	quote.ConvertedToOrder = true
	quote.ConvertedAt = &convertedAt
	quote.OrderID = &orderID
	quote.UpdatedAt = testStamp
	require.NoError(t, repo.Update(ctx, quote))

	_, err = repo.FindActiveQuote(ctx, "crt_1", testStamp)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsNotFound())

	// The conversion flags survive the round trip.
	stored, err := repo.FindByID(ctx, quote.ID)
	require.NoError(t, err)
	require.True(t, stored.ConvertedToOrder)
	require.NotNil(t, stored.ConvertedAt)
	require.NotNil(t, stored.OrderID)
	require.Equal(t, orderID, *stored.OrderID)
}

func TestInvoiceRepositoryFindByOrderIDReturnsFinalOnly(t *testing.T) {
	provider := newTestProvider(t)
	seedClient(t, provider, defaultClient())
	repo, err := NewInvoiceRepository(provider)
	require.NoError(t, err)

	ctx := context.Background()
	orderID := "ord_1"

	// A converted quote referencing the order must not satisfy the
	// final-invoice lookup.
	quote := quoteFixture("crt_1", testStamp.AddDate(0, 0, 14))
	quote.OrderID = &orderID
	quote.ConvertedToOrder = true
	require.NoError(t, repo.Insert(ctx, quote))

	_, err = repo.FindByOrderID(ctx, orderID)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsNotFound())

	final := domain.Invoice{
		ID:        "inv_2",
		Number:    "INV-20260305-0001",
		Type:      domain.InvoiceTypeFinal,
		ClientID:  "cl_1",
		OrderID:   &orderID,
		Total:     5900,
		Currency:  "EUR",
		CreatedAt: testStamp,
		UpdatedAt: testStamp,
	}
	require.NoError(t, repo.Insert(ctx, final))

	found, err := repo.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, final.ID, found.ID)
	require.Equal(t, domain.InvoiceTypeFinal, found.Type)
}

func TestInvoiceRepositorySecondFinalInvoiceConflicts(t *testing.T) {
	provider := newTestProvider(t)
	seedClient(t, provider, defaultClient())
	repo, err := NewInvoiceRepository(provider)
	require.NoError(t, err)

	ctx := context.Background()
	orderID := "ord_1"
	final := domain.Invoice{
		ID:        "inv_1",
		Number:    "INV-20260305-0001",
		Type:      domain.InvoiceTypeFinal,
		ClientID:  "cl_1",
		OrderID:   &orderID,
		Total:     5900,
		Currency:  "EUR",
		CreatedAt: testStamp,
		UpdatedAt: testStamp,
	}
	require.NoError(t, repo.Insert(ctx, final))

	dup := final
	dup.ID = "inv_2"
	dup.Number = "INV-20260305-0002"
	err = repo.Insert(ctx, dup)
	require.Error(t, err)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	require.True(t, repoErr.IsConflict())

	// A converted quote referencing the same order is still allowed.
	quote := quoteFixture("crt_1", testStamp.AddDate(0, 0, 14))
	quote.ID = "inv_3"
	quote.Number = "QUO-20260305-0002"
	quote.OrderID = &orderID
	quote.ConvertedToOrder = true
	require.NoError(t, repo.Insert(ctx, quote))
}

func TestInvoiceRepositoryCancellationRoundTrip(t *testing.T) {
	provider := newTestProvider(t)
	seedClient(t, provider, defaultClient())
	repo, err := NewInvoiceRepository(provider)
	require.NoError(t, err)

	ctx := context.Background()
	orderID := "ord_1"
	invoice := domain.Invoice{
		ID:        "inv_1",
		Number:    "INV-20260305-0001",
		Type:      domain.InvoiceTypeFinal,
		ClientID:  "cl_1",
		OrderID:   &orderID,
		Total:     5900,
		Currency:  "EUR",
		CreatedAt: testStamp,
		UpdatedAt: testStamp,
	}
	require.NoError(t, repo.Insert(ctx, invoice))

	reason := "wrong amount"
	cancelledAt := testStamp.Add(time.Hour)
	invoice.IsCancelled = true
	invoice.CancellationReason = &reason
	invoice.CancelledAt = &cancelledAt
	invoice.UpdatedAt = cancelledAt
	require.NoError(t, repo.Update(ctx, invoice))

	stored, err := repo.FindByID(ctx, invoice.ID)
	require.NoError(t, err)
	require.True(t, stored.IsCancelled)
	require.NotNil(t, stored.CancellationReason)
	require.Equal(t, reason, *stored.CancellationReason)
	require.NotNil(t, stored.CancelledAt)
}
