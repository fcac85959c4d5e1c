package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vendorlane/api/internal/domain"
)

var testStamp = time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	provider, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, provider.Close())
	})
	require.NoError(t, provider.Migrate(context.Background()))
	return provider
}

func seedClient(t *testing.T, provider *Provider, client domain.Client) {
	t.Helper()

	_, err := provider.DB().ExecContext(context.Background(), `
		INSERT INTO clients (id, name, email, phone, tier, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID, client.Name, client.Email, client.Phone, client.Tier, client.IsActive,
		client.CreatedAt, client.UpdatedAt)
	require.NoError(t, err)
}

func defaultClient() domain.Client {
	return domain.Client{
		ID:        "cl_1",
		Name:      "Anna Kowalska",
		Email:     "anna@example.com",
		Tier:      domain.TierInstaller,
		IsActive:  true,
		CreatedAt: testStamp,
		UpdatedAt: testStamp,
	}
}
