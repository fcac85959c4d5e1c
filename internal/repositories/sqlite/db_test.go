package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vendorlane/api/internal/repositories"
)

func TestProviderRunsCommitHooksAfterCommit(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	var ran []string
	err := provider.RunInTx(ctx, func(ctx context.Context) error {
		repositories.AfterCommit(ctx, func(context.Context) { ran = append(ran, "outer") })
		// Nested scopes share the outer hook list.
		return provider.RunInTx(ctx, func(ctx context.Context) error {
			repositories.AfterCommit(ctx, func(context.Context) { ran = append(ran, "nested") })
			if len(ran) != 0 {
				t.Fatal("hooks must not run before commit")
			}
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, []string{"outer", "nested"}, ran)
}

func TestProviderDropsCommitHooksOnRollback(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	boom := errors.New("boom")
	var ran int
	err := provider.RunInTx(ctx, func(ctx context.Context) error {
		repositories.AfterCommit(ctx, func(context.Context) { ran++ })
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, ran)
}

func TestAfterCommitRunsImmediatelyOutsideTransaction(t *testing.T) {
	var ran int
	repositories.AfterCommit(context.Background(), func(context.Context) { ran++ })
	require.Equal(t, 1, ran)
}
