package sqlite

import (
	"context"
	"strings"

	"github.com/vendorlane/api/internal/repositories"
)

type counterRepository struct {
	provider *Provider
}

// NewCounterRepository builds the SQLite-backed counter repository.
func NewCounterRepository(provider *Provider) (repositories.CounterRepository, error) {
	if provider == nil {
		return nil, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "sqlite provider is required", nil)
	}
	return &counterRepository{provider: provider}, nil
}

// Next atomically increments the counter, creating it on first use. The
// upsert-returning form keeps concurrent callers from ever observing the
// same value.
func (r *counterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	counterID = strings.TrimSpace(counterID)
	if counterID == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step <= 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "step must be positive", nil)
	}

	const query = `
		INSERT INTO counters (id, current_value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			current_value = counters.current_value + excluded.current_value,
			updated_at = CURRENT_TIMESTAMP
		RETURNING current_value
	`
	var value int64
	if err := r.provider.q(ctx).QueryRowContext(ctx, query, counterID, step).Scan(&value); err != nil {
		return 0, wrapError("counters.next", err)
	}
	return value, nil
}
