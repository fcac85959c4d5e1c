package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vendorlane/api/internal/domain"
	"github.com/vendorlane/api/internal/repositories"
)

type clientRepository struct {
	provider *Provider
}

// NewClientRepository builds the SQLite-backed client repository.
func NewClientRepository(provider *Provider) (repositories.ClientRepository, error) {
	if provider == nil {
		return nil, fmt.Errorf("sqlite provider is required")
	}
	return &clientRepository{provider: provider}, nil
}

func (r *clientRepository) FindByID(ctx context.Context, id string) (domain.Client, error) {
	const query = `
		SELECT id, name, email, phone, tier, is_active, created_at, updated_at
		FROM clients WHERE id = ?
	`
	var client domain.Client
	err := r.provider.q(ctx).QueryRowContext(ctx, query, id).Scan(
		&client.ID, &client.Name, &client.Email, &client.Phone,
		&client.Tier, &client.IsActive, &client.CreatedAt, &client.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Client{}, notFoundError("clients.find_by_id")
	}
	if err != nil {
		return domain.Client{}, wrapError("clients.find_by_id", err)
	}
	return client, nil
}
