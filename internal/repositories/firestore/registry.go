package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/catalogforge/api/internal/platform/firestore"
	"github.com/catalogforge/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider  *pfirestore.Provider
	variants  *VariantRepository
	templates *AxisTemplateRepository
	health    *healthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository against a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}

	variants, err := NewVariantRepository(provider)
	if err != nil {
		return nil, err
	}
	templates, err := NewAxisTemplateRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:  provider,
		variants:  variants,
		templates: templates,
		health:    &healthRepository{provider: provider},
	}, nil
}

// Variants returns the variant repository.
func (r *Registry) Variants() repositories.VariantRepository { return r.variants }

// AxisTemplates returns the axis template repository.
func (r *Registry) AxisTemplates() repositories.AxisTemplateRepository { return r.templates }

// Health returns the connectivity probe.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

type healthRepository struct {
	provider *pfirestore.Provider
}

// Ping issues a cheap read to confirm the backend answers. A missing probe
// document still proves connectivity.
func (h *healthRepository) Ping(ctx context.Context) error {
	client, err := h.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection("healthChecks").Doc("ping").Get(ctx)
	if err != nil {
		wrapped := pfirestore.WrapError("health.ping", err)
		var re repositories.RepositoryError
		if errors.As(wrapped, &re) && re.IsNotFound() {
			return nil
		}
		return wrapped
	}
	return nil
}
