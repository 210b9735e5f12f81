package repositories

import (
	"context"

	domain "github.com/catalogforge/api/internal/domain"
)

// RepositoryError lets storage backends surface outcome semantics without
// leaking driver error types.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Variants() VariantRepository
	AxisTemplates() AxisTemplateRepository
	Health() HealthRepository
}

// VariantUpdate describes a partial mutation of a persisted variant. Nil
// fields are left untouched.
type VariantUpdate struct {
	SKU    *string
	Price  *float64
	Stock  *int
	Status *domain.VariantStatus
}

// VariantRepository persists variant documents under their parent product.
// Create must reject a second variant with the same axis signature under the
// same parent with a conflict error.
type VariantRepository interface {
	Create(ctx context.Context, parentID string, req domain.GeneratedVariantRequest) (domain.Variant, error)
	FindByID(ctx context.Context, variantID string) (domain.Variant, error)
	FindByParentAndAxisSignature(ctx context.Context, parentID, signature string) (domain.Variant, error)
	ListByParent(ctx context.Context, parentID string) ([]domain.Variant, error)
	Update(ctx context.Context, variantID string, update VariantUpdate) (domain.Variant, error)
}

// AxisTemplateRepository persists reusable axis declarations.
type AxisTemplateRepository interface {
	Create(ctx context.Context, template domain.AxisTemplate) (domain.AxisTemplate, error)
	Get(ctx context.Context, templateID string) (domain.AxisTemplate, error)
	List(ctx context.Context) ([]domain.AxisTemplate, error)
	Update(ctx context.Context, template domain.AxisTemplate) (domain.AxisTemplate, error)
	Delete(ctx context.Context, templateID string) error
	IncrementUsage(ctx context.Context, templateID string) (domain.AxisTemplate, error)
}

// HealthRepository verifies connectivity with the backing data store.
type HealthRepository interface {
	Ping(ctx context.Context) error
}
