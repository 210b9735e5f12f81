package services

import (
	"context"

	domain "github.com/catalogforge/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Axis            = domain.Axis
	AxisValue       = domain.AxisValue
	AxisSelection   = domain.AxisSelection
	AxisTemplate    = domain.AxisTemplate
	Combination     = domain.Combination
	Parent          = domain.Parent
	Variant         = domain.Variant
	VariantStatus   = domain.VariantStatus
	VariantMatrix   = domain.VariantMatrix
	MatrixResult    = domain.MatrixResult
	MatrixSummary   = domain.MatrixSummary
	PriceAdjustment = domain.PriceAdjustment
)

// VariantGenerationService expands variation axes into concrete variants,
// previewing or persisting the Cartesian product under a parent product.
type VariantGenerationService interface {
	Preview(ctx context.Context, input GenerateVariantsInput) (GenerationPreview, error)
	Generate(ctx context.Context, input GenerateVariantsInput) (GenerationResult, error)
}

// VariantMatrixService rebuilds the N-dimensional matrix view over an
// existing variant family and applies cell and bulk mutations.
type VariantMatrixService interface {
	Matrix(ctx context.Context, parentID string) (MatrixResult, error)
	UpdateCell(ctx context.Context, variantID string, update CellUpdate) (Variant, error)
	BulkPrice(ctx context.Context, parentID string, input BulkPriceInput) (BulkUpdateResult, error)
	BulkInventory(ctx context.Context, parentID string, input BulkInventoryInput) (BulkUpdateResult, error)
}

// AxisTemplateService manages reusable axis declarations that seed the
// generation flow.
type AxisTemplateService interface {
	CreateTemplate(ctx context.Context, input AxisTemplateInput) (AxisTemplate, error)
	GetTemplate(ctx context.Context, templateID string) (AxisTemplate, error)
	ListTemplates(ctx context.Context) ([]AxisTemplate, error)
	UpdateTemplate(ctx context.Context, templateID string, input AxisTemplateInput) (AxisTemplate, error)
	DeleteTemplate(ctx context.Context, templateID string) error
	ApplyTemplate(ctx context.Context, templateID string) ([]Axis, error)
}

// VariantEventPublisher accepts variant lifecycle notifications for downstream processing.
type VariantEventPublisher interface {
	Publish(ctx context.Context, event string, payload map[string]any) error
}
