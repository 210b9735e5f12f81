package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/repositories"
)

const (
	eventVariantsGenerated = "variants.generated"

	// defaultMaxCombinations caps a single generation run unless the caller
	// explicitly confirms a larger set.
	defaultMaxCombinations = 500
)

var (
	// ErrGenerationInvalidInput signals the caller provided invalid arguments.
	ErrGenerationInvalidInput = errors.New("variant generation: invalid input")
	// ErrTooManyCombinations indicates the axis product exceeds the configured
	// ceiling and the caller did not confirm the run.
	ErrTooManyCombinations = errors.New("variant generation: too many combinations")
)

// TooManyCombinationsError reports how far a requested product overshoots the
// ceiling so callers can surface both numbers.
type TooManyCombinationsError struct {
	Size    int
	Ceiling int
}

// Error implements the error interface.
func (e *TooManyCombinationsError) Error() string {
	return fmt.Sprintf("variant generation: %d combinations exceeds ceiling of %d", e.Size, e.Ceiling)
}

// Unwrap ties the typed error to the ErrTooManyCombinations sentinel.
func (e *TooManyCombinationsError) Unwrap() error {
	return ErrTooManyCombinations
}

// GenerateVariantsInput describes one generation run over a parent product.
type GenerateVariantsInput struct {
	Parent       Parent
	Axes         []Axis
	SKU          SKUConfig
	Pricing      PricingConfig
	InitialStock int
	Status       VariantStatus
	// InheritFields names the parent attributes copied verbatim onto every
	// created variant.
	InheritFields []string
	// SkipExisting makes the run idempotent: combinations that already have a
	// persisted variant are reported as skipped instead of failing.
	SkipExisting bool
	// ConfirmLargeSet acknowledges a product over the combination ceiling.
	ConfirmLargeSet bool
}

// PreviewItem is one fully resolved combination before persistence.
type PreviewItem struct {
	Combination Combination
	Ordinal     int
	SKU         string
	Name        string
	Price       float64
}

// GenerationPreview is the dry run of a generation request.
type GenerationPreview struct {
	Total int
	Items []PreviewItem
}

// SkippedCombination records a combination left alone during generation.
type SkippedCombination struct {
	Combination Combination
	SKU         string
	Reason      string
}

// FailedCombination records a combination whose persistence failed.
type FailedCombination struct {
	Combination Combination
	SKU         string
	Reason      string
}

// GenerationResult reports the outcome of a persisted generation run.
type GenerationResult struct {
	Requested int
	Created   []Variant
	Skipped   []SkippedCombination
	Failed    []FailedCombination
}

// VariantGenerationServiceDeps bundles the collaborators required to construct
// a variant generation service.
type VariantGenerationServiceDeps struct {
	Variants repositories.VariantRepository
	Events   VariantEventPublisher
	// MaxCombinations overrides the default ceiling when positive.
	MaxCombinations int
	Clock           func() time.Time
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type variantGenerationService struct {
	repo    repositories.VariantRepository
	events  VariantEventPublisher
	ceiling int
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewVariantGenerationService wires dependencies into a concrete VariantGenerationService implementation.
func NewVariantGenerationService(deps VariantGenerationServiceDeps) (VariantGenerationService, error) {
	if deps.Variants == nil {
		return nil, errors.New("variant generation service: variant repository is required")
	}

	ceiling := deps.MaxCombinations
	if ceiling <= 0 {
		ceiling = defaultMaxCombinations
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &variantGenerationService{
		repo:    deps.Variants,
		events:  deps.Events,
		ceiling: ceiling,
		clock:   clock,
		logger:  logger,
	}, nil
}

func (s *variantGenerationService) Preview(ctx context.Context, input GenerateVariantsInput) (GenerationPreview, error) {
	items, err := s.plan(input)
	if err != nil {
		return GenerationPreview{}, err
	}
	return GenerationPreview{Total: len(items), Items: items}, nil
}

func (s *variantGenerationService) Generate(ctx context.Context, input GenerateVariantsInput) (GenerationResult, error) {
	items, err := s.plan(input)
	if err != nil {
		return GenerationResult{}, err
	}

	result := GenerationResult{Requested: len(items)}
	status := input.Status
	if status == "" {
		status = domain.VariantStatusDraft
	}
	inherited := inheritedAttributes(input.Parent, input.InheritFields)

	for _, item := range items {
		if input.SkipExisting {
			existing, err := s.repo.FindByParentAndAxisSignature(ctx, input.Parent.ID, item.Combination.AxisSignature())
			if err == nil {
				result.Skipped = append(result.Skipped, SkippedCombination{
					Combination: item.Combination,
					SKU:         existing.SKU,
					Reason:      "variant already exists",
				})
				continue
			}
			if !repositories.IsVariantNotFound(err) {
				result.Failed = append(result.Failed, FailedCombination{
					Combination: item.Combination,
					SKU:         item.SKU,
					Reason:      err.Error(),
				})
				continue
			}
		}

		created, err := s.repo.Create(ctx, input.Parent.ID, domain.GeneratedVariantRequest{
			SKU:        item.SKU,
			Name:       item.Name,
			Price:      item.Price,
			Stock:      input.InitialStock,
			Status:     status,
			Axes:       item.Combination.Selections(),
			Attributes: inherited,
			Position:   item.Ordinal,
		})
		if err != nil {
			if repositories.IsVariantConflict(err) {
				// Another writer created the same combination between the
				// existence check and the insert. Treat as skipped.
				result.Skipped = append(result.Skipped, SkippedCombination{
					Combination: item.Combination,
					SKU:         item.SKU,
					Reason:      "variant already exists",
				})
				continue
			}
			result.Failed = append(result.Failed, FailedCombination{
				Combination: item.Combination,
				SKU:         item.SKU,
				Reason:      err.Error(),
			})
			continue
		}
		result.Created = append(result.Created, created)
	}

	s.logger(ctx, "variants.generate", map[string]any{
		"parent_id": input.Parent.ID,
		"requested": result.Requested,
		"created":   len(result.Created),
		"skipped":   len(result.Skipped),
		"failed":    len(result.Failed),
	})
	s.publishGenerated(ctx, input.Parent.ID, result)

	return result, nil
}

// plan validates the request and resolves every combination to a SKU and
// price without touching storage.
func (s *variantGenerationService) plan(input GenerateVariantsInput) ([]PreviewItem, error) {
	if strings.TrimSpace(input.Parent.ID) == "" {
		return nil, fmt.Errorf("%w: parent id is required", ErrGenerationInvalidInput)
	}
	if input.Parent.BasePrice < 0 {
		return nil, fmt.Errorf("%w: parent base price must not be negative", ErrGenerationInvalidInput)
	}
	if input.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock must not be negative", ErrGenerationInvalidInput)
	}
	if input.Status != "" && !input.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown variant status %q", ErrGenerationInvalidInput, input.Status)
	}
	if err := domain.ValidateAxes(input.Axes); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGenerationInvalidInput, err)
	}

	total := combinationCount(input.Axes)
	if total == 0 {
		return nil, nil
	}
	// A saturated product cannot be materialized, so confirmation does not
	// lift the refusal.
	if total == math.MaxInt || (total > s.ceiling && !input.ConfirmLargeSet) {
		return nil, &TooManyCombinationsError{Size: total, Ceiling: s.ceiling}
	}

	skus, err := newSKUStrategy(input.SKU)
	if err != nil {
		return nil, err
	}
	pricing, err := newPricingStrategy(input.Pricing, input.Axes)
	if err != nil {
		return nil, err
	}

	items := make([]PreviewItem, 0, total)
	it := newCombinationIterator(input.Axes)
	for {
		combo, ordinal, ok := it.Next()
		if !ok {
			break
		}
		sku, err := skus.SKUFor(input.Parent, combo, ordinal, total)
		if err != nil {
			return nil, err
		}
		raw, err := pricing.PriceFor(input.Parent, combo, ordinal)
		if err != nil {
			return nil, err
		}
		price := roundPrice(raw)
		if price < 0 {
			return nil, fmt.Errorf("%w: combination %q resolves to a negative price", ErrGenerationInvalidInput, combo.Label())
		}
		items = append(items, PreviewItem{
			Combination: combo,
			Ordinal:     ordinal,
			SKU:         sku,
			Name:        displayName(input.Parent, combo),
			Price:       price,
		})
	}
	return items, nil
}

// inheritedAttributes copies the named parent attributes verbatim. Fields
// the parent does not carry are skipped.
func inheritedAttributes(parent domain.Parent, fields []string) map[string]string {
	if len(fields) == 0 || len(parent.Attributes) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, field := range fields {
		if value, ok := parent.Attributes[field]; ok {
			out[field] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// publishGenerated announces a run that created at least one variant. Runs
// that only skipped or failed stay silent.
func (s *variantGenerationService) publishGenerated(ctx context.Context, parentID string, result GenerationResult) {
	if s.events == nil || len(result.Created) == 0 {
		return
	}
	payload := map[string]any{
		"parentId":    parentID,
		"requested":   result.Requested,
		"created":     len(result.Created),
		"skipped":     len(result.Skipped),
		"failed":      len(result.Failed),
		"generatedAt": s.clock().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, eventVariantsGenerated, payload); err != nil {
		s.logger(ctx, "variants.generate.publish_failed", map[string]any{
			"parent_id": parentID,
			"error":     err.Error(),
		})
	}
}
