package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/repositories"
)

const eventVariantsBulkUpdated = "variants.bulk_updated"

var (
	// ErrMatrixInvalidInput signals the caller provided invalid arguments.
	ErrMatrixInvalidInput = errors.New("variant matrix: invalid input")
	// ErrVariantNotFound indicates the referenced variant does not exist.
	ErrVariantNotFound = errors.New("variant matrix: variant not found")
)

// CellUpdate describes a partial mutation of a single matrix cell. Nil fields
// are left untouched.
type CellUpdate struct {
	SKU    *string
	Price  *float64
	Stock  *int
	Status *VariantStatus
}

// BulkPriceMode selects how a bulk price operation derives each new price.
// The modes mirror the axis adjustment vocabulary: fixed adds a flat amount,
// percentage scales, absolute assigns outright.
type BulkPriceMode string

const (
	// BulkPriceFixed adds a flat amount to each variant's own price.
	BulkPriceFixed BulkPriceMode = "fixed"
	// BulkPricePercentage shifts each variant's own price by a percentage.
	BulkPricePercentage BulkPriceMode = "percentage"
	// BulkPriceAbsolute assigns the same price to every selected variant.
	BulkPriceAbsolute BulkPriceMode = "absolute"
)

// BulkPriceInput configures a price mutation over an explicit variant
// selection.
type BulkPriceInput struct {
	VariantIDs []string
	Mode       BulkPriceMode
	Amount     float64
}

// BulkInventoryMode selects how a bulk inventory operation derives each new
// stock level.
type BulkInventoryMode string

const (
	// BulkInventorySet assigns the same stock level to every variant.
	BulkInventorySet BulkInventoryMode = "set"
	// BulkInventoryIncrement raises each variant's stock by a quantity.
	BulkInventoryIncrement BulkInventoryMode = "increment"
	// BulkInventoryDecrement lowers each variant's stock, clamping at zero.
	BulkInventoryDecrement BulkInventoryMode = "decrement"
)

// BulkInventoryInput configures a stock mutation over an explicit variant
// selection. Quantity may be negative for increment and decrement; the
// resulting stock level is clamped at zero either way.
type BulkInventoryInput struct {
	VariantIDs []string
	Mode       BulkInventoryMode
	Quantity   int
}

// BulkFailure records a variant a bulk operation could not update.
type BulkFailure struct {
	VariantID string
	Reason    string
}

// BulkUpdateResult reports the outcome of a bulk mutation. Failures never
// abort the run; the remaining variants are still updated.
type BulkUpdateResult struct {
	Updated []Variant
	Failed  []BulkFailure
}

// VariantMatrixServiceDeps bundles the collaborators required to construct a
// variant matrix service.
type VariantMatrixServiceDeps struct {
	Variants repositories.VariantRepository
	Events   VariantEventPublisher
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type variantMatrixService struct {
	repo   repositories.VariantRepository
	events VariantEventPublisher
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewVariantMatrixService wires dependencies into a concrete VariantMatrixService implementation.
func NewVariantMatrixService(deps VariantMatrixServiceDeps) (VariantMatrixService, error) {
	if deps.Variants == nil {
		return nil, errors.New("variant matrix service: variant repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &variantMatrixService{
		repo:   deps.Variants,
		events: deps.Events,
		clock:  clock,
		logger: logger,
	}, nil
}

func (s *variantMatrixService) Matrix(ctx context.Context, parentID string) (MatrixResult, error) {
	if strings.TrimSpace(parentID) == "" {
		return MatrixResult{}, fmt.Errorf("%w: parent id is required", ErrMatrixInvalidInput)
	}

	variants, err := s.repo.ListByParent(ctx, parentID)
	if err != nil {
		return MatrixResult{}, fmt.Errorf("variant matrix: list variants: %w", err)
	}
	sortVariants(variants)

	matrix, reason := buildMatrix(parentID, variants)
	if matrix == nil {
		s.logger(ctx, "variants.matrix.flat_fallback", map[string]any{
			"parent_id": parentID,
			"reason":    reason,
		})
		return MatrixResult{Kind: domain.MatrixResultFlat, Flat: variants, Reason: reason}, nil
	}
	return MatrixResult{Kind: domain.MatrixResultMatrix, Matrix: matrix}, nil
}

// sortVariants orders a family by generation position, then creation time,
// so axis reconstruction observes values in a stable order.
func sortVariants(variants []domain.Variant) {
	sort.SliceStable(variants, func(i, j int) bool {
		if variants[i].Position != variants[j].Position {
			return variants[i].Position < variants[j].Position
		}
		return variants[i].CreatedAt.Before(variants[j].CreatedAt)
	})
}

// buildMatrix reconstructs the axis structure from the variants that exist.
// It returns nil plus a reason when the family cannot form a coherent matrix.
func buildMatrix(parentID string, variants []domain.Variant) (*domain.VariantMatrix, string) {
	matrix := &domain.VariantMatrix{
		ParentID: parentID,
		Cells:    make(map[string]domain.MatrixCell),
		Summary:  domain.MatrixSummary{StatusCounts: make(map[domain.VariantStatus]int)},
	}
	if len(variants) == 0 {
		return matrix, ""
	}

	// Axis names and their order come from the first variant; every other
	// variant must present exactly the same axes.
	first := variants[0]
	if len(first.Axes) == 0 {
		return nil, "variants carry no axis selections"
	}
	axisIndex := make(map[string]int, len(first.Axes))
	axes := make([]domain.MatrixAxis, len(first.Axes))
	valueIndex := make([]map[string]int, len(first.Axes))
	for i, sel := range first.Axes {
		key := strings.ToLower(sel.Axis)
		if _, dup := axisIndex[key]; dup {
			return nil, fmt.Sprintf("variant %s repeats axis %q", first.ID, sel.Axis)
		}
		axisIndex[key] = i
		axes[i] = domain.MatrixAxis{Name: sel.Axis}
		valueIndex[i] = make(map[string]int)
	}

	for _, variant := range variants {
		if len(variant.Axes) != len(axes) {
			return nil, fmt.Sprintf("variant %s has %d axes, expected %d", variant.ID, len(variant.Axes), len(axes))
		}
		coords := make([]int, len(axes))
		values := make([]string, len(axes))
		for _, sel := range variant.Axes {
			pos, ok := axisIndex[strings.ToLower(sel.Axis)]
			if !ok {
				return nil, fmt.Sprintf("variant %s carries unknown axis %q", variant.ID, sel.Axis)
			}
			idx, seen := valueIndex[pos][sel.Value]
			if !seen {
				idx = len(axes[pos].Values)
				axes[pos].Values = append(axes[pos].Values, sel.Value)
				valueIndex[pos][sel.Value] = idx
			}
			coords[pos] = idx
			values[pos] = sel.Value
		}

		key := strings.Join(values, "/")
		if _, occupied := matrix.Cells[key]; occupied {
			return nil, fmt.Sprintf("combination %q is occupied by more than one variant", key)
		}
		matrix.Cells[key] = domain.MatrixCell{Variant: variant, Coordinates: coords}
	}

	padMissingCells(matrix, axes)
	matrix.Axes = axes
	matrix.Summary = summarize(axes, variants)
	return matrix, ""
}

// padMissingCells fills every unoccupied combination of the reconstructed
// domains with a missing cell, so the cell set is exactly the Cartesian
// product of the axes.
func padMissingCells(matrix *domain.VariantMatrix, axes []domain.MatrixAxis) {
	coords := make([]int, len(axes))
	values := make([]string, len(axes))
	for {
		for i, axis := range axes {
			values[i] = axis.Values[coords[i]]
		}
		key := strings.Join(values, "/")
		if _, occupied := matrix.Cells[key]; !occupied {
			matrix.Cells[key] = domain.MatrixCell{
				Coordinates: append([]int(nil), coords...),
				Missing:     true,
			}
		}

		pos := len(coords) - 1
		for ; pos >= 0; pos-- {
			coords[pos]++
			if coords[pos] < len(axes[pos].Values) {
				break
			}
			coords[pos] = 0
		}
		if pos < 0 {
			return
		}
	}
}

func summarize(axes []domain.MatrixAxis, variants []domain.Variant) domain.MatrixSummary {
	summary := domain.MatrixSummary{
		StatusCounts: make(map[domain.VariantStatus]int),
	}
	total := 1
	for _, axis := range axes {
		total *= len(axis.Values)
	}
	summary.TotalCells = total
	summary.Filled = len(variants)
	summary.Missing = total - len(variants)

	for i, variant := range variants {
		if i == 0 || variant.Price < summary.PriceMin {
			summary.PriceMin = variant.Price
		}
		if i == 0 || variant.Price > summary.PriceMax {
			summary.PriceMax = variant.Price
		}
		summary.StockTotal += variant.Stock
		summary.StatusCounts[variant.Status]++
	}
	return summary
}

func (s *variantMatrixService) UpdateCell(ctx context.Context, variantID string, update CellUpdate) (Variant, error) {
	if strings.TrimSpace(variantID) == "" {
		return Variant{}, fmt.Errorf("%w: variant id is required", ErrMatrixInvalidInput)
	}
	if update.SKU == nil && update.Price == nil && update.Stock == nil && update.Status == nil {
		return Variant{}, fmt.Errorf("%w: update contains no changes", ErrMatrixInvalidInput)
	}
	if update.SKU != nil && strings.TrimSpace(*update.SKU) == "" {
		return Variant{}, fmt.Errorf("%w: sku must not be blank", ErrMatrixInvalidInput)
	}
	if update.Price != nil && *update.Price < 0 {
		return Variant{}, fmt.Errorf("%w: price must not be negative", ErrMatrixInvalidInput)
	}
	if update.Stock != nil && *update.Stock < 0 {
		return Variant{}, fmt.Errorf("%w: stock must not be negative", ErrMatrixInvalidInput)
	}
	if update.Status != nil && !update.Status.IsValid() {
		return Variant{}, fmt.Errorf("%w: unknown variant status %q", ErrMatrixInvalidInput, *update.Status)
	}

	variant, err := s.repo.Update(ctx, variantID, repositories.VariantUpdate{
		SKU:    update.SKU,
		Price:  update.Price,
		Stock:  update.Stock,
		Status: update.Status,
	})
	if err != nil {
		if repositories.IsVariantNotFound(err) {
			return Variant{}, fmt.Errorf("%w: %s", ErrVariantNotFound, variantID)
		}
		return Variant{}, fmt.Errorf("variant matrix: update cell: %w", err)
	}
	return variant, nil
}

func (s *variantMatrixService) BulkPrice(ctx context.Context, parentID string, input BulkPriceInput) (BulkUpdateResult, error) {
	if strings.TrimSpace(parentID) == "" {
		return BulkUpdateResult{}, fmt.Errorf("%w: parent id is required", ErrMatrixInvalidInput)
	}
	if len(input.VariantIDs) == 0 {
		return BulkUpdateResult{}, fmt.Errorf("%w: variant selection is required", ErrMatrixInvalidInput)
	}
	switch input.Mode {
	case BulkPriceAbsolute:
		if input.Amount < 0 {
			return BulkUpdateResult{}, fmt.Errorf("%w: price must not be negative", ErrMatrixInvalidInput)
		}
	case BulkPriceFixed, BulkPricePercentage:
	case "":
		return BulkUpdateResult{}, fmt.Errorf("%w: bulk price mode is required", ErrMatrixInvalidInput)
	default:
		return BulkUpdateResult{}, fmt.Errorf("%w: unknown bulk price mode %q", ErrMatrixInvalidInput, input.Mode)
	}

	result := BulkUpdateResult{}
	for _, variantID := range input.VariantIDs {
		variant, err := s.loadFamilyVariant(ctx, parentID, variantID)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{VariantID: variantID, Reason: err.Error()})
			continue
		}

		price := variant.Price
		switch input.Mode {
		case BulkPriceFixed:
			price = variant.Price + input.Amount
		case BulkPricePercentage:
			price = variant.Price * (1 + input.Amount/100)
		case BulkPriceAbsolute:
			price = input.Amount
		}
		price = roundPrice(price)
		if price < 0 {
			result.Failed = append(result.Failed, BulkFailure{
				VariantID: variant.ID,
				Reason:    "resulting price is negative",
			})
			continue
		}

		updated, err := s.repo.Update(ctx, variant.ID, repositories.VariantUpdate{Price: &price})
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{VariantID: variant.ID, Reason: err.Error()})
			continue
		}
		result.Updated = append(result.Updated, updated)
	}

	s.publishBulk(ctx, parentID, "price", result)
	return result, nil
}

func (s *variantMatrixService) BulkInventory(ctx context.Context, parentID string, input BulkInventoryInput) (BulkUpdateResult, error) {
	if strings.TrimSpace(parentID) == "" {
		return BulkUpdateResult{}, fmt.Errorf("%w: parent id is required", ErrMatrixInvalidInput)
	}
	if len(input.VariantIDs) == 0 {
		return BulkUpdateResult{}, fmt.Errorf("%w: variant selection is required", ErrMatrixInvalidInput)
	}
	switch input.Mode {
	case BulkInventorySet:
		if input.Quantity < 0 {
			return BulkUpdateResult{}, fmt.Errorf("%w: stock must not be negative", ErrMatrixInvalidInput)
		}
	case BulkInventoryIncrement, BulkInventoryDecrement:
	case "":
		return BulkUpdateResult{}, fmt.Errorf("%w: bulk inventory mode is required", ErrMatrixInvalidInput)
	default:
		return BulkUpdateResult{}, fmt.Errorf("%w: unknown bulk inventory mode %q", ErrMatrixInvalidInput, input.Mode)
	}

	result := BulkUpdateResult{}
	for _, variantID := range input.VariantIDs {
		variant, err := s.loadFamilyVariant(ctx, parentID, variantID)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{VariantID: variantID, Reason: err.Error()})
			continue
		}

		stock := variant.Stock
		switch input.Mode {
		case BulkInventorySet:
			stock = input.Quantity
		case BulkInventoryIncrement:
			stock = variant.Stock + input.Quantity
		case BulkInventoryDecrement:
			stock = variant.Stock - input.Quantity
		}
		if stock < 0 {
			stock = 0
		}

		updated, err := s.repo.Update(ctx, variant.ID, repositories.VariantUpdate{Stock: &stock})
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{VariantID: variant.ID, Reason: err.Error()})
			continue
		}
		result.Updated = append(result.Updated, updated)
	}

	s.publishBulk(ctx, parentID, "inventory", result)
	return result, nil
}

// loadFamilyVariant resolves a selected variant and confirms it belongs to
// the parent the bulk operation is scoped to.
func (s *variantMatrixService) loadFamilyVariant(ctx context.Context, parentID, variantID string) (domain.Variant, error) {
	variant, err := s.repo.FindByID(ctx, variantID)
	if err != nil {
		if repositories.IsVariantNotFound(err) {
			return domain.Variant{}, errors.New("variant not found")
		}
		return domain.Variant{}, err
	}
	if variant.ParentID != parentID {
		return domain.Variant{}, errors.New("variant does not belong to this parent")
	}
	return variant, nil
}

func (s *variantMatrixService) publishBulk(ctx context.Context, parentID, field string, result BulkUpdateResult) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"parentId":  parentID,
		"field":     field,
		"updated":   len(result.Updated),
		"failed":    len(result.Failed),
		"updatedAt": s.clock().UTC().Format(time.RFC3339),
	}
	if err := s.events.Publish(ctx, eventVariantsBulkUpdated, payload); err != nil {
		s.logger(ctx, "variants.bulk.publish_failed", map[string]any{
			"parent_id": parentID,
			"error":     err.Error(),
		})
	}
}
