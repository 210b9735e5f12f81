package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/platform/textutil"
	"github.com/catalogforge/api/internal/repositories"
)

var (
	// ErrTemplateInvalidInput signals the caller provided invalid arguments.
	ErrTemplateInvalidInput = errors.New("axis template: invalid input")
	// ErrTemplateNotFound indicates the referenced template does not exist.
	ErrTemplateNotFound = errors.New("axis template: not found")
)

// builtinTemplates ship with the engine and are merged into every listing.
// They are read-only and never persisted.
var builtinTemplates = []domain.AxisTemplate{
	{
		ID: "builtin-sizes", Name: "Standard Sizes", BuiltIn: true,
		Description: "Common clothing sizes",
		Axes:        []domain.Axis{builtinAxis("Size", "XS", "S", "M", "L", "XL", "XXL", "2XL", "3XL")},
	},
	{
		ID: "builtin-eu-sizes", Name: "EU Sizes", BuiltIn: true,
		Description: "European clothing sizes",
		Axes:        []domain.Axis{builtinAxis("Size", "36", "38", "40", "42", "44", "46", "48", "50")},
	},
	{
		ID: "builtin-colors", Name: "Basic Colors", BuiltIn: true,
		Description: "Common color options",
		Axes: []domain.Axis{builtinAxis("Color",
			"Black", "White", "Red", "Blue", "Green", "Yellow", "Gray", "Navy", "Pink", "Purple", "Orange", "Brown")},
	},
	{
		ID: "builtin-materials", Name: "Materials", BuiltIn: true,
		Description: "Common fabric and material types",
		Axes: []domain.Axis{builtinAxis("Material",
			"Cotton", "Polyester", "Wool", "Leather", "Synthetic", "Silk", "Linen", "Denim", "Canvas")},
	},
	{
		ID: "builtin-storage", Name: "Storage Capacity", BuiltIn: true,
		Description: "Digital storage sizes",
		Axes:        []domain.Axis{builtinAxis("Storage", "64GB", "128GB", "256GB", "512GB", "1TB", "2TB", "4TB")},
	},
	{
		ID: "builtin-memory", Name: "Memory/RAM", BuiltIn: true,
		Description: "RAM memory sizes",
		Axes:        []domain.Axis{builtinAxis("Memory", "4GB", "8GB", "16GB", "32GB", "64GB", "128GB")},
	},
}

func builtinAxis(name string, values ...string) domain.Axis {
	axis := domain.Axis{Name: name, Values: make([]domain.AxisValue, 0, len(values))}
	for _, value := range values {
		axis.Values = append(axis.Values, domain.AxisValue{Value: value})
	}
	return axis
}

func builtinTemplate(templateID string) (domain.AxisTemplate, bool) {
	for _, template := range builtinTemplates {
		if template.ID == templateID {
			return template, true
		}
	}
	return domain.AxisTemplate{}, false
}

// AxisTemplateInput carries the writable fields of an axis template.
type AxisTemplateInput struct {
	Name        string
	Description string
	Axes        []Axis
}

// AxisTemplateServiceDeps bundles the collaborators required to construct an
// axis template service.
type AxisTemplateServiceDeps struct {
	Templates   repositories.AxisTemplateRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type axisTemplateService struct {
	repo   repositories.AxisTemplateRepository
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewAxisTemplateService wires dependencies into a concrete AxisTemplateService implementation.
func NewAxisTemplateService(deps AxisTemplateServiceDeps) (AxisTemplateService, error) {
	if deps.Templates == nil {
		return nil, errors.New("axis template service: template repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &axisTemplateService{
		repo:   deps.Templates,
		clock:  clock,
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *axisTemplateService) CreateTemplate(ctx context.Context, input AxisTemplateInput) (AxisTemplate, error) {
	if err := validateTemplateInput(input); err != nil {
		return AxisTemplate{}, err
	}

	now := s.clock().UTC()
	template := domain.AxisTemplate{
		ID:          s.newID(),
		Name:        textutil.CollapseWhitespace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Axes:        input.Axes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	created, err := s.repo.Create(ctx, template)
	if err != nil {
		return AxisTemplate{}, fmt.Errorf("axis template: create: %w", err)
	}
	s.logger(ctx, "templates.create", map[string]any{"template_id": created.ID})
	return created, nil
}

func (s *axisTemplateService) GetTemplate(ctx context.Context, templateID string) (AxisTemplate, error) {
	if strings.TrimSpace(templateID) == "" {
		return AxisTemplate{}, fmt.Errorf("%w: template id is required", ErrTemplateInvalidInput)
	}
	if template, ok := builtinTemplate(templateID); ok {
		return template, nil
	}
	template, err := s.repo.Get(ctx, templateID)
	if err != nil {
		if repositories.IsTemplateNotFound(err) {
			return AxisTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return AxisTemplate{}, fmt.Errorf("axis template: get: %w", err)
	}
	return template, nil
}

func (s *axisTemplateService) ListTemplates(ctx context.Context) ([]AxisTemplate, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("axis template: list: %w", err)
	}
	merged := make([]AxisTemplate, 0, len(builtinTemplates)+len(stored))
	merged = append(merged, builtinTemplates...)
	merged = append(merged, stored...)
	return merged, nil
}

func (s *axisTemplateService) UpdateTemplate(ctx context.Context, templateID string, input AxisTemplateInput) (AxisTemplate, error) {
	if strings.TrimSpace(templateID) == "" {
		return AxisTemplate{}, fmt.Errorf("%w: template id is required", ErrTemplateInvalidInput)
	}
	if err := validateTemplateInput(input); err != nil {
		return AxisTemplate{}, err
	}
	if _, ok := builtinTemplate(templateID); ok {
		return AxisTemplate{}, fmt.Errorf("%w: built-in templates are read-only", ErrTemplateInvalidInput)
	}

	existing, err := s.repo.Get(ctx, templateID)
	if err != nil {
		if repositories.IsTemplateNotFound(err) {
			return AxisTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return AxisTemplate{}, fmt.Errorf("axis template: get: %w", err)
	}

	existing.Name = textutil.CollapseWhitespace(input.Name)
	existing.Description = strings.TrimSpace(input.Description)
	existing.Axes = input.Axes
	existing.UpdatedAt = s.clock().UTC()

	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		if repositories.IsTemplateNotFound(err) {
			return AxisTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return AxisTemplate{}, fmt.Errorf("axis template: update: %w", err)
	}
	return updated, nil
}

func (s *axisTemplateService) DeleteTemplate(ctx context.Context, templateID string) error {
	if strings.TrimSpace(templateID) == "" {
		return fmt.Errorf("%w: template id is required", ErrTemplateInvalidInput)
	}
	if _, ok := builtinTemplate(templateID); ok {
		return fmt.Errorf("%w: built-in templates are read-only", ErrTemplateInvalidInput)
	}
	if err := s.repo.Delete(ctx, templateID); err != nil {
		if repositories.IsTemplateNotFound(err) {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return fmt.Errorf("axis template: delete: %w", err)
	}
	s.logger(ctx, "templates.delete", map[string]any{"template_id": templateID})
	return nil
}

// ApplyTemplate resolves a template to its axes for a generation run and
// records the use.
func (s *axisTemplateService) ApplyTemplate(ctx context.Context, templateID string) ([]Axis, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, fmt.Errorf("%w: template id is required", ErrTemplateInvalidInput)
	}
	if template, ok := builtinTemplate(templateID); ok {
		return template.Axes, nil
	}
	template, err := s.repo.IncrementUsage(ctx, templateID)
	if err != nil {
		if repositories.IsTemplateNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return nil, fmt.Errorf("axis template: apply: %w", err)
	}
	return template.Axes, nil
}

func validateTemplateInput(input AxisTemplateInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrTemplateInvalidInput)
	}
	if len(input.Axes) == 0 {
		return fmt.Errorf("%w: at least one axis is required", ErrTemplateInvalidInput)
	}
	if err := domain.ValidateAxes(input.Axes); err != nil {
		return fmt.Errorf("%w: %s", ErrTemplateInvalidInput, err)
	}
	return nil
}
