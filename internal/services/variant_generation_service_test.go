package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/repositories"
)

type stubVariantRepo struct {
	createFn   func(ctx context.Context, parentID string, req domain.GeneratedVariantRequest) (domain.Variant, error)
	findByIDFn func(ctx context.Context, variantID string) (domain.Variant, error)
	findSigFn  func(ctx context.Context, parentID, signature string) (domain.Variant, error)
	listFn     func(ctx context.Context, parentID string) ([]domain.Variant, error)
	updateFn   func(ctx context.Context, variantID string, update repositories.VariantUpdate) (domain.Variant, error)
}

func (s *stubVariantRepo) Create(ctx context.Context, parentID string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
	if s.createFn != nil {
		return s.createFn(ctx, parentID, req)
	}
	return domain.Variant{}, errors.New("not implemented")
}

func (s *stubVariantRepo) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, variantID)
	}
	return domain.Variant{}, errors.New("not implemented")
}

func (s *stubVariantRepo) FindByParentAndAxisSignature(ctx context.Context, parentID, signature string) (domain.Variant, error) {
	if s.findSigFn != nil {
		return s.findSigFn(ctx, parentID, signature)
	}
	return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorNotFound, "", nil)
}

func (s *stubVariantRepo) ListByParent(ctx context.Context, parentID string) ([]domain.Variant, error) {
	if s.listFn != nil {
		return s.listFn(ctx, parentID)
	}
	return nil, errors.New("not implemented")
}

func (s *stubVariantRepo) Update(ctx context.Context, variantID string, update repositories.VariantUpdate) (domain.Variant, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, variantID, update)
	}
	return domain.Variant{}, errors.New("not implemented")
}

type captureVariantEvents struct {
	events   []string
	payloads []map[string]any
}

func (c *captureVariantEvents) Publish(_ context.Context, event string, payload map[string]any) error {
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
	return nil
}

func generationInput() GenerateVariantsInput {
	return GenerateVariantsInput{
		Parent: domain.Parent{ID: "prod-1", SKU: "TEE-001", BasePrice: 100},
		Axes: []domain.Axis{
			axisOf("Color", "Red", "Blue"),
			axisOf("Size", "S", "M"),
		},
		SKU:          SKUConfig{Mode: SKUModePattern, Pattern: "{parent}-{axes}"},
		Pricing:      PricingConfig{Mode: PricingModeFixed, FixedPrice: 25},
		InitialStock: 10,
	}
}

func TestVariantGenerationServicePreview(t *testing.T) {
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: &stubVariantRepo{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	preview, err := svc.Preview(context.Background(), generationInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if preview.Total != 4 {
		t.Fatalf("expected 4 combinations, got %d", preview.Total)
	}
	if preview.Items[0].SKU != "TEE-001-RED-S" {
		t.Fatalf("unexpected first sku %s", preview.Items[0].SKU)
	}
	if preview.Items[3].SKU != "TEE-001-BLUE-M" {
		t.Fatalf("unexpected last sku %s", preview.Items[3].SKU)
	}
	for _, item := range preview.Items {
		if item.Price != 25 {
			t.Fatalf("expected fixed price 25, got %v", item.Price)
		}
	}
}

func TestVariantGenerationServiceGenerateCreatesEveryCombination(t *testing.T) {
	var created []domain.GeneratedVariantRequest
	repo := &stubVariantRepo{
		createFn: func(_ context.Context, parentID string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
			if parentID != "prod-1" {
				t.Fatalf("unexpected parent id %s", parentID)
			}
			created = append(created, req)
			return domain.Variant{ID: "var-" + req.SKU, ParentID: parentID, SKU: req.SKU, Price: req.Price, Stock: req.Stock, Status: req.Status, Axes: req.Axes, Position: req.Position}, nil
		},
	}
	events := &captureVariantEvents{}
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: repo, Events: events})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Generate(context.Background(), generationInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requested != 4 || len(result.Created) != 4 {
		t.Fatalf("expected 4 created, got requested=%d created=%d", result.Requested, len(result.Created))
	}
	if len(result.Skipped) != 0 || len(result.Failed) != 0 {
		t.Fatalf("expected clean run, got skipped=%d failed=%d", len(result.Skipped), len(result.Failed))
	}
	for i, req := range created {
		if req.Position != i {
			t.Fatalf("expected position %d, got %d", i, req.Position)
		}
		if req.Stock != 10 {
			t.Fatalf("expected initial stock 10, got %d", req.Stock)
		}
		if req.Status != domain.VariantStatusDraft {
			t.Fatalf("expected draft default status, got %s", req.Status)
		}
	}
	if len(events.events) != 1 || events.events[0] != eventVariantsGenerated {
		t.Fatalf("expected one generated event, got %v", events.events)
	}
}

func TestVariantGenerationServiceDeriveNamesAndInheritedAttributes(t *testing.T) {
	var created []domain.GeneratedVariantRequest
	repo := &stubVariantRepo{
		createFn: func(_ context.Context, _ string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
			created = append(created, req)
			return domain.Variant{ID: "var-" + req.SKU, SKU: req.SKU, Name: req.Name, Attributes: req.Attributes}, nil
		},
	}
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := generationInput()
	input.Parent.Name = "Crew Tee"
	input.Parent.Attributes = map[string]string{"brand": "Acme", "season": "SS26", "internal_note": "do not copy"}
	input.InheritFields = []string{"brand", "season", "missing"}
	result, err := svc.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Created) != 4 {
		t.Fatalf("expected 4 created, got %d", len(result.Created))
	}
	if created[0].Name != "Crew Tee - Red / S" {
		t.Fatalf("unexpected first name %q", created[0].Name)
	}
	if created[3].Name != "Crew Tee - Blue / M" {
		t.Fatalf("unexpected last name %q", created[3].Name)
	}
	for _, req := range created {
		if req.Attributes["brand"] != "Acme" || req.Attributes["season"] != "SS26" {
			t.Fatalf("expected inherited attributes, got %v", req.Attributes)
		}
		if _, ok := req.Attributes["internal_note"]; ok {
			t.Fatalf("attribute outside the inherit list leaked: %v", req.Attributes)
		}
		if _, ok := req.Attributes["missing"]; ok {
			t.Fatalf("absent parent attribute should be skipped: %v", req.Attributes)
		}
	}
}

func TestVariantGenerationServiceSkipExisting(t *testing.T) {
	existingSig := domain.SignatureOf([]domain.AxisSelection{
		{Axis: "Color", Value: "Red"},
		{Axis: "Size", Value: "S"},
	})
	repo := &stubVariantRepo{
		findSigFn: func(_ context.Context, _, signature string) (domain.Variant, error) {
			if signature == existingSig {
				return domain.Variant{ID: "var-existing", SKU: "TEE-001-OLD"}, nil
			}
			return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorNotFound, "", nil)
		},
		createFn: func(_ context.Context, parentID string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
			return domain.Variant{ID: "var-" + req.SKU, SKU: req.SKU}, nil
		},
	}
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := generationInput()
	input.SkipExisting = true
	result, err := svc.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Created) != 3 {
		t.Fatalf("expected 3 created, got %d", len(result.Created))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected 1 skipped, got %d", len(result.Skipped))
	}
	if result.Skipped[0].SKU != "TEE-001-OLD" {
		t.Fatalf("expected skip to report the existing sku, got %s", result.Skipped[0].SKU)
	}
}

func TestVariantGenerationServiceNoEventWithoutCreations(t *testing.T) {
	repo := &stubVariantRepo{
		findSigFn: func(context.Context, string, string) (domain.Variant, error) {
			return domain.Variant{ID: "var-existing", SKU: "TEE-001-OLD"}, nil
		},
	}
	events := &captureVariantEvents{}
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: repo, Events: events})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := generationInput()
	input.SkipExisting = true
	result, err := svc.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Created) != 0 || len(result.Skipped) != 4 {
		t.Fatalf("expected everything skipped, got %+v", result)
	}
	if len(events.events) != 0 {
		t.Fatalf("expected no event for a run without creations, got %v", events.events)
	}
}

func TestVariantGenerationServiceConflictCountsAsSkipped(t *testing.T) {
	calls := 0
	repo := &stubVariantRepo{
		createFn: func(_ context.Context, _ string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
			calls++
			if calls == 2 {
				return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorConflict, "duplicate signature", nil)
			}
			return domain.Variant{ID: "var-" + req.SKU, SKU: req.SKU}, nil
		},
	}
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Generate(context.Background(), generationInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Created) != 3 || len(result.Skipped) != 1 || len(result.Failed) != 0 {
		t.Fatalf("unexpected outcome: created=%d skipped=%d failed=%d", len(result.Created), len(result.Skipped), len(result.Failed))
	}
}

func TestVariantGenerationServiceFailureDoesNotAbortRun(t *testing.T) {
	calls := 0
	repo := &stubVariantRepo{
		createFn: func(_ context.Context, _ string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
			calls++
			if calls == 1 {
				return domain.Variant{}, repositories.NewVariantError(repositories.VariantErrorUnavailable, "store offline", nil)
			}
			return domain.Variant{ID: "var-" + req.SKU, SKU: req.SKU}, nil
		},
	}
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: repo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Generate(context.Background(), generationInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failed))
	}
	if len(result.Created) != 3 {
		t.Fatalf("expected remaining combinations to be created, got %d", len(result.Created))
	}
	if result.Failed[0].Combination.Key() != "Red/S" {
		t.Fatalf("expected first combination to fail, got %s", result.Failed[0].Combination.Key())
	}
}

func TestVariantGenerationServiceCombinationCeiling(t *testing.T) {
	repo := &stubVariantRepo{
		createFn: func(_ context.Context, _ string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
			return domain.Variant{ID: "var-" + req.SKU}, nil
		},
	}
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: repo, MaxCombinations: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := generationInput()
	_, err = svc.Generate(context.Background(), input)
	if !errors.Is(err, ErrTooManyCombinations) {
		t.Fatalf("expected ceiling error, got %v", err)
	}
	var tooMany *TooManyCombinationsError
	if !errors.As(err, &tooMany) {
		t.Fatalf("expected TooManyCombinationsError, got %T", err)
	}
	if tooMany.Size != 4 || tooMany.Ceiling != 3 {
		t.Fatalf("unexpected sizes: %+v", tooMany)
	}

	input.ConfirmLargeSet = true
	result, err := svc.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("expected confirmed run to proceed, got %v", err)
	}
	if len(result.Created) != 4 {
		t.Fatalf("expected 4 created after confirmation, got %d", len(result.Created))
	}
}

func TestVariantGenerationServiceOverflowingProductIsRefused(t *testing.T) {
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: &stubVariantRepo{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 8 axes x 256 values wrap int multiplication to 0; the run must be
	// refused as too large, not reported as an empty product.
	input := generationInput()
	input.Axes = wideAxes(8, 256)
	if _, err := svc.Generate(context.Background(), input); !errors.Is(err, ErrTooManyCombinations) {
		t.Fatalf("expected ceiling error, got %v", err)
	}

	// Confirmation does not make an unmaterializable product runnable.
	input.ConfirmLargeSet = true
	if _, err := svc.Generate(context.Background(), input); !errors.Is(err, ErrTooManyCombinations) {
		t.Fatalf("expected ceiling error despite confirmation, got %v", err)
	}
}

func TestVariantGenerationServiceValidation(t *testing.T) {
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: &stubVariantRepo{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*GenerateVariantsInput)
	}{
		{name: "missing parent id", mutate: func(in *GenerateVariantsInput) { in.Parent.ID = "" }},
		{name: "negative base price", mutate: func(in *GenerateVariantsInput) { in.Parent.BasePrice = -1 }},
		{name: "negative stock", mutate: func(in *GenerateVariantsInput) { in.InitialStock = -5 }},
		{name: "unknown status", mutate: func(in *GenerateVariantsInput) { in.Status = "live" }},
		{name: "blank axis name", mutate: func(in *GenerateVariantsInput) { in.Axes[0].Name = " " }},
		{name: "duplicate axis value", mutate: func(in *GenerateVariantsInput) { in.Axes[0].Values[1].Value = "Red" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := generationInput()
			tc.mutate(&input)
			if _, err := svc.Generate(context.Background(), input); !errors.Is(err, ErrGenerationInvalidInput) {
				t.Fatalf("expected invalid input error, got %v", err)
			}
		})
	}
}

func TestVariantGenerationServiceEmptyAxisYieldsEmptyResult(t *testing.T) {
	svc, err := NewVariantGenerationService(VariantGenerationServiceDeps{Variants: &stubVariantRepo{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := generationInput()
	input.Axes[1].Values = nil
	result, err := svc.Generate(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Requested != 0 || len(result.Created) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}
