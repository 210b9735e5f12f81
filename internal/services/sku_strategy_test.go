package services

import (
	"errors"
	"fmt"
	"testing"

	domain "github.com/catalogforge/api/internal/domain"
)

func comboOf(t *testing.T, selections ...domain.AxisSelection) domain.Combination {
	t.Helper()
	combo, err := domain.NewCombination(selections)
	if err != nil {
		t.Fatalf("failed to build combination: %v", err)
	}
	return combo
}

func TestPatternSKUStrategySubstitutesPlaceholders(t *testing.T) {
	parent := domain.Parent{SKU: "TEE-001"}
	combo := comboOf(t,
		domain.AxisSelection{Axis: "Color", Value: "Navy Blue"},
		domain.AxisSelection{Axis: "Size", Value: "M"},
	)

	cases := []struct {
		name    string
		pattern string
		want    string
	}{
		{name: "parent and axes", pattern: "{parent}-{axes}", want: "TEE-001-NAVY-BLUE-M"},
		{name: "named axis", pattern: "{parent}-{Color}", want: "TEE-001-NAVY-BLUE"},
		{name: "axis name case insensitive", pattern: "{parent}-{size}", want: "TEE-001-M"},
		{name: "whitespace collapses to hyphen", pattern: "{parent} {Color} {Size}", want: "TEE-001-NAVY-BLUE-M"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			strategy, err := newSKUStrategy(SKUConfig{Mode: SKUModePattern, Pattern: tc.pattern})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			sku, err := strategy.SKUFor(parent, combo, 0, 4)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sku != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, sku)
			}
		})
	}
}

func TestPatternSKUStrategyRejectsUnknownAxis(t *testing.T) {
	strategy, err := newSKUStrategy(SKUConfig{Mode: SKUModePattern, Pattern: "{parent}-{Material}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	combo := comboOf(t, domain.AxisSelection{Axis: "Color", Value: "Red"})
	if _, err := strategy.SKUFor(domain.Parent{SKU: "TEE-001"}, combo, 0, 1); !errors.Is(err, ErrGenerationInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestSKUStrategyConfigValidation(t *testing.T) {
	if _, err := newSKUStrategy(SKUConfig{Mode: SKUModePattern}); !errors.Is(err, ErrGenerationInvalidInput) {
		t.Fatalf("expected invalid input for missing pattern, got %v", err)
	}
	if _, err := newSKUStrategy(SKUConfig{}); !errors.Is(err, ErrGenerationInvalidInput) {
		t.Fatalf("expected invalid input for missing mode, got %v", err)
	}
	if _, err := newSKUStrategy(SKUConfig{Mode: "random"}); !errors.Is(err, ErrGenerationInvalidInput) {
		t.Fatalf("expected invalid input for unknown mode, got %v", err)
	}
}

func TestSequentialSKUStrategyPadsToTotalWidth(t *testing.T) {
	strategy, err := newSKUStrategy(SKUConfig{Mode: SKUModeSequential})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parent := domain.Parent{SKU: "TEE-001"}
	combo := comboOf(t, domain.AxisSelection{Axis: "Color", Value: "Red"})

	cases := []struct {
		ordinal int
		total   int
		want    string
	}{
		{ordinal: 0, total: 9, want: "TEE-001-1"},
		{ordinal: 0, total: 12, want: "TEE-001-01"},
		{ordinal: 11, total: 12, want: "TEE-001-12"},
		{ordinal: 99, total: 120, want: "TEE-001-100"},
	}
	for _, tc := range cases {
		sku, err := strategy.SKUFor(parent, combo, tc.ordinal, tc.total)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sku != tc.want {
			t.Fatalf("ordinal %d of %d: expected %s, got %s", tc.ordinal, tc.total, tc.want, sku)
		}
	}
}

func TestCustomSKUStrategyDelegatesToCallback(t *testing.T) {
	strategy, err := newSKUStrategy(SKUConfig{
		Mode: SKUModeCustom,
		Custom: func(parent domain.Parent, combo domain.Combination, ordinal int) (string, error) {
			return fmt.Sprintf("%s#%d", parent.SKU, ordinal+1), nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	combo := comboOf(t, domain.AxisSelection{Axis: "Color", Value: "Red"})
	sku, err := strategy.SKUFor(domain.Parent{SKU: "TEE-001"}, combo, 2, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sku != "TEE-001#3" {
		t.Fatalf("unexpected sku %s", sku)
	}
}

func TestCustomSKUStrategyRequiresFunction(t *testing.T) {
	if _, err := newSKUStrategy(SKUConfig{Mode: SKUModeCustom}); !errors.Is(err, ErrGenerationInvalidInput) {
		t.Fatalf("expected invalid input for missing custom function, got %v", err)
	}
}

func TestCustomSKUStrategyRejectsBlankResult(t *testing.T) {
	strategy, err := newSKUStrategy(SKUConfig{
		Mode: SKUModeCustom,
		Custom: func(domain.Parent, domain.Combination, int) (string, error) {
			return "  ", nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	combo := comboOf(t, domain.AxisSelection{Axis: "Color", Value: "Red"})
	if _, err := strategy.SKUFor(domain.Parent{SKU: "TEE-001"}, combo, 0, 1); err == nil {
		t.Fatal("expected error for blank custom sku")
	}
}

func TestDisplayNameJoinsParentAndLabel(t *testing.T) {
	combo := comboOf(t,
		domain.AxisSelection{Axis: "Color", Value: "Red"},
		domain.AxisSelection{Axis: "Size", Value: "S"},
	)
	if got := displayName(domain.Parent{Name: "Basic Tee"}, combo); got != "Basic Tee - Red / S" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := displayName(domain.Parent{}, combo); got != "Red / S" {
		t.Fatalf("expected bare label for unnamed parent, got %q", got)
	}
}

func TestSequentialSKUStrategyRequiresParentSKU(t *testing.T) {
	strategy, err := newSKUStrategy(SKUConfig{Mode: SKUModeSequential})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	combo := comboOf(t, domain.AxisSelection{Axis: "Color", Value: "Red"})
	if _, err := strategy.SKUFor(domain.Parent{}, combo, 0, 1); !errors.Is(err, ErrGenerationInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}
