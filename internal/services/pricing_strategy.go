package services

import (
	"fmt"
	"math"
	"strings"

	domain "github.com/catalogforge/api/internal/domain"
)

// PricingMode selects how generated variants receive their prices.
type PricingMode string

const (
	// PricingModeFixed assigns one price to every variant.
	PricingModeFixed PricingMode = "fixed"
	// PricingModePercentage raises the parent base price by a percentage,
	// either uniformly or scaled by the combination ordinal.
	PricingModePercentage PricingMode = "percentage_increase"
	// PricingModeAxisBased applies the adjustments attached to the selected
	// axis values, cumulatively in axis order.
	PricingModeAxisBased PricingMode = "axis_based"
	// PricingModeCustom looks prices up per combination, falling back to the
	// parent base price.
	PricingModeCustom PricingMode = "custom"
)

// PricingConfig configures the pricing strategy for one generation run.
type PricingConfig struct {
	Mode        PricingMode
	FixedPrice  float64
	Percentage  float64
	Incremental bool
	// CustomPrices maps combination keys (values joined with "/" in axis
	// order) to explicit prices.
	CustomPrices map[string]float64
}

// pricingStrategy computes the raw price for a combination. Rounding to two
// decimals happens once, after the strategy returns.
type pricingStrategy interface {
	PriceFor(parent domain.Parent, combo domain.Combination, ordinal int) (float64, error)
}

func newPricingStrategy(cfg PricingConfig, axes []domain.Axis) (pricingStrategy, error) {
	switch cfg.Mode {
	case PricingModeFixed:
		if cfg.FixedPrice < 0 {
			return nil, fmt.Errorf("%w: fixed price must not be negative", ErrGenerationInvalidInput)
		}
		return fixedPricingStrategy{price: cfg.FixedPrice}, nil
	case PricingModePercentage:
		return percentagePricingStrategy{percent: cfg.Percentage, incremental: cfg.Incremental}, nil
	case PricingModeAxisBased:
		return newAxisBasedPricingStrategy(axes), nil
	case PricingModeCustom:
		return customPricingStrategy{prices: cfg.CustomPrices}, nil
	case "":
		return nil, fmt.Errorf("%w: pricing mode is required", ErrGenerationInvalidInput)
	default:
		return nil, fmt.Errorf("%w: unknown pricing mode %q", ErrGenerationInvalidInput, cfg.Mode)
	}
}

// roundPrice rounds half-up to two decimal places.
func roundPrice(price float64) float64 {
	return math.Floor(price*100+0.5) / 100
}

type fixedPricingStrategy struct {
	price float64
}

func (s fixedPricingStrategy) PriceFor(domain.Parent, domain.Combination, int) (float64, error) {
	return s.price, nil
}

type percentagePricingStrategy struct {
	percent     float64
	incremental bool
}

func (s percentagePricingStrategy) PriceFor(parent domain.Parent, _ domain.Combination, ordinal int) (float64, error) {
	if s.incremental {
		return parent.BasePrice * (1 + s.percent*float64(ordinal)/100), nil
	}
	return parent.BasePrice * (1 + s.percent/100), nil
}

type axisBasedPricingStrategy struct {
	// adjustments indexes axis (lower-cased) then value to its adjustment.
	adjustments map[string]map[string]*domain.PriceAdjustment
}

func newAxisBasedPricingStrategy(axes []domain.Axis) axisBasedPricingStrategy {
	adjustments := make(map[string]map[string]*domain.PriceAdjustment, len(axes))
	for _, axis := range axes {
		byValue := make(map[string]*domain.PriceAdjustment, len(axis.Values))
		for _, value := range axis.Values {
			byValue[value.Value] = value.Adjustment
		}
		adjustments[strings.ToLower(axis.Name)] = byValue
	}
	return axisBasedPricingStrategy{adjustments: adjustments}
}

func (s axisBasedPricingStrategy) PriceFor(parent domain.Parent, combo domain.Combination, _ int) (float64, error) {
	price := parent.BasePrice
	for _, sel := range combo.Selections() {
		adj := s.adjustments[strings.ToLower(sel.Axis)][sel.Value]
		if adj == nil {
			continue
		}
		switch adj.Type {
		case domain.PriceAdjustmentFixed:
			price += adj.Amount
		case domain.PriceAdjustmentPercentage:
			price *= 1 + adj.Amount/100
		default:
			return 0, fmt.Errorf("%w: unknown price adjustment type %q on axis %q", ErrGenerationInvalidInput, adj.Type, sel.Axis)
		}
	}
	return price, nil
}

type customPricingStrategy struct {
	prices map[string]float64
}

func (s customPricingStrategy) PriceFor(parent domain.Parent, combo domain.Combination, _ int) (float64, error) {
	if price, ok := s.prices[combo.Key()]; ok {
		return price, nil
	}
	return parent.BasePrice, nil
}
