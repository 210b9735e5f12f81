package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/platform/textutil"
)

// SKUMode selects how generated variants receive their SKUs.
type SKUMode string

const (
	// SKUModePattern renders SKUs from a placeholder pattern.
	SKUModePattern SKUMode = "pattern"
	// SKUModeSequential numbers SKUs off the parent SKU.
	SKUModeSequential SKUMode = "sequential"
	// SKUModeCustom delegates SKU derivation to a caller-supplied function.
	SKUModeCustom SKUMode = "custom"
)

// SKUConfig configures the SKU strategy for one generation run. Custom is
// only reachable for in-process callers; the HTTP surface exposes the
// pattern and sequential modes.
type SKUConfig struct {
	Mode    SKUMode
	Pattern string
	Custom  func(parent domain.Parent, combo domain.Combination, ordinal int) (string, error)
}

// skuStrategy assigns a SKU to each enumerated combination. Implementations
// are pure: the same inputs always produce the same SKU.
type skuStrategy interface {
	SKUFor(parent domain.Parent, combo domain.Combination, ordinal, total int) (string, error)
}

func newSKUStrategy(cfg SKUConfig) (skuStrategy, error) {
	switch cfg.Mode {
	case SKUModePattern:
		if strings.TrimSpace(cfg.Pattern) == "" {
			return nil, fmt.Errorf("%w: pattern mode requires a pattern", ErrGenerationInvalidInput)
		}
		return &patternSKUStrategy{pattern: cfg.Pattern}, nil
	case SKUModeSequential:
		return sequentialSKUStrategy{}, nil
	case SKUModeCustom:
		if cfg.Custom == nil {
			return nil, fmt.Errorf("%w: custom sku mode requires a function", ErrGenerationInvalidInput)
		}
		return customSKUStrategy{fn: cfg.Custom}, nil
	case "":
		return nil, fmt.Errorf("%w: sku mode is required", ErrGenerationInvalidInput)
	default:
		return nil, fmt.Errorf("%w: unknown sku mode %q", ErrGenerationInvalidInput, cfg.Mode)
	}
}

var skuPlaceholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// patternSKUStrategy substitutes placeholders in a template:
//
//	{parent}      parent SKU
//	{axes}        all selected values upper-cased, hyphen joined
//	{<axisName>}  the selected value for that axis
//
// Whitespace in the rendered SKU collapses to single hyphens.
type patternSKUStrategy struct {
	pattern string
}

func (s *patternSKUStrategy) SKUFor(parent domain.Parent, combo domain.Combination, _, _ int) (string, error) {
	var renderErr error
	rendered := skuPlaceholderPattern.ReplaceAllStringFunc(s.pattern, func(token string) string {
		name := strings.TrimSpace(token[1 : len(token)-1])
		switch {
		case strings.EqualFold(name, "parent"):
			return parent.SKU
		case strings.EqualFold(name, "axes"):
			parts := make([]string, 0, combo.Len())
			for _, sel := range combo.Selections() {
				parts = append(parts, strings.ToUpper(sel.Value))
			}
			return strings.Join(parts, "-")
		default:
			if value, ok := combo.Value(name); ok {
				return strings.ToUpper(value)
			}
			if renderErr == nil {
				renderErr = fmt.Errorf("%w: sku pattern references unknown axis %q", ErrGenerationInvalidInput, name)
			}
			return token
		}
	})
	if renderErr != nil {
		return "", renderErr
	}

	sku := textutil.HyphenateWhitespace(rendered)
	if sku == "" {
		return "", errors.New("sku strategy: pattern rendered an empty sku")
	}
	return sku, nil
}

// sequentialSKUStrategy numbers combinations off the parent SKU, zero padding
// to the width of the total count so generated SKUs sort naturally.
type sequentialSKUStrategy struct{}

func (sequentialSKUStrategy) SKUFor(parent domain.Parent, _ domain.Combination, ordinal, total int) (string, error) {
	if strings.TrimSpace(parent.SKU) == "" {
		return "", fmt.Errorf("%w: sequential sku mode requires a parent sku", ErrGenerationInvalidInput)
	}
	width := len(strconv.Itoa(total))
	return fmt.Sprintf("%s-%0*d", parent.SKU, width, ordinal+1), nil
}

// customSKUStrategy hands derivation to the caller. The function is expected
// to be pure in (parent, combination, ordinal) so re-runs stay idempotent.
type customSKUStrategy struct {
	fn func(parent domain.Parent, combo domain.Combination, ordinal int) (string, error)
}

func (s customSKUStrategy) SKUFor(parent domain.Parent, combo domain.Combination, ordinal, _ int) (string, error) {
	sku, err := s.fn(parent, combo, ordinal)
	if err != nil {
		return "", fmt.Errorf("sku strategy: custom: %w", err)
	}
	if strings.TrimSpace(sku) == "" {
		return "", errors.New("sku strategy: custom function returned an empty sku")
	}
	return sku, nil
}

// displayName derives the human-facing variant name from the parent and the
// combination, e.g. "Crew Tee - Red / S".
func displayName(parent domain.Parent, combo domain.Combination) string {
	label := combo.Label()
	if strings.TrimSpace(parent.Name) == "" {
		return label
	}
	return parent.Name + " - " + label
}
