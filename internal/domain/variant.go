package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// VariantStatus captures the publication lifecycle of a variant.
type VariantStatus string

const (
	// VariantStatusDraft marks a variant that is not yet visible in storefronts.
	VariantStatusDraft VariantStatus = "draft"
	// VariantStatusPublished marks a variant that is live and purchasable.
	VariantStatusPublished VariantStatus = "published"
	// VariantStatusArchived marks a variant that has been retired.
	VariantStatusArchived VariantStatus = "archived"
)

// IsValid reports whether the status is one of the known lifecycle values.
func (s VariantStatus) IsValid() bool {
	switch s {
	case VariantStatusDraft, VariantStatusPublished, VariantStatusArchived:
		return true
	}
	return false
}

// PriceAdjustmentType distinguishes how an axis value shifts a price.
type PriceAdjustmentType string

const (
	// PriceAdjustmentFixed adds an absolute amount to the running price.
	PriceAdjustmentFixed PriceAdjustmentType = "fixed"
	// PriceAdjustmentPercentage multiplies the running price by (1 + amount/100).
	PriceAdjustmentPercentage PriceAdjustmentType = "percentage"
)

// PriceAdjustment describes the price effect attached to a single axis value.
type PriceAdjustment struct {
	Type   PriceAdjustmentType
	Amount float64
}

// AxisValue is one selectable value on a variation axis, optionally carrying a
// price adjustment used by axis-based pricing.
type AxisValue struct {
	Value      string
	Adjustment *PriceAdjustment
}

// Axis is a named variation dimension with its ordered set of values.
// Value order is meaningful: it drives enumeration order and matrix layout.
type Axis struct {
	Name   string
	Values []AxisValue
}

// ValueStrings returns the raw value strings in declaration order.
func (a Axis) ValueStrings() []string {
	out := make([]string, len(a.Values))
	for i, v := range a.Values {
		out[i] = v.Value
	}
	return out
}

// ValidateAxes checks a full axis declaration before enumeration. Axes with
// zero values are allowed and simply yield an empty product; blank names,
// duplicate names, blank values and duplicate values within an axis are not.
func ValidateAxes(axes []Axis) error {
	seenAxes := make(map[string]struct{}, len(axes))
	for _, axis := range axes {
		name := strings.TrimSpace(axis.Name)
		if name == "" {
			return errors.New("axis name must not be blank")
		}
		key := strings.ToLower(name)
		if _, dup := seenAxes[key]; dup {
			return fmt.Errorf("duplicate axis name %q", axis.Name)
		}
		seenAxes[key] = struct{}{}

		seenValues := make(map[string]struct{}, len(axis.Values))
		for _, value := range axis.Values {
			v := strings.TrimSpace(value.Value)
			if v == "" {
				return fmt.Errorf("axis %q contains a blank value", axis.Name)
			}
			if _, dup := seenValues[v]; dup {
				return fmt.Errorf("axis %q contains duplicate value %q", axis.Name, v)
			}
			seenValues[v] = struct{}{}
		}
	}
	return nil
}

// AxisSelection binds one axis to one of its values for a concrete variant.
type AxisSelection struct {
	Axis  string
	Value string
}

// Combination is an ordered, complete selection of one value per axis.
// The zero value is not usable; construct via NewCombination.
type Combination struct {
	selections []AxisSelection
}

// NewCombination validates and builds a combination. Selections must be
// non-empty, axis names unique and both sides non-blank. Order is preserved
// as declared.
func NewCombination(selections []AxisSelection) (Combination, error) {
	if len(selections) == 0 {
		return Combination{}, errors.New("combination requires at least one axis selection")
	}
	seen := make(map[string]struct{}, len(selections))
	copied := make([]AxisSelection, len(selections))
	for i, sel := range selections {
		if strings.TrimSpace(sel.Axis) == "" {
			return Combination{}, errors.New("combination axis name must not be blank")
		}
		if strings.TrimSpace(sel.Value) == "" {
			return Combination{}, fmt.Errorf("combination value for axis %q must not be blank", sel.Axis)
		}
		key := strings.ToLower(sel.Axis)
		if _, dup := seen[key]; dup {
			return Combination{}, fmt.Errorf("combination repeats axis %q", sel.Axis)
		}
		seen[key] = struct{}{}
		copied[i] = sel
	}
	return Combination{selections: copied}, nil
}

// Selections returns a copy of the ordered axis selections.
func (c Combination) Selections() []AxisSelection {
	out := make([]AxisSelection, len(c.selections))
	copy(out, c.selections)
	return out
}

// Len reports the number of axes in the combination.
func (c Combination) Len() int { return len(c.selections) }

// Value looks up the selected value for the named axis.
func (c Combination) Value(axis string) (string, bool) {
	for _, sel := range c.selections {
		if strings.EqualFold(sel.Axis, axis) {
			return sel.Value, true
		}
	}
	return "", false
}

// Key joins the selected values in declaration order. It addresses matrix
// cells and custom price entries, where axis order matters.
func (c Combination) Key() string {
	parts := make([]string, len(c.selections))
	for i, sel := range c.selections {
		parts[i] = sel.Value
	}
	return strings.Join(parts, "/")
}

// AxisSignature produces an order-independent identity for the combination,
// used to detect an already-persisted variant for the same selections.
func (c Combination) AxisSignature() string {
	pairs := make([]string, len(c.selections))
	for i, sel := range c.selections {
		pairs[i] = strings.ToLower(strings.TrimSpace(sel.Axis)) + "=" + strings.TrimSpace(sel.Value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// Label renders a human-readable form such as "Red / Small".
func (c Combination) Label() string {
	parts := make([]string, len(c.selections))
	for i, sel := range c.selections {
		parts[i] = sel.Value
	}
	return strings.Join(parts, " / ")
}

// SignatureOf computes the persisted-identity signature for a raw selection
// list without full combination validation. Used when indexing variants that
// already exist in storage.
func SignatureOf(selections []AxisSelection) string {
	pairs := make([]string, len(selections))
	for i, sel := range selections {
		pairs[i] = strings.ToLower(strings.TrimSpace(sel.Axis)) + "=" + strings.TrimSpace(sel.Value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// Parent is the product a variant family hangs off. Only the fields the
// generation and matrix flows need are modelled here. Attributes carries
// the parent fields a run may copy onto new variants (brand, description).
type Parent struct {
	ID         string
	SKU        string
	Name       string
	BasePrice  float64
	Attributes map[string]string
}

// Variant is a concrete sellable combination of axis values under a parent.
type Variant struct {
	ID         string
	ParentID   string
	SKU        string
	Name       string
	Price      float64
	Stock      int
	Status     VariantStatus
	Axes       []AxisSelection
	Attributes map[string]string
	Position   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AxisSignature returns the order-independent identity of the variant's
// axis selections.
func (v Variant) AxisSignature() string {
	return SignatureOf(v.Axes)
}

// GeneratedVariantRequest carries everything needed to persist one new
// variant produced by the generation flow.
type GeneratedVariantRequest struct {
	SKU        string
	Name       string
	Price      float64
	Stock      int
	Status     VariantStatus
	Axes       []AxisSelection
	Attributes map[string]string
	Position   int
}
