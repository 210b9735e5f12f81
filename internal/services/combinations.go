package services

import (
	"fmt"
	"math"

	domain "github.com/catalogforge/api/internal/domain"
)

// combinationCount returns the size of the Cartesian product of the axis
// values. Any axis with zero values collapses the product to zero. A product
// too large for int saturates to math.MaxInt instead of wrapping.
func combinationCount(axes []domain.Axis) int {
	if len(axes) == 0 {
		return 0
	}
	total := 1
	for _, axis := range axes {
		n := len(axis.Values)
		if n == 0 {
			return 0
		}
		if total > math.MaxInt/n {
			return math.MaxInt
		}
		total *= n
	}
	return total
}

// combinationIterator walks the Cartesian product in nested order: the first
// declared axis varies slowest. Ordinals are assigned from zero in visit
// order, so every run over the same axes yields the same sequence.
type combinationIterator struct {
	axes    []domain.Axis
	indices []int
	ordinal int
	done    bool
}

func newCombinationIterator(axes []domain.Axis) *combinationIterator {
	it := &combinationIterator{
		axes:    axes,
		indices: make([]int, len(axes)),
	}
	if combinationCount(axes) == 0 {
		it.done = true
	}
	return it
}

// Next returns the next combination and its ordinal, or ok=false when the
// product is exhausted.
func (it *combinationIterator) Next() (domain.Combination, int, bool) {
	if it.done {
		return domain.Combination{}, 0, false
	}

	selections := make([]domain.AxisSelection, len(it.axes))
	for i, axis := range it.axes {
		selections[i] = domain.AxisSelection{
			Axis:  axis.Name,
			Value: axis.Values[it.indices[i]].Value,
		}
	}
	combo, err := domain.NewCombination(selections)
	if err != nil {
		// Axes are validated before iteration starts.
		panic(fmt.Sprintf("combination iterator produced invalid selection: %v", err))
	}

	ordinal := it.ordinal
	it.ordinal++
	it.advance()
	return combo, ordinal, true
}

// advance increments the index vector like an odometer, last axis fastest.
func (it *combinationIterator) advance() {
	for pos := len(it.indices) - 1; pos >= 0; pos-- {
		it.indices[pos]++
		if it.indices[pos] < len(it.axes[pos].Values) {
			return
		}
		it.indices[pos] = 0
	}
	it.done = true
}
