package domain

// MatrixAxis is a variation dimension reconstructed from the variants that
// actually exist, with values in first-observation order.
type MatrixAxis struct {
	Name   string
	Values []string
}

// MatrixCell is one coordinate of the matrix. Missing cells mark
// combinations no persisted variant occupies; their Variant is zero.
type MatrixCell struct {
	Variant     Variant
	Coordinates []int
	Missing     bool
}

// VariantMatrix is the N-dimensional view over a parent's variant family.
// Cells are keyed by the combination key (values joined in axis order) and
// cover exactly the Cartesian product of the reconstructed axis domains,
// with unoccupied combinations marked missing.
type VariantMatrix struct {
	ParentID string
	Axes     []MatrixAxis
	Cells    map[string]MatrixCell
	Summary  MatrixSummary
}

// Cell looks up the cell for the given values, ordered to match Axes.
func (m VariantMatrix) Cell(values ...string) (MatrixCell, bool) {
	cell, ok := m.Cells[joinKey(values)]
	return cell, ok
}

func joinKey(values []string) string {
	key := ""
	for i, v := range values {
		if i > 0 {
			key += "/"
		}
		key += v
	}
	return key
}

// MatrixSummary aggregates the family for display headers and audits.
type MatrixSummary struct {
	TotalCells   int
	Filled       int
	Missing      int
	PriceMin     float64
	PriceMax     float64
	StockTotal   int
	StatusCounts map[VariantStatus]int
}

// MatrixResultKind tags how a variant family could be represented.
type MatrixResultKind string

const (
	// MatrixResultMatrix means the family reconstructed into a coherent matrix.
	MatrixResultMatrix MatrixResultKind = "matrix"
	// MatrixResultFlat means the family was inconsistent and is served as a
	// flat list instead.
	MatrixResultFlat MatrixResultKind = "flat"
)

// MatrixResult is the outcome of matrix reconstruction: either a full matrix
// or a degraded flat list with the reason the matrix could not be built.
type MatrixResult struct {
	Kind   MatrixResultKind
	Matrix *VariantMatrix
	Flat   []Variant
	Reason string
}
