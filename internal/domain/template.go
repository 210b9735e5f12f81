package domain

import "time"

// AxisTemplate is a reusable named set of axes (e.g. "Apparel: Size x Color")
// that can seed the generation flow for a new parent.
type AxisTemplate struct {
	ID          string
	Name        string
	Description string
	Axes        []Axis
	// BuiltIn marks a template shipped with the engine; built-ins are
	// read-only and not persisted.
	BuiltIn    bool
	UsageCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
