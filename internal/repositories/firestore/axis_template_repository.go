package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/catalogforge/api/internal/domain"
	pfirestore "github.com/catalogforge/api/internal/platform/firestore"
)

const axisTemplatesCollection = "axisTemplates"

// AxisTemplateRepository persists reusable axis declarations.
type AxisTemplateRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.AxisTemplate]
}

// NewAxisTemplateRepository constructs a Firestore-backed axis template repository.
func NewAxisTemplateRepository(provider *pfirestore.Provider) (*AxisTemplateRepository, error) {
	if provider == nil {
		return nil, errors.New("axis template repository: firestore provider is required")
	}

	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.AxisTemplate, error) {
		var doc axisTemplateDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.AxisTemplate{}, err
		}
		doc.ID = snap.Ref.ID
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = snap.CreateTime
		}
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = snap.UpdateTime
		}
		return doc.toDomain(), nil
	}
	encoder := func(ctx context.Context, value domain.AxisTemplate) (any, error) {
		return encodeAxisTemplateDocument(value), nil
	}

	return &AxisTemplateRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[domain.AxisTemplate](provider, axisTemplatesCollection, encoder, decoder),
	}, nil
}

// Create inserts a new template document.
func (r *AxisTemplateRepository) Create(ctx context.Context, template domain.AxisTemplate) (domain.AxisTemplate, error) {
	if strings.TrimSpace(template.ID) == "" {
		return domain.AxisTemplate{}, errors.New("axis template repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, template.ID)
	if err != nil {
		return domain.AxisTemplate{}, err
	}
	if _, err := docRef.Create(ctx, encodeAxisTemplateDocument(template)); err != nil {
		return domain.AxisTemplate{}, pfirestore.WrapError("axis_templates.create", err)
	}
	return template, nil
}

// Get loads a template by its identifier.
func (r *AxisTemplateRepository) Get(ctx context.Context, templateID string) (domain.AxisTemplate, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return domain.AxisTemplate{}, errors.New("axis template repository: id is required")
	}
	doc, err := r.base.Get(ctx, templateID)
	if err != nil {
		return domain.AxisTemplate{}, err
	}
	return doc.Data, nil
}

// List returns every template ordered by name.
func (r *AxisTemplateRepository) List(ctx context.Context) ([]domain.AxisTemplate, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	templates := make([]domain.AxisTemplate, 0, len(docs))
	for _, doc := range docs {
		templates = append(templates, doc.Data)
	}
	return templates, nil
}

// Update replaces the template document state.
func (r *AxisTemplateRepository) Update(ctx context.Context, template domain.AxisTemplate) (domain.AxisTemplate, error) {
	if strings.TrimSpace(template.ID) == "" {
		return domain.AxisTemplate{}, errors.New("axis template repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, template.ID)
	if err != nil {
		return domain.AxisTemplate{}, err
	}
	if _, err := docRef.Set(ctx, encodeAxisTemplateDocument(template)); err != nil {
		return domain.AxisTemplate{}, pfirestore.WrapError("axis_templates.update", err)
	}
	return template, nil
}

// Delete removes the template document. Missing documents surface as not found.
func (r *AxisTemplateRepository) Delete(ctx context.Context, templateID string) error {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return errors.New("axis template repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, templateID)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx, firestore.Exists); err != nil {
		return pfirestore.WrapError("axis_templates.delete", err)
	}
	return nil
}

// IncrementUsage bumps the usage counter and returns the refreshed template.
func (r *AxisTemplateRepository) IncrementUsage(ctx context.Context, templateID string) (domain.AxisTemplate, error) {
	templateID = strings.TrimSpace(templateID)
	if templateID == "" {
		return domain.AxisTemplate{}, errors.New("axis template repository: id is required")
	}

	updates := []firestore.Update{
		{Path: "usageCount", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if _, err := r.base.Update(ctx, templateID, updates, firestore.Exists); err != nil {
		return domain.AxisTemplate{}, err
	}
	doc, err := r.base.Get(ctx, templateID)
	if err != nil {
		return domain.AxisTemplate{}, err
	}
	return doc.Data, nil
}

type axisTemplateDocument struct {
	ID          string         `firestore:"-"`
	Name        string         `firestore:"name"`
	Description string         `firestore:"description"`
	Axes        []axisDocument `firestore:"axes"`
	UsageCount  int            `firestore:"usageCount"`
	CreatedAt   time.Time      `firestore:"createdAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt"`
}

type axisDocument struct {
	Name   string              `firestore:"name"`
	Values []axisValueDocument `firestore:"values"`
}

type axisValueDocument struct {
	Value            string  `firestore:"value"`
	AdjustmentType   string  `firestore:"adjustmentType,omitempty"`
	AdjustmentAmount float64 `firestore:"adjustmentAmount,omitempty"`
}

func encodeAxisTemplateDocument(template domain.AxisTemplate) axisTemplateDocument {
	axes := make([]axisDocument, len(template.Axes))
	for i, axis := range template.Axes {
		values := make([]axisValueDocument, len(axis.Values))
		for j, value := range axis.Values {
			doc := axisValueDocument{Value: value.Value}
			if value.Adjustment != nil {
				doc.AdjustmentType = string(value.Adjustment.Type)
				doc.AdjustmentAmount = value.Adjustment.Amount
			}
			values[j] = doc
		}
		axes[i] = axisDocument{Name: axis.Name, Values: values}
	}
	return axisTemplateDocument{
		Name:        template.Name,
		Description: template.Description,
		Axes:        axes,
		UsageCount:  template.UsageCount,
		CreatedAt:   template.CreatedAt,
		UpdatedAt:   template.UpdatedAt,
	}
}

func (d axisTemplateDocument) toDomain() domain.AxisTemplate {
	axes := make([]domain.Axis, len(d.Axes))
	for i, axis := range d.Axes {
		values := make([]domain.AxisValue, len(axis.Values))
		for j, value := range axis.Values {
			v := domain.AxisValue{Value: value.Value}
			if value.AdjustmentType != "" {
				v.Adjustment = &domain.PriceAdjustment{
					Type:   domain.PriceAdjustmentType(value.AdjustmentType),
					Amount: value.AdjustmentAmount,
				}
			}
			values[j] = v
		}
		axes[i] = domain.Axis{Name: axis.Name, Values: values}
	}
	return domain.AxisTemplate{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Axes:        axes,
		UsageCount:  d.UsageCount,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
