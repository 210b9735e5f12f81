package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/catalogforge/api/internal/domain"
	pfirestore "github.com/catalogforge/api/internal/platform/firestore"
	"github.com/catalogforge/api/internal/repositories"
)

const (
	variantsCollection = "variants"
	// signaturesCollection holds one guard document per (parent, axis
	// signature) pair so duplicate combinations fail at write time.
	signaturesCollection = "variantSignatures"
)

// VariantRepository persists variant documents and their uniqueness guards.
type VariantRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.Variant]
	clock    func() time.Time
	newID    func() string
}

// VariantRepositoryOption customises repository construction.
type VariantRepositoryOption func(*VariantRepository)

// WithVariantClock injects a custom clock primarily for tests.
func WithVariantClock(clock func() time.Time) VariantRepositoryOption {
	return func(r *VariantRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithVariantIDGenerator injects a custom document ID generator.
func WithVariantIDGenerator(gen func() string) VariantRepositoryOption {
	return func(r *VariantRepository) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewVariantRepository constructs a Firestore-backed variant repository.
func NewVariantRepository(provider *pfirestore.Provider, opts ...VariantRepositoryOption) (*VariantRepository, error) {
	if provider == nil {
		return nil, errors.New("variant repository: firestore provider is required")
	}

	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.Variant, error) {
		var doc variantDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Variant{}, err
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
	encoder := func(ctx context.Context, value domain.Variant) (any, error) {
		return encodeVariantDocument(value), nil
	}

	repo := &VariantRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[domain.Variant](provider, variantsCollection, encoder, decoder),
		clock:    time.Now,
		newID: func() string {
			return ulid.Make().String()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// Create inserts the variant together with its signature guard document in
// one transaction. A concurrent insert of the same combination surfaces as a
// conflict from the guard create.
func (r *VariantRepository) Create(ctx context.Context, parentID string, req domain.GeneratedVariantRequest) (domain.Variant, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return domain.Variant{}, errors.New("variant repository: parent id is required")
	}
	if strings.TrimSpace(req.SKU) == "" {
		return domain.Variant{}, errors.New("variant repository: sku is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Variant{}, err
	}

	now := r.clock().UTC()
	variant := domain.Variant{
		ID:         r.newID(),
		ParentID:   parentID,
		SKU:        req.SKU,
		Name:       req.Name,
		Price:      req.Price,
		Stock:      req.Stock,
		Status:     req.Status,
		Axes:       req.Axes,
		Attributes: req.Attributes,
		Position:   req.Position,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	signature := domain.SignatureOf(req.Axes)
	guardRef := client.Collection(signaturesCollection).Doc(signatureDocID(parentID, signature))
	variantRef := client.Collection(variantsCollection).Doc(variant.ID)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(guardRef, map[string]any{
			"parentId":      parentID,
			"axisSignature": signature,
			"variantId":     variant.ID,
			"createdAt":     now,
		}); err != nil {
			return err
		}
		return tx.Create(variantRef, encodeVariantDocument(variant))
	})
	if err != nil {
		return domain.Variant{}, pfirestore.WrapError("variants.create", err)
	}
	return variant, nil
}

// FindByID loads a variant by its identifier.
func (r *VariantRepository) FindByID(ctx context.Context, variantID string) (domain.Variant, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return domain.Variant{}, errors.New("variant repository: variant id is required")
	}
	doc, err := r.base.Get(ctx, variantID)
	if err != nil {
		return domain.Variant{}, err
	}
	return doc.Data, nil
}

// FindByParentAndAxisSignature resolves the variant occupying the given
// combination under a parent, if any.
func (r *VariantRepository) FindByParentAndAxisSignature(ctx context.Context, parentID, signature string) (domain.Variant, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return domain.Variant{}, errors.New("variant repository: parent id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("parentId", "==", parentID).Where("axisSignature", "==", signature).Limit(1)
	})
	if err != nil {
		return domain.Variant{}, err
	}
	if len(docs) == 0 {
		return domain.Variant{}, pfirestore.WrapError("variants.find_signature", status.Error(codes.NotFound, "variant not found"))
	}
	return docs[0].Data, nil
}

// ListByParent returns every variant under the parent ordered by creation
// time, then document ID. Ordering happens client-side: a Firestore OrderBy
// silently drops documents lacking the field, which legacy variants written
// before this engine may be.
func (r *VariantRepository) ListByParent(ctx context.Context, parentID string) ([]domain.Variant, error) {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil, errors.New("variant repository: parent id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("parentId", "==", parentID)
	})
	if err != nil {
		return nil, err
	}
	variants := make([]domain.Variant, 0, len(docs))
	for _, doc := range docs {
		variants = append(variants, doc.Data)
	}
	sortByCreation(variants)
	return variants, nil
}

func sortByCreation(variants []domain.Variant) {
	sort.SliceStable(variants, func(i, j int) bool {
		if !variants[i].CreatedAt.Equal(variants[j].CreatedAt) {
			return variants[i].CreatedAt.Before(variants[j].CreatedAt)
		}
		return variants[i].ID < variants[j].ID
	})
}

// Update applies the non-nil fields and returns the refreshed variant.
func (r *VariantRepository) Update(ctx context.Context, variantID string, update repositories.VariantUpdate) (domain.Variant, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return domain.Variant{}, errors.New("variant repository: variant id is required")
	}

	updates := make([]firestore.Update, 0, 5)
	if update.SKU != nil {
		updates = append(updates, firestore.Update{Path: "sku", Value: *update.SKU})
	}
	if update.Price != nil {
		updates = append(updates, firestore.Update{Path: "price", Value: *update.Price})
	}
	if update.Stock != nil {
		updates = append(updates, firestore.Update{Path: "stock", Value: *update.Stock})
	}
	if update.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*update.Status)})
	}
	if len(updates) == 0 {
		return domain.Variant{}, errors.New("variant repository: update contains no changes")
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: r.clock().UTC()})

	if _, err := r.base.Update(ctx, variantID, updates, firestore.Exists); err != nil {
		return domain.Variant{}, err
	}
	doc, err := r.base.Get(ctx, variantID)
	if err != nil {
		return domain.Variant{}, err
	}
	return doc.Data, nil
}

// signatureDocID derives a stable guard document ID. The signature is hashed
// because Firestore document IDs must not contain slashes and have length
// limits axis values could exceed.
func signatureDocID(parentID, signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return parentID + "__" + hex.EncodeToString(sum[:])[:20]
}

type variantDocument struct {
	ID            string                  `firestore:"-"`
	ParentID      string                  `firestore:"parentId"`
	SKU           string                  `firestore:"sku"`
	Name          string                  `firestore:"name"`
	Price         float64                 `firestore:"price"`
	Stock         int                     `firestore:"stock"`
	Status        string                  `firestore:"status"`
	Axes          []axisSelectionDocument `firestore:"axes"`
	Attributes    map[string]string       `firestore:"attributes,omitempty"`
	AxisSignature string                  `firestore:"axisSignature"`
	Position      int                     `firestore:"position"`
	CreatedAt     time.Time               `firestore:"createdAt"`
	UpdatedAt     time.Time               `firestore:"updatedAt"`
}

type axisSelectionDocument struct {
	Axis  string `firestore:"axis"`
	Value string `firestore:"value"`
}

func encodeVariantDocument(variant domain.Variant) variantDocument {
	axes := make([]axisSelectionDocument, len(variant.Axes))
	for i, sel := range variant.Axes {
		axes[i] = axisSelectionDocument{Axis: sel.Axis, Value: sel.Value}
	}
	return variantDocument{
		ParentID:      variant.ParentID,
		SKU:           variant.SKU,
		Name:          variant.Name,
		Price:         variant.Price,
		Stock:         variant.Stock,
		Status:        string(variant.Status),
		Axes:          axes,
		Attributes:    variant.Attributes,
		AxisSignature: variant.AxisSignature(),
		Position:      variant.Position,
		CreatedAt:     variant.CreatedAt,
		UpdatedAt:     variant.UpdatedAt,
	}
}

func (d variantDocument) toDomain() domain.Variant {
	axes := make([]domain.AxisSelection, len(d.Axes))
	for i, sel := range d.Axes {
		axes[i] = domain.AxisSelection{Axis: sel.Axis, Value: sel.Value}
	}
	return domain.Variant{
		ID:         d.ID,
		ParentID:   d.ParentID,
		SKU:        d.SKU,
		Name:       d.Name,
		Price:      d.Price,
		Stock:      d.Stock,
		Status:     domain.VariantStatus(d.Status),
		Axes:       axes,
		Attributes: d.Attributes,
		Position:   d.Position,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}
