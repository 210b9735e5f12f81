package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/services"
)

type stubGenerationService struct {
	previewFn  func(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationPreview, error)
	generateFn func(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationResult, error)
}

func (s *stubGenerationService) Preview(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationPreview, error) {
	if s.previewFn != nil {
		return s.previewFn(ctx, input)
	}
	return services.GenerationPreview{}, nil
}

func (s *stubGenerationService) Generate(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationResult, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, input)
	}
	return services.GenerationResult{}, nil
}

type stubMatrixService struct {
	matrixFn        func(ctx context.Context, parentID string) (services.MatrixResult, error)
	updateCellFn    func(ctx context.Context, variantID string, update services.CellUpdate) (services.Variant, error)
	bulkPriceFn     func(ctx context.Context, parentID string, input services.BulkPriceInput) (services.BulkUpdateResult, error)
	bulkInventoryFn func(ctx context.Context, parentID string, input services.BulkInventoryInput) (services.BulkUpdateResult, error)
}

func (s *stubMatrixService) Matrix(ctx context.Context, parentID string) (services.MatrixResult, error) {
	if s.matrixFn != nil {
		return s.matrixFn(ctx, parentID)
	}
	return services.MatrixResult{}, nil
}

func (s *stubMatrixService) UpdateCell(ctx context.Context, variantID string, update services.CellUpdate) (services.Variant, error) {
	if s.updateCellFn != nil {
		return s.updateCellFn(ctx, variantID, update)
	}
	return services.Variant{}, nil
}

func (s *stubMatrixService) BulkPrice(ctx context.Context, parentID string, input services.BulkPriceInput) (services.BulkUpdateResult, error) {
	if s.bulkPriceFn != nil {
		return s.bulkPriceFn(ctx, parentID, input)
	}
	return services.BulkUpdateResult{}, nil
}

func (s *stubMatrixService) BulkInventory(ctx context.Context, parentID string, input services.BulkInventoryInput) (services.BulkUpdateResult, error) {
	if s.bulkInventoryFn != nil {
		return s.bulkInventoryFn(ctx, parentID, input)
	}
	return services.BulkUpdateResult{}, nil
}

func variantRouter(h *VariantHandlers) chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func mustCombination(t *testing.T, selections ...domain.AxisSelection) domain.Combination {
	t.Helper()
	combo, err := domain.NewCombination(selections)
	if err != nil {
		t.Fatalf("failed to build combination: %v", err)
	}
	return combo
}

const generateBody = `{
	"parent": {"sku": "TEE-001", "name": "Classic Tee", "base_price": 100},
	"axes": [
		{"name": "Color", "values": [{"value": "Red"}, {"value": "Blue"}]},
		{"name": "Size", "values": [{"value": "S"}, {"value": "M"}]}
	],
	"sku": {"mode": "pattern", "pattern": "{parent}-{axes}"},
	"pricing": {"mode": "fixed", "fixed_price": 25},
	"initial_stock": 10,
	"skip_existing": true
}`

func TestVariantHandlersPreview(t *testing.T) {
	var received services.GenerateVariantsInput
	generation := &stubGenerationService{
		previewFn: func(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationPreview, error) {
			received = input
			combo := mustCombination(t,
				domain.AxisSelection{Axis: "Color", Value: "Red"},
				domain.AxisSelection{Axis: "Size", Value: "S"},
			)
			return services.GenerationPreview{
				Total: 4,
				Items: []services.PreviewItem{
					{Combination: combo, Ordinal: 0, SKU: "TEE-001-RED-S", Price: 25},
				},
			}, nil
		},
	}

	router := variantRouter(NewVariantHandlers(generation, &stubMatrixService{}))
	req := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:preview", bytes.NewBufferString(generateBody))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if received.Parent.ID != "prod-1" {
		t.Fatalf("expected parent id from path, got %q", received.Parent.ID)
	}
	if received.Parent.SKU != "TEE-001" || received.Parent.BasePrice != 100 {
		t.Fatalf("unexpected parent: %+v", received.Parent)
	}
	if len(received.Axes) != 2 || received.Axes[0].Name != "Color" {
		t.Fatalf("unexpected axes: %+v", received.Axes)
	}
	if received.SKU.Mode != services.SKUModePattern || received.SKU.Pattern != "{parent}-{axes}" {
		t.Fatalf("unexpected sku config: %+v", received.SKU)
	}
	if !received.SkipExisting {
		t.Fatalf("expected skip_existing to be set")
	}

	var payload previewResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.Total != 4 {
		t.Fatalf("expected total 4, got %d", payload.Total)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected 1 preview item, got %d", len(payload.Items))
	}
	item := payload.Items[0]
	if item.SKU != "TEE-001-RED-S" || item.Price != 25 {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.Label != "Red / S" {
		t.Fatalf("unexpected label: %q", item.Label)
	}
	if len(item.Axes) != 2 || item.Axes[0].Axis != "Color" || item.Axes[0].Value != "Red" {
		t.Fatalf("unexpected item axes: %+v", item.Axes)
	}
}

func TestVariantHandlersGenerate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	created := domain.Variant{
		ID:       "var-1",
		ParentID: "prod-1",
		SKU:      "TEE-001-RED-S",
		Price:    25,
		Stock:    10,
		Status:   domain.VariantStatusDraft,
		Axes: []domain.AxisSelection{
			{Axis: "Color", Value: "Red"},
			{Axis: "Size", Value: "S"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	skippedCombo := mustCombination(t,
		domain.AxisSelection{Axis: "Color", Value: "Blue"},
		domain.AxisSelection{Axis: "Size", Value: "M"},
	)

	generation := &stubGenerationService{
		generateFn: func(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationResult, error) {
			return services.GenerationResult{
				Requested: 4,
				Created:   []services.Variant{created},
				Skipped: []services.SkippedCombination{
					{Combination: skippedCombo, SKU: "TEE-001-BLUE-M", Reason: "variant already exists"},
				},
			}, nil
		},
	}

	router := variantRouter(NewVariantHandlers(generation, &stubMatrixService{}))
	req := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:generate", bytes.NewBufferString(generateBody))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload generationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.Requested != 4 {
		t.Fatalf("expected requested 4, got %d", payload.Requested)
	}
	if len(payload.Created) != 1 || payload.Created[0].ID != "var-1" {
		t.Fatalf("unexpected created payload: %+v", payload.Created)
	}
	if payload.Created[0].CreatedAt != formatTime(now) {
		t.Fatalf("unexpected created_at: %q", payload.Created[0].CreatedAt)
	}
	if len(payload.Skipped) != 1 || payload.Skipped[0].Reason != "variant already exists" {
		t.Fatalf("unexpected skipped payload: %+v", payload.Skipped)
	}
	if len(payload.Failed) != 0 {
		t.Fatalf("expected no failures, got %+v", payload.Failed)
	}
}

func TestVariantHandlersGenerateTooManyCombinations(t *testing.T) {
	generation := &stubGenerationService{
		generateFn: func(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationResult, error) {
			return services.GenerationResult{}, &services.TooManyCombinationsError{Size: 600, Ceiling: 500}
		},
	}

	router := variantRouter(NewVariantHandlers(generation, &stubMatrixService{}))
	req := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:generate", bytes.NewBufferString(generateBody))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload["error"] != "too_many_combinations" {
		t.Fatalf("unexpected error code: %v", payload["error"])
	}
	if payload["size"] != float64(600) || payload["ceiling"] != float64(500) {
		t.Fatalf("expected size and ceiling details, got %v", payload)
	}
}

func TestVariantHandlersGenerateInvalidInput(t *testing.T) {
	generation := &stubGenerationService{
		generateFn: func(ctx context.Context, input services.GenerateVariantsInput) (services.GenerationResult, error) {
			return services.GenerationResult{}, services.ErrGenerationInvalidInput
		},
	}

	router := variantRouter(NewVariantHandlers(generation, &stubMatrixService{}))
	req := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:generate", bytes.NewBufferString(generateBody))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestVariantHandlersGenerateEmptyBody(t *testing.T) {
	router := variantRouter(NewVariantHandlers(&stubGenerationService{}, &stubMatrixService{}))
	req := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:generate", bytes.NewBufferString(""))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestVariantHandlersGenerateRateLimited(t *testing.T) {
	generation := &stubGenerationService{}
	handler := NewVariantHandlers(generation, &stubMatrixService{}, WithGenerationRateLimit(1, time.Minute))
	router := variantRouter(handler)

	first := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:generate", bytes.NewBufferString(generateBody))
	first.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, first)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:generate", bytes.NewBufferString(generateBody))
	second.RemoteAddr = "10.0.0.1:1235"
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, second)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for throttled client, got %d", rr.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:generate", bytes.NewBufferString(generateBody))
	other.RemoteAddr = "10.0.0.2:1234"
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, other)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected other client to pass, got %d", rr.Code)
	}
}

func TestVariantHandlersMatrix(t *testing.T) {
	variant := domain.Variant{
		ID:       "var-1",
		ParentID: "prod-1",
		SKU:      "TEE-001-RED-S",
		Price:    25,
		Stock:    5,
		Status:   domain.VariantStatusPublished,
		Axes: []domain.AxisSelection{
			{Axis: "Color", Value: "Red"},
			{Axis: "Size", Value: "S"},
		},
	}
	matrix := &stubMatrixService{
		matrixFn: func(ctx context.Context, parentID string) (services.MatrixResult, error) {
			if parentID != "prod-1" {
				t.Fatalf("expected parent prod-1, got %s", parentID)
			}
			return services.MatrixResult{
				Kind: domain.MatrixResultMatrix,
				Matrix: &domain.VariantMatrix{
					ParentID: "prod-1",
					Axes: []domain.MatrixAxis{
						{Name: "Color", Values: []string{"Red", "Blue"}},
						{Name: "Size", Values: []string{"S", "M"}},
					},
					Cells: map[string]domain.MatrixCell{
						"Red/S":  {Variant: variant, Coordinates: []int{0, 0}},
						"Blue/M": {Coordinates: []int{1, 1}, Missing: true},
					},
					Summary: domain.MatrixSummary{
						TotalCells: 4,
						Filled:     1,
						Missing:    3,
						PriceMin:   25,
						PriceMax:   25,
						StockTotal: 5,
						StatusCounts: map[domain.VariantStatus]int{
							domain.VariantStatusPublished: 1,
						},
					},
				},
			}, nil
		},
	}

	router := variantRouter(NewVariantHandlers(&stubGenerationService{}, matrix))
	req := httptest.NewRequest(http.MethodGet, "/parents/prod-1/variants/matrix", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload matrixResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.Kind != string(domain.MatrixResultMatrix) {
		t.Fatalf("expected matrix kind, got %s", payload.Kind)
	}
	if payload.Matrix == nil {
		t.Fatalf("expected matrix payload")
	}
	if len(payload.Matrix.Axes) != 2 || payload.Matrix.Axes[1].Name != "Size" {
		t.Fatalf("unexpected axes: %+v", payload.Matrix.Axes)
	}
	cell, ok := payload.Matrix.Cells["Red/S"]
	if !ok {
		t.Fatalf("expected cell Red/S, got %v", payload.Matrix.Cells)
	}
	if cell.Variant == nil || cell.Variant.ID != "var-1" || len(cell.Coordinates) != 2 {
		t.Fatalf("unexpected cell: %+v", cell)
	}
	hole, ok := payload.Matrix.Cells["Blue/M"]
	if !ok {
		t.Fatalf("expected cell Blue/M, got %v", payload.Matrix.Cells)
	}
	if !hole.Missing || hole.Variant != nil {
		t.Fatalf("expected empty missing cell, got %+v", hole)
	}
	if payload.Summary == nil || payload.Summary.TotalCells != 4 || payload.Summary.Missing != 3 {
		t.Fatalf("unexpected summary: %+v", payload.Summary)
	}
	if payload.Summary.StatusCounts["published"] != 1 {
		t.Fatalf("expected published count 1, got %+v", payload.Summary.StatusCounts)
	}
}

func TestVariantHandlersMatrixFlatFallback(t *testing.T) {
	matrix := &stubMatrixService{
		matrixFn: func(ctx context.Context, parentID string) (services.MatrixResult, error) {
			return services.MatrixResult{
				Kind:   domain.MatrixResultFlat,
				Flat:   []domain.Variant{{ID: "var-1", ParentID: "prod-1", SKU: "TEE-001-1"}},
				Reason: "axis names differ across variants",
			}, nil
		},
	}

	router := variantRouter(NewVariantHandlers(&stubGenerationService{}, matrix))
	req := httptest.NewRequest(http.MethodGet, "/parents/prod-1/variants/matrix", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload matrixResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.Kind != string(domain.MatrixResultFlat) {
		t.Fatalf("expected flat kind, got %s", payload.Kind)
	}
	if payload.Matrix != nil {
		t.Fatalf("expected no matrix payload in flat mode")
	}
	if len(payload.Flat) != 1 || payload.Flat[0].ID != "var-1" {
		t.Fatalf("unexpected flat payload: %+v", payload.Flat)
	}
	if payload.Reason == "" {
		t.Fatalf("expected fallback reason")
	}
}

func TestVariantHandlersUpdateCell(t *testing.T) {
	var gotID string
	var gotUpdate services.CellUpdate
	matrix := &stubMatrixService{
		updateCellFn: func(ctx context.Context, variantID string, update services.CellUpdate) (services.Variant, error) {
			gotID = variantID
			gotUpdate = update
			return services.Variant{ID: variantID, Price: 30, Stock: 7, Status: domain.VariantStatusPublished}, nil
		},
	}

	router := variantRouter(NewVariantHandlers(&stubGenerationService{}, matrix))
	body := bytes.NewBufferString(`{"price": 30, "stock": 7, "status": "published"}`)
	req := httptest.NewRequest(http.MethodPatch, "/variants/var-1", body)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotID != "var-1" {
		t.Fatalf("expected variant id var-1, got %s", gotID)
	}
	if gotUpdate.Price == nil || *gotUpdate.Price != 30 {
		t.Fatalf("expected price pointer 30, got %+v", gotUpdate.Price)
	}
	if gotUpdate.Stock == nil || *gotUpdate.Stock != 7 {
		t.Fatalf("expected stock pointer 7, got %+v", gotUpdate.Stock)
	}
	if gotUpdate.Status == nil || *gotUpdate.Status != domain.VariantStatusPublished {
		t.Fatalf("expected status pointer published, got %+v", gotUpdate.Status)
	}
	if gotUpdate.SKU != nil {
		t.Fatalf("expected sku to stay unset")
	}

	var payload variantResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if payload.Variant.Price != 30 || payload.Variant.Status != "published" {
		t.Fatalf("unexpected variant payload: %+v", payload.Variant)
	}
}

func TestVariantHandlersUpdateCellNotFound(t *testing.T) {
	matrix := &stubMatrixService{
		updateCellFn: func(ctx context.Context, variantID string, update services.CellUpdate) (services.Variant, error) {
			return services.Variant{}, services.ErrVariantNotFound
		},
	}

	router := variantRouter(NewVariantHandlers(&stubGenerationService{}, matrix))
	req := httptest.NewRequest(http.MethodPatch, "/variants/missing", bytes.NewBufferString(`{"price": 30}`))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestVariantHandlersBulkPrice(t *testing.T) {
	var gotInput services.BulkPriceInput
	matrix := &stubMatrixService{
		bulkPriceFn: func(ctx context.Context, parentID string, input services.BulkPriceInput) (services.BulkUpdateResult, error) {
			gotInput = input
			return services.BulkUpdateResult{
				Updated: []services.Variant{{ID: "var-1", Price: 27.5}},
				Failed:  []services.BulkFailure{{VariantID: "var-2", Reason: "price would be negative"}},
			}, nil
		},
	}

	router := variantRouter(NewVariantHandlers(&stubGenerationService{}, matrix))
	body := bytes.NewBufferString(`{"variant_ids": ["var-1", "var-2"], "mode": "percentage", "amount": 10}`)
	req := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:bulk-price", body)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotInput.Mode != services.BulkPricePercentage || gotInput.Amount != 10 {
		t.Fatalf("unexpected input: %+v", gotInput)
	}
	if len(gotInput.VariantIDs) != 2 || gotInput.VariantIDs[0] != "var-1" || gotInput.VariantIDs[1] != "var-2" {
		t.Fatalf("unexpected selection: %v", gotInput.VariantIDs)
	}

	var payload bulkResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if len(payload.Updated) != 1 || payload.Updated[0].Price != 27.5 {
		t.Fatalf("unexpected updated payload: %+v", payload.Updated)
	}
	if len(payload.Failed) != 1 || payload.Failed[0].VariantID != "var-2" {
		t.Fatalf("unexpected failed payload: %+v", payload.Failed)
	}
}

func TestVariantHandlersBulkInventory(t *testing.T) {
	var gotInput services.BulkInventoryInput
	matrix := &stubMatrixService{
		bulkInventoryFn: func(ctx context.Context, parentID string, input services.BulkInventoryInput) (services.BulkUpdateResult, error) {
			gotInput = input
			return services.BulkUpdateResult{
				Updated: []services.Variant{{ID: "var-1", Stock: 0}},
			}, nil
		},
	}

	router := variantRouter(NewVariantHandlers(&stubGenerationService{}, matrix))
	body := bytes.NewBufferString(`{"variant_ids": ["var-1"], "mode": "decrement", "quantity": 10}`)
	req := httptest.NewRequest(http.MethodPost, "/parents/prod-1/variants:bulk-inventory", body)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotInput.Mode != services.BulkInventoryDecrement || gotInput.Quantity != 10 {
		t.Fatalf("unexpected input: %+v", gotInput)
	}
	if len(gotInput.VariantIDs) != 1 || gotInput.VariantIDs[0] != "var-1" {
		t.Fatalf("unexpected selection: %v", gotInput.VariantIDs)
	}

	var payload bulkResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON response: %v", err)
	}
	if len(payload.Updated) != 1 || payload.Updated[0].Stock != 0 {
		t.Fatalf("unexpected updated payload: %+v", payload.Updated)
	}
}
