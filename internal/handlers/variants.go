package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/platform/httpx"
	"github.com/catalogforge/api/internal/repositories"
	"github.com/catalogforge/api/internal/services"
)

const maxVariantRequestBody = 256 * 1024

// VariantHandlers exposes generation, matrix and bulk mutation endpoints for
// variant families.
type VariantHandlers struct {
	generation services.VariantGenerationService
	matrix     services.VariantMatrixService
	limiter    rateLimiter
}

// VariantOption customises the variant handler set.
type VariantOption func(*VariantHandlers)

// WithGenerationRateLimit throttles generation requests per client address.
func WithGenerationRateLimit(limit int, window time.Duration) VariantOption {
	return func(h *VariantHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, nil)
	}
}

// NewVariantHandlers constructs a variant handler set.
func NewVariantHandlers(generation services.VariantGenerationService, matrix services.VariantMatrixService, opts ...VariantOption) *VariantHandlers {
	h := &VariantHandlers{
		generation: generation,
		matrix:     matrix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the variant endpoints.
func (h *VariantHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Post("/parents/{parentId}/variants:preview", h.preview)
	r.Post("/parents/{parentId}/variants:generate", h.generate)
	r.Get("/parents/{parentId}/variants/matrix", h.matrixView)
	r.Post("/parents/{parentId}/variants:bulk-price", h.bulkPrice)
	r.Post("/parents/{parentId}/variants:bulk-inventory", h.bulkInventory)
	r.Patch("/variants/{variantId}", h.updateCell)
}

func (h *VariantHandlers) preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.generation == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "variant generation service not available", http.StatusServiceUnavailable))
		return
	}

	input, ok := h.decodeGenerateInput(w, r)
	if !ok {
		return
	}

	preview, err := h.generation.Preview(ctx, input)
	if err != nil {
		writeVariantError(ctx, w, err)
		return
	}

	items := make([]previewItemPayload, 0, len(preview.Items))
	for _, item := range preview.Items {
		items = append(items, previewItemPayload{
			Axes:    buildSelectionPayloads(item.Combination.Selections()),
			Label:   item.Combination.Label(),
			Ordinal: item.Ordinal,
			SKU:     item.SKU,
			Name:    item.Name,
			Price:   item.Price,
		})
	}
	writeJSONResponse(w, http.StatusOK, previewResponse{Total: preview.Total, Items: items})
}

func (h *VariantHandlers) generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.generation == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "variant generation service not available", http.StatusServiceUnavailable))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many generation requests", http.StatusTooManyRequests))
		return
	}

	input, ok := h.decodeGenerateInput(w, r)
	if !ok {
		return
	}

	result, err := h.generation.Generate(ctx, input)
	if err != nil {
		writeVariantError(ctx, w, err)
		return
	}

	payload := generationResponse{
		Requested: result.Requested,
		Created:   buildVariantPayloads(result.Created),
		Skipped:   make([]skippedPayload, 0, len(result.Skipped)),
		Failed:    make([]failedPayload, 0, len(result.Failed)),
	}
	for _, skip := range result.Skipped {
		payload.Skipped = append(payload.Skipped, skippedPayload{
			Axes:   buildSelectionPayloads(skip.Combination.Selections()),
			SKU:    skip.SKU,
			Reason: skip.Reason,
		})
	}
	for _, fail := range result.Failed {
		payload.Failed = append(payload.Failed, failedPayload{
			Axes:   buildSelectionPayloads(fail.Combination.Selections()),
			SKU:    fail.SKU,
			Reason: fail.Reason,
		})
	}
	writeJSONResponse(w, http.StatusCreated, payload)
}

func (h *VariantHandlers) matrixView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.matrix == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "variant matrix service not available", http.StatusServiceUnavailable))
		return
	}

	parentID := strings.TrimSpace(chi.URLParam(r, "parentId"))
	if parentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "parent_id is required", http.StatusBadRequest))
		return
	}

	result, err := h.matrix.Matrix(ctx, parentID)
	if err != nil {
		writeVariantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildMatrixPayload(result))
}

func (h *VariantHandlers) updateCell(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.matrix == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "variant matrix service not available", http.StatusServiceUnavailable))
		return
	}

	variantID := strings.TrimSpace(chi.URLParam(r, "variantId"))
	if variantID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "variant_id is required", http.StatusBadRequest))
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req updateCellRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	update := services.CellUpdate{
		SKU:   req.SKU,
		Price: req.Price,
		Stock: req.Stock,
	}
	if req.Status != nil {
		status := domain.VariantStatus(*req.Status)
		update.Status = &status
	}

	variant, err := h.matrix.UpdateCell(ctx, variantID, update)
	if err != nil {
		writeVariantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, variantResponse{Variant: buildVariantPayload(variant)})
}

func (h *VariantHandlers) bulkPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.matrix == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "variant matrix service not available", http.StatusServiceUnavailable))
		return
	}

	parentID := strings.TrimSpace(chi.URLParam(r, "parentId"))
	if parentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "parent_id is required", http.StatusBadRequest))
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req bulkPriceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	result, err := h.matrix.BulkPrice(ctx, parentID, services.BulkPriceInput{
		VariantIDs: req.VariantIDs,
		Mode:       services.BulkPriceMode(req.Mode),
		Amount:     req.Amount,
	})
	if err != nil {
		writeVariantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkPayload(result))
}

func (h *VariantHandlers) bulkInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.matrix == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "variant matrix service not available", http.StatusServiceUnavailable))
		return
	}

	parentID := strings.TrimSpace(chi.URLParam(r, "parentId"))
	if parentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "parent_id is required", http.StatusBadRequest))
		return
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	var req bulkInventoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	result, err := h.matrix.BulkInventory(ctx, parentID, services.BulkInventoryInput{
		VariantIDs: req.VariantIDs,
		Mode:       services.BulkInventoryMode(req.Mode),
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeVariantError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkPayload(result))
}

func (h *VariantHandlers) decodeGenerateInput(w http.ResponseWriter, r *http.Request) (services.GenerateVariantsInput, bool) {
	ctx := r.Context()

	parentID := strings.TrimSpace(chi.URLParam(r, "parentId"))
	if parentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "parent_id is required", http.StatusBadRequest))
		return services.GenerateVariantsInput{}, false
	}

	body, ok := h.readBody(w, r)
	if !ok {
		return services.GenerateVariantsInput{}, false
	}

	var req generateVariantsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return services.GenerateVariantsInput{}, false
	}

	input := services.GenerateVariantsInput{
		Parent: domain.Parent{
			ID:         parentID,
			SKU:        req.Parent.SKU,
			Name:       req.Parent.Name,
			BasePrice:  req.Parent.BasePrice,
			Attributes: req.Parent.Attributes,
		},
		Axes: buildAxes(req.Axes),
		SKU: services.SKUConfig{
			Mode:    services.SKUMode(req.SKU.Mode),
			Pattern: req.SKU.Pattern,
		},
		Pricing: services.PricingConfig{
			Mode:         services.PricingMode(req.Pricing.Mode),
			FixedPrice:   req.Pricing.FixedPrice,
			Percentage:   req.Pricing.Percentage,
			Incremental:  req.Pricing.Incremental,
			CustomPrices: req.Pricing.CustomPrices,
		},
		InitialStock:    req.InitialStock,
		Status:          domain.VariantStatus(req.Status),
		InheritFields:   req.InheritFields,
		SkipExisting:    req.SkipExisting,
		ConfirmLargeSet: req.ConfirmLargeSet,
	}
	return input, true
}

func (h *VariantHandlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxVariantRequestBody)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return nil, false
	}
	return body, true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type generateVariantsRequest struct {
	Parent          parentRequest        `json:"parent"`
	Axes            []axisRequest        `json:"axes"`
	SKU             skuConfigRequest     `json:"sku"`
	Pricing         pricingConfigRequest `json:"pricing"`
	InitialStock    int                  `json:"initial_stock"`
	Status          string               `json:"status"`
	InheritFields   []string             `json:"inherit_fields,omitempty"`
	SkipExisting    bool                 `json:"skip_existing"`
	ConfirmLargeSet bool                 `json:"confirm_large_set"`
}

type parentRequest struct {
	SKU        string            `json:"sku"`
	Name       string            `json:"name"`
	BasePrice  float64           `json:"base_price"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type axisRequest struct {
	Name   string             `json:"name"`
	Values []axisValueRequest `json:"values"`
}

type axisValueRequest struct {
	Value      string             `json:"value"`
	Adjustment *adjustmentRequest `json:"adjustment,omitempty"`
}

type adjustmentRequest struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

type skuConfigRequest struct {
	Mode    string `json:"mode"`
	Pattern string `json:"pattern,omitempty"`
}

type pricingConfigRequest struct {
	Mode         string             `json:"mode"`
	FixedPrice   float64            `json:"fixed_price,omitempty"`
	Percentage   float64            `json:"percentage,omitempty"`
	Incremental  bool               `json:"incremental,omitempty"`
	CustomPrices map[string]float64 `json:"custom_prices,omitempty"`
}

type updateCellRequest struct {
	SKU    *string  `json:"sku"`
	Price  *float64 `json:"price"`
	Stock  *int     `json:"stock"`
	Status *string  `json:"status"`
}

type bulkPriceRequest struct {
	VariantIDs []string `json:"variant_ids"`
	Mode       string   `json:"mode"`
	Amount     float64  `json:"amount"`
}

type bulkInventoryRequest struct {
	VariantIDs []string `json:"variant_ids"`
	Mode       string   `json:"mode"`
	Quantity   int      `json:"quantity"`
}

type previewResponse struct {
	Total int                  `json:"total"`
	Items []previewItemPayload `json:"items"`
}

type previewItemPayload struct {
	Axes    []selectionPayload `json:"axes"`
	Label   string             `json:"label"`
	Ordinal int                `json:"ordinal"`
	SKU     string             `json:"sku"`
	Name    string             `json:"name"`
	Price   float64            `json:"price"`
}

type generationResponse struct {
	Requested int              `json:"requested"`
	Created   []variantPayload `json:"created"`
	Skipped   []skippedPayload `json:"skipped"`
	Failed    []failedPayload  `json:"failed"`
}

type skippedPayload struct {
	Axes   []selectionPayload `json:"axes"`
	SKU    string             `json:"sku,omitempty"`
	Reason string             `json:"reason"`
}

type failedPayload struct {
	Axes   []selectionPayload `json:"axes"`
	SKU    string             `json:"sku,omitempty"`
	Reason string             `json:"reason"`
}

type variantResponse struct {
	Variant variantPayload `json:"variant"`
}

type variantPayload struct {
	ID         string             `json:"id"`
	ParentID   string             `json:"parent_id"`
	SKU        string             `json:"sku"`
	Name       string             `json:"name,omitempty"`
	Price      float64            `json:"price"`
	Stock      int                `json:"stock"`
	Status     string             `json:"status"`
	Axes       []selectionPayload `json:"axes"`
	Attributes map[string]string  `json:"attributes,omitempty"`
	Position   int                `json:"position"`
	CreatedAt  string             `json:"created_at,omitempty"`
	UpdatedAt  string             `json:"updated_at,omitempty"`
}

type selectionPayload struct {
	Axis  string `json:"axis"`
	Value string `json:"value"`
}

type matrixResponse struct {
	Kind    string             `json:"kind"`
	Reason  string             `json:"reason,omitempty"`
	Matrix  *matrixPayload     `json:"matrix,omitempty"`
	Flat    []variantPayload   `json:"flat,omitempty"`
	Summary *summaryPayload    `json:"summary,omitempty"`
}

type matrixPayload struct {
	ParentID string                 `json:"parent_id"`
	Axes     []matrixAxisPayload    `json:"axes"`
	Cells    map[string]cellPayload `json:"cells"`
}

type matrixAxisPayload struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type cellPayload struct {
	Variant     *variantPayload `json:"variant,omitempty"`
	Coordinates []int           `json:"coordinates"`
	Missing     bool            `json:"missing,omitempty"`
}

type summaryPayload struct {
	TotalCells   int            `json:"total_cells"`
	Filled       int            `json:"filled"`
	Missing      int            `json:"missing"`
	PriceMin     float64        `json:"price_min"`
	PriceMax     float64        `json:"price_max"`
	StockTotal   int            `json:"stock_total"`
	StatusCounts map[string]int `json:"status_counts,omitempty"`
}

type bulkResponse struct {
	Updated []variantPayload     `json:"updated"`
	Failed  []bulkFailurePayload `json:"failed"`
}

type bulkFailurePayload struct {
	VariantID string `json:"variant_id"`
	Reason    string `json:"reason"`
}

func buildAxes(reqs []axisRequest) []domain.Axis {
	if len(reqs) == 0 {
		return nil
	}
	axes := make([]domain.Axis, 0, len(reqs))
	for _, req := range reqs {
		values := make([]domain.AxisValue, 0, len(req.Values))
		for _, value := range req.Values {
			av := domain.AxisValue{Value: value.Value}
			if value.Adjustment != nil {
				av.Adjustment = &domain.PriceAdjustment{
					Type:   domain.PriceAdjustmentType(value.Adjustment.Type),
					Amount: value.Adjustment.Amount,
				}
			}
			values = append(values, av)
		}
		axes = append(axes, domain.Axis{Name: req.Name, Values: values})
	}
	return axes
}

func buildSelectionPayloads(selections []domain.AxisSelection) []selectionPayload {
	out := make([]selectionPayload, 0, len(selections))
	for _, sel := range selections {
		out = append(out, selectionPayload{Axis: sel.Axis, Value: sel.Value})
	}
	return out
}

func buildVariantPayload(variant domain.Variant) variantPayload {
	return variantPayload{
		ID:         variant.ID,
		ParentID:   variant.ParentID,
		SKU:        variant.SKU,
		Name:       variant.Name,
		Price:      variant.Price,
		Stock:      variant.Stock,
		Status:     string(variant.Status),
		Axes:       buildSelectionPayloads(variant.Axes),
		Attributes: variant.Attributes,
		Position:   variant.Position,
		CreatedAt:  formatTime(variant.CreatedAt),
		UpdatedAt:  formatTime(variant.UpdatedAt),
	}
}

func buildVariantPayloads(variants []domain.Variant) []variantPayload {
	out := make([]variantPayload, 0, len(variants))
	for _, variant := range variants {
		out = append(out, buildVariantPayload(variant))
	}
	return out
}

func buildMatrixPayload(result domain.MatrixResult) matrixResponse {
	resp := matrixResponse{
		Kind:   string(result.Kind),
		Reason: result.Reason,
	}
	if result.Matrix != nil {
		matrix := matrixPayload{
			ParentID: result.Matrix.ParentID,
			Axes:     make([]matrixAxisPayload, 0, len(result.Matrix.Axes)),
			Cells:    make(map[string]cellPayload, len(result.Matrix.Cells)),
		}
		for _, axis := range result.Matrix.Axes {
			matrix.Axes = append(matrix.Axes, matrixAxisPayload{Name: axis.Name, Values: axis.Values})
		}
		for key, cell := range result.Matrix.Cells {
			payload := cellPayload{
				Coordinates: cell.Coordinates,
				Missing:     cell.Missing,
			}
			if !cell.Missing {
				variant := buildVariantPayload(cell.Variant)
				payload.Variant = &variant
			}
			matrix.Cells[key] = payload
		}
		resp.Matrix = &matrix

		counts := make(map[string]int, len(result.Matrix.Summary.StatusCounts))
		for status, count := range result.Matrix.Summary.StatusCounts {
			counts[string(status)] = count
		}
		resp.Summary = &summaryPayload{
			TotalCells:   result.Matrix.Summary.TotalCells,
			Filled:       result.Matrix.Summary.Filled,
			Missing:      result.Matrix.Summary.Missing,
			PriceMin:     result.Matrix.Summary.PriceMin,
			PriceMax:     result.Matrix.Summary.PriceMax,
			StockTotal:   result.Matrix.Summary.StockTotal,
			StatusCounts: counts,
		}
	}
	if len(result.Flat) > 0 {
		resp.Flat = buildVariantPayloads(result.Flat)
	}
	return resp
}

func buildBulkPayload(result services.BulkUpdateResult) bulkResponse {
	resp := bulkResponse{
		Updated: buildVariantPayloads(result.Updated),
		Failed:  make([]bulkFailurePayload, 0, len(result.Failed)),
	}
	for _, failure := range result.Failed {
		resp.Failed = append(resp.Failed, bulkFailurePayload{VariantID: failure.VariantID, Reason: failure.Reason})
	}
	return resp
}

func writeVariantError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var tooMany *services.TooManyCombinationsError
	switch {
	case errors.As(err, &tooMany):
		httpx.WriteError(ctx, w, httpx.NewError("too_many_combinations", err.Error(), http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"size": tooMany.Size, "ceiling": tooMany.Ceiling}))
	case errors.Is(err, services.ErrGenerationInvalidInput), errors.Is(err, services.ErrMatrixInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case repositories.IsVariantConflict(err):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case repositories.IsVariantUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "variant storage temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("variant_error", "variant operation failed", http.StatusInternalServerError))
	}
}
