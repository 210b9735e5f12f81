package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/catalogforge/api/internal/domain"
	"github.com/catalogforge/api/internal/platform/httpx"
	"github.com/catalogforge/api/internal/repositories"
	"github.com/catalogforge/api/internal/services"
)

const maxTemplateRequestBody = 64 * 1024

// AxisTemplateHandlers exposes CRUD endpoints for reusable axis templates.
type AxisTemplateHandlers struct {
	templates services.AxisTemplateService
}

// NewAxisTemplateHandlers constructs an axis template handler set.
func NewAxisTemplateHandlers(svc services.AxisTemplateService) *AxisTemplateHandlers {
	return &AxisTemplateHandlers{templates: svc}
}

// Routes registers the axis template endpoints.
func (h *AxisTemplateHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Post("/axis-templates", h.create)
	r.Get("/axis-templates", h.list)
	r.Get("/axis-templates/{templateId}", h.get)
	r.Put("/axis-templates/{templateId}", h.update)
	r.Delete("/axis-templates/{templateId}", h.remove)
	r.Post("/axis-templates/{templateId}:apply", h.apply)
}

func (h *AxisTemplateHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.templates == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "axis template service not available", http.StatusServiceUnavailable))
		return
	}

	input, ok := h.decodeTemplateInput(w, r)
	if !ok {
		return
	}

	template, err := h.templates.CreateTemplate(ctx, input)
	if err != nil {
		writeTemplateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, templateResponse{Template: buildTemplatePayload(template)})
}

func (h *AxisTemplateHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.templates == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "axis template service not available", http.StatusServiceUnavailable))
		return
	}

	templates, err := h.templates.ListTemplates(ctx)
	if err != nil {
		writeTemplateError(ctx, w, err)
		return
	}

	payloads := make([]templatePayload, 0, len(templates))
	for _, template := range templates {
		payloads = append(payloads, buildTemplatePayload(template))
	}
	writeJSONResponse(w, http.StatusOK, templateListResponse{Templates: payloads})
}

func (h *AxisTemplateHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.templates == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "axis template service not available", http.StatusServiceUnavailable))
		return
	}

	templateID := strings.TrimSpace(chi.URLParam(r, "templateId"))
	if templateID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "template_id is required", http.StatusBadRequest))
		return
	}

	template, err := h.templates.GetTemplate(ctx, templateID)
	if err != nil {
		writeTemplateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, templateResponse{Template: buildTemplatePayload(template)})
}

func (h *AxisTemplateHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.templates == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "axis template service not available", http.StatusServiceUnavailable))
		return
	}

	templateID := strings.TrimSpace(chi.URLParam(r, "templateId"))
	if templateID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "template_id is required", http.StatusBadRequest))
		return
	}

	input, ok := h.decodeTemplateInput(w, r)
	if !ok {
		return
	}

	template, err := h.templates.UpdateTemplate(ctx, templateID, input)
	if err != nil {
		writeTemplateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, templateResponse{Template: buildTemplatePayload(template)})
}

func (h *AxisTemplateHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.templates == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "axis template service not available", http.StatusServiceUnavailable))
		return
	}

	templateID := strings.TrimSpace(chi.URLParam(r, "templateId"))
	if templateID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "template_id is required", http.StatusBadRequest))
		return
	}

	if err := h.templates.DeleteTemplate(ctx, templateID); err != nil {
		writeTemplateError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AxisTemplateHandlers) apply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.templates == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "axis template service not available", http.StatusServiceUnavailable))
		return
	}

	templateID := strings.TrimSpace(chi.URLParam(r, "templateId"))
	if templateID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "template_id is required", http.StatusBadRequest))
		return
	}

	axes, err := h.templates.ApplyTemplate(ctx, templateID)
	if err != nil {
		writeTemplateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, applyTemplateResponse{Axes: buildAxisPayloads(axes)})
}

func (h *AxisTemplateHandlers) decodeTemplateInput(w http.ResponseWriter, r *http.Request) (services.AxisTemplateInput, bool) {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxTemplateRequestBody)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return services.AxisTemplateInput{}, false
	}

	var req axisTemplateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return services.AxisTemplateInput{}, false
	}

	return services.AxisTemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Axes:        buildAxes(req.Axes),
	}, true
}

type axisTemplateRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Axes        []axisRequest `json:"axes"`
}

type templateResponse struct {
	Template templatePayload `json:"template"`
}

type templateListResponse struct {
	Templates []templatePayload `json:"templates"`
}

type applyTemplateResponse struct {
	Axes []axisPayload `json:"axes"`
}

type templatePayload struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Axes        []axisPayload `json:"axes"`
	BuiltIn     bool          `json:"built_in,omitempty"`
	UsageCount  int           `json:"usage_count"`
	CreatedAt   string        `json:"created_at,omitempty"`
	UpdatedAt   string        `json:"updated_at,omitempty"`
}

type axisPayload struct {
	Name   string             `json:"name"`
	Values []axisValuePayload `json:"values"`
}

type axisValuePayload struct {
	Value      string             `json:"value"`
	Adjustment *adjustmentRequest `json:"adjustment,omitempty"`
}

func buildTemplatePayload(template domain.AxisTemplate) templatePayload {
	return templatePayload{
		ID:          template.ID,
		Name:        template.Name,
		Description: template.Description,
		Axes:        buildAxisPayloads(template.Axes),
		BuiltIn:     template.BuiltIn,
		UsageCount:  template.UsageCount,
		CreatedAt:   formatTime(template.CreatedAt),
		UpdatedAt:   formatTime(template.UpdatedAt),
	}
}

func buildAxisPayloads(axes []domain.Axis) []axisPayload {
	out := make([]axisPayload, 0, len(axes))
	for _, axis := range axes {
		values := make([]axisValuePayload, 0, len(axis.Values))
		for _, value := range axis.Values {
			payload := axisValuePayload{Value: value.Value}
			if value.Adjustment != nil {
				payload.Adjustment = &adjustmentRequest{
					Type:   string(value.Adjustment.Type),
					Amount: value.Adjustment.Amount,
				}
			}
			values = append(values, payload)
		}
		out = append(out, axisPayload{Name: axis.Name, Values: values})
	}
	return out
}

func writeTemplateError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrTemplateInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrTemplateNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case repositories.IsTemplateConflict(err):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("template_error", "axis template operation failed", http.StatusInternalServerError))
	}
}
