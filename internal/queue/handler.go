package queue

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/pkg/httputil"
	"github.com/inkwheel/pressroom/internal/quota"
	"github.com/inkwheel/pressroom/internal/voice"
)

// Handler handles HTTP requests for queue items.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new queue handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers queue item routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Post("/", h.CreateItem)
		r.Get("/latest", h.MostRecentPosted)
		r.Route("/{itemID}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Patch("/", h.UpdateItem)
			r.Delete("/", h.DeleteItem)
			r.Post("/ready", h.MarkReady)
			r.Post("/publish", h.Publish)
			r.Post("/mark-posted", h.MarkPosted)
			r.Post("/check", h.Check)
		})
	})
}

// ItemResponse is the API view of a queue item.
type ItemResponse struct {
	ID             string           `json:"id"`
	Platform       domain.Platform  `json:"platform"`
	Kind           domain.ItemKind  `json:"kind"`
	Payload        domain.Payload   `json:"payload"`
	State          domain.ItemState `json:"state"`
	SelectedOption *int             `json:"selected_option,omitempty"`
	AssetComplete  bool             `json:"asset_complete"`
	Format         *string          `json:"format,omitempty"`
	TrialID        *string          `json:"trial_id,omitempty"`
	PostURL        *string          `json:"post_url,omitempty"`
	LastError      *string          `json:"last_error,omitempty"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
	PostedAt       *string          `json:"posted_at,omitempty"`
}

func toItemResponse(item *domain.QueueItem) ItemResponse {
	resp := ItemResponse{
		ID:             item.ID,
		Platform:       item.Platform,
		Kind:           item.Kind,
		Payload:        item.Payload,
		State:          item.State,
		SelectedOption: item.SelectedOption,
		AssetComplete:  item.AssetComplete,
		Format:         item.Format,
		TrialID:        item.TrialID,
		PostURL:        item.PostURL,
		LastError:      item.LastError,
		CreatedBy:      item.CreatedBy,
		CreatedAt:      item.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      item.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if item.PostedAt != nil {
		posted := item.PostedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.PostedAt = &posted
	}
	return resp
}

// itemErrorMappings cover the shared state machine and lookup errors.
var itemErrorMappings = []httputil.ErrorMapping{
	{Error: ErrItemNotFound, Status: http.StatusNotFound},
	{Error: ErrConflict, Status: http.StatusConflict},
	{Error: ErrInvalidTransition, Status: http.StatusConflict},
	{Error: ErrNotDeletable, Status: http.StatusConflict},
	{Error: ErrNoOptionSelected, Status: http.StatusBadRequest},
	{Error: ErrAssetIncomplete, Status: http.StatusBadRequest},
	{Error: ErrCharLimitExceeded, Status: http.StatusBadRequest},
	{Error: ErrManualPlatform, Status: http.StatusBadRequest},
	{Error: ErrAutoPlatform, Status: http.StatusBadRequest},
	{Error: ErrInvalidSelection, Status: http.StatusBadRequest},
	{Error: quota.ErrQuotaExceeded, Status: http.StatusTooManyRequests},
	{Error: ErrGatewayFailure, Status: http.StatusBadGateway},
}

// CreateItemRequest represents the request body for creating an item.
type CreateItemRequest struct {
	Platform string         `json:"platform" validate:"required"`
	Kind     string         `json:"kind" validate:"required"`
	Payload  domain.Payload `json:"payload"`
	Format   string         `json:"format,omitempty"`
}

// CreateItem handles POST /items.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	platform := domain.Platform(req.Platform)
	kind := domain.ItemKind(req.Kind)
	if !platform.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "unknown platform")
		return
	}
	if !kind.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "unknown kind")
		return
	}

	item, err := h.service.Create(r.Context(), CreateItemInput{
		Platform: platform,
		Kind:     kind,
		Payload:  req.Payload,
		Format:   req.Format,
	}, httputil.GetOperatorID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, toItemResponse(item))
}

// GetItem handles GET /items/{itemID}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toItemResponse(item))
}

// ListItems handles GET /items with optional filters.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	filters, err := parseItemFilters(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.service.List(r.Context(), filters)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	resp := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	httputil.Success(w, http.StatusOK, resp)
}

// UpdateItemRequest represents the request body for updating an item.
type UpdateItemRequest struct {
	Text           *string `json:"text,omitempty"`
	Title          *string `json:"title,omitempty"`
	Caption        *string `json:"caption,omitempty"`
	SelectedOption *int    `json:"selected_option,omitempty"`
	AssetComplete  *bool   `json:"asset_complete,omitempty"`
}

// UpdateItem handles PATCH /items/{itemID}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	item, err := h.service.Update(r.Context(), chi.URLParam(r, "itemID"), UpdateItemInput{
		Text:           req.Text,
		Title:          req.Title,
		Caption:        req.Caption,
		SelectedOption: req.SelectedOption,
		AssetComplete:  req.AssetComplete,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toItemResponse(item))
}

// DeleteItem handles DELETE /items/{itemID}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkReady handles POST /items/{itemID}/ready.
func (h *Handler) MarkReady(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.MarkReady(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toItemResponse(item))
}

// Publish handles POST /items/{itemID}/publish.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Publish(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toItemResponse(item))
}

// MarkPostedRequest represents the request body for confirming a manual publish.
type MarkPostedRequest struct {
	PostURL string `json:"post_url" validate:"required,url"`
}

// MarkPosted handles POST /items/{itemID}/mark-posted.
func (h *Handler) MarkPosted(w http.ResponseWriter, r *http.Request) {
	var req MarkPostedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	item, err := h.service.MarkPosted(r.Context(), chi.URLParam(r, "itemID"), req.PostURL)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toItemResponse(item))
}

// CheckRequest represents the request body for an advisory voice check.
type CheckRequest struct {
	VoiceProfile string `json:"voice_profile,omitempty"`
}

// Check handles POST /items/{itemID}/check.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	report, err := h.service.Check(r.Context(), chi.URLParam(r, "itemID"), req.VoiceProfile)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, append(itemErrorMappings, httputil.ErrorMapping{
			Error: voice.ErrDisabled, Status: http.StatusServiceUnavailable,
		}))
		return
	}

	httputil.Success(w, http.StatusOK, report)
}

// MostRecentPosted handles GET /items/latest?platform=...&kind=...
func (h *Handler) MostRecentPosted(w http.ResponseWriter, r *http.Request) {
	platform := domain.Platform(r.URL.Query().Get("platform"))
	kind := domain.ItemKind(r.URL.Query().Get("kind"))
	if !platform.IsValid() || !kind.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "platform and kind query parameters are required")
		return
	}

	item, err := h.service.MostRecentPosted(r.Context(), platform, kind)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, itemErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toItemResponse(item))
}

func parseItemFilters(r *http.Request) (ItemFilters, error) {
	var filters ItemFilters
	q := r.URL.Query()

	if v := q.Get("platform"); v != "" {
		platform := domain.Platform(v)
		if !platform.IsValid() {
			return filters, errInvalidFilter("platform", v)
		}
		filters.Platform = &platform
	}
	if v := q.Get("state"); v != "" {
		state := domain.ItemState(v)
		if !state.IsValid() {
			return filters, errInvalidFilter("state", v)
		}
		filters.State = &state
	}
	if v := q.Get("kind"); v != "" {
		kind := domain.ItemKind(v)
		if !kind.IsValid() {
			return filters, errInvalidFilter("kind", v)
		}
		filters.Kind = &kind
	}
	if v := q.Get("trial_id"); v != "" {
		filters.TrialID = &v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filters, errInvalidFilter("limit", v)
		}
		filters.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filters, errInvalidFilter("offset", v)
		}
		filters.Offset = offset
	}
	return filters, nil
}

type filterError struct{ field, value string }

func (e filterError) Error() string { return "invalid " + e.field + " filter: " + e.value }

func errInvalidFilter(field, value string) error { return filterError{field: field, value: value} }
