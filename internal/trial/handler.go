package trial

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/pkg/httputil"
	"github.com/inkwheel/pressroom/internal/queue"
)

// Handler handles HTTP requests for trials and reviews.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new trial handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers trial and review routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/trials", func(r chi.Router) {
		r.Get("/", h.ListTrials)
		r.Post("/", h.CreateTrial)
		r.Route("/{trialID}", func(r chi.Router) {
			r.Get("/", h.Overview)
			r.Post("/standardize", h.Standardize)
		})
	})
	r.Post("/items/{itemID}/review", h.SubmitReview)
}

var trialErrorMappings = []httputil.ErrorMapping{
	{Error: ErrTrialNotFound, Status: http.StatusNotFound},
	{Error: queue.ErrItemNotFound, Status: http.StatusNotFound},
	{Error: ErrAlreadyStandardized, Status: http.StatusConflict},
	{Error: queue.ErrConflict, Status: http.StatusConflict},
	{Error: ErrNotPendingReview, Status: http.StatusConflict},
	{Error: ErrUnknownFormat, Status: http.StatusBadRequest},
	{Error: ErrNoRatings, Status: http.StatusBadRequest},
	{Error: ErrEmptySchedule, Status: http.StatusBadRequest},
	{Error: ErrNotTrialItem, Status: http.StatusBadRequest},
	{Error: ErrInvalidDecision, Status: http.StatusBadRequest},
	{Error: ErrDecisionReasonRequired, Status: http.StatusBadRequest},
	{Error: ErrInvalidScore, Status: http.StatusBadRequest},
}

// TrialResponse is the API view of a trial.
type TrialResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           domain.ItemKind `json:"kind"`
	Schedule       []string        `json:"schedule"`
	CurrentStep    int             `json:"current_step"`
	StandardFormat *string         `json:"standard_format,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      string          `json:"created_at"`
}

func toTrialResponse(trial *domain.Trial) TrialResponse {
	return TrialResponse{
		ID:             trial.ID,
		Name:           trial.Name,
		Kind:           trial.Kind,
		Schedule:       trial.Schedule,
		CurrentStep:    trial.CurrentStep,
		StandardFormat: trial.StandardFormat,
		CreatedBy:      trial.CreatedBy,
		CreatedAt:      trial.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateTrialRequest represents the request body for creating a trial.
type CreateTrialRequest struct {
	Name     string   `json:"name" validate:"required,min=1,max=255"`
	Kind     string   `json:"kind" validate:"required"`
	Schedule []string `json:"schedule" validate:"required,min=1,dive,required"`
}

// CreateTrial handles POST /trials.
func (h *Handler) CreateTrial(w http.ResponseWriter, r *http.Request) {
	var req CreateTrialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	kind := domain.ItemKind(req.Kind)
	if !kind.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "unknown kind")
		return
	}

	trial, err := h.service.CreateTrial(r.Context(), CreateTrialInput{
		Name:     req.Name,
		Kind:     kind,
		Schedule: req.Schedule,
	}, httputil.GetOperatorID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, trialErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, toTrialResponse(trial))
}

// ListTrials handles GET /trials.
func (h *Handler) ListTrials(w http.ResponseWriter, r *http.Request) {
	trials, err := h.service.List(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	resp := make([]TrialResponse, 0, len(trials))
	for _, trial := range trials {
		resp = append(resp, toTrialResponse(trial))
	}
	httputil.Success(w, http.StatusOK, resp)
}

// FormatStatsResponse is the API view of one format's aggregates.
type FormatStatsResponse struct {
	Format         string             `json:"format"`
	Count          int                `json:"count"`
	ShareRate      float64            `json:"share_rate"`
	DimensionMeans map[string]float64 `json:"dimension_means"`
	OverallMean    *float64           `json:"overall_mean,omitempty"`
}

// OverviewResponse is the API view of a trial's progress.
type OverviewResponse struct {
	Trial         TrialResponse         `json:"trial"`
	Stats         []FormatStatsResponse `json:"stats"`
	PendingItemID *string               `json:"pending_item_id,omitempty"`
	Leader        *string               `json:"leader,omitempty"`
}

// Overview handles GET /trials/{trialID}.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context(), chi.URLParam(r, "trialID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, trialErrorMappings)
		return
	}

	stats := make([]FormatStatsResponse, 0, len(overview.Stats))
	for _, entry := range overview.Stats {
		statsResp := FormatStatsResponse{
			Format:         entry.Format,
			Count:          entry.Count,
			ShareRate:      entry.ShareRate(),
			DimensionMeans: entry.DimensionMeans,
		}
		if mean, ok := entry.OverallMean(); ok {
			statsResp.OverallMean = &mean
		}
		stats = append(stats, statsResp)
	}

	httputil.Success(w, http.StatusOK, OverviewResponse{
		Trial:         toTrialResponse(overview.Trial),
		Stats:         stats,
		PendingItemID: overview.PendingItemID,
		Leader:        overview.Leader,
	})
}

// StandardizeRequest represents the request body for the lock-in decision.
type StandardizeRequest struct {
	Format string `json:"format" validate:"required"`
}

// Standardize handles POST /trials/{trialID}/standardize.
func (h *Handler) Standardize(w http.ResponseWriter, r *http.Request) {
	var req StandardizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	trial, err := h.service.Standardize(r.Context(), chi.URLParam(r, "trialID"), req.Format)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, trialErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toTrialResponse(trial))
}

// ReviewRequest represents the request body for a candidate review.
type ReviewRequest struct {
	Scores         map[string]int `json:"scores"`
	WouldShare     bool           `json:"would_share"`
	WhatWorked     string         `json:"what_worked,omitempty"`
	WhatDidnt      string         `json:"what_didnt,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	Decision       string         `json:"decision" validate:"required,oneof=approve rework salvage kill"`
	DecisionReason string         `json:"decision_reason" validate:"required"`
	Topic          string         `json:"topic,omitempty"`
	GoodLines      []string       `json:"good_lines,omitempty"`
}

// RatingResponse is the API view of a submitted rating.
type RatingResponse struct {
	ID             string                `json:"id"`
	ItemID         string                `json:"item_id"`
	TrialID        string                `json:"trial_id"`
	Format         string                `json:"format"`
	Scores         map[string]int        `json:"scores"`
	WouldShare     bool                  `json:"would_share"`
	Decision       domain.ReviewDecision `json:"decision"`
	DecisionReason string                `json:"decision_reason"`
}

// SubmitReview handles POST /items/{itemID}/review.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	rating, err := h.service.SubmitReview(r.Context(), chi.URLParam(r, "itemID"), ReviewInput{
		Scores:         req.Scores,
		WouldShare:     req.WouldShare,
		WhatWorked:     req.WhatWorked,
		WhatDidnt:      req.WhatDidnt,
		Notes:          req.Notes,
		Decision:       domain.ReviewDecision(req.Decision),
		DecisionReason: req.DecisionReason,
		Topic:          req.Topic,
		UsableParts:    domain.UsableParts{GoodLines: req.GoodLines},
	}, httputil.GetOperatorID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, trialErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, RatingResponse{
		ID:             rating.ID,
		ItemID:         rating.ItemID,
		TrialID:        rating.TrialID,
		Format:         rating.Format,
		Scores:         rating.Scores,
		WouldShare:     rating.WouldShare,
		Decision:       rating.Decision,
		DecisionReason: rating.DecisionReason,
	})
}
