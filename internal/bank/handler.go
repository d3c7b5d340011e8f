package bank

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/pkg/httputil"
)

// Handler handles HTTP requests for the content bank.
type Handler struct {
	service *Service
}

// NewHandler creates a new content bank handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers content bank routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/bank", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Get("/blacklist", h.Blacklist)
		r.Route("/{entryID}", func(r chi.Router) {
			r.Get("/", h.GetEntry)
			r.Post("/toggle-reuse", h.ToggleReuse)
		})
	})
}

var bankErrorMappings = []httputil.ErrorMapping{
	{Error: ErrEntryNotFound, Status: http.StatusNotFound},
}

// EntryResponse is the API view of a content bank entry.
type EntryResponse struct {
	ID             string              `json:"id"`
	OriginItemID   string              `json:"origin_item_id"`
	Topic          string              `json:"topic"`
	Kind           domain.ItemKind     `json:"kind"`
	Format         *string             `json:"format,omitempty"`
	Payload        domain.Payload      `json:"payload"`
	Decision       domain.BankDecision `json:"decision"`
	Reason         string              `json:"reason"`
	UsableParts    domain.UsableParts  `json:"usable_parts"`
	MarkedForReuse bool                `json:"marked_for_reuse"`
	CreatedBy      string              `json:"created_by"`
	CreatedAt      string              `json:"created_at"`
}

func toEntryResponse(entry *domain.ContentBankEntry) EntryResponse {
	return EntryResponse{
		ID:             entry.ID,
		OriginItemID:   entry.OriginItemID,
		Topic:          entry.Topic,
		Kind:           entry.Kind,
		Format:         entry.Format,
		Payload:        entry.Payload,
		Decision:       entry.Decision,
		Reason:         entry.Reason,
		UsableParts:    entry.UsableParts,
		MarkedForReuse: entry.MarkedForReuse,
		CreatedBy:      entry.CreatedBy,
		CreatedAt:      entry.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// ListEntries handles GET /bank with optional filters.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filters, err := parseEntryFilters(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.service.List(r.Context(), filters)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	resp := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toEntryResponse(entry))
	}
	httputil.Success(w, http.StatusOK, resp)
}

// GetEntry handles GET /bank/{entryID}.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, bankErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, toEntryResponse(entry))
}

// ToggleReuse handles POST /bank/{entryID}/toggle-reuse.
func (h *Handler) ToggleReuse(w http.ResponseWriter, r *http.Request) {
	marked, err := h.service.ToggleReuse(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, bankErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]bool{"marked_for_reuse": marked})
}

// Blacklist handles GET /bank/blacklist.
func (h *Handler) Blacklist(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.Blacklist(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, topics)
}

func parseEntryFilters(r *http.Request) (EntryFilters, error) {
	var filters EntryFilters
	q := r.URL.Query()

	if v := q.Get("decision"); v != "" {
		decision := domain.BankDecision(v)
		if !decision.IsValid() {
			return filters, badFilter("decision", v)
		}
		filters.Decision = &decision
	}
	if v := q.Get("marked_for_reuse"); v != "" {
		marked, err := strconv.ParseBool(v)
		if err != nil {
			return filters, badFilter("marked_for_reuse", v)
		}
		filters.MarkedForReuse = &marked
	}
	if v := q.Get("kind"); v != "" {
		kind := domain.ItemKind(v)
		if !kind.IsValid() {
			return filters, badFilter("kind", v)
		}
		filters.Kind = &kind
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filters, badFilter("limit", v)
		}
		filters.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filters, badFilter("offset", v)
		}
		filters.Offset = offset
	}
	return filters, nil
}

type filterError struct{ field, value string }

func (e filterError) Error() string { return "invalid " + e.field + " filter: " + e.value }

func badFilter(field, value string) error { return filterError{field: field, value: value} }
