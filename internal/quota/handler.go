package quota

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/pkg/httputil"
)

// Handler handles HTTP requests for quota usage.
type Handler struct {
	ledger *Ledger
}

// NewHandler creates a new quota handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes registers quota routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/quota", h.GetUsage)
}

// GetUsage handles GET /quota. The optional date query parameter
// (2006-01-02) defaults to today.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	day := domain.QuotaDayOf(time.Now())

	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		day = domain.QuotaDayOf(parsed)
	}

	usages, err := h.ledger.UsageAll(r.Context(), day)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, usages)
}
