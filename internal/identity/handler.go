package identity

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/inkwheel/pressroom/internal/domain"
	"github.com/inkwheel/pressroom/internal/pkg/httputil"
)

// Handler handles HTTP requests for operator identity.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public identity routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// RegisterAdminRoutes registers operator management routes (admin only).
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/operators", func(r chi.Router) {
		r.Get("/", h.ListOperators)
		r.Post("/", h.CreateOperator)
	})
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// OperatorResponse is the API view of an operator account.
type OperatorResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

func toOperatorResponse(op *domain.Operator) OperatorResponse {
	return OperatorResponse{ID: op.ID, Email: op.Email, Name: op.Name, Role: op.Role}
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	token, op, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
		})
		return
	}

	httputil.Success(w, http.StatusOK, map[string]interface{}{
		"token":    token,
		"operator": toOperatorResponse(op),
	})
}

// CreateOperatorRequest represents the request body for creating an operator.
type CreateOperatorRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=operator admin"`
}

// CreateOperator handles POST /operators.
func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req CreateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	op, err := h.service.CreateOperator(r.Context(), CreateOperatorInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrEmailTaken, Status: http.StatusConflict},
		})
		return
	}

	httputil.Success(w, http.StatusCreated, toOperatorResponse(op))
}

// ListOperators handles GET /operators.
func (h *Handler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := h.service.ListOperators(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	resp := make([]OperatorResponse, 0, len(ops))
	for _, op := range ops {
		resp = append(resp, toOperatorResponse(op))
	}
	httputil.Success(w, http.StatusOK, resp)
}
