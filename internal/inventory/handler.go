package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.increment)
	r.Post("/decrement", h.decrement)
}

type incrementRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Location  string `json:"location" validate:"required,max=64"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Lot       string `json:"lot" validate:"max=64"`
}

type decrementRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Location  string `json:"location" validate:"required,max=64"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"max=255"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.List(r.Context(), ListFilter{
		Location:  r.URL.Query().Get("location"),
		ProductID: productID,
		Limit:     limit,
	})
	if err != nil {
		h.logger.Error("list inventory", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) increment(w http.ResponseWriter, r *http.Request) {
	var req incrementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	rec, err := h.service.Increment(r.Context(), IncrementInput{
		ProductID: req.ProductID,
		Location:  req.Location,
		Quantity:  req.Quantity,
		Lot:       req.Lot,
		ActorID:   actor.UserID,
	})
	if err != nil {
		h.respondErr(w, "increment inventory", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) decrement(w http.ResponseWriter, r *http.Request) {
	var req decrementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor, _ := shared.IdentityFromContext(r.Context())
	newQty, err := h.service.Decrement(r.Context(), DecrementInput{
		ProductID: req.ProductID,
		Location:  req.Location,
		Quantity:  req.Quantity,
		ActorID:   actor.UserID,
		RefModule: "INVENTORY",
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondErr(w, "decrement inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"quantity": newQty})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	var short *InsufficientStockError
	switch {
	case errors.As(err, &short):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", short.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
