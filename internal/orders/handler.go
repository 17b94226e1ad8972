package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler wires order and hoja viajera endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Post("/{id}/fulfill", h.fulfill)
	r.Route("/hojas", func(r chi.Router) {
		r.Get("/", h.listHojas)
		r.Post("/", h.createHoja)
		r.Get("/{id}", h.getHoja)
		r.Post("/{id}/advance", h.advanceHoja)
	})
}

type createOrderRequest struct {
	Pipeline  string             `json:"pipeline" validate:"required,oneof=BENEFICENCIA SEDENA"`
	ClientRef string             `json:"client_ref" validate:"max=128"`
	Guarantee bool               `json:"guarantee"`
	Items     []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type orderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type createHojaRequest struct {
	ClientRef string `json:"client_ref" validate:"max=128"`
}

type advanceHojaRequest struct {
	To string `json:"to" validate:"required,oneof=IMPRESA ENTREGADA_ALMACEN EN_PROCESO COMPLETADA"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Pipeline: PipelineType(r.URL.Query().Get("pipeline")),
		Status:   OrderStatus(r.URL.Query().Get("status")),
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondErr(w, err, "get order")
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	input := CreateOrderInput{
		Pipeline:  PipelineType(req.Pipeline),
		ClientRef: req.ClientRef,
		Guarantee: req.Guarantee,
		ActorID:   identity.UserID,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondErr(w, err, "create order")
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) fulfill(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	identity, _ := shared.IdentityFromContext(r.Context())
	order, err := h.service.Fulfill(r.Context(), id, identity.UserID)
	if err != nil {
		h.respondErr(w, err, "fulfill order")
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listHojas(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hojas, err := h.service.ListHojas(r.Context(), HojaStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.logger.Error("list hojas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, hojas)
}

func (h *Handler) getHoja(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	hoja, err := h.service.GetHoja(r.Context(), id)
	if err != nil {
		h.respondErr(w, err, "get hoja")
		return
	}
	httpx.JSON(w, http.StatusOK, hoja)
}

func (h *Handler) createHoja(w http.ResponseWriter, r *http.Request) {
	var req createHojaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	hoja, err := h.service.CreateHojaViajera(r.Context(), req.ClientRef, identity.UserID)
	if err != nil {
		h.respondErr(w, err, "create hoja")
		return
	}
	httpx.JSON(w, http.StatusCreated, hoja)
}

func (h *Handler) advanceHoja(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req advanceHojaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	hoja, err := h.service.AdvanceHoja(r.Context(), id, HojaStatus(req.To), identity.UserID)
	if err != nil {
		h.respondErr(w, err, "advance hoja")
		return
	}
	httpx.JSON(w, http.StatusOK, hoja)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error, op string) {
	var short *inventory.InsufficientStockError
	switch {
	case errors.As(err, &short):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", short.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyFulfilled):
		httpx.Problem(w, http.StatusConflict, "Already Fulfilled", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrDuplicateFolio):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
