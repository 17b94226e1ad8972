package production

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optica-erp/optica-erp/internal/orders"
	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler wires production pipeline endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/admit", h.admit)
	r.Get("/controls", h.listControls)
	r.Get("/controls/{id}", h.getControl)
	r.Post("/controls/{id}/start", h.start)
	r.Post("/controls/{id}/finish", h.finish)
	r.Post("/controls/{id}/quality", h.quality)
	r.Get("/scrap", h.listScrap)
}

type admitRequest struct {
	OrderID     int64  `json:"order_id" validate:"required,gt=0"`
	Pipeline    string `json:"pipeline" validate:"required,oneof=BENEFICENCIA SEDENA"`
	Operator    string `json:"operator" validate:"required,max=128"`
	ClientLabel string `json:"client_label" validate:"max=128"`
}

type qualityRequest struct {
	Inspector     string `json:"inspector" validate:"required,max=128"`
	Outcome       string `json:"outcome" validate:"required,oneof=OK RETALLADO MERMA"`
	RequiresBevel bool   `json:"requires_bevel"`
	Notes         string `json:"notes" validate:"max=512"`
}

func (h *Handler) admit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	result, err := h.service.AdmitToCutting(r.Context(), AdmitInput{
		OrderID:     req.OrderID,
		Pipeline:    orders.PipelineType(req.Pipeline),
		Operator:    req.Operator,
		ClientLabel: req.ClientLabel,
		ActorID:     identity.UserID,
	})
	if err != nil {
		h.respondErr(w, err, "admit to cutting")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) listControls(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	controls, err := h.service.ListControls(r.Context(), CuttingStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.logger.Error("list controls", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, controls)
}

func (h *Handler) getControl(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	control, err := h.service.GetControl(r.Context(), id)
	if err != nil {
		h.respondErr(w, err, "get control")
		return
	}
	httpx.JSON(w, http.StatusOK, control)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	identity, _ := shared.IdentityFromContext(r.Context())
	control, err := h.service.StartCutting(r.Context(), id, identity.UserID)
	if err != nil {
		h.respondErr(w, err, "start cutting")
		return
	}
	httpx.JSON(w, http.StatusOK, control)
}

func (h *Handler) finish(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	identity, _ := shared.IdentityFromContext(r.Context())
	control, err := h.service.FinishCutting(r.Context(), id, identity.UserID)
	if err != nil {
		h.respondErr(w, err, "finish cutting")
		return
	}
	httpx.JSON(w, http.StatusOK, control)
}

func (h *Handler) quality(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req qualityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	identity, _ := shared.IdentityFromContext(r.Context())
	inspection, err := h.service.SubmitQualityInspection(r.Context(), InspectionInput{
		ControlID:     id,
		Inspector:     req.Inspector,
		Outcome:       QualityOutcome(req.Outcome),
		RequiresBevel: req.RequiresBevel,
		Notes:         req.Notes,
		ActorID:       identity.UserID,
	})
	if err != nil {
		h.respondErr(w, err, "submit quality inspection")
		return
	}
	httpx.JSON(w, http.StatusCreated, inspection)
}

func (h *Handler) listScrap(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scrap, err := h.service.ListScrap(r.Context(), limit)
	if err != nil {
		h.logger.Error("list scrap", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, scrap)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
