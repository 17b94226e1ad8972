package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
)

// Handler wires notification endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.emit)
	r.Get("/unread-count", h.unreadCount)
	r.Post("/{id}/read", h.markRead)
}

type emitRequest struct {
	Type         string `json:"type" validate:"required,max=64"`
	Title        string `json:"title" validate:"required,max=128"`
	Message      string `json:"message" validate:"max=512"`
	TargetModule string `json:"target_module" validate:"required,oneof=PRODUCCION ALMACEN DISTRIBUIDORA"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.service.List(r.Context(), r.URL.Query().Get("module"), unreadOnly, limit)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) emit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	n, err := h.service.Emit(r.Context(), EmitInput{
		Type:         req.Type,
		Title:        req.Title,
		Message:      req.Message,
		TargetModule: req.TargetModule,
	})
	if err != nil {
		h.respondErr(w, err, "emit notification")
		return
	}
	httpx.JSON(w, http.StatusCreated, n)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("module")
	count, err := h.service.UnreadCount(r.Context(), module)
	if err != nil {
		h.respondErr(w, err, "unread count")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"module": module, "unread": count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	n, err := h.service.MarkRead(r.Context(), id)
	if err != nil {
		h.respondErr(w, err, "mark notification read")
		return
	}
	httpx.JSON(w, http.StatusOK, n)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
