// Package httpapi exposes the tracker over HTTP with JSON bodies.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mesh-intelligence/formtrack/internal/reconcile"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

// Service is the subset of the tracker the handlers call.
type Service interface {
	View(ctx context.Context, personID string) (types.PersonView, error)
	Report(ctx context.Context) (types.Report, error)
	MarkComplete(ctx context.Context, personID, documentName string) (types.MutationResult, error)
	MarkIncomplete(ctx context.Context, personID, documentName string) (types.MutationResult, error)
	Refresh(ctx context.Context)
}

// Handler serves the tracker endpoints.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// New creates a Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, logger: logger}
}

// Register registers the tracker routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/people/{personID}", h.handleView)
	r.Put("/people/{personID}/documents/{documentName}", h.handleMark)
	r.Delete("/people/{personID}/documents/{documentName}", h.handleUnmark)
	r.Get("/report", h.handleReport)
	r.Post("/refresh", h.handleRefresh)
}

type mutationResponse struct {
	Result types.MutationResult `json:"result"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	pv, err := h.svc.View(r.Context(), pathParam(r, "personID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

// handleReport serves the aggregation report. ?pending=true keeps only
// people with pending documents and ?q= filters by id or name.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pendingOnly := false
	if v := q.Get("pending"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, &types.Error{Op: "report", Kind: types.ErrInvalidInput, Err: err})
			return
		}
		pendingOnly = b
	}

	report, err := h.svc.Report(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if pendingOnly {
		report = reconcile.PendingOnly(report)
	}
	writeJSON(w, http.StatusOK, reconcile.FilterPeople(report, q.Get("q")))
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.MarkComplete(r.Context(), pathParam(r, "personID"), pathParam(r, "documentName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Result: result})
}

func (h *Handler) handleUnmark(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.MarkIncomplete(r.Context(), pathParam(r, "personID"), pathParam(r, "documentName"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if result == types.ResultNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, mutationResponse{Result: result})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.svc.Refresh(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps the error taxonomy onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusFor(err)
	attrs := []any{
		"request_id", RequestIDFrom(ctx),
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	} else {
		h.logger.InfoContext(ctx, "request rejected", attrs...)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: RequestIDFrom(ctx)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrPersonNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrMutationFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// pathParam returns the decoded URL parameter. chi hands back the escaped
// form when the request path needed a RawPath.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

// writeJSON writes a JSON body with normalized headers and status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
