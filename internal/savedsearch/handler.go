package savedsearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Intel-Monitoring-Platform/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Manager is implemented by *Service.
type Manager interface {
	Create(ctx context.Context, name, raw string) (*SavedSearch, error)
	List(ctx context.Context, limit int) ([]SavedSearch, error)
	Get(ctx context.Context, id string) (*Detail, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	manager Manager
	logger  *slog.Logger
}

func NewHandler(manager Manager) *Handler {
	return &Handler{
		manager: manager,
		logger:  slog.Default().With("component", "saved-search-handler"),
	}
}

// Register mounts the saved search routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/saved-searches", h.Create)
	mux.HandleFunc("GET /api/v1/saved-searches", h.List)
	mux.HandleFunc("GET /api/v1/saved-searches/{id}", h.Get)
	mux.HandleFunc("DELETE /api/v1/saved-searches/{id}", h.Delete)
}

type createRequest struct {
	Name  string  `json:"name"`
	Query *string `json:"query"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			h.writeError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Query == nil {
		h.writeError(w, http.StatusBadRequest, "field 'query' is required")
		return
	}

	saved, err := h.manager.Create(r.Context(), req.Name, *req.Query)
	if err != nil {
		h.fail(r, w, "create", err)
		return
	}
	w.Header().Set("Location", "/api/v1/saved-searches/"+saved.ID)
	h.writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.manager.List(r.Context(), limit)
	if err != nil {
		h.fail(r, w, "list", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"savedSearches": list, "count": len(list)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(r, w, "get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(r, w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail writes client errors as-is and hides the detail of everything else.
func (h *Handler) fail(r *http.Request, w http.ResponseWriter, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("saved search operation failed", "component", "saved-search-handler", "operation", op, "error", err)
		h.writeError(w, status, "saved search "+op+" failed")
		return
	}
	h.writeError(w, status, apperrors.Message(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
