package snapshot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const maxHistory = 500

// Lister is satisfied by *Store.
type Lister interface {
	List(ctx context.Context, limit int) ([]Snapshot, error)
}

type Handler struct {
	lister Lister
	logger *slog.Logger
}

func NewHandler(lister Lister) *Handler {
	return &Handler{
		lister: lister,
		logger: slog.Default().With("component", "analytics-history-handler"),
	}
}

// History serves the most recent snapshots. The optional limit query
// parameter defaults to 24 and is capped at maxHistory.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 24
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistory)
	}

	snaps, err := h.lister.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load analytics history"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
