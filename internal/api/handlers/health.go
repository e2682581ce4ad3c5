package handlers

import (
	"context"
	"net/http"

	"github.com/khaothi-ai/khaothi/internal/api"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness. With a database attached the check also
// pings it.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a health handler. A nil pinger skips the
// database check.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			api.Error(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}
