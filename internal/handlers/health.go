package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/marcogenualdo/wxwork-bridge/internal/state"
)

type HealthHandler struct {
	cfg       config.Config
	store     state.Store
	logger    *slog.Logger
	startTime time.Time
}

func NewHealthHandler(cfg config.Config, store state.Store, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		startTime: time.Now(),
	}
}

type HealthResponse struct {
	Status   string      `json:"status"`
	Uptime   string      `json:"uptime"`
	State    StateHealth `json:"state"`
	APIBase  string      `json:"api_base"`
	Projects int         `json:"projects"`
}

type StateHealth struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "healthy",
		Uptime:   time.Since(h.startTime).String(),
		APIBase:  h.cfg.WXWork.APIBase,
		Projects: len(h.cfg.Projects),
	}

	response.State.Backend = h.cfg.State.Backend
	if err := h.store.Set(ctx, "health:check", []byte("ok"), 1*time.Minute); err != nil {
		response.State.Status = "error: " + err.Error()
		response.Status = "degraded"
	} else {
		response.State.Status = "connected"
		h.store.Delete(ctx, "health:check")
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}
