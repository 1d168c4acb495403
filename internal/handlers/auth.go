package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/marcogenualdo/wxwork-bridge/internal/auth"
	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/marcogenualdo/wxwork-bridge/pkg/security"
)

// AuthHandler drives the login pipeline over HTTP. It owns the flow cookie
// that ties a browser to its in-flight login; everything else is delegated
// to the pipeline and the flow store.
type AuthHandler struct {
	cfg      config.Config
	pipeline *auth.Pipeline
	flows    *auth.FlowStore
	logger   *slog.Logger
}

func NewAuthHandler(cfg config.Config, pipeline *auth.Pipeline, flows *auth.FlowStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:      cfg,
		pipeline: pipeline,
		flows:    flows,
		logger:   logger,
	}
}

func (h *AuthHandler) callbackURL() string {
	return h.cfg.Server.BaseURL + "/auth/callback"
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	flowID := ""
	if cookie, err := r.Cookie(h.cfg.Server.CookieName); err == nil {
		flowID = cookie.Value
	}
	if flowID == "" {
		flowID = uuid.New().String()
	}

	helper := h.flows.Flow(flowID, h.callbackURL())

	result, err := h.pipeline.Login(r.Context(), r, helper)
	if err != nil {
		h.logger.Error("failed to start login flow", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if result.Next {
		h.complete(w, r, helper)
		return
	}

	http.SetCookie(w, security.FlowCookie(h.cfg.Server, flowID, h.cfg.Server.FlowTTL))
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.cfg.Server.CookieName)
	if err != nil {
		// No flow to match against. Same generic message as a nonce
		// mismatch, for the same reason.
		h.abort(w, auth.ErrInvalidState.Message)
		return
	}

	helper := h.flows.Flow(cookie.Value, h.callbackURL())
	h.complete(w, r, helper)
}

// complete runs the callback and fetch-user stages within one request cycle
// and hands the identity back as JSON for the host to link.
func (h *AuthHandler) complete(w http.ResponseWriter, r *http.Request, helper *auth.Flow) {
	ctx := r.Context()
	defer helper.Discard(ctx)

	if err := h.pipeline.Callback(ctx, r, helper); err != nil {
		var abort *auth.AbortError
		if errors.As(err, &abort) {
			h.abort(w, abort.Message)
			return
		}
		h.logger.Error("auth callback failed", "error", err)
		http.Error(w, "Authentication failed", http.StatusBadGateway)
		return
	}

	identity, err := h.pipeline.FetchUser(ctx, helper)
	if err != nil {
		h.logger.Error("failed to fetch user", "error", err)
		http.Error(w, "Authentication failed", http.StatusBadGateway)
		return
	}

	h.logger.Info("authentication successful", "user_id", identity.ID)

	http.SetCookie(w, security.ClearFlowCookie(h.cfg.Server))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identity)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var identity auth.Identity
	if err := json.NewDecoder(r.Body).Decode(&identity); err != nil {
		http.Error(w, "Invalid identity payload", http.StatusBadRequest)
		return
	}

	if err := h.pipeline.RefreshIdentity(r.Context(), &identity); err != nil {
		if errors.Is(err, auth.ErrIdentityInvalid) {
			h.logger.Warn("identity refresh rejected", "user_id", identity.ID, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("identity refresh failed", "user_id", identity.ID, "error", err)
		http.Error(w, "Refresh failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identity)
}

func (h *AuthHandler) abort(w http.ResponseWriter, message string) {
	http.SetCookie(w, security.ClearFlowCookie(h.cfg.Server))
	http.Error(w, message, http.StatusBadRequest)
}
