package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/marcogenualdo/wxwork-bridge/internal/notify"
	"github.com/marcogenualdo/wxwork-bridge/internal/wxwork"
)

// NotifyHandler accepts one host event per request and hands it to the
// sender for the event's project. Projects with their own corp credentials
// get a dedicated API client so cached tokens stay per credential set.
type NotifyHandler struct {
	senders map[string]*notify.Sender
	logger  *slog.Logger
}

type notifyRequest struct {
	Project notify.Project `json:"project"`
	Event   notify.Event   `json:"event"`
}

func NewNotifyHandler(cfg config.Config, client *wxwork.Client, logger *slog.Logger) (*NotifyHandler, error) {
	senders := make(map[string]*notify.Sender)

	defaultSender := notify.NewSender(client, cfg.Notify, logger)
	if err := probeTemplate(defaultSender); err != nil {
		return nil, fmt.Errorf("notify config: %w", err)
	}
	senders[""] = defaultSender

	for slug := range cfg.Projects {
		projectClient := client
		if cfg.HasProjectOverrides(slug) {
			corpID, corpSecret, agentID := cfg.ProjectCredentials(slug)
			projectClient = wxwork.NewClient(wxwork.ClientConfig{
				APIBase: cfg.WXWork.APIBase,
				Credentials: wxwork.Credentials{
					CorpID:     corpID,
					CorpSecret: corpSecret,
					AgentID:    agentID,
				},
				Timeout:  cfg.WXWork.Timeout,
				RetryMax: *cfg.WXWork.RetryMax,
			}, logger)
		}

		sender := notify.NewSender(projectClient, cfg.ProjectNotify(slug), logger)
		if err := probeTemplate(sender); err != nil {
			return nil, fmt.Errorf("project %s: %w", slug, err)
		}
		senders[slug] = sender
	}

	return &NotifyHandler{senders: senders, logger: logger}, nil
}

// probeTemplate renders the configured template against an empty event so a
// malformed template is rejected at startup, not on the first delivery.
func probeTemplate(sender *notify.Sender) error {
	_, err := sender.BuildMessage(notify.Project{}, notify.Event{})
	return err
}

func (h *NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid event payload", http.StatusBadRequest)
		return
	}

	sender, ok := h.senders[req.Project.Slug]
	if !ok {
		sender = h.senders[""]
	}

	w.Header().Set("Content-Type", "application/json")

	// A failed delivery is final for this event and visible in the response,
	// but it never affects any other event.
	if err := sender.Deliver(r.Context(), req.Project, req.Event); err != nil {
		h.logger.Error("notification delivery failed",
			"project", req.Project.Slug,
			"title", req.Event.Title,
			"error", err,
		)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"status": "failed", "error": err.Error()})
		return
	}

	h.logger.Info("notification delivered",
		"project", req.Project.Slug,
		"title", req.Event.Title,
	)
	json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
}
