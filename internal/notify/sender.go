// Package notify renders host events as WeChat Work markdown messages and
// delivers them through the shared API client, tolerating one stale-token
// response per delivery.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/marcogenualdo/wxwork-bridge/internal/wxwork"
)

// Project is the host project an event belongs to.
type Project struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Event is one host event worth notifying about.
type Event struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Tags    map[string]string `json:"tags"`
}

// Sender delivers notifications for one project configuration. It shares the
// client's cached corp token across deliveries.
type Sender struct {
	client *wxwork.Client
	opts   config.NotifyConfig
	logger *slog.Logger
}

func NewSender(client *wxwork.Client, opts config.NotifyConfig, logger *slog.Logger) *Sender {
	return &Sender{client: client, opts: opts, logger: logger}
}

// BuildMessage renders the configured template into a markdown payload. It
// does not attach recipients; Deliver does that.
func (s *Sender) BuildMessage(project Project, event Event) (*wxwork.Message, error) {
	content, err := Render(s.opts.MessageTemplate, Vars{
		ProjectName: project.Name,
		URL:         project.URL,
		Title:       event.Title,
		Message:     event.Message,
		Tags:        event.Tags,
	})
	if err != nil {
		return nil, err
	}

	return &wxwork.Message{
		MsgType:  "markdown",
		AgentID:  s.client.Credentials().AgentID,
		Markdown: wxwork.Markdown{Content: content},
	}, nil
}

// Deliver sends one event. When the remote reports the access token invalid
// or expired it drops the cached token and retries exactly once with a fresh
// one; a second failure is final for this event.
func (s *Sender) Deliver(ctx context.Context, project Project, event Event) error {
	msg, err := s.BuildMessage(project, event)
	if err != nil {
		return err
	}

	if s.opts.ToUser != "" {
		msg.ToUser = s.opts.ToUser
	}
	if s.opts.ToParty != "" {
		msg.ToParty = s.opts.ToParty
	}
	if s.opts.ToTag != "" {
		msg.ToTag = s.opts.ToTag
	}

	token, err := s.client.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("notify: obtain access token: %w", err)
	}

	err = s.client.SendMessage(ctx, token, msg)
	if err == nil {
		return nil
	}
	if !wxwork.IsTokenInvalid(err) {
		return fmt.Errorf("notify: send message: %w", err)
	}

	s.logger.Info("access token rejected, retrying with a fresh one",
		"project", project.Slug,
		"error", err,
	)

	s.client.Invalidate()
	token, err = s.client.GetToken(ctx)
	if err != nil {
		return fmt.Errorf("notify: refresh access token: %w", err)
	}

	if err := s.client.SendMessage(ctx, token, msg); err != nil {
		return fmt.Errorf("notify: send message after token refresh: %w", err)
	}
	return nil
}
