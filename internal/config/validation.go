package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.validateState(); err != nil {
		return fmt.Errorf("state config: %w", err)
	}

	if err := c.validateWXWork(); err != nil {
		return fmt.Errorf("wxwork config: %w", err)
	}

	if err := c.validateNotify(); err != nil {
		return fmt.Errorf("notify config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if _, err := url.Parse(c.Server.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	if c.Server.FlowTTL < time.Minute {
		return fmt.Errorf("flow_ttl must be at least 1 minute")
	}

	return nil
}

func (c *Config) validateState() error {
	if c.State.Backend != "memory" && c.State.Backend != "redis" {
		return fmt.Errorf("invalid backend: %s (must be memory or redis)", c.State.Backend)
	}

	if c.State.Backend == "redis" {
		if c.State.Redis == nil {
			return fmt.Errorf("redis config is required when backend is redis")
		}
		if c.State.Redis.Address == "" {
			return fmt.Errorf("redis address is required")
		}
	}

	return nil
}

func (c *Config) validateWXWork() error {
	if c.WXWork.CorpID == "" {
		return fmt.Errorf("corp_id is required")
	}

	if c.WXWork.CorpSecret == "" {
		return fmt.Errorf("corp_secret is required")
	}

	if c.WXWork.AgentID == "" {
		return fmt.Errorf("agent_id is required")
	}

	for name, value := range map[string]string{
		"api_base":      c.WXWork.APIBase,
		"authorize_url": c.WXWork.AuthorizeURL,
		"qrlogin_url":   c.WXWork.QRLoginURL,
	} {
		if _, err := url.Parse(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.WXWork.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// validateNotify enforces the message/send precondition that at least one of
// the user, party, and tag recipient lists is non-empty, for the default
// notify block and for every project after overrides are applied.
func (c *Config) validateNotify() error {
	if err := validateRecipients(c.Notify); err != nil {
		return err
	}

	for slug := range c.Projects {
		if err := validateRecipients(c.ProjectNotify(slug)); err != nil {
			return fmt.Errorf("project %s: %w", slug, err)
		}
	}

	return nil
}

func validateRecipients(notify NotifyConfig) error {
	if notify.ToUser == "" && notify.ToParty == "" && notify.ToTag == "" {
		return fmt.Errorf("at least one of to_user, to_party, to_tag is required")
	}
	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" {
		return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Logging.Format)
	}

	return nil
}
