package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMessageTemplate mirrors the notification format host operators are
// used to. Available names: {project_name}, {url}, {title}, {message},
// {tag[NAME]}.
const DefaultMessageTemplate = "*[Sentry]* {project_name} {tag[level]}: *{title}*\n```{message}```\n{url}"

type Config struct {
	Server   ServerConfig             `yaml:"server"`
	State    StateConfig              `yaml:"state"`
	WXWork   WXWorkConfig             `yaml:"wxwork"`
	Notify   NotifyConfig             `yaml:"notify"`
	Projects map[string]ProjectConfig `yaml:"projects"`
	Logging  LoggingConfig            `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	BaseURL      string        `yaml:"base_url"`
	CookieName   string        `yaml:"cookie_name"`
	CookieSecure bool          `yaml:"cookie_secure"`
	FlowTTL      time.Duration `yaml:"flow_ttl"`
}

type StateConfig struct {
	Backend string       `yaml:"backend"`
	Redis   *RedisConfig `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

type WXWorkConfig struct {
	APIBase      string        `yaml:"api_base"`
	AuthorizeURL string        `yaml:"authorize_url"`
	QRLoginURL   string        `yaml:"qrlogin_url"`
	Scope        string        `yaml:"scope"`
	CorpID       string        `yaml:"corp_id"`
	CorpSecret   string        `yaml:"corp_secret"`
	AgentID      string        `yaml:"agent_id"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     *int          `yaml:"retry_max,omitempty"`
}

type NotifyConfig struct {
	ToUser          string `yaml:"to_user"`
	ToParty         string `yaml:"to_party"`
	ToTag           string `yaml:"to_tag"`
	MessageTemplate string `yaml:"message_template"`
}

// ProjectConfig overrides the corp credentials and notification options for
// one host project, keyed by project slug. Empty fields inherit the
// top-level wxwork and notify blocks.
type ProjectConfig struct {
	CorpID     string       `yaml:"corp_id,omitempty"`
	CorpSecret string       `yaml:"corp_secret,omitempty"`
	AgentID    string       `yaml:"agent_id,omitempty"`
	Notify     NotifyConfig `yaml:"notify"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()
	cfg.loadSecretsFromEnv()

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.CookieName == "" {
		c.Server.CookieName = "wxwork-bridge-flow"
	}
	if c.Server.FlowTTL == 0 {
		c.Server.FlowTTL = 10 * time.Minute
	}

	if c.State.Backend == "" {
		c.State.Backend = "memory"
	}
	if c.State.Backend == "redis" && c.State.Redis != nil {
		if c.State.Redis.PoolSize == 0 {
			c.State.Redis.PoolSize = 10
		}
		if c.State.Redis.MaxRetries == 0 {
			c.State.Redis.MaxRetries = 3
		}
	}

	if c.WXWork.APIBase == "" {
		c.WXWork.APIBase = "https://qyapi.weixin.qq.com/cgi-bin"
	}
	if c.WXWork.AuthorizeURL == "" {
		c.WXWork.AuthorizeURL = "https://open.weixin.qq.com/connect/oauth2/authorize"
	}
	if c.WXWork.QRLoginURL == "" {
		c.WXWork.QRLoginURL = "https://open.work.weixin.qq.com/wwopen/sso/qrConnect"
	}
	if c.WXWork.Scope == "" {
		c.WXWork.Scope = "snsapi_base"
	}
	if c.WXWork.Timeout == 0 {
		c.WXWork.Timeout = 10 * time.Second
	}
	if c.WXWork.RetryMax == nil {
		defaultRetryMax := 2
		c.WXWork.RetryMax = &defaultRetryMax
	}

	if c.Notify.MessageTemplate == "" {
		c.Notify.MessageTemplate = DefaultMessageTemplate
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *Config) loadSecretsFromEnv() {
	if envSecret := os.Getenv("WXWORK_CORP_SECRET"); envSecret != "" {
		c.WXWork.CorpSecret = envSecret
	}

	for slug := range c.Projects {
		envKey := fmt.Sprintf("WXWORK_%s_CORP_SECRET", strings.ToUpper(strings.ReplaceAll(slug, "-", "_")))
		if envSecret := os.Getenv(envKey); envSecret != "" {
			project := c.Projects[slug]
			project.CorpSecret = envSecret
			c.Projects[slug] = project
		}
	}

	if c.State.Backend == "redis" && c.State.Redis != nil {
		if envPassword := os.Getenv("REDIS_PASSWORD"); envPassword != "" {
			c.State.Redis.Password = envPassword
		}
	}
}

// ProjectNotify resolves the notification options for a project slug,
// falling back to the top-level notify block field by field.
func (c *Config) ProjectNotify(slug string) NotifyConfig {
	resolved := c.Notify

	project, ok := c.Projects[slug]
	if !ok {
		return resolved
	}

	if project.Notify.ToUser != "" {
		resolved.ToUser = project.Notify.ToUser
	}
	if project.Notify.ToParty != "" {
		resolved.ToParty = project.Notify.ToParty
	}
	if project.Notify.ToTag != "" {
		resolved.ToTag = project.Notify.ToTag
	}
	if project.Notify.MessageTemplate != "" {
		resolved.MessageTemplate = project.Notify.MessageTemplate
	}

	return resolved
}

// ProjectCredentials resolves the corp credentials for a project slug,
// falling back to the top-level wxwork block field by field.
func (c *Config) ProjectCredentials(slug string) (corpID, corpSecret, agentID string) {
	corpID = c.WXWork.CorpID
	corpSecret = c.WXWork.CorpSecret
	agentID = c.WXWork.AgentID

	project, ok := c.Projects[slug]
	if !ok {
		return corpID, corpSecret, agentID
	}

	if project.CorpID != "" {
		corpID = project.CorpID
	}
	if project.CorpSecret != "" {
		corpSecret = project.CorpSecret
	}
	if project.AgentID != "" {
		agentID = project.AgentID
	}

	return corpID, corpSecret, agentID
}

// HasProjectOverrides reports whether a project carries its own credential
// overrides and therefore needs a dedicated API client.
func (c *Config) HasProjectOverrides(slug string) bool {
	project, ok := c.Projects[slug]
	if !ok {
		return false
	}
	return project.CorpID != "" || project.CorpSecret != "" || project.AgentID != ""
}
