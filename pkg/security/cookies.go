package security

import (
	"net/http"
	"time"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
)

// FlowCookie ties a browser to one in-flight login flow so the callback can
// find the state bound at the login stage.
func FlowCookie(cfg config.ServerConfig, flowID string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    flowID,
		Path:     "/auth",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearFlowCookie expires the flow cookie once the pipeline completes or
// aborts.
func ClearFlowCookie(cfg config.ServerConfig) *http.Cookie {
	cookie := FlowCookie(cfg, "", 0)
	cookie.MaxAge = -1
	return cookie
}
