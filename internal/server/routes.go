package server

import (
	"net/http"

	"github.com/marcogenualdo/wxwork-bridge/internal/handlers"
	"github.com/marcogenualdo/wxwork-bridge/internal/middleware"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	mux := http.NewServeMux()

	authHandler := handlers.NewAuthHandler(s.cfg, s.pipeline, s.flows, s.logger)

	notifyHandler, err := handlers.NewNotifyHandler(s.cfg, s.client, s.logger)
	if err != nil {
		return nil, err
	}

	healthHandler := handlers.NewHealthHandler(s.cfg, s.store, s.logger)

	mux.HandleFunc("/auth/login", authHandler.Login)
	mux.HandleFunc("/auth/callback", authHandler.Callback)
	mux.HandleFunc("/auth/refresh", authHandler.Refresh)

	mux.Handle("/notify", notifyHandler)

	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	handler := middleware.Recovery(s.logger)(
		middleware.Logging(s.logger)(
			addSecurityHeaders(mux),
		),
	)

	return handler, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
