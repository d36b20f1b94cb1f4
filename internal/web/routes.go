package web

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/emotion-stream/internal/web/handlers"
	"github.com/kozaktomas/emotion-stream/internal/web/middleware"
	"github.com/kozaktomas/emotion-stream/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	sessionHandler := handlers.NewSessionHandler(s.config, s.factory, middleware.CheckOrigin())
	emotionHandler := handlers.NewEmotionHandler(s.config, s.factory)
	configHandler := handlers.NewConfigHandler(s.config)

	// Streaming sessions. No request timeout here: a session lives as long as its socket.
	s.router.Get("/game-ws", sessionHandler.Game)
	s.router.Get("/ws-client", sessionHandler.Stream)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders())

		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)

		r.Route("/emotion_classification", func(r chi.Router) {
			// Same sessions under the paths older clients connect to.
			r.Get("/game-ws", sessionHandler.Game)
			r.Get("/ws-client", sessionHandler.Stream)

			r.Group(func(r chi.Router) {
				if s.config.Inference.RequestTimeout > 0 {
					r.Use(chiMiddleware.Timeout(s.config.Inference.RequestTimeout))
				}

				r.Post("/analyze", emotionHandler.Analyze)
				r.Post("/predict", emotionHandler.Predict)
				r.Post("/detect", emotionHandler.Detect)
			})
		})
	})

	// Browser demo client
	s.router.Get("/", s.serveIndex)
}

// serveIndex serves the embedded demo page
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	page, err := static.Index()
	if err != nil {
		log.Printf("demo page unavailable: %v", err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}
