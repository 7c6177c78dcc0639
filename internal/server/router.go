package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/web"
)

func New(cfg config.Config, svc *chat.Service, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(web.RequestID)
	r.Use(web.Logger(log))
	r.Use(web.Recoverer(log))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Mount("/api", newAPI(svc))
	r.Get("/ws", svc.ServeWS)

	return r
}
