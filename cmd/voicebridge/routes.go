package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bizassist/voicebridge/internal/events"
	"github.com/bizassist/voicebridge/internal/session"
)

type deps struct {
	media  *session.Handler
	events *events.Handler
}

// newRouter wires all HTTP endpoints.
func newRouter(d deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws/media", d.media.ServeHTTP)

	r.Post("/api/incomingcall", d.events.HandleIncoming)
	r.Post("/api/callbacks", d.events.HandleCallback)

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
