package http

import (
	"encoding/json"
	"net/http"

	"github.com/Wyydra/looper/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const DefaultReadLimit = 4096

type Handler struct {
	Hub       *service.ChannelHub
	ReadLimit int64
}

func NewHandler(hub *service.ChannelHub, readLimit int64) *Handler {
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	return &Handler{
		Hub:       hub,
		ReadLimit: readLimit,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/channels", h.ListChannels)
	r.Get("/ws", h.ServeWS)

	return r
}

func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Hub.Channels(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list channels")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(channels); err != nil {
		log.Error().Err(err).Msg("Failed to encode channels")
	}
}
