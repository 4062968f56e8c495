package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	websocket_controller "github.com/secmon-lab/examchat/pkg/controller/websocket"
)

type Server struct {
	router *chi.Mux
	hub    *websocket_controller.Hub
}

type Options func(*Server)

// WithHub shares an existing tab hub. By default the server creates its own.
func WithHub(hub *websocket_controller.Hub) Options {
	return func(s *Server) {
		s.hub = hub
	}
}

func New(uc UseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = websocket_controller.NewHub(context.Background(), uc)
	}

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(panicRecoveryMiddleware)
	r.Use(accountMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler(uc))

		r.Group(func(r chi.Router) {
			r.Use(clientMiddleware)
			r.Get("/history", searchHistoryHandler(uc))
			r.Delete("/history", clearSearchHistoryHandler(uc))

			r.Group(func(r chi.Router) {
				r.Use(tabMiddleware(s.hub))

				r.Get("/session", sessionHandler())
				r.Get("/chats", listChatsHandler(uc))
				r.Post("/chats", newChatHandler())
				r.Post("/chats/{chatID}/load", loadChatHandler())
				r.Delete("/chats/{chatID}", deleteChatHandler())
				r.Post("/questions", questionHandler())
			})
		})
	})

	r.With(clientMiddleware).Get("/ws", websocket_controller.NewHandler(s.hub).HandleTab)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Close() error {
	return s.hub.Close()
}
