package support

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/ws", h.ServeWS)
		r.Get("/{id}", h.GetSession)
		r.Post("/{id}/turns", h.PostTurn)
		r.Delete("/{id}", h.DeleteSession)
	})
}
