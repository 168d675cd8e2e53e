package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/echolog/internal/auth"
	"github.com/starford/echolog/internal/memoservice"
)

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *memoservice.Service, authn *auth.Authenticator, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authn))

	// Memos. The search route is registered before the {id} routes.
	r.Route("/memos", func(r chi.Router) {
		r.Get("/", h.ListMemos)
		r.Post("/", h.CreateMemo)
		r.Post("/search", h.SearchSimilar)
		r.Get("/{id}", h.GetMemo)
		r.Patch("/{id}", h.UpdateMemo)
		r.Delete("/{id}", h.DeleteMemo)
		r.Get("/{id}/related", h.RelatedMemos)
	})

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	// Generation helpers.
	r.Route("/gpt", func(r chi.Router) {
		r.Post("/title", h.GenerateTitle)
		r.Post("/tags", h.ExtractTags)
		r.Post("/datetime", h.ExtractDateTime)
		r.Post("/suggestions", h.Suggestions)
	})

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
