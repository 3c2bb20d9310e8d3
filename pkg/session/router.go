package session

import (
	"github.com/go-chi/chi/v5"

	"github.com/wizardhub/definition-registry/pkg/audit"
)

// NewRouter creates a chi router with the runtime session API.
func NewRouter(store *Store, auditStore *audit.Store) chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", createSessionHandler(store, auditStore))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", getSessionHandler(store))
		r.Patch("/", updateSessionHandler(store))
		r.Delete("/", deleteSessionHandler(store, auditStore))
		r.Post("/quote", quoteHandler(store, auditStore))
		r.Post("/select", selectQuoteHandler(store))
		r.Post("/accept", acceptHandler(store))
		r.Post("/issue", issueHandler(store, auditStore))
	})

	return r
}
