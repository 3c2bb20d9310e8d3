package registry

import (
	"github.com/go-chi/chi/v5"

	"github.com/wizardhub/definition-registry/pkg/audit"
)

// NewRouter creates a chi router with the builder and runtime read API for
// one definition kind. The same routes serve wizards and pages; the kind
// fixes the namespace.
func NewRouter(store *DefinitionStore, auditStore *audit.Store, kind Kind, defaultSchema string) chi.Router {
	r := chi.NewRouter()

	r.Post("/", createDraftHandler(store, auditStore, kind, defaultSchema))
	r.Get("/", listHandler(store, kind))

	r.Route("/{key}", func(r chi.Router) {
		r.Get("/draft", getDraftHandler(store, kind))
		r.Put("/draft", updateDraftHandler(store, auditStore, kind))
		r.Delete("/draft", deleteDraftHandler(store, auditStore, kind))
		r.Post("/publish", publishHandler(store, auditStore, kind))
		r.Get("/latest", getLatestHandler(store, kind))
		r.Get("/versions", listVersionsHandler(store, kind))
		r.Get("/versions/{version}", getVersionHandler(store, kind))
	})

	return r
}
