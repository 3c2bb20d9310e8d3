package registry

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wizardhub/definition-registry/pkg/audit"
)

// DefinitionResponse is the API shape of one definition row.
type DefinitionResponse struct {
	ID            string  `json:"id"`
	Key           string  `json:"key"`
	Version       string  `json:"version"`
	Status        string  `json:"status"`
	SchemaVersion string  `json:"schemaVersion"`
	Body          JSONDoc `json:"body"`
	Checksum      string  `json:"checksum"`
	CreatedBy     string  `json:"createdBy"`
	CreatedAt     string  `json:"createdAt"`
	PublishedAt   string  `json:"publishedAt,omitempty"`
}

// PublishResponse is the API shape of a successful publish.
type PublishResponse struct {
	Key         string `json:"key"`
	Version     string `json:"version"`
	Status      string `json:"status"`
	Checksum    string `json:"checksum"`
	PublishedAt string `json:"publishedAt"`
}

// createDraftRequest is the body of POST /.
type createDraftRequest struct {
	Key           string  `json:"key"`
	Body          JSONDoc `json:"body"`
	SchemaVersion string  `json:"schemaVersion"`
	CreatedBy     string  `json:"createdBy"`
}

// updateDraftRequest is the body of PUT /{key}/draft.
type updateDraftRequest struct {
	Body      JSONDoc `json:"body"`
	CreatedBy string  `json:"createdBy"`
}

func toResponse(r *DefinitionRecord) DefinitionResponse {
	resp := DefinitionResponse{
		ID:            r.ID,
		Key:           r.Key,
		Version:       r.Version,
		Status:        r.Status,
		SchemaVersion: r.SchemaVersion,
		Body:          r.Body,
		Checksum:      r.Checksum,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.PublishedAt != nil {
		resp.PublishedAt = r.PublishedAt.Format(time.RFC3339)
	}
	return resp
}

func createDraftHandler(store *DefinitionStore, auditStore *audit.Store, kind Kind, defaultSchema string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDraftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Key == "" || req.Body == nil {
			writeError(w, http.StatusBadRequest, "key and body are required")
			return
		}
		if req.SchemaVersion == "" {
			req.SchemaVersion = defaultSchema
		}
		if req.CreatedBy == "" {
			req.CreatedBy = "builder-ui"
		}

		record, err := store.CreateDraft(r.Context(), kind, req.Key, req.Body, req.SchemaVersion, req.CreatedBy)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		appendAudit(auditStore, "draft.created", req.CreatedBy, kind, record.Key, audit.Details{
			"schemaVersion": record.SchemaVersion,
			"checksum":      record.Checksum,
		})
		writeJSON(w, http.StatusCreated, toResponse(record))
	}
}

func getDraftHandler(store *DefinitionStore, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := store.GetDraft(r.Context(), kind, chi.URLParam(r, "key"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(record))
	}
}

func updateDraftHandler(store *DefinitionStore, auditStore *audit.Store, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateDraftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Body == nil {
			writeError(w, http.StatusBadRequest, "body is required")
			return
		}
		if req.CreatedBy == "" {
			req.CreatedBy = "builder-ui"
		}

		record, err := store.UpdateDraft(r.Context(), kind, chi.URLParam(r, "key"), req.Body, req.CreatedBy)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		appendAudit(auditStore, "draft.updated", req.CreatedBy, kind, record.Key, audit.Details{
			"checksum": record.Checksum,
		})
		writeJSON(w, http.StatusOK, toResponse(record))
	}
}

func deleteDraftHandler(store *DefinitionStore, auditStore *audit.Store, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := store.DeleteDraft(r.Context(), kind, key); err != nil {
			writeDomainError(w, err)
			return
		}
		appendAudit(auditStore, "draft.deleted", actorFrom(r), kind, key, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func publishHandler(store *DefinitionStore, auditStore *audit.Store, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		record, err := store.Publish(r.Context(), kind, key)
		if err != nil {
			appendAudit(auditStore, "publish.failed", actorFrom(r), kind, key, audit.Details{
				"reason": err.Error(),
			})
			writeDomainError(w, err)
			return
		}

		appendAudit(auditStore, "publish.succeeded", actorFrom(r), kind, key, audit.Details{
			"version":  record.Version,
			"checksum": record.Checksum,
		})
		writeJSON(w, http.StatusOK, PublishResponse{
			Key:         record.Key,
			Version:     record.Version,
			Status:      record.Status,
			Checksum:    record.Checksum,
			PublishedAt: record.PublishedAt.Format(time.RFC3339),
		})
	}
}

func getLatestHandler(store *DefinitionStore, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := store.GetLatestPublished(r.Context(), kind, chi.URLParam(r, "key"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(record))
	}
}

func getVersionHandler(store *DefinitionStore, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := store.GetVersion(r.Context(), kind, chi.URLParam(r, "key"), chi.URLParam(r, "version"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(record))
	}
}

func listVersionsHandler(store *DefinitionStore, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.ListVersions(r.Context(), kind, chi.URLParam(r, "key"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponseList(records))
	}
}

func listHandler(store *DefinitionStore, kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includePublished := r.URL.Query().Get("include_published") == "true"
		records, err := store.List(r.Context(), kind, includePublished)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponseList(records))
	}
}

func toResponseList(records []DefinitionRecord) []DefinitionResponse {
	out := make([]DefinitionResponse, len(records))
	for i := range records {
		out[i] = toResponse(&records[i])
	}
	return out
}

// actorFrom reads the acting principal from the X-Actor header, defaulting to
// builder-ui. Authentication proper is outside this service.
func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "builder-ui"
}

func appendAudit(store *audit.Store, eventType, actor string, kind Kind, key string, details audit.Details) {
	if store == nil {
		return
	}
	_ = store.Append(&audit.EventRecord{
		EventType:    eventType,
		Actor:        actor,
		ResourceType: string(kind),
		ResourceID:   key,
		Details:      details,
	})
}

// writeDomainError maps the package error taxonomy onto HTTP statuses.
// Validation and referential failures carry the full enumerated error set.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "schema validation failed",
			"errors":  verr.Issues,
		})
		return
	}
	var rerr *ReferenceError
	if errors.As(err, &rerr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "referential integrity check failed",
			"errors":  rerr.Refs,
		})
		return
	}
	switch {
	case IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
