package release

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wizardhub/definition-registry/pkg/audit"
	"github.com/wizardhub/definition-registry/pkg/registry"
)

// PointerResponse is the API shape of a release pointer.
type PointerResponse struct {
	WizardKey     string `json:"wizardKey"`
	Channel       string `json:"channel"`
	WizardVersion string `json:"wizardVersion"`
	PointedBy     string `json:"pointedBy,omitempty"`
	UpdatedAt     string `json:"updatedAt"`
}

type pointRequest struct {
	Version   string `json:"version"`
	PointedBy string `json:"pointedBy"`
}

func toPointerResponse(r *PointerRecord) PointerResponse {
	return PointerResponse{
		WizardKey:     r.WizardKey,
		Channel:       r.Channel,
		WizardVersion: r.WizardVersion,
		PointedBy:     r.PointedBy,
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
}

func pointHandler(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Version == "" {
			writeError(w, http.StatusBadRequest, "version is required")
			return
		}
		if req.PointedBy == "" {
			req.PointedBy = "builder-ui"
		}

		key := chi.URLParam(r, "key")
		channel := chi.URLParam(r, "channel")
		record, err := store.Point(r.Context(), key, channel, req.Version, req.PointedBy)
		if err != nil {
			writeReleaseError(w, err)
			return
		}

		if auditStore != nil {
			_ = auditStore.Append(&audit.EventRecord{
				EventType:    "release.pointed",
				Actor:        req.PointedBy,
				ResourceType: "release",
				ResourceID:   key,
				Details: audit.Details{
					"channel": channel,
					"version": req.Version,
				},
			})
		}
		writeJSON(w, http.StatusOK, toPointerResponse(record))
	}
}

func resolveHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := store.Resolve(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "channel"))
		if err != nil {
			writeReleaseError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPointerResponse(record))
	}
}

func channelsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.Channels(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			writeReleaseError(w, err)
			return
		}
		out := make([]PointerResponse, len(records))
		for i := range records {
			out[i] = toPointerResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// NewRouter creates a chi router with the release pointer API.
func NewRouter(store *Store, auditStore *audit.Store) chi.Router {
	r := chi.NewRouter()
	r.Route("/{key}/channels", func(r chi.Router) {
		r.Get("/", channelsHandler(store))
		r.Get("/{channel}", resolveHandler(store))
		r.Put("/{channel}", pointHandler(store, auditStore))
	})
	return r
}

func writeReleaseError(w http.ResponseWriter, err error) {
	var np *NotPublishedError
	switch {
	case IsNotFound(err), registry.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &np):
		writeError(w, http.StatusBadRequest, err.Error())
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
