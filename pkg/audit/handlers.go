package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// EventResponse is the API shape of an audit event.
type EventResponse struct {
	ID           string  `json:"id"`
	EventType    string  `json:"eventType"`
	Actor        string  `json:"actor"`
	ResourceType string  `json:"resourceType"`
	ResourceID   string  `json:"resourceId"`
	Outcome      string  `json:"outcome"`
	Details      Details `json:"details,omitempty"`
	CreatedAt    string  `json:"createdAt"`
}

func toEventResponse(r *EventRecord) EventResponse {
	return EventResponse{
		ID:           r.ID,
		EventType:    r.EventType,
		Actor:        r.Actor,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		Outcome:      r.Outcome,
		Details:      r.Details,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}

func listEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			EventType:    q.Get("eventType"),
			Actor:        q.Get("actor"),
			ResourceType: q.Get("resourceType"),
			ResourceID:   q.Get("resourceId"),
		}
		limit := 0
		if v := q.Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}

		events, err := store.List(filter, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]EventResponse, len(events))
		for i := range events {
			out[i] = toEventResponse(&events[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getEventHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := store.Get(chi.URLParam(r, "eventId"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeError(w, http.StatusNotFound, "audit event not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toEventResponse(event))
	}
}

// NewRouter creates a chi router with the read-only audit query API.
func NewRouter(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/events", listEventsHandler(store))
	r.Get("/events/{eventId}", getEventHandler(store))
	return r
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
