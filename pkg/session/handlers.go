package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wizardhub/definition-registry/pkg/audit"
	"github.com/wizardhub/definition-registry/pkg/registry"
)

// SessionResponse is the API shape of a session.
type SessionResponse struct {
	SessionID     string           `json:"sessionId"`
	WizardKey     string           `json:"wizardKey"`
	WizardVersion string           `json:"wizardVersion"`
	Status        string           `json:"status"`
	CurrentStep   *string          `json:"currentStep"`
	State         registry.JSONDoc `json:"state"`
	CreatedAt     string           `json:"createdAt"`
	UpdatedAt     string           `json:"updatedAt"`
	ExpiresAt     string           `json:"expiresAt"`
}

type createSessionRequest struct {
	WizardKey       string           `json:"wizardKey"`
	WizardVersion   string           `json:"wizardVersion"`
	State           registry.JSONDoc `json:"state"`
	PartnerID       string           `json:"partnerId"`
	MerchantOrderID string           `json:"merchantOrderId"`
}

type updateSessionRequest struct {
	State       registry.JSONDoc `json:"state"`
	CurrentStep *string          `json:"currentStep"`
}

type selectQuoteRequest struct {
	QuoteID string `json:"quoteId"`
}

// QuoteResponse is the stub quote payload. Real rating is a downstream
// integration, not part of this service.
type QuoteResponse struct {
	QuoteID    string           `json:"quoteId"`
	Premium    float64          `json:"premium"`
	Coverage   registry.JSONDoc `json:"coverage"`
	ValidUntil string           `json:"validUntil"`
}

// IssueResponse is the stub issuance payload.
type IssueResponse struct {
	PolicyID     string   `json:"policyId"`
	PolicyNumber string   `json:"policyNumber"`
	Status       string   `json:"status"`
	Documents    []string `json:"documents"`
}

func toSessionResponse(r *SessionRecord) SessionResponse {
	return SessionResponse{
		SessionID:     r.ID,
		WizardKey:     r.WizardKey,
		WizardVersion: r.WizardVersion,
		Status:        r.Status,
		CurrentStep:   r.CurrentStep,
		State:         r.State,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
		ExpiresAt:     r.ExpiresAt.Format(time.RFC3339),
	}
}

func createSessionHandler(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.WizardKey == "" || req.WizardVersion == "" {
			writeError(w, http.StatusBadRequest, "wizardKey and wizardVersion are required")
			return
		}

		record, err := store.Create(r.Context(), CreateParams{
			WizardKey:       req.WizardKey,
			WizardVersion:   req.WizardVersion,
			State:           req.State,
			PartnerID:       req.PartnerID,
			MerchantOrderID: req.MerchantOrderID,
		})
		if err != nil {
			writeSessionError(w, err)
			return
		}

		appendAudit(auditStore, "session.created", record.ID, audit.Details{
			"wizardKey":     record.WizardKey,
			"wizardVersion": record.WizardVersion,
		})
		writeJSON(w, http.StatusCreated, toSessionResponse(record))
	}
}

func getSessionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}
		if record.Expired(time.Now().UTC()) {
			writeError(w, http.StatusGone, (&ExpiredError{ID: record.ID}).Error())
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(record))
	}
}

func updateSessionHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.State == nil {
			writeError(w, http.StatusBadRequest, "state is required")
			return
		}

		record, err := store.ReplaceState(r.Context(), chi.URLParam(r, "id"), req.State, req.CurrentStep)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(record))
	}
}

func deleteSessionHandler(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := store.Delete(r.Context(), id); err != nil {
			writeSessionError(w, err)
			return
		}
		appendAudit(auditStore, "session.deleted", id, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func quoteHandler(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// Stub rating: a fixed premium with a 30-day validity window.
		quoteID := uuid.New().String()
		validUntil := time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339)
		payload := registry.JSONDoc{
			"premium":    99.99,
			"coverage":   map[string]any{"type": "basic", "amount": float64(10000)},
			"validUntil": validUntil,
		}

		if _, err := store.AddQuote(r.Context(), id, quoteID, payload); err != nil {
			writeSessionError(w, err)
			return
		}

		appendAudit(auditStore, "session.quoted", id, audit.Details{"quoteId": quoteID})
		writeJSON(w, http.StatusOK, QuoteResponse{
			QuoteID:    quoteID,
			Premium:    99.99,
			Coverage:   registry.JSONDoc{"type": "basic", "amount": float64(10000)},
			ValidUntil: validUntil,
		})
	}
}

func selectQuoteHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectQuoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.QuoteID == "" {
			writeError(w, http.StatusBadRequest, "quoteId is required")
			return
		}

		quote, err := store.SelectQuote(r.Context(), chi.URLParam(r, "id"), req.QuoteID)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"quoteId":  quote.QuoteID,
			"selected": true,
		})
	}
}

func acceptHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := store.Advance(r.Context(), chi.URLParam(r, "id"), StatusAccepted)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(record))
	}
}

func issueHandler(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// Stub issuance: a synthetic policy number and document links.
		policyNumber := fmt.Sprintf("POL-%s", uuid.New().String()[:8])
		payload := registry.JSONDoc{"policyNumber": policyNumber, "status": "issued"}

		policy, err := store.IssuePolicy(r.Context(), id, policyNumber, "stub-insurer", payload)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		appendAudit(auditStore, "session.issued", id, audit.Details{"policyNumber": policyNumber})
		writeJSON(w, http.StatusOK, IssueResponse{
			PolicyID:     policy.ID,
			PolicyNumber: policyNumber,
			Status:       "issued",
			Documents: []string{
				fmt.Sprintf("/api/documents/%s/policy.pdf", policy.ID),
				fmt.Sprintf("/api/documents/%s/receipt.pdf", policy.ID),
			},
		})
	}
}

func appendAudit(store *audit.Store, eventType, sessionID string, details audit.Details) {
	if store == nil {
		return
	}
	_ = store.Append(&audit.EventRecord{
		EventType:    eventType,
		Actor:        "runtime",
		ResourceType: "session",
		ResourceID:   sessionID,
		Details:      details,
	})
}

// writeSessionError maps session and registry errors onto HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	var terr *TransitionError
	switch {
	case IsExpired(err):
		writeError(w, http.StatusGone, err.Error())
	case IsNotFound(err), registry.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &terr):
		writeError(w, http.StatusConflict, err.Error())
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
