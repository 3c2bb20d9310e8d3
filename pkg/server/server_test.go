package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testWizardSchema = `{
	"type": "object",
	"required": ["steps"],
	"properties": {
		"steps": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "title"]
			}
		}
	}
}`

const testPageSchema = `{"type": "object"}`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	schemaDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, "wizard.v1.schema.json"), []byte(testWizardSchema), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, "page.v1.schema.json"), []byte(testPageSchema), 0o644))

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	cfg := DefaultConfig()
	cfg.SchemaDir = schemaDir

	srv, err := New(cfg, db, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

// TestServer_EndToEnd walks the whole flow through the assembled HTTP
// surface: author and publish a page, author a wizard referencing it,
// publish, pin a release channel, then run a session through quote, select,
// accept, and issue.
func TestServer_EndToEnd(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	// Page: draft then publish.
	rec := doJSON(t, h, http.MethodPost, "/api/v1/pages", map[string]any{
		"key": "page.start",
		"body": map[string]any{
			"fields": []any{map[string]any{"id": "name", "type": "text", "label": "Name"}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/pages/page.start/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "v1", jsonBody(t, rec)["version"])

	// Wizard referencing the published page.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/wizards", map[string]any{
		"key": "wizard.travel",
		"body": map[string]any{
			"steps": []any{
				map[string]any{"id": "start", "title": "Start", "pageRef": "page.start@v1"},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/wizards/wizard.travel/publish", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A wizard referencing a missing page must not publish.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/wizards", map[string]any{
		"key": "wizard.broken",
		"body": map[string]any{
			"steps": []any{
				map[string]any{"id": "start", "title": "Start", "pageRef": "page.missing@v1"},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/wizards/wizard.broken/publish", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "referential integrity check failed", jsonBody(t, rec)["message"])

	// Release channel pin.
	rec = doJSON(t, h, http.MethodPut, "/api/v1/releases/wizard.travel/channels/prod", map[string]any{
		"version": "v1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodGet, "/api/v1/releases/wizard.travel/channels/prod", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", jsonBody(t, rec)["wizardVersion"])

	// Runtime session through the full happy path.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/runtime/sessions", map[string]any{
		"wizardKey":     "wizard.travel",
		"wizardVersion": "v1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sessionID := jsonBody(t, rec)["sessionId"].(string)

	rec = doJSON(t, h, http.MethodPatch, "/api/v1/runtime/sessions/"+sessionID, map[string]any{
		"state": map[string]any{"application": map[string]any{"name": "Ada"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/runtime/sessions/"+sessionID+"/quote", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quoteID := jsonBody(t, rec)["quoteId"].(string)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/runtime/sessions/"+sessionID+"/select", map[string]any{
		"quoteId": quoteID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/runtime/sessions/"+sessionID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/v1/runtime/sessions/"+sessionID+"/issue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, jsonBody(t, rec)["policyNumber"])

	rec = doJSON(t, h, http.MethodGet, "/api/v1/runtime/sessions/"+sessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "issued", jsonBody(t, rec)["status"])
}
