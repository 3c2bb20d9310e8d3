package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/wizardhub/definition-registry/pkg/audit"
	"github.com/wizardhub/definition-registry/pkg/registry"
	"github.com/wizardhub/definition-registry/pkg/release"
	"github.com/wizardhub/definition-registry/pkg/schema"
	"github.com/wizardhub/definition-registry/pkg/session"
)

// Server owns the assembled stores and the HTTP router.
type Server struct {
	cfg    *Config
	db     *gorm.DB
	logger *slog.Logger

	definitions *registry.DefinitionStore
	sessions    *session.Store
	releases    *release.Store
	auditor     *audit.Store

	router chi.Router
}

// New builds a fully wired server on top of an open database connection.
// It migrates all tables before returning.
func New(cfg *Config, db *gorm.DB, logger *slog.Logger) (*Server, error) {
	if err := db.AutoMigrate(
		&registry.DefinitionRecord{},
		&session.SessionRecord{},
		&session.QuoteRecord{},
		&session.PolicyRecord{},
		&release.PointerRecord{},
		&audit.EventRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	validator := schema.NewValidator(schema.NewDirRegistry(cfg.SchemaDir), schema.NewCache())
	definitions := registry.NewDefinitionStore(db, validator)

	s := &Server{
		cfg:         cfg,
		db:          db,
		logger:      logger,
		definitions: definitions,
		sessions:    session.NewStore(db, definitions),
		releases:    release.NewStore(db, definitions),
		auditor:     audit.NewStore(db),
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wizards", registry.NewRouter(s.definitions, s.auditor, registry.KindWizard, "wizard.v1"))
		r.Mount("/pages", registry.NewRouter(s.definitions, s.auditor, registry.KindPage, "page.v1"))
		r.Mount("/runtime", session.NewRouter(s.sessions, s.auditor))
		r.Mount("/releases", release.NewRouter(s.releases, s.auditor))
		r.Mount("/audit", audit.NewRouter(s.auditor))
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("database unavailable\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Handler returns the HTTP handler for the assembled service.
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartWorkers launches the background workers enabled by configuration.
// They stop when ctx is cancelled.
func (s *Server) StartWorkers(ctx context.Context) {
	if s.cfg.SweepEnabled {
		sweeper := session.NewSweeper(s.sessions, s.cfg.SweepInterval(), s.logger)
		go sweeper.Run(ctx)
	}
	if s.cfg.AuditRetentionDays > 0 {
		worker := audit.NewRetentionWorker(s.auditor, s.cfg.AuditRetentionDays, s.logger)
		go worker.Run(ctx)
	}
}
