package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/sigmaproc/sigmaproc/internal/logger"
	"github.com/sigmaproc/sigmaproc/multitenant"
	"github.com/sigmaproc/sigmaproc/pipelines"
	"github.com/sigmaproc/sigmaproc/processing"
	"github.com/sigmaproc/sigmaproc/sigma"
)

type Server struct {
	db      *sql.DB
	manager *multitenant.Manager
	router  *chi.Mux
}

func NewServer(databaseURL string) (*Server, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewServerWithDB(db)
}

// NewServerWithDB builds a server around an existing database handle.
func NewServerWithDB(db *sql.DB) (*Server, error) {
	manager := multitenant.NewManager(db)

	logger.Info("Loading tenants from database")
	if err := manager.LoadAllTenants(); err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}

	tenants := manager.ListTenants()
	logger.Info("Tenants loaded", "count", len(tenants))

	s := &Server{
		db:      db,
		manager: manager,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	r.Post("/api/v1/transform", s.handleTransform)

	r.Route("/api/v1/tenants", func(r chi.Router) {
		r.Get("/", s.handleListTenants)
		r.Post("/", s.handleCreateTenant)

		r.Route("/{tenantId}", func(r chi.Router) {
			r.Post("/reload", s.handleReloadTenant)

			r.Post("/pipelines", s.handleCreatePipeline)
			r.Get("/pipelines", s.handleListPipelines)
			r.Get("/pipelines/{pipelineId}", s.handleGetPipeline)
			r.Put("/pipelines/{pipelineId}", s.handleUpdatePipeline)
			r.Delete("/pipelines/{pipelineId}", s.handleDeletePipeline)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger records each request through the shared logger and
// feeds the status counters exposed by the metrics endpoint.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		logger.CountHTTPStatus(ww.Status())
		if elapsed > time.Second {
			logger.CountSlowRequest()
		}
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", elapsed.String(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"tenantsLoaded": len(s.manager.ListTenants()),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]int64{
		"totalErrors":    logger.TotalErrors.Load(),
		"totalWarnings":  logger.TotalWarnings.Load(),
		"total5xxErrors": logger.Total5xxErrors.Load(),
		"total4xxErrors": logger.Total4xxErrors.Load(),
		"slowRequests":   logger.SlowRequests.Load(),
	})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.TenantID == "" {
		respondError(w, http.StatusBadRequest, "tenantId is required", nil)
		return
	}
	if req.Rule == "" {
		respondError(w, http.StatusBadRequest, "rule is required", nil)
		return
	}

	engine, err := s.manager.GetEngine(req.TenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	rule, err := sigma.ParseRule([]byte(req.Rule))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule", err)
		return
	}

	startTime := time.Now()

	var results []*pipelines.TransformResult
	if req.PipelineID != "" {
		result, err := engine.Transform(req.PipelineID, rule)
		if err != nil {
			respondTransformError(w, err)
			return
		}
		results = []*pipelines.TransformResult{result}
	} else {
		results, err = engine.TransformAll(rule)
		if err != nil {
			respondTransformError(w, err)
			return
		}
	}

	transformed, err := rule.ToYAML()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to serialize rule", err)
		return
	}

	resp := TransformResponse{
		Rule:          string(transformed),
		TransformTime: time.Since(startTime).String(),
	}
	for _, result := range results {
		resp.Pipelines = append(resp.Pipelines, PipelineOutcome{
			ID:           result.PipelineID,
			Name:         result.PipelineName,
			Fields:       result.Fields,
			AppliedItems: result.AppliedItems,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// respondTransformError maps intentional aborts to 422: the request was
// well-formed, the rule is simply unsupported by the pipeline.
func respondTransformError(w http.ResponseWriter, err error) {
	var terr *processing.TransformationError
	if errors.As(err, &terr) {
		respondError(w, http.StatusUnprocessableEntity, "rule rejected by pipeline", err)
		return
	}
	respondError(w, http.StatusInternalServerError, "transformation failed", err)
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query("SELECT id, name, created_at, updated_at FROM tenants ORDER BY created_at DESC")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tenants", err)
		return
	}
	defer rows.Close()

	tenants := []TenantResponse{}
	for rows.Next() {
		var t TenantResponse
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to scan tenant", err)
			return
		}
		tenants = append(tenants, t)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenants": tenants,
	})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	var tenantID string
	err := s.db.QueryRow(`
		INSERT INTO tenants (name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING id
	`, req.Name).Scan(&tenantID)

	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}

	if err := s.manager.CreateTenant(tenantID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to initialize tenant engine", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":   tenantID,
		"name": req.Name,
	})
}

func (s *Server) handleReloadTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	if err := s.manager.ReloadTenant(tenantID); err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "reloaded",
	})
}

func (s *Server) handleCreatePipeline(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req PipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Definition == "" {
		respondError(w, http.StatusBadRequest, "definition is required", nil)
		return
	}

	engine, err := s.manager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	cfg, err := processing.ParseConfig([]byte(req.Definition))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pipeline definition", err)
		return
	}

	def := &pipelines.Definition{
		ID:        uuid.New().String(),
		Name:      cfg.Name,
		Priority:  cfg.Priority,
		Source:    req.Definition,
		Active:    req.Active,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := engine.Add(def); err != nil {
		respondError(w, http.StatusBadRequest, "failed to add pipeline", err)
		return
	}

	respondJSON(w, http.StatusCreated, pipelineResponse(def))
}

func (s *Server) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	rows, err := s.db.Query(`
		SELECT id, name, priority, definition, active, created_at, updated_at
		FROM pipelines
		WHERE tenant_id = $1
		ORDER BY priority ASC, created_at ASC
	`, tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list pipelines", err)
		return
	}
	defer rows.Close()

	defs := []PipelineResponse{}
	for rows.Next() {
		var d pipelines.Definition
		if err := rows.Scan(&d.ID, &d.Name, &d.Priority, &d.Source, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to scan pipeline", err)
			return
		}
		defs = append(defs, pipelineResponse(&d))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"pipelines": defs,
	})
}

func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	pipelineID := chi.URLParam(r, "pipelineId")

	store := pipelines.NewPostgresStore(s.db, tenantID)
	def, err := store.Get(pipelineID)
	if err != nil {
		respondError(w, http.StatusNotFound, "pipeline not found", err)
		return
	}

	respondJSON(w, http.StatusOK, pipelineResponse(def))
}

func (s *Server) handleUpdatePipeline(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	pipelineID := chi.URLParam(r, "pipelineId")

	var req PipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	engine, err := s.manager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	cfg, err := processing.ParseConfig([]byte(req.Definition))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid pipeline definition", err)
		return
	}

	def := &pipelines.Definition{
		ID:        pipelineID,
		Name:      cfg.Name,
		Priority:  cfg.Priority,
		Source:    req.Definition,
		Active:    req.Active,
		UpdatedAt: time.Now(),
	}

	if err := engine.Update(def); err != nil {
		respondError(w, http.StatusBadRequest, "failed to update pipeline", err)
		return
	}

	respondJSON(w, http.StatusOK, pipelineResponse(def))
}

func (s *Server) handleDeletePipeline(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	pipelineID := chi.URLParam(r, "pipelineId")

	engine, err := s.manager.GetEngine(tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "tenant not found", err)
		return
	}

	if err := engine.Delete(pipelineID); err != nil {
		respondError(w, http.StatusNotFound, "pipeline not found", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal("DATABASE_URL environment variable is required")
	}

	server, err := NewServer(databaseURL)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}
	defer server.db.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Error("Logger shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
