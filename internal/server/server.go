//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/packages"
	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/storage"
)

type PackageService interface {
	Create(ctx context.Context, in packages.PackageInput) (string, error)
	List(ctx context.Context) ([]storage.Package, error)
	Get(ctx context.Context, id string) (*storage.Package, error)
	Update(ctx context.Context, id string, u packages.PackageUpdate) (*storage.Package, error)
}

type Options struct {
	// PublicDir is served as static files, uploads included.
	PublicDir string
	// MaxUploadBytes bounds the in-memory part of a multipart body.
	MaxUploadBytes int64
}

type Server struct {
	service      PackageService
	logger       *zap.Logger
	opts         Options
	server       *http.Server
	AuditManager *AuditManager
}

func New(service PackageService, auditManager *AuditManager, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	s := &Server{
		service:      service,
		logger:       logger,
		opts:         opts,
		AuditManager: auditManager,
	}
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Run(port string) error {
	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", port, err)
	}
	return s.Serve(ln)
}

// Serve starts the audit workers and serves HTTP on ln until Shutdown.
// After Shutdown it returns nil straight away.
func (s *Server) Serve(ln net.Listener) error {
	if s.AuditManager != nil {
		s.AuditManager.Start(context.Background())
	}

	s.logger.Info("Server is running", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests first, so their audit entries are
// queued before the audit workers are stopped.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("HTTP server shutdown completed")

	if s.AuditManager != nil {
		s.AuditManager.Shutdown(ctx)
	}
	s.logger.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLogMiddleware)

	api := r.PathPrefix("/api/packages").Subrouter()
	if s.AuditManager != nil {
		api.Use(s.auditLogMiddleware)
	}
	api.HandleFunc("", s.handleCreatePackage).Methods(http.MethodPost).Name("handleCreatePackage")
	api.HandleFunc("", s.handleListPackages).Methods(http.MethodGet).Name("handleListPackages")
	api.HandleFunc("/{id}", s.handleGetPackage).Methods(http.MethodGet).Name("handleGetPackage")
	// POST is the edit form's target, browsers cannot submit PUT.
	api.HandleFunc("/{id}", s.handleUpdatePackage).Methods(http.MethodPut, http.MethodPost).Name("handleUpdatePackage")

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/edit/{id}", s.handleEditForm).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if s.opts.PublicDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.PublicDir))).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	var validationErr *packages.ValidationError
	var notFoundErr *packages.NotFoundError

	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": "Required fields are missing.",
			"fields":  validationErr.Missing,
		})
	case errors.As(err, &notFoundErr):
		respondError(w, http.StatusNotFound, "Package not found.")
	default:
		s.logger.Error("Request failed", zap.String("operation", op), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	req, err := s.parsePackageRequest(r)
	if err != nil {
		s.logger.Debug("Invalid request body", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	defer req.Close()

	id, err := s.service.Create(r.Context(), req.input())
	if err != nil {
		s.respondServiceError(w, "create", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Package created successfully",
		"id":      id,
	})
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := s.service.List(r.Context())
	if err != nil {
		s.respondServiceError(w, "list", err)
		return
	}
	if pkgs == nil {
		pkgs = []storage.Package{}
	}
	respondJSON(w, http.StatusOK, pkgs)
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	pkg, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, "get", err)
		return
	}
	respondJSON(w, http.StatusOK, pkg)
}

func (s *Server) handleUpdatePackage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	req, err := s.parsePackageRequest(r)
	if err != nil {
		s.logger.Debug("Invalid request body", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	defer req.Close()

	pkg, err := s.service.Update(r.Context(), id, req.update())
	if err != nil {
		s.respondServiceError(w, "update", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Package updated successfully",
		"package": pkg,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
