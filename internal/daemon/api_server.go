package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"autodub/internal/jobs"
	"autodub/internal/logging"
	"autodub/internal/pipeline"
	"autodub/internal/services"
)

// APIServer exposes the job registry over HTTP.
type APIServer struct {
	registry *jobs.Registry
	logger   *slog.Logger
}

// NewAPIServer creates the HTTP surface for a registry.
func NewAPIServer(registry *jobs.Registry, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &APIServer{
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Handler returns the route table.
//
// Go 1.21 ServeMux has no method or wildcard patterns, so method dispatch
// and {id} extraction are done by hand with the same routes and status
// codes the 1.22+ pattern mux would produce.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		s.handleHealth(w, r)
	})
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleCreateJob(w, r)
		case http.MethodGet:
			s.handleListJobs(w, r)
		default:
			methodNotAllowed(w, "GET, POST")
		}
	})
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		id, sub := rest, ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			id, sub = rest[:i], rest[i+1:]
		}
		if id == "" {
			http.NotFound(w, r)
			return
		}
		r = withPathValue(r, "id", id)
		switch sub {
		case "":
			switch r.Method {
			case http.MethodGet:
				s.handleGetJob(w, r)
			case http.MethodDelete:
				s.handleDeleteJob(w, r)
			default:
				methodNotAllowed(w, "GET, DELETE")
			}
		case "download":
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			s.handleDownload(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

type pathValuesKey struct{}

func withPathValue(r *http.Request, key, value string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), pathValuesKey{}, map[string]string{key: value}))
}

func pathValue(r *http.Request, key string) string {
	if vals, ok := r.Context().Value(pathValuesKey{}).(map[string]string); ok {
		return vals[key]
	}
	return ""
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var spec jobs.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	job, err := s.registry.CreateJob(spec)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("job creation failed", logging.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *APIServer) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.registry.ListJobs()})
}

func (s *APIServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.registry.GetJob(pathValue(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *APIServer) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if !s.registry.DeleteJob(pathValue(r, "id")) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.registry.GetJob(pathValue(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.Status != pipeline.StageCompleted || job.OutputPath == "" {
		writeError(w, http.StatusConflict, "job has no output artifact")
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		writeError(w, http.StatusGone, "output artifact no longer exists")
		return
	}
	http.ServeFile(w, r, job.OutputPath)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
