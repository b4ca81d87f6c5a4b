// Package httpapi is the REST binding of the world service. It owns request
// decoding, CORS for the game frontend, and the mapping from the service's
// error kinds to HTTP statuses; all world semantics live in internal/world.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"

	"mycraft.gg/internal/world"
)

// Wire error codes.
const (
	CodeBadRequest    = "E_BAD_REQUEST"
	CodeWorldNotFound = "E_WORLD_NOT_FOUND"
	CodeStorage       = "E_STORAGE"
)

type Options struct {
	// AllowedOrigins are CORS origins for the browser client ("*" allows any).
	AllowedOrigins []string

	// Feed, when set, is mounted at GET /api/world/{id}/feed.
	Feed http.Handler
}

type Server struct {
	svc  *world.Service
	log  *log.Logger
	opts Options
}

func NewServer(svc *world.Service, logger *log.Logger, opts Options) *Server {
	return &Server{svc: svc, log: logger, opts: opts}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /api/world/{$}", s.handleCreateWorld)
	mux.HandleFunc("GET /api/world/{id}", s.handleGetWorld)
	mux.HandleFunc("PUT /api/world/{id}/changes", s.handleApplyChanges)
	mux.HandleFunc("GET /api/world/{id}/state", s.handleWorldState)
	if s.opts.Feed != nil {
		mux.Handle("GET /api/world/{id}/feed", s.opts.Feed)
	}
	return s.withCORS(mux)
}

type createWorldRequest struct {
	Seed string `json:"seed"`
}

type applyChangesRequest struct {
	Changes []world.BlockChange `json:"changes"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// resolvedBlock is one occupied coordinate of the derived state, sorted by
// (x, y, z) for stable output.
type resolvedBlock struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Z    int    `json:"z"`
	Type string `json:"type"`
}

type worldStateResponse struct {
	WorldID int64           `json:"world_id"`
	Blocks  []resolvedBlock `json:"blocks"`
}

func (s *Server) handleRoot(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"message": "Welcome to MyCraft API"})
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateWorld(rw http.ResponseWriter, r *http.Request) {
	var req createWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(rw, http.StatusBadRequest, CodeBadRequest, "invalid JSON body", "")
		return
	}
	w, err := s.svc.CreateWorld(r.Context(), req.Seed)
	if err != nil {
		s.writeServiceError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, w)
}

func (s *Server) handleGetWorld(rw http.ResponseWriter, r *http.Request) {
	id, ok := s.worldID(rw, r)
	if !ok {
		return
	}
	w, err := s.svc.GetWorld(r.Context(), id)
	if err != nil {
		s.writeServiceError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, w)
}

func (s *Server) handleApplyChanges(rw http.ResponseWriter, r *http.Request) {
	id, ok := s.worldID(rw, r)
	if !ok {
		return
	}
	var req applyChangesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(rw, http.StatusBadRequest, CodeBadRequest, "invalid JSON body", "")
		return
	}
	w, err := s.svc.ApplyChanges(r.Context(), id, req.Changes)
	if err != nil {
		s.writeServiceError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, w)
}

func (s *Server) handleWorldState(rw http.ResponseWriter, r *http.Request) {
	id, ok := s.worldID(rw, r)
	if !ok {
		return
	}
	w, err := s.svc.GetWorld(r.Context(), id)
	if err != nil {
		s.writeServiceError(rw, err)
		return
	}

	state := world.Resolve(w.Changes)
	blocks := make([]resolvedBlock, 0, len(state))
	for pos, typ := range state {
		blocks = append(blocks, resolvedBlock{X: pos.X, Y: pos.Y, Z: pos.Z, Type: typ})
	}
	sort.Slice(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	writeJSON(rw, http.StatusOK, worldStateResponse{WorldID: w.ID, Blocks: blocks})
}

func (s *Server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	st := s.svc.Stats()

	fmt.Fprintf(rw, "# HELP mycraft_worlds_created_total Worlds created since process start.\n")
	fmt.Fprintf(rw, "# TYPE mycraft_worlds_created_total counter\n")
	fmt.Fprintf(rw, "mycraft_worlds_created_total %d\n", st.WorldsCreated)

	fmt.Fprintf(rw, "# HELP mycraft_appends_committed_total Change batches committed.\n")
	fmt.Fprintf(rw, "# TYPE mycraft_appends_committed_total counter\n")
	fmt.Fprintf(rw, "mycraft_appends_committed_total %d\n", st.AppendsCommitted)

	fmt.Fprintf(rw, "# HELP mycraft_changes_appended_total Individual block changes appended.\n")
	fmt.Fprintf(rw, "# TYPE mycraft_changes_appended_total counter\n")
	fmt.Fprintf(rw, "mycraft_changes_appended_total %d\n", st.ChangesAppended)

	fmt.Fprintf(rw, "# HELP mycraft_batches_rejected_total Change batches rejected by validation.\n")
	fmt.Fprintf(rw, "# TYPE mycraft_batches_rejected_total counter\n")
	fmt.Fprintf(rw, "mycraft_batches_rejected_total %d\n", st.BatchesRejected)
}

func (s *Server) worldID(rw http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(rw, http.StatusUnprocessableEntity, CodeBadRequest, "world id must be an integer", "id")
		return 0, false
	}
	return id, true
}

// writeServiceError maps the service's error taxonomy onto HTTP statuses:
// validation 422, not found 404, storage faults 503.
func (s *Server) writeServiceError(rw http.ResponseWriter, err error) {
	var verr *world.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeError(rw, http.StatusUnprocessableEntity, CodeBadRequest, verr.Reason, verr.Field)
	case world.IsNotFound(err):
		s.writeError(rw, http.StatusNotFound, CodeWorldNotFound, "World not found", "")
	default:
		s.log.Printf("httpapi: %v", err)
		s.writeError(rw, http.StatusServiceUnavailable, CodeStorage, "storage unavailable", "")
	}
}

func (s *Server) writeError(rw http.ResponseWriter, status int, code, msg, field string) {
	writeJSON(rw, status, errorResponse{Error: msg, Code: code, Field: field})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
