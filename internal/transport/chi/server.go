package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/domain"
	healthuc "github.com/tablechat/tablechat/internal/usecase/health"
	queryuc "github.com/tablechat/tablechat/internal/usecase/query"
	uploaduc "github.com/tablechat/tablechat/internal/usecase/upload"
)

// multipartOverhead is the slack added on top of the file size limit for
// multipart boundaries and headers.
const multipartOverhead = 1 << 20

// memoryLimit caps how much of a multipart form is held in memory before
// spilling to disk.
const memoryLimit = 32 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server exposes the upload and query operations over HTTP.
type Server struct {
	upload        *uploaduc.Service
	query         *queryuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	maxFileBytes  int64
	allowedExts   []string
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	upload *uploaduc.Service,
	query *queryuc.Service,
	health *healthuc.Service,
	maxFileBytes int64,
	allowedExts []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		upload:       upload,
		query:        query,
		health:       health,
		logger:       logger,
		maxFileBytes: maxFileBytes,
		allowedExts:  allowedExts,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusBadRequest,
			fmt.Sprintf("Only %s files are supported", strings.Join(allowedExts, ", "))),
		sentinelHandler(domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File size exceeds %d MB limit", maxFileBytes>>20)),
		sentinelHandler(domain.ErrParse, http.StatusBadRequest,
			"File could not be parsed; it may be corrupt or not match its extension"),
		sentinelHandler(domain.ErrEmptyDocument, http.StatusUnprocessableEntity,
			"File contains no usable content"),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway,
			"Embedding provider unavailable, please retry"),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusBadGateway,
			"Chat model unavailable, please retry"),
	}
	return s
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Liveness)
	r.Post("/upload_file", s.UploadFile)
	r.Post("/query", s.Query)
	r.Get("/health", s.Health)
}

// Liveness handles GET /.
func (s *Server) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tablechat backend is running"})
}

// UploadFile handles POST /upload_file: reads the multipart payload and runs
// the ingestion pipeline.
func (s *Server) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileBytes+multipartOverhead)

	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File size exceeds %d MB limit", s.maxFileBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `Form field "file" is required`)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read upload: "+err.Error())
		return
	}

	session, err := s.upload.Upload(r.Context(), header.Filename, data)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	writeJSON(w, http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("%s file uploaded and processed", ext),
		RoomID:  session.ID,
	})
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.RoomID == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "room_id and query are required")
		return
	}

	answer, err := s.query.Query(r.Context(), req.RoomID, req.Query)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Room not found"})
			return
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Answer: answer.Text})
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// handleDomainError walks the handler chain; unmatched errors become 500.
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, handle := range s.errorHandlers {
		if handle(w, err) {
			return
		}
	}
	s.logger.Error("Unhandled domain error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal error")
}

// sentinelHandler builds an errorHandler matching a sentinel error.
func sentinelHandler(sentinel error, status int, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

type uploadResponse struct {
	Message string `json:"message"`
	RoomID  string `json:"room_id"`
}

type queryRequest struct {
	RoomID string `json:"room_id"`
	Query  string `json:"query"`
}

type queryResponse struct {
	Answer string `json:"answer"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
