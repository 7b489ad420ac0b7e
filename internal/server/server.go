// Package server exposes the conversion pipelines over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Lllllllleong/documentconverter/internal/models"
	"github.com/Lllllllleong/documentconverter/internal/services"
)

// formField is the multipart field carrying the upload.
const formField = "file"

// Server handles uploads for both pipelines and serves their results.
type Server struct {
	pdf            services.Pipeline
	image          services.Pipeline
	scratchRoot    string
	maxUploadBytes int64
}

// New returns a Server storing request scratch scopes under scratchRoot.
func New(pdf, image services.Pipeline, scratchRoot string, maxUploadBytes int64) *Server {
	return &Server{
		pdf:            pdf,
		image:          image,
		scratchRoot:    scratchRoot,
		maxUploadBytes: maxUploadBytes,
	}
}

// Router returns the chi router with every route registered.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP registers the endpoints on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Post("/upload_pdf", s.handleUpload(s.pdf))
	r.Post("/upload_image", s.handleUpload(s.image))
	r.Get("/uploads/{jobId}/{filename}", s.handleDownload)
}

func (s *Server) handleUpload(pipeline services.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logCtx := slog.With("path", r.URL.Path, "requestId", middleware.GetReqID(r.Context()))

		file, filename, err := s.readUpload(w, r)
		if err != nil {
			logCtx.Warn("Rejected upload.", "error", err)
			writeError(w, r, err)
			return
		}
		defer file.Close()

		scope, err := services.NewScratchScope(s.scratchRoot)
		if err != nil {
			logCtx.Error("Failed to create scratch scope", "error", err)
			writeError(w, r, err)
			return
		}
		logCtx = logCtx.With("jobId", scope.ID)

		sourcePath, err := services.SaveUpload(scope, filename, file)
		if err != nil {
			logCtx.Error("Failed to save upload", "error", err)
			s.discard(logCtx, scope)
			writeError(w, r, err)
			return
		}

		result, err := pipeline.Run(r.Context(), services.Request{Scope: scope, SourcePath: sourcePath, OriginalFilename: filename})
		if err != nil {
			s.discard(logCtx, scope)
			writeError(w, r, err)
			return
		}
		if err := scope.RemoveWorkFiles(); err != nil {
			logCtx.Warn("Failed to remove work files", "error", err)
		}

		downloadURL := path.Join("/uploads", result.JobID, result.Filename)
		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, models.ConvertResponse{
				Status:      "success",
				JobID:       result.JobID,
				Pipeline:    result.Pipeline,
				Filename:    result.Filename,
				DownloadURL: downloadURL,
				ResultURI:   result.ResultURI,
			})
			return
		}
		http.Redirect(w, r, downloadURL, http.StatusSeeOther)
	}
}

// readUpload validates the multipart upload before anything touches disk.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile(formField)
	switch {
	case err == nil:
	case errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil && len(r.MultipartForm.Value[formField]) > 0:
		// The field was sent without a file name, i.e. nothing was selected.
		return nil, "", uploadError("no file selected")
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, "", uploadError("no file sent")
	default:
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, "", uploadError(fmt.Sprintf("file exceeds the %d byte limit", maxBytesErr.Limit))
		}
		return nil, "", models.NewStageError(models.StageIntake, models.ErrUpload, err)
	}

	if header.Filename == "" {
		_ = file.Close()
		return nil, "", uploadError("no file selected")
	}
	return file, header.Filename, nil
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	scope, err := services.OpenScratchScope(s.scratchRoot, chi.URLParam(r, "jobId"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	filename := chi.URLParam(r, "filename")
	if services.SafeFilename(filename, "") != filename {
		http.NotFound(w, r)
		return
	}
	resultPath := scope.ResultPath(filename)
	if info, err := os.Stat(resultPath); err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, resultPath)
}

func (s *Server) discard(logCtx *slog.Logger, scope *services.ScratchScope) {
	if err := scope.Remove(); err != nil {
		logCtx.Warn("Failed to remove scratch scope", "path", scope.Root, "error", err)
	}
}

func uploadError(message string) error {
	return models.NewStageError(models.StageIntake, models.ErrUpload, errors.New(message))
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeError answers with the status matching err. Upload errors carry only
// their cause, since that is what the client has to fix.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := models.HTTPStatus(err)
	message := err.Error()
	var stageErr *models.StageError
	if errors.Is(err, models.ErrUpload) && errors.As(err, &stageErr) && stageErr.Err != nil {
		message = stageErr.Err.Error()
	}
	if wantsJSON(r) {
		writeJSON(w, status, models.ErrorResponse{Status: "error", Error: message})
		return
	}
	http.Error(w, message, status)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
