package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/report/analyzer"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/storage"
	"github.com/redhat-openshift-ecosystem/test-report-analyzer/internal/upload"
)

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
	Batch   string   `json:"batch"`
}

// AnalyzeRequest is the body of an analyze request.
type AnalyzeRequest struct {
	ReportPaths []string `json:"reportPaths"`
}

// SearchRequest is the body of a search request.
type SearchRequest struct {
	TestName    string   `json:"testName"`
	ReportPaths []string `json:"reportPaths"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("unable to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Limits.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(
				"Request too large. Maximum allowed size is %s.", upload.FormatFileSize(s.cfg.Limits.MaxUploadBytes)))
			return
		}
		log.WithError(err).Debug("unable to parse multipart form")
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}

	saved := []string{}
	rejected := 0
	for _, fh := range headers {
		if fh.Filename == "" || !upload.AllowedFile(fh.Filename) {
			log.Debugf("skipping file %q", fh.Filename)
			rejected++
			continue
		}
		path, err := s.save(r, fh)
		if errors.Is(err, storage.ErrInvalidName) {
			rejected++
			continue
		}
		if err != nil {
			log.WithError(err).Errorf("unable to save %s", fh.Filename)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error saving %s: %v", fh.Filename, err))
			return
		}
		saved = append(saved, path)
	}
	s.collectors.RecordUpload(len(saved), rejected)

	batch := s.newBatchID()
	log.WithFields(log.Fields{
		"batch":    batch,
		"saved":    len(saved),
		"rejected": rejected,
	}).Info("files uploaded")
	writeJSON(w, http.StatusOK, UploadResponse{
		Message: fmt.Sprintf("%d files uploaded successfully", len(saved)),
		Files:   saved,
		Batch:   batch,
	})
}

func (s *Server) save(r *http.Request, fh *multipart.FileHeader) (string, error) {
	fd, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer fd.Close()
	return s.store.Save(r.Context(), fh.Filename, fd)
}

// decodeJSON reads a JSON body of at most maxJSONBody bytes into v, answering
// the request when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf(
			"Request too large. Maximum allowed size is %s.", upload.FormatFileSize(maxJSONBody)))
		return false
	}
	writeError(w, http.StatusBadRequest, "Invalid request body")
	return false
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.ReportPaths) == 0 {
		writeError(w, http.StatusBadRequest, "No report paths provided")
		return
	}

	res, err := s.loader.Analyze(r.Context(), req.ReportPaths)
	if err != nil {
		s.processingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TestName == "" || len(req.ReportPaths) == 0 {
		writeError(w, http.StatusBadRequest, "Test name and report paths are required")
		return
	}

	res, err := s.loader.Search(r.Context(), req.TestName, req.ReportPaths)
	if err != nil {
		s.processingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) processingError(w http.ResponseWriter, err error) {
	log.WithError(err).Error("unable to process reports")
	var perr *analyzer.ProcessingError
	if errors.As(err, &perr) {
		writeError(w, http.StatusInternalServerError, perr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
