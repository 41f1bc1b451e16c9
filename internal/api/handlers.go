package api

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/moasq/submint/internal/advisor"
	"github.com/moasq/submint/internal/imagegen"
	"github.com/moasq/submint/internal/metadata"
	"github.com/moasq/submint/internal/store"
)

const maxUploadSize = 10 << 20

var allowedFileTypes = []string{"image/png", "image/jpeg", "image/gif", "application/json"}

func unavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "Service not configured")
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if s.pin == nil {
		unavailable(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		writeError(w, http.StatusBadRequest, "File too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !slices.Contains(allowedFileTypes, contentType) {
		writeError(w, http.StatusBadRequest, "Invalid file type")
		return
	}

	s.log.InfoContext(r.Context(), "uploading file to Pinata", "name", header.Filename, "size", header.Size)
	url, err := s.pin.PinFile(r.Context(), header.Filename, contentType, file)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.Contains(strings.ToLower(err.Error()), "jwt") {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, errorBody{Error: "Error processing upload", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fileUrl": url})
}

func (s *Server) handleUploadMetadata(w http.ResponseWriter, r *http.Request) {
	if s.pin == nil {
		unavailable(w)
		return
	}
	var req metadata.SubscriptionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	uri, err := s.pin.PinJSON(r.Context(), "metadata.json", metadata.BuildSubscription(req))
	if err != nil {
		s.log.ErrorContext(r.Context(), "error uploading metadata", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"metadataUri": uri})
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		unavailable(w)
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	res, err := s.images.Generate(r.Context(), strings.TrimSpace(req.Prompt))
	if errors.Is(err, imagegen.ErrPromptRequired) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if res.Failed {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.advice == nil {
		unavailable(w)
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := readJSON(r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "User ID is required")
		return
	}
	report, err := s.advice.HealthCheck(r.Context(), req.UserID)
	var lookup *advisor.UserLookupError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusInternalServerError, "User not found")
		return
	case errors.As(err, &lookup):
		s.log.ErrorContext(r.Context(), "error fetching user data", "user", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, lookup.Error())
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "subscription health check failed", "user", req.UserID, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to analyze subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
