package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HugoPaj/ai-chatbot-sub001/internal/document"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/fusion"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/jobs"
	"github.com/HugoPaj/ai-chatbot-sub001/internal/retrieval"
)

// uploadResponse is returned on successful job creation.
type uploadResponse struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Message  string `json:"message"`
}

// duplicateResponse explains a rejected re-upload.
type duplicateResponse struct {
	Error            string `json:"error"`
	ExistingFilename string `json:"existingFilename"`
}

// createJobRequest creates a job for a file already hosted elsewhere. The
// client supplies the content hash it computed at upload time.
type createJobRequest struct {
	Filename    string `json:"filename"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
	SourceURL   string `json:"sourceUrl"`
	ContentHash string `json:"contentHash"`
	UserID      string `json:"userId"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		s.handleCreateFromURL(w, r)
		return
	}

	if err := r.ParseMultipartForm(document.MaxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	fileType := header.Header.Get("Content-Type")
	if err := document.ValidateUpload(fileType, header.Size); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, document.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error())
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	contentHash := document.HashBytes(data)
	exists, existing, err := s.deduper.Check(r.Context(), contentHash)
	if err != nil {
		s.logger.Error("duplicate check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "duplicate check failed")
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, duplicateResponse{
			Error:            document.ErrDuplicateContent.Error(),
			ExistingFilename: existing,
		})
		return
	}

	ref, err := s.blobs.Put(r.Context(), header.Filename, data)
	if err != nil {
		s.logger.Error("failed to store upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	jobID, err := s.ledger.Create(r.Context(), jobs.Job{
		UserID:      r.FormValue("userId"),
		Filename:    header.Filename,
		FileSize:    header.Size,
		FileType:    fileType,
		ContentHash: contentHash,
		SourceURL:   ref,
	})
	if err != nil {
		s.logger.Error("failed to create job", "error", err)
		// No job will ever reference the blob; reclaim it.
		if delErr := s.blobs.Delete(r.Context(), ref); delErr != nil {
			s.logger.Warn("failed to delete orphaned blob", "ref", ref, "error", delErr)
		}
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	s.logger.Info("upload accepted", "job", jobID, "filename", header.Filename, "size", header.Size)
	writeJSON(w, http.StatusAccepted, uploadResponse{
		JobID:    jobID,
		Status:   string(jobs.StatusQueued),
		Filename: header.Filename,
		Message:  "Queued for processing",
	})
}

func (s *Server) handleCreateFromURL(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" || req.SourceURL == "" || req.ContentHash == "" {
		writeError(w, http.StatusBadRequest, "filename, sourceUrl, and contentHash are required")
		return
	}
	if err := document.ValidateUpload(req.FileType, req.FileSize); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, document.ErrFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error())
		return
	}

	exists, existing, err := s.deduper.Check(r.Context(), req.ContentHash)
	if err != nil {
		s.logger.Error("duplicate check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "duplicate check failed")
		return
	}
	if exists {
		writeJSON(w, http.StatusConflict, duplicateResponse{
			Error:            document.ErrDuplicateContent.Error(),
			ExistingFilename: existing,
		})
		return
	}

	jobID, err := s.ledger.Create(r.Context(), jobs.Job{
		UserID:      req.UserID,
		Filename:    req.Filename,
		FileSize:    req.FileSize,
		FileType:    req.FileType,
		ContentHash: req.ContentHash,
		SourceURL:   req.SourceURL,
	})
	if err != nil {
		s.logger.Error("failed to create job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	s.logger.Info("job created from url", "job", jobID, "filename", req.Filename)
	writeJSON(w, http.StatusAccepted, uploadResponse{
		JobID:    jobID,
		Status:   string(jobs.StatusQueued),
		Filename: req.Filename,
		Message:  "Queued for processing",
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.ledger.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type searchRequest struct {
	Query   string   `json:"query"`
	TopK    int      `json:"topK"`
	Method  string   `json:"method"`
	Weights *weights `json:"weights"`
}

type weights struct {
	BM25     float64 `json:"bm25"`
	Semantic float64 `json:"semantic"`
}

type searchResponse struct {
	Results []retrieval.Result `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	opts := retrieval.Options{TopK: req.TopK}
	switch req.Method {
	case "", string(fusion.MethodRRF):
		opts.Method = fusion.MethodRRF
	case string(fusion.MethodWeighted):
		opts.Method = fusion.MethodWeighted
		if req.Weights != nil {
			opts.Weights = &fusion.Weights{BM25: req.Weights.BM25, Semantic: req.Weights.Semantic}
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown fusion method %q", req.Method))
		return
	}

	results, err := s.searcher.Search(r.Context(), req.Query, opts)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "search unavailable")
		return
	}
	if results == nil {
		results = []retrieval.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results})
}

type listDocumentsResponse struct {
	Filenames []string `json:"filenames"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	filenames, err := s.documents.ListFilenames(r.Context())
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if filenames == nil {
		filenames = []string{}
	}
	writeJSON(w, http.StatusOK, listDocumentsResponse{Filenames: filenames})
}

type deleteResponse struct {
	Deleted  bool   `json:"deleted"`
	Filename string `json:"filename"`
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	// Best-effort blob cleanup before the chunks disappear; the vector store
	// delete is the authoritative step.
	refs, err := s.documents.ListBlobURLs(r.Context(), filename)
	if err != nil {
		s.logger.Warn("failed to list blobs for cleanup", "filename", filename, "error", err)
	}
	for _, ref := range refs {
		if err := s.blobs.Delete(r.Context(), ref); err != nil {
			s.logger.Warn("failed to delete blob", "ref", ref, "error", err)
		}
	}

	deleted, err := s.documents.DeleteByFilename(r.Context(), filename)
	if err != nil {
		s.logger.Error("failed to delete document", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	if err := s.searcher.Refresh(r.Context()); err != nil {
		s.logger.Warn("corpus refresh after delete failed", "error", err)
	}

	s.logger.Info("document deleted", "filename", filename)
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: true, Filename: filename})
}

type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	VectorStore string `json:"vectorStore"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", VectorStore: "ok"}
	status := http.StatusOK

	if err := s.dbPing.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := s.documents.Health(ctx); err != nil {
		resp.Status = "degraded"
		resp.VectorStore = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
