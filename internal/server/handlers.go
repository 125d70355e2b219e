package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/cv-optimizer/internal/pipeline"
	"github.com/jonathan/cv-optimizer/internal/types"
)

// maxJSONBodyBytes caps JSON request bodies.
const maxJSONBodyBytes = 1 << 20

// uploadField is the multipart field carrying the CV document.
const uploadField = "cv_file"

// PostingRequest is the body of POST /postings/extract.
type PostingRequest struct {
	URL string `json:"url" validate:"required"`
}

// KeywordsRequest is the body of POST /keywords.
type KeywordsRequest struct {
	JobDescription string `json:"job_description" validate:"required"`
}

// KeywordsResponse is returned by POST /keywords.
type KeywordsResponse struct {
	Success  bool            `json:"success"`
	Keywords json.RawMessage `json:"keywords"`
	// Failed is set when the reply could not be parsed and Keywords holds
	// the failure payload.
	Failed bool `json:"failed"`
}

// ProcessRequest is the body of POST /process.
type ProcessRequest struct {
	CVText         string          `json:"cv_text"`
	JobDescription string          `json:"job_description"`
	JobURL         string          `json:"job_url"`
	SelectedOption string          `json:"selected_option" validate:"required"`
	Roles          []string        `json:"roles"`
	JobTitle       string          `json:"job_title"`
	Industry       string          `json:"industry"`
	Keywords       json.RawMessage `json:"keywords"`
}

// ProcessResponse is returned by POST /process.
type ProcessResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Result    string `json:"result"`
	// JobDescription is null unless it was extracted from job_url.
	JobDescription *string `json:"job_description"`
	UsedKeywords   bool    `json:"used_keywords"`
	Seniority      string  `json:"seniority,omitempty"`
	Industry       string  `json:"industry,omitempty"`
}

// AnalyzeRequest is the JSON body of POST /analyze/stream. The multipart
// form uses the same field names plus cv_file.
type AnalyzeRequest struct {
	CVText         string `json:"cv_text"`
	JobURL         string `json:"job_url"`
	JobDescription string `json:"job_description"`
}

// AnalysisResponse is the payload of the final complete event.
type AnalysisResponse struct {
	Success        bool                    `json:"success"`
	RequestID      string                  `json:"request_id"`
	Document       *types.ExtractionResult `json:"document,omitempty"`
	CVText         string                  `json:"cv_text,omitempty"`
	Posting        *types.PagePosting      `json:"posting,omitempty"`
	JobDescription string                  `json:"job_description,omitempty"`
	Keywords       json.RawMessage         `json:"keywords,omitempty"`
	KeywordsFailed bool                    `json:"keywords_failed"`
}

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("read request body: %w", err)
		}
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return s.validateStruct(dst)
}

func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &ErrValidation{Field: verrs[0].Field(), Message: "failed on the '" + verrs[0].Tag() + "' rule"}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}

// readUpload reads the cv_file field of a multipart form. A missing file is
// reported only when required is set; otherwise nil data is returned.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, required bool) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return nil, &ErrValidation{Field: uploadField, Message: "invalid multipart form: " + err.Error()}
	}

	file, header, err := r.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return nil, &ErrValidation{Field: uploadField, Message: "no file uploaded"}
		}
		return nil, nil
	}
	if err != nil {
		return nil, &ErrValidation{Field: uploadField, Message: err.Error()}
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		return nil, &ErrValidation{Field: uploadField, Message: "only PDF files are accepted"}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, &ErrValidation{Field: uploadField, Message: "uploaded file is empty"}
	}
	return data, nil
}

// handleExtractDocument extracts the text of an uploaded PDF.
func (s *Server) handleExtractDocument(w http.ResponseWriter, r *http.Request) {
	data, err := s.readUpload(w, r, true)
	if err != nil {
		s.failWith(w, r, err)
		return
	}

	result, err := s.svc.ExtractDocument(r.Context(), data)
	if err != nil {
		s.failWith(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, result)
}

// handleExtractPosting extracts a job posting from a URL.
func (s *Server) handleExtractPosting(w http.ResponseWriter, r *http.Request) {
	var req PostingRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.failWith(w, r, err)
		return
	}

	posting, err := s.svc.ExtractPosting(r.Context(), strings.TrimSpace(req.URL))
	if err != nil {
		s.failWith(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, posting)
}

// handleKeywords extracts weighted keywords from a job description.
func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	var req KeywordsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.failWith(w, r, err)
		return
	}

	set, err := s.svc.ExtractKeywords(r.Context(), req.JobDescription)
	if err != nil {
		s.failWith(w, r, err)
		return
	}

	encoded, err := set.Encode(s.svc.Wire())
	if err != nil {
		s.failWith(w, r, fmt.Errorf("encode keywords: %w", err))
		return
	}

	s.jsonResponse(w, http.StatusOK, KeywordsResponse{
		Success:  true,
		Keywords: encoded,
		Failed:   set.IsFailure(),
	})
}

// handleProcess runs one generation task.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.failWith(w, r, err)
		return
	}

	taskReq := pipeline.TaskRequest{
		Task:           req.SelectedOption,
		CVText:         req.CVText,
		JobDescription: req.JobDescription,
		JobURL:         req.JobURL,
		Roles:          req.Roles,
		JobTitle:       req.JobTitle,
		Industry:       req.Industry,
	}

	if raw := strings.TrimSpace(string(req.Keywords)); raw != "" && raw != "null" {
		set, err := s.parser.ParseStrict(raw)
		if err != nil {
			s.failWith(w, r, &ErrValidation{Field: "keywords", Message: err.Error()})
			return
		}
		taskReq.Keywords = &set
	}

	result, err := s.svc.RunTask(r.Context(), taskReq)
	if err != nil {
		s.failWith(w, r, err)
		return
	}

	resp := ProcessResponse{
		Success:      true,
		RequestID:    result.RequestID,
		Result:       result.Text,
		UsedKeywords: result.UsedKeywords,
		Seniority:    result.Seniority,
		Industry:     result.Industry,
	}
	if result.ExtractedJobDescription != "" {
		resp.JobDescription = &result.ExtractedJobDescription
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

// parseAnalyzeRequest accepts either a JSON body or a multipart form with an
// optional cv_file.
func (s *Server) parseAnalyzeRequest(w http.ResponseWriter, r *http.Request) (pipeline.AnalyzeRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req AnalyzeRequest
		if err := s.decodeJSON(w, r, &req); err != nil {
			return pipeline.AnalyzeRequest{}, err
		}
		return pipeline.AnalyzeRequest{
			CVText:         req.CVText,
			JobURL:         strings.TrimSpace(req.JobURL),
			JobDescription: req.JobDescription,
		}, nil
	}

	data, err := s.readUpload(w, r, false)
	if err != nil {
		return pipeline.AnalyzeRequest{}, err
	}
	return pipeline.AnalyzeRequest{
		Document:       data,
		CVText:         r.FormValue("cv_text"),
		JobURL:         strings.TrimSpace(r.FormValue("job_url")),
		JobDescription: r.FormValue("job_description"),
	}, nil
}

// handleAnalyzeStream runs the analysis and streams progress via SSE
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseAnalyzeRequest(w, r)
	if err != nil {
		s.failWith(w, r, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	req.OnProgress = func(event pipeline.ProgressEvent) {
		if err := sse.WriteEvent(EventStep, event); err != nil {
			s.logger.Debug("client went away during stream", zap.Error(err))
		}
	}

	analysis, err := s.svc.Analyze(r.Context(), req)
	if err != nil {
		s.logger.Warn("analysis failed", zap.Error(err))
		sse.WriteError(HTTPStatus(err), publicMessage(err))
		return
	}

	resp := AnalysisResponse{
		Success:        true,
		RequestID:      analysis.RequestID,
		Document:       analysis.Document,
		CVText:         analysis.CVText,
		Posting:        analysis.Posting,
		JobDescription: analysis.JobDescription,
	}
	if analysis.Keywords != nil {
		encoded, err := analysis.Keywords.Encode(s.svc.Wire())
		if err != nil {
			sse.WriteError(http.StatusInternalServerError, "failed to encode keywords")
			return
		}
		resp.Keywords = encoded
		resp.KeywordsFailed = analysis.Keywords.IsFailure()
	}

	sse.WriteComplete(resp)
}
