package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tagscout/internal/suggest"
	"tagscout/pkg/utils"
)

type SuggestRequest struct {
	Path   string   `json:"path"`
	Fields []string `json:"fields,omitempty"`
}

type ScanRequest struct {
	Folder string   `json:"folder"`
	Fields []string `json:"fields,omitempty"`
}

type JobResponse struct {
	ID          string       `json:"id"`
	Folder      string       `json:"folder"`
	Status      JobStatus    `json:"status"`
	Progress    int          `json:"progress"`
	Total       int          `json:"total"`
	Results     []FileResult `json:"results,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   string       `json:"created_at"`
	StartedAt   *string      `json:"started_at,omitempty"`
	CompletedAt *string      `json:"completed_at,omitempty"`
}

// handleSuggest runs a synchronous single-file inference.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	fields, err := s.resolveFields(req.Fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inferReq, err := s.store.BuildRequest(req.Path, fields)
	if err != nil {
		if errors.Is(err, suggest.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	suggestions, err := s.engine.Infer(r.Context(), inferReq)
	if err != nil {
		if errors.Is(err, suggest.ErrInvalidRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(FileResult{Path: req.Path, Suggestions: suggestions})
}

// handleScan starts an asynchronous whole-folder scan job.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Folder == "" {
		http.Error(w, "Folder is required", http.StatusBadRequest)
		return
	}

	fields, err := s.resolveFields(req.Fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobMgr.CreateJob(req.Folder)
	s.logger.Info("Created job %s for folder: %s", job.ID, req.Folder)

	go s.processJob(job, fields)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.jobToResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.jobToResponse(job)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path: /api/jobs/{id} or /api/jobs/{id}/cancel
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Handle GET /api/jobs/{id}
	if r.Method == http.MethodGet && len(parts) == 1 {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.jobToResponse(job))
		return
	}

	// Handle POST /api/jobs/{id}/cancel
	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "cancel" {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		if job.Cancel != nil {
			job.Cancel()
		}

		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusCancelled
		})

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
		return
	}

	http.Error(w, "Invalid request", http.StatusBadRequest)
}

// processJob scans every audio file in the job's folder. Cancelling the job
// stops promptly between files; an in-flight lookup still finishes in the
// background and lands in the cache.
func (s *Server) processJob(job *Job, fields []suggest.Field) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Cancel = cancel
		j.Status = StatusRunning
	})

	s.logger.Info("Starting job %s", job.ID)

	files, err := utils.ListAudioFiles(job.Folder)
	if err != nil {
		s.logger.Error("Failed to list folder: %v", err)
		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
		return
	}

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Total = len(files)
	})

	for _, file := range files {
		if ctx.Err() != nil {
			s.jobMgr.UpdateJob(job.ID, func(j *Job) {
				j.Status = StatusCancelled
			})
			return
		}

		result := FileResult{Path: file}
		inferReq, err := s.store.BuildRequest(file, fields)
		if err != nil {
			result.Error = err.Error()
		} else if suggestions, err := s.engine.Infer(ctx, inferReq); err != nil {
			if errors.Is(err, context.Canceled) {
				s.jobMgr.UpdateJob(job.ID, func(j *Job) {
					j.Status = StatusCancelled
				})
				return
			}
			result.Error = err.Error()
		} else {
			result.Suggestions = suggestions
		}

		s.jobMgr.UpdateJob(job.ID, func(j *Job) {
			j.Progress++
			j.Results = append(j.Results, result)
		})
	}

	s.jobMgr.UpdateJob(job.ID, func(j *Job) {
		j.Status = StatusCompleted
	})

	s.logger.Info("Job %s completed successfully", job.ID)
}

func (s *Server) resolveFields(names []string) ([]suggest.Field, error) {
	if len(names) == 0 {
		return s.config.SuggestFields(), nil
	}
	var fields []suggest.Field
	for _, name := range names {
		f, ok := suggest.ParseField(name)
		if !ok {
			return nil, errors.New("unknown field: " + name)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (s *Server) jobToResponse(job *Job) *JobResponse {
	resp := &JobResponse{
		ID:        job.ID,
		Folder:    job.Folder,
		Status:    job.Status,
		Progress:  job.Progress,
		Total:     job.Total,
		Results:   job.Results,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &completed
	}

	return resp
}
