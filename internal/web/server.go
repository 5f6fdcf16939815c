package web

import (
	"net/http"

	"tagscout/internal/config"
	"tagscout/internal/library"
	"tagscout/internal/logger"
	"tagscout/internal/suggest"
)

type Server struct {
	jobMgr *JobManager
	engine *suggest.Engine
	store  *library.Store
	config config.Config
	logger *logger.Logger
}

func NewServer(jobMgr *JobManager, engine *suggest.Engine, store *library.Store, cfg config.Config, log *logger.Logger) *Server {
	return &Server{
		jobMgr: jobMgr,
		engine: engine,
		store:  store,
		config: cfg,
		logger: log,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("/", http.FileServer(http.Dir("web/static")))

	// API endpoints
	mux.HandleFunc("/api/suggest", s.handleSuggest)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobAction)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
