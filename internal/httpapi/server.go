package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lawran/lawran-downloader/internal/events"
	"github.com/lawran/lawran-downloader/internal/job"
)

// Server wires the HTTP surface: the job API, the event stream and the
// completed-downloads file area.
type Server struct {
	manager     *job.Manager
	hub         *events.Hub
	downloadDir string
	log         zerolog.Logger
}

// NewServer creates the HTTP layer over a job manager.
func NewServer(manager *job.Manager, hub *events.Hub, downloadDir string, log zerolog.Logger) *Server {
	return &Server{
		manager:     manager,
		hub:         hub,
		downloadDir: downloadDir,
		log:         log,
	}
}

// Router builds the route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Route("/download", func(r chi.Router) {
			r.Post("/video", s.handleDownloadVideo)
			r.Post("/audio", s.handleDownloadAudio)
			r.Post("/4k", s.handleDownloadUHD)
		})
		r.Route("/playlist", func(r chi.Router) {
			r.Post("/info", s.handlePlaylistInfo)
			r.Post("/download", s.handlePlaylistDownload)
		})
		r.Get("/downloads/list", s.handleDownloadsList)
		r.Get("/jobs/{id}", s.handleJobStatus)
	})

	r.Get("/downloads/{file}", s.handleServeFile)

	return r
}

// requestLogger logs one line per request in the application's log format.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
