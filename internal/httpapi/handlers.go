package httpapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lawran/lawran-downloader/internal/catalog"
	"github.com/lawran/lawran-downloader/internal/job"
	"github.com/lawran/lawran-downloader/internal/library"
	"github.com/lawran/lawran-downloader/internal/model"
	"github.com/lawran/lawran-downloader/internal/platform"
)

// Request and response shapes of the job API.
type downloadRequest struct {
	URL     string `json:"url"`
	Quality int    `json:"quality"`
	Format  string `json:"format"`
}

type playlistDownloadRequest struct {
	URL       string `json:"url"`
	NumVideos int    `json:"num_videos"`
	Quality   int    `json:"quality"`
	Format    string `json:"format"`
}

type startedResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

type playlistInfoResponse struct {
	Title string             `json:"title"`
	Count int                `json:"count"`
	Items []playlistInfoItem `json:"items"`
}

type playlistInfoItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type jobStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	File   string `json:"file,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"active": s.manager.ActiveCount(),
		"peers":  s.hub.ClientCount(),
	})
}

func (s *Server) handleDownloadVideo(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDownload(w, r)
	if !ok {
		return
	}
	quality := req.Quality
	if quality == 0 {
		quality = catalog.StandardLadder[0]
	}
	id := s.manager.Submit(model.JobSpec{
		URL:       req.URL,
		Kind:      model.JobKindVideo,
		Quality:   quality,
		Format:    model.FormatMP4,
		OutputDir: s.downloadDir,
	})
	writeJSON(w, http.StatusAccepted, startedResponse{Status: "started", JobID: id})
}

func (s *Server) handleDownloadAudio(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDownload(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(req.Format)
	if format == "" {
		format = model.FormatMP3
	}
	if format != model.FormatMP3 && format != model.FormatM4A {
		writeError(w, http.StatusBadRequest, "format must be mp3 or m4a")
		return
	}
	id := s.manager.Submit(model.JobSpec{
		URL:       req.URL,
		Kind:      model.JobKindAudio,
		Format:    format,
		OutputDir: s.downloadDir,
	})
	writeJSON(w, http.StatusAccepted, startedResponse{Status: "started", JobID: id})
}

func (s *Server) handleDownloadUHD(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDownload(w, r)
	if !ok {
		return
	}
	id := s.manager.Submit(model.JobSpec{
		URL:       req.URL,
		Kind:      model.JobKindUHD,
		Quality:   catalog.UHDMinHeight,
		Format:    model.FormatMP4,
		OutputDir: s.downloadDir,
	})
	writeJSON(w, http.StatusAccepted, startedResponse{Status: "started", JobID: id})
}

func (s *Server) handlePlaylistInfo(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDownload(w, r)
	if !ok {
		return
	}
	pl, err := s.manager.PlaylistInfo(r.Context(), req.URL)
	if err != nil {
		s.log.Warn().Err(err).Str("url", req.URL).Msg("playlist info failed")
		writeError(w, http.StatusBadGateway, job.UserMessage(err))
		return
	}
	resp := playlistInfoResponse{
		Title: pl.Title,
		Count: len(pl.Items),
		Items: make([]playlistInfoItem, len(pl.Items)),
	}
	for i, item := range pl.Items {
		resp.Items[i] = playlistInfoItem{Title: item.Title, URL: item.URL}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlaylistDownload(w http.ResponseWriter, r *http.Request) {
	var req playlistDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "a url is required")
		return
	}
	quality := req.Quality
	if quality == 0 {
		quality = catalog.StandardLadder[0]
	}
	format := strings.ToLower(req.Format)
	if format == "" {
		format = model.FormatMP4
	}
	if format != model.FormatMP4 && format != model.FormatMP3 && format != model.FormatM4A {
		writeError(w, http.StatusBadRequest, "format must be mp4, mp3 or m4a")
		return
	}
	id := s.manager.SubmitPlaylist(req.URL, req.NumVideos, quality, format, s.downloadDir)
	writeJSON(w, http.StatusAccepted, startedResponse{Status: "started", JobID: id})
}

func (s *Server) handleDownloadsList(w http.ResponseWriter, r *http.Request) {
	entries, err := library.List(s.downloadDir)
	if err != nil {
		s.log.Error().Err(err).Msg("listing downloads failed")
		writeError(w, http.StatusInternalServerError, "could not list downloads")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	j, ok := s.manager.Job(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	resp := jobStatusResponse{ID: j.ID, Status: j.Status.String(), Error: j.Error}
	if j.Artifact != nil {
		resp.File = filepath.Base(j.Artifact.Path)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleServeFile serves one completed download. The name is sanitized the
// same way filenames are written, so a traversal attempt never resolves to
// anything outside the downloads directory.
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	name := platform.SanitizeFilename(chi.URLParam(r, "file"))
	if name == "" || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	path := filepath.Join(s.downloadDir, name)
	if filepath.Dir(path) != filepath.Clean(s.downloadDir) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) decodeDownload(w http.ResponseWriter, r *http.Request) (downloadRequest, bool) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "a url is required")
		return downloadRequest{}, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
