package events

import "github.com/lawran/lawran-downloader/internal/model"

// Event names on the wire. The web UI subscribes to these by name.
const (
	EventProgress       = "download_progress"
	EventTerminal       = "terminal_output"
	EventComplete       = "download_complete"
	EventError          = "download_error"
	EventPlaylistStatus = "playlist_status"
)

// Sink receives job lifecycle events. The job engine publishes through this
// interface only; it never knows what is listening.
type Sink interface {
	// Progress publishes a structured progress update.
	Progress(ev model.ProgressEvent)

	// Terminal publishes one free-text line for the live log view.
	Terminal(line string)

	// Complete signals a finished job with its final filename.
	Complete(filename string)

	// Error signals a failed job with its user-facing message.
	Error(message, filename string)

	// PlaylistStatus reports batch progress across playlist items.
	PlaylistStatus(message string, current, total int)
}

// TerminalPayload is the wire shape of a terminal_output event.
type TerminalPayload struct {
	Line string `json:"line"`
}

// CompletePayload is the wire shape of a download_complete event.
type CompletePayload struct {
	Filename string `json:"filename"`
}

// ErrorPayload is the wire shape of a download_error event.
type ErrorPayload struct {
	Error    string `json:"error"`
	Filename string `json:"filename,omitempty"`
}

// PlaylistStatusPayload is the wire shape of a playlist_status event.
type PlaylistStatusPayload struct {
	Message string `json:"message"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// NopSink discards every event. Useful in tests and as a safe default.
type NopSink struct{}

func (NopSink) Progress(model.ProgressEvent)    {}
func (NopSink) Terminal(string)                 {}
func (NopSink) Complete(string)                 {}
func (NopSink) Error(string, string)            {}
func (NopSink) PlaylistStatus(string, int, int) {}
