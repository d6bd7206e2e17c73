package model

// ProgressStatus is the phase reported inside a ProgressEvent.
type ProgressStatus string

const (
	// StatusStarting is emitted once when a job begins
	StatusStarting ProgressStatus = "starting"

	// StatusDownloading is emitted while stream bytes arrive
	StatusDownloading ProgressStatus = "downloading"

	// StatusConverting is emitted while audio is being transcoded
	StatusConverting ProgressStatus = "converting"

	// StatusMerging is emitted while video and audio are being merged
	StatusMerging ProgressStatus = "merging"

	// StatusComplete is the terminal success phase
	StatusComplete ProgressStatus = "complete"

	// StatusError is the terminal failure phase
	StatusError ProgressStatus = "error"
)

// ProgressEvent is the structured payload published to the UI while a job
// runs. Emission is rate-limited to one event per 250ms per job, except for
// phase transitions, which are always emitted.
type ProgressEvent struct {
	Percent         float64        `json:"percent"`
	Indeterminate   bool           `json:"indeterminate"`
	DownloadedHuman string         `json:"downloaded"`
	TotalHuman      string         `json:"total"`
	SpeedHuman      string         `json:"speed"`
	ETAHuman        string         `json:"eta"`
	Status          ProgressStatus `json:"status"`
	Filename        string         `json:"filename"`
	Active          bool           `json:"active"`
}
