package model

// JobStatus represents where a job is in its lifecycle. A job moves strictly
// forward; Failed is reachable from every non-terminal status and is
// terminal, as is Complete. There is no paused or retrying state; a failed
// job is resubmitted as a brand-new job.
type JobStatus string

const (
	// JobPending means the job is accepted but not started
	JobPending JobStatus = "Pending"

	// JobResolving means stream metadata is being fetched
	JobResolving JobStatus = "Resolving"

	// JobSelectingStreams means the selection policy is running
	JobSelectingStreams JobStatus = "SelectingStreams"

	// JobTransferring means stream bytes are being downloaded
	JobTransferring JobStatus = "Transferring"

	// JobProcessing means the external media tool is running
	JobProcessing JobStatus = "Processing"

	// JobFinalizing means the result is being moved into place
	JobFinalizing JobStatus = "Finalizing"

	// JobComplete means the job finished successfully
	JobComplete JobStatus = "Complete"

	// JobFailed means the job failed; the failure is terminal
	JobFailed JobStatus = "Failed"
)

// String returns the string representation of JobStatus
func (js JobStatus) String() string {
	return string(js)
}

// IsTerminal returns true once the job can no longer change state.
func (js JobStatus) IsTerminal() bool {
	return js == JobComplete || js == JobFailed
}
