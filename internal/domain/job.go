package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"

	// JobStatusPaused is reserved for marking individual jobs as paused.
	// No transition enters it today; pausing is a property of the run
	// state, not of a single job.
	JobStatusPaused JobStatus = "paused"
)

// ResultUnknown marks a finished job whose artifact reference could not be
// resolved, neither from the provider response nor via reconciliation.
const ResultUnknown = "unknown"

// Job encapsulates the lifecycle of one prompt submitted for image generation.
type Job struct {
	ID           string
	Prompt       string
	AspectRatio  string
	Status       JobStatus
	Result       string
	ErrorMessage string
	CreatedAt    time.Time
}

// Editable reports whether the prompt may still be rewritten. Once a job is
// claimed by the processor the prompt is frozen.
func (j *Job) Editable() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusError
}

// RunState mirrors the processor's loop gating flags for the presentation
// layer. It has no persistence; a restarted process always reports both false.
type RunState struct {
	Running bool
	Paused  bool
}

// Artifact describes one stored image, as reported by the artifact store.
type Artifact struct {
	Ref       string
	Size      int64
	CreatedAt time.Time
}
