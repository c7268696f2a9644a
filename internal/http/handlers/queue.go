package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"promptqueue/internal/domain"
	"promptqueue/internal/providers/image"
	"promptqueue/internal/providers/prompt"
)

type enqueueRequest struct {
	Input       string `json:"input"`
	AspectRatio string `json:"aspect_ratio"`
}

type editRequest struct {
	Prompt string `json:"prompt"`
}

type jobView struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"prompt"`
	Title       string    `json:"title"`
	AspectRatio string    `json:"aspect_ratio"`
	Status      string    `json:"status"`
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewJob(j domain.Job) jobView {
	return jobView{
		ID:          j.ID,
		Prompt:      j.Prompt,
		Title:       prompt.Title(j.Prompt),
		AspectRatio: j.AspectRatio,
		Status:      string(j.Status),
		Result:      j.Result,
		Error:       j.ErrorMessage,
		CreatedAt:   j.CreatedAt,
	}
}

func (a *App) queueState() map[string]any {
	state := a.Processor.State()
	jobs := a.Processor.Jobs()
	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = viewJob(j)
	}
	return map[string]any{
		"jobs":    views,
		"running": state.Running,
		"paused":  state.Paused,
	}
}

// Enqueue splits the submitted text into prompts, queues one job per line,
// and starts the processor if it is idle. Empty input while jobs are still
// pending acts as a plain resume.
func (a *App) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	lines := strings.Split(req.Input, "\n")
	for i := range lines {
		lines[i] = prompt.Polish(lines[i])
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = a.DefaultAspectRatio
	}
	jobs, err := a.Processor.Submit(strings.Join(lines, "\n"), string(image.NormalizeAspectRatio(aspect)))
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPrompt) {
			a.error(w, http.StatusBadRequest, "validation_error", "no usable prompt line in input")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue prompts")
		return
	}
	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = viewJob(j)
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"created": views,
		"running": a.Processor.State().Running,
	})
}

// ListQueue returns the ordered job list together with the run state.
func (a *App) ListQueue(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.queueState())
}

// PauseQueue halts intake after the current job resolves.
func (a *App) PauseQueue(w http.ResponseWriter, r *http.Request) {
	a.Processor.Pause()
	a.json(w, http.StatusOK, a.queueState())
}

// StopQueue halts intake and clears the paused flag.
func (a *App) StopQueue(w http.ResponseWriter, r *http.Request) {
	a.Processor.Stop()
	a.json(w, http.StatusOK, a.queueState())
}

// RetryJob returns one errored job to pending and starts the processor if idle.
func (a *App) RetryJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Processor.Retry(id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrNotRetryable):
			a.error(w, http.StatusConflict, "not_retryable", "job is not in error state")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "retry failed")
		}
		return
	}
	a.json(w, http.StatusOK, a.queueState())
}

// RetryAll returns every errored job to pending.
func (a *App) RetryAll(w http.ResponseWriter, r *http.Request) {
	retried := a.Processor.RetryAll()
	state := a.queueState()
	state["retried"] = retried
	a.json(w, http.StatusOK, state)
}

// EditJob rewrites the prompt of a job that has not been claimed yet.
func (a *App) EditJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.Processor.EditPrompt(id, prompt.Polish(req.Prompt)); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.error(w, http.StatusNotFound, "not_found", "job not found")
		case errors.Is(err, domain.ErrEmptyPrompt):
			a.error(w, http.StatusBadRequest, "validation_error", "prompt must not be empty")
		case errors.Is(err, domain.ErrNotEditable):
			a.error(w, http.StatusConflict, "not_editable", "job has already been claimed")
		default:
			a.error(w, http.StatusInternalServerError, "internal", "edit failed")
		}
		return
	}
	job, _ := a.JobStore.Find(id)
	a.json(w, http.StatusOK, viewJob(job))
}
