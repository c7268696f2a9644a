package queue

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"promptqueue/internal/domain"
)

// Store is the in-memory, insertion-ordered collection of jobs. It is the
// single source of truth for queue contents; every mutation runs inside one
// critical section so loop claims and control operations never interleave.
//
// Records are returned by value so readers can never observe a half-applied
// mutation.
type Store struct {
	mu   sync.Mutex
	jobs []*domain.Job
	byID map[string]*domain.Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*domain.Job)}
}

// Append creates one pending job per non-empty line of input, preserving the
// submission order, and returns the created records. Blank lines are skipped;
// input with no usable line yields domain.ErrEmptyPrompt and no records.
func (s *Store) Append(input, aspectRatio string) ([]domain.Job, error) {
	var prompts []string
	for _, line := range strings.Split(input, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			prompts = append(prompts, line)
		}
	}
	if len(prompts) == 0 {
		return nil, domain.ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	created := make([]domain.Job, 0, len(prompts))
	for _, prompt := range prompts {
		job := &domain.Job{
			ID:          uuid.NewString(),
			Prompt:      prompt,
			AspectRatio: aspectRatio,
			Status:      domain.JobStatusPending,
			CreatedAt:   now,
		}
		if _, exists := s.byID[job.ID]; exists {
			return nil, domain.ErrDuplicateID
		}
		s.jobs = append(s.jobs, job)
		s.byID[job.ID] = job
		created = append(created, *job)
	}
	return created, nil
}

// Find returns a copy of the job with the given id.
func (s *Store) Find(id string) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return domain.Job{}, false
	}
	return *job, true
}

// List returns a snapshot of all jobs in submission order.
func (s *Store) List() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, len(s.jobs))
	for i, job := range s.jobs {
		out[i] = *job
	}
	return out
}

// ClaimNextPending finds the earliest pending job, marks it processing, and
// returns a copy. The scan and the status flip happen in one critical
// section, so two concurrent claims can never take the same job.
func (s *Store) ClaimNextPending() (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusPending {
			job.Status = domain.JobStatusProcessing
			return *job, true
		}
	}
	return domain.Job{}, false
}

// MarkDone records a successful generation result.
func (s *Store) MarkDone(id, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusDone
	job.Result = result
	job.ErrorMessage = ""
	return nil
}

// MarkError records a failed generation attempt.
func (s *Store) MarkError(id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusError
	job.ErrorMessage = message
	job.Result = ""
	return nil
}

// Retry moves an errored job back to pending in place, so it re-enters the
// queue at its original position rather than at the tail.
func (s *Store) Retry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if job.Status != domain.JobStatusError {
		return domain.ErrNotRetryable
	}
	job.Status = domain.JobStatusPending
	job.ErrorMessage = ""
	return nil
}

// RetryAll applies Retry to every errored job and reports how many flipped.
func (s *Store) RetryAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusError {
			job.Status = domain.JobStatusPending
			job.ErrorMessage = ""
			n++
		}
	}
	return n
}

// EditPrompt replaces the prompt text of a job that has not been claimed yet
// (pending or error). The status is left untouched.
func (s *Store) EditPrompt(id, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.ErrEmptyPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !job.Editable() {
		return domain.ErrNotEditable
	}
	job.Prompt = prompt
	return nil
}

// RemoveWhere drops every job matching the predicate and reports how many
// were removed.
func (s *Store) RemoveWhere(pred func(domain.Job) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.jobs[:0]
	removed := 0
	for _, job := range s.jobs {
		if pred(*job) {
			delete(s.byID, job.ID)
			removed++
			continue
		}
		kept = append(kept, job)
	}
	s.jobs = kept
	return removed
}

// HasPending reports whether at least one job is still waiting to be claimed.
func (s *Store) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusPending {
			return true
		}
	}
	return false
}
