package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"promptqueue/internal/domain"
	"promptqueue/internal/providers/image"
)

// DefaultInterJobDelay throttles how quickly consecutive jobs hit the
// external provider. It is a deliberate backoff between jobs, not a timeout.
const DefaultInterJobDelay = 2 * time.Second

// ArtifactLister reports stored artifacts, oldest first. The processor only
// consults it for best-effort result reconciliation when the provider
// response carried no usable reference.
type ArtifactLister interface {
	List(ctx context.Context) ([]domain.Artifact, error)
}

// Processor is the single-worker engine that drains the job store: claim the
// earliest pending job, run it through the generator, write the outcome back,
// wait the inter-job delay, repeat. At most one generation call is ever in
// flight, and pause/stop gate the next claim without cancelling the current
// call.
type Processor struct {
	store  *Store
	gen    image.Generator
	lister ArtifactLister
	logger zerolog.Logger
	delay  time.Duration

	mu      sync.Mutex
	running bool
	paused  bool
	// loopActive tracks goroutine liveness separately from running: after a
	// pause or stop the loop stays alive until its in-flight job resolves,
	// and Start must not spawn a second one in that window.
	loopActive bool
}

// Option customizes processor construction.
type Option func(*Processor)

// WithInterJobDelay overrides the delay applied after each processed job.
func WithInterJobDelay(d time.Duration) Option {
	return func(p *Processor) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithArtifactLister enables best-effort result reconciliation.
func WithArtifactLister(l ArtifactLister) Option {
	return func(p *Processor) { p.lister = l }
}

// NewProcessor wires a processor to its store and generator. The loop is not
// started; a process always comes up stopped.
func NewProcessor(store *Store, gen image.Generator, logger zerolog.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:  store,
		gen:    gen,
		logger: logger,
		delay:  DefaultInterJobDelay,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Submit appends one pending job per non-empty line of input and ensures the
// loop is running. Empty input is accepted as a plain resume when jobs are
// still waiting; otherwise it is rejected before any job is created.
func (p *Processor) Submit(input, aspectRatio string) ([]domain.Job, error) {
	jobs, err := p.store.Append(input, aspectRatio)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPrompt) && p.store.HasPending() {
			p.Start()
			return nil, nil
		}
		return nil, err
	}
	p.Start()
	return jobs, nil
}

// Start marks the queue running and reports whether a new loop goroutine was
// launched. When a previous loop is still finishing its in-flight job after a
// pause or stop, no goroutine is spawned; the surviving loop picks the work
// back up on its next claim check, so two generation calls can never be in
// flight at once.
func (p *Processor) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	p.paused = false
	if p.loopActive {
		return false
	}
	p.loopActive = true
	go p.loop()
	return true
}

// Pause stops the loop from claiming the next job. The in-flight generation
// call, if any, is left to finish and its outcome is still written back.
func (p *Processor) Pause() {
	p.mu.Lock()
	p.paused = true
	p.running = false
	p.mu.Unlock()
	p.logger.Info().Msg("queue: paused")
}

// Stop halts the loop like Pause but clears the paused flag, so a later
// Start is an unambiguous fresh start. In-flight work is not cancelled.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.paused = false
	p.running = false
	p.mu.Unlock()
	p.logger.Info().Msg("queue: stopped")
}

// Retry returns one errored job to pending and starts the loop if idle.
func (p *Processor) Retry(id string) error {
	if err := p.store.Retry(id); err != nil {
		return err
	}
	p.Start()
	return nil
}

// RetryAll returns every errored job to pending and starts the loop if any
// job flipped.
func (p *Processor) RetryAll() int {
	n := p.store.RetryAll()
	if n > 0 {
		p.Start()
	}
	return n
}

// EditPrompt rewrites the prompt of a job that has not been claimed yet.
func (p *Processor) EditPrompt(id, prompt string) error {
	return p.store.EditPrompt(id, prompt)
}

// Jobs returns a snapshot of the queue in submission order.
func (p *Processor) Jobs() []domain.Job {
	return p.store.List()
}

// State returns the current run state.
func (p *Processor) State() domain.RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.RunState{Running: p.running, Paused: p.paused}
}

// loop drains the store one job at a time. Exit decisions and the liveness
// flag are flipped inside one critical section so a concurrent Start either
// sees the loop still alive and reuses it, or sees it gone and spawns afresh.
func (p *Processor) loop() {
	for {
		p.mu.Lock()
		if !p.running || p.paused {
			p.loopActive = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		job, ok := p.store.ClaimNextPending()
		if !ok {
			p.mu.Lock()
			if p.store.HasPending() {
				// a submission landed between the failed claim and here
				p.mu.Unlock()
				continue
			}
			p.running = false
			p.loopActive = false
			p.mu.Unlock()
			p.logger.Info().Msg("queue: drained")
			return
		}
		p.runJob(job)
		time.Sleep(p.delay)
	}
}

// runJob drives one claimed job to done or error. The generation call runs
// under a background context on purpose: pause and stop gate the next claim
// but never abort work already handed to the provider.
func (p *Processor) runJob(job domain.Job) {
	p.logger.Info().Str("job_id", job.ID).Msg("queue: processing job")
	asset, err := p.gen.Generate(context.Background(), image.GenerateRequest{
		Prompt:      job.Prompt,
		AspectRatio: image.NormalizeAspectRatio(job.AspectRatio),
		RequestID:   job.ID,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: generation failed")
		if markErr := p.store.MarkError(job.ID, err.Error()); markErr != nil {
			p.logger.Error().Err(markErr).Str("job_id", job.ID).Msg("queue: write-back failed")
		}
		return
	}

	ref := asset.URL
	if ref == "" {
		ref = p.reconcileResult()
	}
	if err := p.store.MarkDone(job.ID, ref); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.ID).Msg("queue: write-back failed")
		return
	}
	p.logger.Info().Str("job_id", job.ID).Str("result", ref).Msg("queue: job done")
}

// reconcileResult asks the artifact store for the most recently produced
// artifact and assumes it belongs to the job that just finished. Advisory
// only: any failure leaves the job done with an unknown reference.
func (p *Processor) reconcileResult() string {
	if p.lister == nil {
		return domain.ResultUnknown
	}
	artifacts, err := p.lister.List(context.Background())
	if err != nil || len(artifacts) == 0 {
		if err != nil {
			p.logger.Warn().Err(err).Msg("queue: result reconciliation failed")
		}
		return domain.ResultUnknown
	}
	latest := artifacts[0]
	for _, a := range artifacts[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest.Ref == "" {
		return domain.ResultUnknown
	}
	return latest.Ref
}
