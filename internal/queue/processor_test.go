package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"promptqueue/internal/domain"
	"promptqueue/internal/providers/image"
)

// fakeGenerator scripts provider behavior per prompt and records call order.
// When block is set, Generate signals started and waits for a release before
// returning, which lets tests observe the in-flight window.
type fakeGenerator struct {
	mu       sync.Mutex
	failWith map[string]string
	urls     map[string]string
	calls    []string
	inFlight int
	maxSeen  int

	block   bool
	started chan string
	release chan struct{}
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		failWith: make(map[string]string),
		urls:     make(map[string]string),
		started:  make(chan string, 16),
		release:  make(chan struct{}),
	}
}

func (g *fakeGenerator) Generate(_ context.Context, req image.GenerateRequest) (image.Asset, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req.Prompt)
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	block := g.block
	message, shouldFail := g.failWith[req.Prompt]
	url := g.urls[req.Prompt]
	g.mu.Unlock()

	if block {
		g.started <- req.Prompt
		<-g.release
	}

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()

	if shouldFail {
		return image.Asset{}, &image.GenerationError{Message: message}
	}
	return image.Asset{URL: url}, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGenerator) clearFailures() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = make(map[string]string)
}

type fakeLister struct {
	artifacts []domain.Artifact
	err       error
}

func (l *fakeLister) List(context.Context) ([]domain.Artifact, error) {
	return l.artifacts, l.err
}

func newTestProcessor(t *testing.T, gen image.Generator, opts ...Option) (*Processor, *Store) {
	t.Helper()
	store := NewStore()
	opts = append([]Option{WithInterJobDelay(time.Millisecond)}, opts...)
	return NewProcessor(store, gen, zerolog.Nop(), opts...), store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForDrain(t *testing.T, p *Processor) {
	t.Helper()
	waitFor(t, "queue drain", func() bool {
		if p.State().Running {
			return false
		}
		for _, j := range p.Jobs() {
			if j.Status == domain.JobStatusPending || j.Status == domain.JobStatusProcessing {
				return false
			}
		}
		return true
	})
}

func TestScenarioCatDogRetry(t *testing.T) {
	gen := newFakeGenerator()
	gen.urls["a cat"] = "images/cat.png"
	gen.failWith["a dog"] = "rate limited"
	p, _ := newTestProcessor(t, gen)

	jobs, err := p.Submit("a cat\na dog", "LANDSCAPE")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	waitForDrain(t, p)

	got := p.Jobs()
	if got[0].Status != domain.JobStatusDone || got[0].Result != "images/cat.png" {
		t.Fatalf("first job = %+v, want done with result", got[0])
	}
	if got[1].Status != domain.JobStatusError || got[1].ErrorMessage != "rate limited" {
		t.Fatalf("second job = %+v, want error %q", got[1], "rate limited")
	}

	gen.clearFailures()
	gen.mu.Lock()
	gen.urls["a dog"] = "images/dog.png"
	gen.mu.Unlock()
	if err := p.Retry(got[1].ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	waitForDrain(t, p)

	for _, j := range p.Jobs() {
		if j.Status != domain.JobStatusDone {
			t.Fatalf("job %q = %s, want done", j.Prompt, j.Status)
		}
	}
}

func TestJobsRunInSubmissionOrder(t *testing.T) {
	gen := newFakeGenerator()
	p, _ := newTestProcessor(t, gen)

	if _, err := p.Submit("one\ntwo\nthree\nfour", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForDrain(t, p)

	want := []string{"one", "two", "three", "four"}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	if strings.Join(gen.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("call order = %v, want %v", gen.calls, want)
	}
}

func TestAtMostOneGenerationInFlight(t *testing.T) {
	gen := newFakeGenerator()
	p, _ := newTestProcessor(t, gen, WithInterJobDelay(0))

	if _, err := p.Submit("a\nb\nc\nd\ne\nf", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Poke the control surface while the loop runs.
	p.Start()
	p.Start()
	waitForDrain(t, p)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	if gen.maxSeen != 1 {
		t.Fatalf("max concurrent generations = %d, want 1", gen.maxSeen)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = true
	p, _ := newTestProcessor(t, gen)

	if _, err := p.Submit("only", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if p.Start() {
		t.Fatalf("second Start launched another loop")
	}
	<-gen.started
	if p.Start() {
		t.Fatalf("Start during in-flight job launched another loop")
	}
	close(gen.release)
	waitForDrain(t, p)

	if n := gen.callCount(); n != 1 {
		t.Fatalf("job generated %d times, want once", n)
	}
}

func TestPauseLetsInFlightJobFinish(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = true
	gen.urls["first"] = "images/first.png"
	p, _ := newTestProcessor(t, gen)

	if _, err := p.Submit("first\nsecond", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-gen.started
	p.Pause()
	close(gen.release)

	waitFor(t, "in-flight job completion", func() bool {
		jobs := p.Jobs()
		return jobs[0].Status == domain.JobStatusDone
	})

	jobs := p.Jobs()
	if jobs[0].Result != "images/first.png" {
		t.Fatalf("first job result = %q", jobs[0].Result)
	}
	if jobs[1].Status != domain.JobStatusPending {
		t.Fatalf("second job = %s, want pending after pause", jobs[1].Status)
	}
	state := p.State()
	if state.Running || !state.Paused {
		t.Fatalf("state = %+v, want stopped and paused", state)
	}
	if n := gen.callCount(); n != 1 {
		t.Fatalf("generator called %d times, want 1", n)
	}
}

func TestStopDoesNotAbortInFlightWork(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = true
	gen.urls["slow"] = "images/slow.png"
	p, _ := newTestProcessor(t, gen)

	if _, err := p.Submit("slow", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-gen.started
	p.Stop()
	state := p.State()
	if state.Running || state.Paused {
		t.Fatalf("state after stop = %+v, want both flags clear", state)
	}

	close(gen.release)
	waitFor(t, "write-back after stop", func() bool {
		jobs := p.Jobs()
		return jobs[0].Status == domain.JobStatusDone && jobs[0].Result == "images/slow.png"
	})
}

func TestStartDuringInFlightJobKeepsSingleLoop(t *testing.T) {
	cases := []struct {
		name string
		halt func(p *Processor)
	}{
		{"after pause", func(p *Processor) { p.Pause() }},
		{"after stop", func(p *Processor) { p.Stop() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := newFakeGenerator()
			gen.block = true
			p, _ := newTestProcessor(t, gen)

			if _, err := p.Submit("first\nsecond", ""); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			<-gen.started
			tc.halt(p)
			p.Start()

			if state := p.State(); !state.Running || state.Paused {
				t.Fatalf("state after restart = %+v, want running", state)
			}
			// The first generation call is still blocked; the second job must
			// wait for the surviving loop rather than get claimed by a new one.
			select {
			case prompt := <-gen.started:
				t.Fatalf("generation %q started while the first was still in flight", prompt)
			case <-time.After(20 * time.Millisecond):
			}
			if jobs := p.Jobs(); jobs[1].Status != domain.JobStatusPending {
				t.Fatalf("second job = %s while first in flight, want pending", jobs[1].Status)
			}

			close(gen.release)
			waitForDrain(t, p)

			gen.mu.Lock()
			defer gen.mu.Unlock()
			if gen.maxSeen != 1 {
				t.Fatalf("max concurrent generations = %d, want 1", gen.maxSeen)
			}
			if strings.Join(gen.calls, ",") != "first,second" {
				t.Fatalf("call order = %v, want first then second", gen.calls)
			}
		})
	}
}

func TestDrainStopsTheLoop(t *testing.T) {
	gen := newFakeGenerator()
	p, _ := newTestProcessor(t, gen)

	if _, err := p.Submit("single", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForDrain(t, p)

	if state := p.State(); state.Running {
		t.Fatalf("loop should stop itself when the queue drains")
	}
	// Nothing pending: a fresh Start must drain again without touching the
	// generator.
	before := gen.callCount()
	p.Start()
	waitForDrain(t, p)
	if gen.callCount() != before {
		t.Fatalf("drained queue still reached the generator")
	}
}

func TestSubmitEmptyInputResumesPendingWork(t *testing.T) {
	gen := newFakeGenerator()
	p, store := newTestProcessor(t, gen)

	if _, err := store.Append("queued earlier", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}
	jobs, err := p.Submit("   \n", "")
	if err != nil {
		t.Fatalf("Submit with pending work should resume, got %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("resume created %d jobs, want 0", len(jobs))
	}
	waitForDrain(t, p)
	if got := p.Jobs()[0]; got.Status != domain.JobStatusDone {
		t.Fatalf("pending job = %s, want done", got.Status)
	}
}

func TestSubmitEmptyInputWithNothingQueued(t *testing.T) {
	gen := newFakeGenerator()
	p, _ := newTestProcessor(t, gen)

	if _, err := p.Submit("", ""); !errors.Is(err, domain.ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if p.State().Running {
		t.Fatalf("rejected submission must not start the loop")
	}
}

func TestRetryAllRestartsIdleProcessor(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith["a"] = "boom"
	gen.failWith["b"] = "boom"
	p, _ := newTestProcessor(t, gen)

	if _, err := p.Submit("a\nb", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForDrain(t, p)

	gen.clearFailures()
	if n := p.RetryAll(); n != 2 {
		t.Fatalf("RetryAll = %d, want 2", n)
	}
	waitForDrain(t, p)
	for _, j := range p.Jobs() {
		if j.Status != domain.JobStatusDone {
			t.Fatalf("job %q = %s, want done", j.Prompt, j.Status)
		}
	}
}

func TestReconciliationAttachesLatestArtifact(t *testing.T) {
	gen := newFakeGenerator() // returns empty URLs by default
	now := time.Now()
	lister := &fakeLister{artifacts: []domain.Artifact{
		{Ref: "images/old.png", CreatedAt: now.Add(-time.Hour)},
		{Ref: "images/new.png", CreatedAt: now},
	}}
	p, _ := newTestProcessor(t, gen, WithArtifactLister(lister))

	if _, err := p.Submit("prompt", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForDrain(t, p)

	job := p.Jobs()[0]
	if job.Status != domain.JobStatusDone || job.Result != "images/new.png" {
		t.Fatalf("job = %+v, want done with the newest artifact attached", job)
	}
}

func TestReconciliationFailureNeverFailsTheJob(t *testing.T) {
	gen := newFakeGenerator()
	lister := &fakeLister{err: errors.New("listing unavailable")}
	p, _ := newTestProcessor(t, gen, WithArtifactLister(lister))

	if _, err := p.Submit("prompt", ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForDrain(t, p)

	job := p.Jobs()[0]
	if job.Status != domain.JobStatusDone || job.Result != domain.ResultUnknown {
		t.Fatalf("job = %+v, want done with unknown result", job)
	}
}
