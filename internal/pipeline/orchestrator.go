// Package pipeline drives a photo through analysis, prompt composition,
// generation and status polling as an explicit state machine.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"actionfigure/internal/domain"
	"actionfigure/internal/extractor"
	"actionfigure/internal/imagegen"
	"actionfigure/internal/infra"
)

// ErrClosed is returned by operations on a closed orchestrator.
var ErrClosed = errors.New("pipeline: orchestrator closed")

const (
	DefaultPollInterval  = 5 * time.Second
	DefaultSubmitTimeout = 30 * time.Second
)

// Analyzer is the trait-extraction stage.
type Analyzer interface {
	Extract(ctx context.Context, att domain.Attachment, instruction string, onFragment func(string)) (extractor.Result, error)
}

// Submitter starts a generation job.
type Submitter interface {
	Submit(ctx context.Context, prompt string) (domain.Submission, error)
}

type Options struct {
	ID            string
	Analyzer      Analyzer
	Submitter     Submitter
	Poller        *Poller
	Scheduler     Scheduler
	PollInterval  time.Duration
	SubmitTimeout time.Duration
	Logger        *infra.Logger
}

// Orchestrator owns one pipeline state. A single loop goroutine applies every
// transition; component calls run on their own goroutines and report back
// through events tagged with the run sequence that started them.
type Orchestrator struct {
	id            string
	analyzer      Analyzer
	submitter     Submitter
	poller        *Poller
	scheduler     Scheduler
	pollInterval  time.Duration
	submitTimeout time.Duration
	logger        infra.Logger

	events chan event
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	mu       sync.RWMutex
	snapshot State
	subs     map[int]chan State
	nextSub  int
	closed   bool
	lastSeen time.Time

	// loop-owned
	state     State
	seq       uint64
	runCtx    context.Context
	runCancel context.CancelFunc
	timer     Timer
	polling   bool
}

type event interface{}

type submitEvent struct {
	att         domain.Attachment
	instruction string
	reply       chan string
}

type cancelEvent struct{ reply chan struct{} }

type fragmentEvent struct {
	seq  uint64
	text string
}

type analysisEvent struct {
	seq    uint64
	result extractor.Result
	err    error
}

type submittedEvent struct {
	seq uint64
	sub domain.Submission
	err error
}

type pollTickEvent struct{ seq uint64 }

type pollResultEvent struct {
	seq  uint64
	snap Snapshot
	err  error
}

// New validates opts and starts the orchestrator loop in Idle.
func New(opts Options) (*Orchestrator, error) {
	if opts.Analyzer == nil {
		return nil, errors.New("pipeline: analyzer is required")
	}
	if opts.Submitter == nil {
		return nil, errors.New("pipeline: submitter is required")
	}
	if opts.Poller == nil {
		return nil, errors.New("pipeline: poller is required")
	}
	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = SystemScheduler()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	submitTimeout := opts.SubmitTimeout
	if submitTimeout <= 0 {
		submitTimeout = DefaultSubmitTimeout
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	logger := infra.DiscardLogger()
	if opts.Logger != nil {
		logger = opts.Logger
	}

	now := time.Now().UTC()
	o := &Orchestrator{
		id:            id,
		analyzer:      opts.Analyzer,
		submitter:     opts.Submitter,
		poller:        opts.Poller,
		scheduler:     scheduler,
		pollInterval:  interval,
		submitTimeout: submitTimeout,
		logger:        logger.With().Str("session", id).Logger(),
		events:        make(chan event, 64),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		subs:          make(map[int]chan State),
		lastSeen:      now,
		state:         State{Phase: PhaseIdle, UpdatedAt: now},
	}
	o.snapshot = o.state.Clone()
	go o.loop()
	return o, nil
}

// ID identifies the orchestrator in logs and the sessions API.
func (o *Orchestrator) ID() string {
	return o.id
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snapshot.Clone()
}

// LastActivity reports when the orchestrator last changed state or received a
// command.
func (o *Orchestrator) LastActivity() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastSeen
}

// Submit starts a new run for att, cancelling any active run first. An empty
// instruction selects the analyzer's default. It returns the new run id.
func (o *Orchestrator) Submit(ctx context.Context, att domain.Attachment, instruction string) (string, error) {
	reply := make(chan string, 1)
	if err := o.send(ctx, submitEvent{att: att, instruction: instruction, reply: reply}); err != nil {
		return "", err
	}
	select {
	case runID := <-reply:
		return runID, nil
	case <-o.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel abandons the current run and returns to Idle. It is idempotent and
// returns once the transition has been applied.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	reply := make(chan struct{})
	if err := o.send(ctx, cancelEvent{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel receiving every new state. When the subscriber
// falls behind, older undelivered states are dropped so the latest one always
// arrives. The channel is closed by the returned func or by Close.
func (o *Orchestrator) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.snapshot.Clone()
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if sub, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(sub)
			}
		})
	}
}

// Close cancels any active run, stops the loop and closes all subscriptions.
func (o *Orchestrator) Close() {
	o.once.Do(func() { close(o.quit) })
	<-o.done
}

// Done is closed when the loop has exited.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) send(ctx context.Context, ev event) error {
	select {
	case o.events <- ev:
		return nil
	case <-o.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is used by worker goroutines; events are dropped once the loop quits.
func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.quit:
	}
}

func (o *Orchestrator) loop() {
	defer close(o.done)
	for {
		select {
		case <-o.quit:
			o.stopRun()
			o.mu.Lock()
			o.closed = true
			for id, ch := range o.subs {
				close(ch)
				delete(o.subs, id)
			}
			o.mu.Unlock()
			return
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

func (o *Orchestrator) handle(ev event) {
	switch ev := ev.(type) {
	case submitEvent:
		o.touch()
		ev.reply <- o.startRun(ev.att, ev.instruction)
	case cancelEvent:
		o.touch()
		if o.state.Phase != PhaseIdle {
			o.stopRun()
			o.transition(State{Phase: PhaseIdle}, "cancelled")
		}
		close(ev.reply)
	case fragmentEvent:
		if ev.seq != o.seq || o.state.Phase != PhaseAwaitingAnalysis {
			return
		}
		next := o.state
		next.Analysis += ev.text
		o.transition(next, "")
	case analysisEvent:
		if ev.seq != o.seq || o.state.Phase != PhaseAwaitingAnalysis {
			return
		}
		o.onAnalysis(ev)
	case submittedEvent:
		if ev.seq != o.seq || o.state.Phase != PhaseAwaitingGeneration {
			return
		}
		o.onSubmitted(ev)
	case pollTickEvent:
		if ev.seq != o.seq || o.state.Phase != PhasePolling || o.polling {
			return
		}
		o.timer = nil
		o.startPoll()
	case pollResultEvent:
		if ev.seq != o.seq || o.state.Phase != PhasePolling {
			return
		}
		o.polling = false
		o.onPollResult(ev)
	}
}

func (o *Orchestrator) startRun(att domain.Attachment, instruction string) string {
	if o.state.Phase.Active() {
		o.logger.Debug().Str("run", o.state.RunID).Msg("pipeline: replacing active run")
	}
	o.stopRun()

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	o.runCtx, o.runCancel = ctx, cancel
	seq := o.seq

	o.transition(State{Phase: PhaseAwaitingAnalysis, RunID: runID}, "submit")

	go func() {
		res, err := o.analyzer.Extract(ctx, att, instruction, func(text string) {
			o.post(fragmentEvent{seq: seq, text: text})
		})
		o.post(analysisEvent{seq: seq, result: res, err: err})
	}()
	return runID
}

// stopRun invalidates in-flight work of the current run: the sequence bump
// makes every pending event stale, the timer is stopped and the run context
// cancelled.
func (o *Orchestrator) stopRun() {
	o.seq++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if o.runCancel != nil {
		o.runCancel()
		o.runCtx, o.runCancel = nil, nil
	}
	o.polling = false
}

func (o *Orchestrator) onAnalysis(ev analysisEvent) {
	if ev.err != nil {
		o.fail(ev.err, "analysis failed")
		return
	}
	prompt := imagegen.BuildPrompt(ev.result.Traits)
	next := o.state
	next.Phase = PhaseAwaitingGeneration
	next.Analysis = ev.result.Text
	next.Traits = ev.result.Traits.Entries()
	next.Prompt = prompt
	o.transition(next, "analysis complete")

	ctx := o.runContext()
	seq := o.seq
	go func() {
		ctx, cancel := context.WithTimeout(ctx, o.submitTimeout)
		defer cancel()
		sub, err := o.submitter.Submit(ctx, prompt)
		o.post(submittedEvent{seq: seq, sub: sub, err: err})
	}()
}

func (o *Orchestrator) onSubmitted(ev submittedEvent) {
	if ev.err != nil {
		o.fail(ev.err, "generation request failed")
		return
	}
	if ev.sub.JobID == "" {
		o.fail(domain.Errorf(domain.KindMalformedResponse, "generation response has no job id"), "")
		return
	}
	next := o.state
	next.Phase = PhasePolling
	next.Analysis = ""
	next.Job = domain.NewGenerationJob(ev.sub)
	o.transition(next, "job submitted")
	o.schedulePoll()
}

func (o *Orchestrator) schedulePoll() {
	seq := o.seq
	o.timer = o.scheduler.AfterFunc(o.pollInterval, func() {
		o.post(pollTickEvent{seq: seq})
	})
}

func (o *Orchestrator) startPoll() {
	o.polling = true
	ctx := o.runContext()
	seq := o.seq
	jobID := o.state.Job.ID
	previous := o.state.Job.Progress
	go func() {
		snap, err := o.poller.Check(ctx, jobID, previous)
		o.post(pollResultEvent{seq: seq, snap: snap, err: err})
	}()
}

func (o *Orchestrator) onPollResult(ev pollResultEvent) {
	if ev.err != nil {
		o.fail(ev.err, "status check failed")
		return
	}
	next := o.state.Clone()
	ev.snap.ApplyTo(next.Job)
	switch {
	case ev.snap.Status == domain.JobStatusError:
		o.stopRun()
		next.Phase = PhaseFailed
		next.Failure = &Failure{Kind: domain.KindProviderRejected, Message: "generation job failed: " + ev.snap.Message}
		o.transition(next, "job error")
	case ev.snap.Terminal:
		o.stopRun()
		next.Phase = PhaseComplete
		next.FinalImage = ev.snap.FinalImage
		o.transition(next, "job complete")
	default:
		o.transition(next, "")
		o.schedulePoll()
	}
}

// fail moves to Failed unless err is a cancellation, which is dropped
// silently: a cancel or replacement has already moved the state on.
func (o *Orchestrator) fail(err error, fallback string) {
	kind := domain.KindOf(err)
	if kind == domain.KindCancelled {
		return
	}
	msg := domain.Message(err)
	if msg == "" {
		msg = fallback
	}
	o.stopRun()
	next := o.state
	next.Phase = PhaseFailed
	next.Analysis = ""
	next.Failure = &Failure{Kind: kind, Message: msg}
	o.transition(next, "failed")
}

// runContext returns the context of the current run, already cancelled when
// no run is active.
func (o *Orchestrator) runContext() context.Context {
	if o.runCtx == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return o.runCtx
}

func (o *Orchestrator) touch() {
	o.mu.Lock()
	o.lastSeen = time.Now().UTC()
	o.mu.Unlock()
}

func (o *Orchestrator) transition(next State, reason string) {
	next.UpdatedAt = time.Now().UTC()
	prev := o.state.Phase
	o.state = next

	if prev != next.Phase {
		ev := o.logger.Debug().Str("run", next.RunID).Str("from", string(prev)).Str("phase", string(next.Phase))
		if reason != "" {
			ev = ev.Str("reason", reason)
		}
		if next.Failure != nil {
			ev = ev.Str("kind", string(next.Failure.Kind)).Str("error", next.Failure.Message)
		}
		ev.Msg("pipeline: transition")
	}

	snap := next.Clone()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshot = snap
	o.lastSeen = next.UpdatedAt
	for _, ch := range o.subs {
		deliver(ch, snap.Clone())
	}
}

// deliver never blocks: when ch is full the oldest queued state is dropped.
func deliver(ch chan State, s State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
