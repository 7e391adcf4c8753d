package tts

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// SessionStats summarizes a finished session.
type SessionStats struct {
	Reason            StopReason    // Why the session ended
	Err               error         // Fatal error, if any
	Segments          int64         // Segments synthesized
	SegmentsSkipped   int64         // Segments dropped after transient failures
	FramesSynthesized int64         // Frames cut and offered to the queue
	FramesPlayed      int64         // Frames written to the output
	FramesAbandoned   int64         // Frames enqueued but never played
	BytesSynthesized  int64         // PCM bytes produced
	AudioPlayed       time.Duration // Playback time written to the output
	Elapsed           time.Duration // Wall time from Start to completion
}

// Status is a live snapshot of a running session.
type Status struct {
	State        EngineState
	Producer     ProducerState
	Consumer     ConsumerState
	Paused       bool
	Voice        string
	Queue        QueueStats
	Segments     int64
	Skipped      int64
	FramesPlayed int64
	Played       time.Duration
	Elapsed      time.Duration
}

// Engine runs one streaming session: a synthesis producer and a
// playback consumer joined by a bounded frame queue, all controlled
// through a shared ControlState. An engine is single use; create a new
// one for each stream.
//
// A session runs on exactly two goroutines, both spawned by Start.
// Every other method is safe to call from any goroutine at any time.
type Engine struct {
	cfg    Config
	source SegmentSource
	synth  Synthesizer
	out    Output

	ctrl  *ControlState
	queue *FrameQueue
	log   *log.Logger

	producer *producer
	consumer *consumer

	ctx    context.Context
	cancel context.CancelFunc

	events chan Event
	done   chan struct{}

	exited   atomic.Int32
	finished atomic.Bool
	stopOnce sync.Once

	mu         sync.Mutex
	started    bool
	closed     bool
	startedAt  time.Time
	stopReason StopReason
	result     error
	finalStats SessionStats
}

// New creates an engine for one streaming session. The configuration
// is validated and all three collaborators are required.
func New(cfg Config, source SegmentSource, synth Synthesizer, out Output) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, ErrNoSource
	}
	if synth == nil {
		return nil, ErrNoSynthesizer
	}
	if out == nil {
		return nil, ErrNoOutput
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:    cfg,
		source: source,
		synth:  synth,
		out:    out,
		ctrl:   NewControlState(),
		queue:  NewFrameQueue(cfg.QueueCapacity),
		log:    log.Default().WithPrefix("tts"),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	e.producer = newProducer(cfg, source, synth, e.queue, e.ctrl, e.log, e.publish)
	e.consumer = newConsumer(e.queue, out, e.ctrl, synth.Format(), e.log, e.publish, e.stop)

	return e, nil
}

// SetLogger replaces the engine's logger. Call it before Start.
func (e *Engine) SetLogger(logger *log.Logger) {
	e.log = logger.WithPrefix("tts")
	e.producer.log = logger.WithPrefix("producer")
	e.consumer.log = logger.WithPrefix("consumer")
}

// Start launches the producer and consumer goroutines and returns
// immediately. A second Start fails with ErrAlreadyStarted.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.startedAt = time.Now()

	e.log.Info("session starting",
		"voice", e.synth.Voice(),
		"format", e.synth.Format(),
		"queue", e.queue.Cap(),
		"frame", e.cfg.FrameInterval())

	go func() {
		defer e.loopExited()
		e.producer.run(e.ctx)
	}()
	go func() {
		defer e.loopExited()
		e.consumer.run()
	}()

	return nil
}

// Pause holds both loops at their next checkpoint. Pausing an already
// paused or stopping session is a no-op.
func (e *Engine) Pause() {
	if e.ctrl.RequestPause() {
		e.log.Info("paused")
		e.publish(PausedEvent{})
	}
}

// Resume lifts a pause. Resuming a session that is not paused is a
// no-op.
func (e *Engine) Resume() {
	if e.ctrl.RequestResume() {
		e.log.Info("resumed")
		e.publish(ResumedEvent{})
	}
}

// Stop ends the session: the producer abandons synthesis, the consumer
// abandons queued frames, and both wake from whatever they are blocked
// on. Stop returns without waiting for the loops to exit; use
// AwaitCompletion for that. Repeated stops are no-ops.
func (e *Engine) Stop() {
	e.stop(StopReasonUser)
}

// Quit requests a stop and marks the session for full teardown.
func (e *Engine) Quit() {
	e.ctrl.RequestQuit()
	e.stop(StopReasonQuit)
}

// stop is the single stop path. It flips the control flag, closes the
// queue and cancels in-flight synthesis in one shot, so a worker
// blocked on any of the three wakes immediately.
func (e *Engine) stop(reason StopReason) {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopReason = reason
		e.mu.Unlock()

		e.log.Info("stopping", "reason", reason)
		e.ctrl.RequestStop()
		e.queue.Close()
		e.cancel()

		if !e.finished.Load() {
			e.publish(StoppedEvent{Reason: reason})
		}
	})
}

// AwaitCompletion blocks until both loops have exited and returns the
// final stats and the session error, if any. It never hangs: every way
// a session can end closes the done channel. Calling it before Start
// fails with ErrNotStarted.
func (e *Engine) AwaitCompletion() (SessionStats, error) {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()

	if !started {
		return SessionStats{}, ErrNotStarted
	}

	<-e.done
	return e.finalStats, e.result
}

// Close tears the session down: any running loops are stopped and
// waited for, then the output (and the synthesizer, if it holds
// resources) is released. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	e.ctrl.RequestQuit()
	e.stop(StopReasonQuit)
	if started {
		<-e.done
	}
	e.cancel()

	var errs []error
	if err := e.out.Close(); err != nil {
		errs = append(errs, NewDeviceError("close", err))
	}
	if closer, ok := e.synth.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Events returns the session event channel. The channel is never
// closed; CompletedEvent is the terminal event.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// State returns the engine's summary state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()

	if !started {
		return EngineIdle
	}

	select {
	case <-e.done:
		if e.result != nil {
			return EngineError
		}
		return EngineDone
	default:
	}

	if e.ctrl.StopRequested() {
		return EngineStopping
	}
	if e.ctrl.Paused() {
		return EnginePaused
	}
	return EngineRunning
}

// Status returns a live snapshot of the session.
func (e *Engine) Status() Status {
	e.mu.Lock()
	startedAt := e.startedAt
	started := e.started
	e.mu.Unlock()

	var elapsed time.Duration
	if started {
		elapsed = time.Since(startedAt)
	}

	return Status{
		State:        e.State(),
		Producer:     e.producer.State(),
		Consumer:     e.consumer.State(),
		Paused:       e.ctrl.Paused(),
		Voice:        e.synth.Voice(),
		Queue:        e.queue.Stats(),
		Segments:     e.producer.segments.Load(),
		Skipped:      e.producer.skipped.Load(),
		FramesPlayed: e.consumer.framesPlayed.Load(),
		Played:       time.Duration(e.consumer.playedNanos.Load()),
		Elapsed:      elapsed,
	}
}

// Stats returns the final session stats. Before completion it returns
// the zero value; prefer AwaitCompletion or the CompletedEvent.
func (e *Engine) Stats() SessionStats {
	select {
	case <-e.done:
		return e.finalStats
	default:
		return SessionStats{}
	}
}

// loopExited is deferred by both worker goroutines; the second one to
// exit finalizes the session inline, which keeps the goroutine count
// at exactly two.
func (e *Engine) loopExited() {
	if e.exited.Add(1) == 2 {
		e.finish()
	}
}

// finish computes the final stats, publishes the terminal event and
// releases AwaitCompletion. It runs on the last worker to exit.
func (e *Engine) finish() {
	e.finished.Store(true)

	e.mu.Lock()
	reason := e.stopReason
	startedAt := e.startedAt
	e.mu.Unlock()

	err := errors.Join(e.producer.err, e.consumer.err)
	if reason == "" {
		if err != nil {
			reason = StopReasonError
		} else {
			reason = StopReasonComplete
		}
	}

	qs := e.queue.Stats()
	played := e.consumer.framesPlayed.Load()
	stats := SessionStats{
		Reason:            reason,
		Err:               err,
		Segments:          e.producer.segments.Load(),
		SegmentsSkipped:   e.producer.skipped.Load(),
		FramesSynthesized: e.producer.framesCut.Load(),
		FramesPlayed:      played,
		FramesAbandoned:   qs.TotalEnqueued - played,
		BytesSynthesized:  e.producer.bytesSynth.Load(),
		AudioPlayed:       time.Duration(e.consumer.playedNanos.Load()),
		Elapsed:           time.Since(startedAt),
	}

	e.mu.Lock()
	e.result = err
	e.finalStats = stats
	e.mu.Unlock()

	e.cancel()

	if err != nil {
		e.log.Error("session finished",
			"reason", reason,
			"err", err,
			"segments", stats.Segments,
			"frames_played", stats.FramesPlayed)
	} else {
		e.log.Info("session finished",
			"reason", reason,
			"segments", stats.Segments,
			"frames_played", stats.FramesPlayed,
			"audio", stats.AudioPlayed,
			"elapsed", stats.Elapsed)
	}

	e.publish(CompletedEvent{Stats: stats})
	close(e.done)
}

// publish delivers an event without ever blocking the stream. When the
// buffer is full the oldest event is dropped; the terminal event always
// lands because nothing publishes after it.
func (e *Engine) publish(ev Event) {
	for {
		select {
		case e.events <- ev:
			return
		default:
		}
		select {
		case <-e.events:
		default:
		}
	}
}
