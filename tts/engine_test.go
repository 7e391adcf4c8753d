package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// Test fixtures. The fake synthesizer produces deterministic PCM sizes
// per segment text, so frame counts per segment are exact: with the
// 8000 Hz mono 16-bit test format and 20 ms frames, one frame is 320
// bytes.

const testFrameBytes = 320

type scriptedSource struct {
	mu   sync.Mutex
	segs []string
	next int
}

func newScriptedSource(texts ...string) *scriptedSource {
	return &scriptedSource{segs: texts}
}

func (s *scriptedSource) Next() (TextSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.segs) {
		return TextSegment{}, io.EOF
	}
	seg := TextSegment{Index: s.next, Text: s.segs[s.next]}
	s.next++
	return seg, nil
}

type fakeSynth struct {
	format   AudioFormat
	bytesFor map[string]int
	failWith map[string]error
	delay    time.Duration

	mu    sync.Mutex
	calls []string
}

func newFakeSynth() *fakeSynth {
	return &fakeSynth{
		format:   AudioFormat{SampleRate: 8000, Channels: 1, BitDepth: 16},
		bytesFor: make(map[string]int),
		failWith: make(map[string]error),
	}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := f.failWith[text]; ok {
		return nil, err
	}

	n, ok := f.bytesFor[text]
	if !ok {
		n = testFrameBytes
	}
	return make([]byte, n), nil
}

func (f *fakeSynth) Voice() string { return "test-voice" }

func (f *fakeSynth) Format() AudioFormat { return f.format }

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingOutput struct {
	mu         sync.Mutex
	frames     []AudioFrame
	writeDelay time.Duration
	failAt     int
	closed     bool
}

func newRecordingOutput() *recordingOutput {
	return &recordingOutput{failAt: -1}
}

func (o *recordingOutput) Write(frame AudioFrame) error {
	if o.writeDelay > 0 {
		time.Sleep(o.writeDelay)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.failAt >= 0 && len(o.frames) == o.failAt {
		return errors.New("device gone")
	}
	o.frames = append(o.frames, frame)
	return nil
}

func (o *recordingOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *recordingOutput) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.frames)
}

func (o *recordingOutput) snapshot() []AudioFrame {
	o.mu.Lock()
	defer o.mu.Unlock()
	frames := make([]AudioFrame, len(o.frames))
	copy(frames, o.frames)
	return frames
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Engine = "mock"
	cfg.Voice = "test-voice"
	cfg.SampleRate = 8000
	cfg.FrameMillis = 20
	cfg.QueueCapacity = 8
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, source SegmentSource, synth Synthesizer, out Output) *Engine {
	t.Helper()

	e, err := New(cfg, source, synth, out)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e.SetLogger(log.New(io.Discard))
	return e
}

func awaitWithTimeout(t *testing.T, e *Engine) (SessionStats, error) {
	t.Helper()

	type result struct {
		stats SessionStats
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		stats, err := e.AwaitCompletion()
		ch <- result{stats, err}
	}()

	select {
	case r := <-ch:
		return r.stats, r.err
	case <-time.After(5 * time.Second):
		t.Fatal("AwaitCompletion did not return")
		return SessionStats{}, nil
	}
}

func waitForFrames(t *testing.T, out *recordingOutput, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for out.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d frames, have %d", n, out.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Three segments that split into 2, 3 and 1 frames pushed through a
// queue of capacity 2 must all arrive, in order, even though the queue
// can never hold one segment's frames at once.
func TestEngine_PlaysAllFramesInOrder(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 2

	source := newScriptedSource("seg-a", "seg-b", "seg-c")
	synth := newFakeSynth()
	synth.bytesFor["seg-a"] = 2 * testFrameBytes
	synth.bytesFor["seg-b"] = 3 * testFrameBytes
	synth.bytesFor["seg-c"] = 1 * testFrameBytes
	out := newRecordingOutput()

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats, err := awaitWithTimeout(t, e)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}

	want := []struct {
		segment, index int
		last           bool
	}{
		{0, 0, false}, {0, 1, true},
		{1, 0, false}, {1, 1, false}, {1, 2, true},
		{2, 0, true},
	}

	frames := out.snapshot()
	if len(frames) != len(want) {
		t.Fatalf("Expected %d frames, got %d", len(want), len(frames))
	}
	for i, w := range want {
		f := frames[i]
		if f.Segment != w.segment || f.Index != w.index || f.Last != w.last {
			t.Errorf("Frame %d = {seg=%d idx=%d last=%v}, expected {seg=%d idx=%d last=%v}",
				i, f.Segment, f.Index, f.Last, w.segment, w.index, w.last)
		}
	}

	if stats.Reason != StopReasonComplete {
		t.Errorf("Expected reason %q, got %q", StopReasonComplete, stats.Reason)
	}
	if stats.Segments != 3 {
		t.Errorf("Expected 3 segments, got %d", stats.Segments)
	}
	if stats.FramesSynthesized != 6 || stats.FramesPlayed != 6 {
		t.Errorf("Expected 6 frames synthesized and played, got %d and %d",
			stats.FramesSynthesized, stats.FramesPlayed)
	}
	if stats.FramesAbandoned != 0 {
		t.Errorf("Expected no abandoned frames, got %d", stats.FramesAbandoned)
	}
	if e.State() != EngineDone {
		t.Errorf("Expected EngineDone, got %v", e.State())
	}
}

func TestEngine_PauseHaltsAndResumeContinues(t *testing.T) {
	cfg := testConfig()

	source := newScriptedSource("long")
	synth := newFakeSynth()
	synth.bytesFor["long"] = 10 * testFrameBytes
	out := newRecordingOutput()
	out.writeDelay = 20 * time.Millisecond

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForFrames(t, out, 2)
	e.Pause()

	// Let any in-flight write finish, then confirm playback is halted.
	time.Sleep(150 * time.Millisecond)
	halted := out.count()
	time.Sleep(200 * time.Millisecond)
	if got := out.count(); got != halted {
		t.Errorf("Playback continued while paused: %d -> %d frames", halted, got)
	}
	if e.State() != EnginePaused {
		t.Errorf("Expected EnginePaused, got %v", e.State())
	}

	e.Resume()

	stats, err := awaitWithTimeout(t, e)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}

	// No frame may be lost or reordered across the pause.
	frames := out.snapshot()
	if len(frames) != 10 {
		t.Fatalf("Expected 10 frames after resume, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("Frame %d has index %d, pause reordered playback", i, f.Index)
		}
	}
	if stats.FramesPlayed != 10 || stats.FramesAbandoned != 0 {
		t.Errorf("Expected 10 played and 0 abandoned, got %d and %d",
			stats.FramesPlayed, stats.FramesAbandoned)
	}
}

func TestEngine_StopAbandonsQueuedFrames(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 4

	source := newScriptedSource("long")
	synth := newFakeSynth()
	synth.bytesFor["long"] = 20 * testFrameBytes
	out := newRecordingOutput()
	out.writeDelay = 30 * time.Millisecond

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForFrames(t, out, 2)
	e.Stop()

	stats, err := awaitWithTimeout(t, e)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}

	if stats.Reason != StopReasonUser {
		t.Errorf("Expected reason %q, got %q", StopReasonUser, stats.Reason)
	}
	if stats.FramesPlayed >= 20 {
		t.Errorf("Stop should abandon frames, but all %d were played", stats.FramesPlayed)
	}
	if stats.FramesAbandoned == 0 {
		t.Error("Expected abandoned frames after stop")
	}

	// Nothing plays after completion.
	played := out.count()
	time.Sleep(100 * time.Millisecond)
	if got := out.count(); got != played {
		t.Errorf("Frames played after stop: %d -> %d", played, got)
	}
}

func TestEngine_TransientFailureSkipsSegment(t *testing.T) {
	cfg := testConfig()

	source := newScriptedSource("ok-1", "broken", "ok-2")
	synth := newFakeSynth()
	synth.bytesFor["ok-1"] = 2 * testFrameBytes
	synth.bytesFor["ok-2"] = 1 * testFrameBytes
	synth.failWith["broken"] = TransientSynthesis(1, errors.New("engine hiccup"))
	out := newRecordingOutput()

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats, err := awaitWithTimeout(t, e)
	if err != nil {
		t.Fatalf("Transient failure should not fail the session: %v", err)
	}

	if stats.Reason != StopReasonComplete {
		t.Errorf("Expected reason %q, got %q", StopReasonComplete, stats.Reason)
	}
	if stats.Segments != 2 || stats.SegmentsSkipped != 1 {
		t.Errorf("Expected 2 segments and 1 skipped, got %d and %d",
			stats.Segments, stats.SegmentsSkipped)
	}

	// Only frames from the surviving segments, still in order.
	for _, f := range out.snapshot() {
		if f.Segment == 1 {
			t.Errorf("Frame from skipped segment was played: %v", f)
		}
	}
	if out.count() != 3 {
		t.Errorf("Expected 3 frames from surviving segments, got %d", out.count())
	}
}

func TestEngine_FatalFailureDrainsQueuedFrames(t *testing.T) {
	cfg := testConfig()

	source := newScriptedSource("ok", "fatal", "never")
	synth := newFakeSynth()
	synth.bytesFor["ok"] = 2 * testFrameBytes
	synth.failWith["fatal"] = FatalSynthesis(1, errors.New("model unloaded"))
	out := newRecordingOutput()
	out.writeDelay = 50 * time.Millisecond

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats, err := awaitWithTimeout(t, e)
	if err == nil {
		t.Fatal("Expected session error after fatal synthesis failure")
	}
	if !IsFatalSynthesis(err) {
		t.Errorf("Expected fatal synthesis error, got %v", err)
	}

	// The failure hit while the first segment was still queued; those
	// frames drain and play before completion.
	if stats.FramesPlayed != 2 {
		t.Errorf("Expected the 2 queued frames to drain, got %d played", stats.FramesPlayed)
	}
	if stats.Reason != StopReasonError {
		t.Errorf("Expected reason %q, got %q", StopReasonError, stats.Reason)
	}

	// The segment after the fatal one is never synthesized.
	if got := synth.callCount(); got != 2 {
		t.Errorf("Expected 2 synthesis calls, got %d", got)
	}
}

func TestEngine_DeviceErrorStopsSession(t *testing.T) {
	cfg := testConfig()

	source := newScriptedSource("a", "b", "c")
	synth := newFakeSynth()
	synth.bytesFor["a"] = 2 * testFrameBytes
	synth.bytesFor["b"] = 2 * testFrameBytes
	synth.bytesFor["c"] = 2 * testFrameBytes
	out := newRecordingOutput()
	out.failAt = 2

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats, err := awaitWithTimeout(t, e)
	if err == nil {
		t.Fatal("Expected session error after device failure")
	}
	if !IsDeviceError(err) {
		t.Errorf("Expected device error, got %v", err)
	}
	if stats.Reason != StopReasonError {
		t.Errorf("Expected reason %q, got %q", StopReasonError, stats.Reason)
	}
	if stats.FramesPlayed != 2 {
		t.Errorf("Expected 2 frames before the failure, got %d", stats.FramesPlayed)
	}
	if e.State() != EngineError {
		t.Errorf("Expected EngineError, got %v", e.State())
	}
}

func TestEngine_StopImmediatelyAfterStart(t *testing.T) {
	cfg := testConfig()

	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("seg-%d", i)
	}
	source := newScriptedSource(texts...)
	synth := newFakeSynth()
	synth.delay = 10 * time.Millisecond
	out := newRecordingOutput()

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Stop()

	stats, err := awaitWithTimeout(t, e)
	if err != nil {
		t.Fatalf("Stop right after start should end cleanly: %v", err)
	}
	if stats.Reason != StopReasonUser {
		t.Errorf("Expected reason %q, got %q", StopReasonUser, stats.Reason)
	}
}

func TestEngine_QuitImpliesStop(t *testing.T) {
	cfg := testConfig()

	source := newScriptedSource("long")
	synth := newFakeSynth()
	synth.bytesFor["long"] = 20 * testFrameBytes
	out := newRecordingOutput()
	out.writeDelay = 20 * time.Millisecond

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForFrames(t, out, 1)
	e.Quit()

	stats, err := awaitWithTimeout(t, e)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if stats.Reason != StopReasonQuit {
		t.Errorf("Expected reason %q, got %q", StopReasonQuit, stats.Reason)
	}
}

func TestEngine_StartTwice(t *testing.T) {
	cfg := testConfig()
	e := newTestEngine(t, cfg, newScriptedSource("a"), newFakeSynth(), newRecordingOutput())

	if err := e.Start(); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	if err := e.Start(); err != ErrAlreadyStarted {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}

	awaitWithTimeout(t, e)
}

func TestEngine_AwaitBeforeStart(t *testing.T) {
	cfg := testConfig()
	e := newTestEngine(t, cfg, newScriptedSource("a"), newFakeSynth(), newRecordingOutput())

	if _, err := e.AwaitCompletion(); err != ErrNotStarted {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
}

func TestEngine_Validation(t *testing.T) {
	cfg := testConfig()
	source := newScriptedSource("a")
	synth := newFakeSynth()
	out := newRecordingOutput()

	if _, err := New(cfg, nil, synth, out); err != ErrNoSource {
		t.Errorf("Expected ErrNoSource, got %v", err)
	}
	if _, err := New(cfg, source, nil, out); err != ErrNoSynthesizer {
		t.Errorf("Expected ErrNoSynthesizer, got %v", err)
	}
	if _, err := New(cfg, source, synth, nil); err != ErrNoOutput {
		t.Errorf("Expected ErrNoOutput, got %v", err)
	}

	bad := cfg
	bad.Speed = 9.0
	if _, err := New(bad, source, synth, out); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestEngine_CloseIdempotent(t *testing.T) {
	cfg := testConfig()
	out := newRecordingOutput()
	e := newTestEngine(t, cfg, newScriptedSource("a"), newFakeSynth(), out)

	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
	if !out.closed {
		t.Error("Close did not close the output")
	}
}

func TestEngine_Events(t *testing.T) {
	cfg := testConfig()

	source := newScriptedSource("hello")
	synth := newFakeSynth()
	synth.bytesFor["hello"] = 2 * testFrameBytes
	out := newRecordingOutput()

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	awaitWithTimeout(t, e)

	var sawStarted, sawSynthesized, sawPlayed, sawDraining, sawCompleted bool
drain:
	for {
		select {
		case ev := <-e.Events():
			switch ev.(type) {
			case SegmentStartedEvent:
				sawStarted = true
			case SegmentSynthesizedEvent:
				sawSynthesized = true
			case FramePlayedEvent:
				sawPlayed = true
			case DrainingEvent:
				sawDraining = true
			case CompletedEvent:
				sawCompleted = true
			}
		default:
			break drain
		}
	}

	if !sawStarted || !sawSynthesized || !sawPlayed || !sawDraining || !sawCompleted {
		t.Errorf("Missing events: started=%v synthesized=%v played=%v draining=%v completed=%v",
			sawStarted, sawSynthesized, sawPlayed, sawDraining, sawCompleted)
	}
}

func TestEngine_PauseWhileSynthesizing(t *testing.T) {
	cfg := testConfig()

	source := newScriptedSource("a", "b")
	synth := newFakeSynth()
	synth.delay = 50 * time.Millisecond
	out := newRecordingOutput()

	e := newTestEngine(t, cfg, source, synth, out)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Pause right out of the gate: both loops hold at their first
	// checkpoint and the whole stream still plays after resume.
	e.Pause()
	time.Sleep(150 * time.Millisecond)
	e.Resume()

	stats, err := awaitWithTimeout(t, e)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if stats.FramesPlayed != 2 {
		t.Errorf("Expected 2 frames played after pause and resume, got %d", stats.FramesPlayed)
	}
}
