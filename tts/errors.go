package tts

import (
	"errors"
	"fmt"
)

// Common streaming errors
var (
	// ErrQueueClosed is returned when a push or pop is attempted after the
	// frame queue has been closed and, for pops, fully drained.
	ErrQueueClosed = errors.New("frame queue is closed")

	// ErrAlreadyStarted indicates Start was called twice on one engine.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNotStarted indicates a lifecycle call before Start.
	ErrNotStarted = errors.New("engine not started")

	// ErrEngineClosed indicates the engine has fully shut down.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrNoSource indicates no segment source was configured.
	ErrNoSource = errors.New("no segment source configured")

	// ErrNoSynthesizer indicates no synthesis backend was configured.
	ErrNoSynthesizer = errors.New("no synthesizer configured")

	// ErrNoOutput indicates no audio sink was configured.
	ErrNoOutput = errors.New("no audio output configured")
)

// NoSegment marks a synthesis failure that is not tied to a particular
// segment, such as one reported by the engine itself.
const NoSegment = -1

// SynthesisError wraps a failure from the synthesis backend. Transient
// failures skip the offending segment and the stream continues; fatal
// failures end production and drain whatever audio is already queued.
type SynthesisError struct {
	// Segment is the index of the segment that failed, or NoSegment.
	Segment int

	// Voice is the voice model in use when the failure occurred.
	Voice string

	// Fatal marks failures that make further synthesis pointless, such
	// as a missing model file or a dead subprocess.
	Fatal bool

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	kind := "transient"
	if e.Fatal {
		kind = "fatal"
	}
	where := ""
	if e.Segment != NoSegment {
		where = fmt.Sprintf(" on segment %d", e.Segment)
	}
	if e.Voice != "" {
		return fmt.Sprintf("%s synthesis failure%s (voice %q): %v", kind, where, e.Voice, e.Err)
	}
	return fmt.Sprintf("%s synthesis failure%s: %v", kind, where, e.Err)
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// TransientSynthesis wraps err as a recoverable synthesis failure.
func TransientSynthesis(segment int, err error) *SynthesisError {
	return &SynthesisError{Segment: segment, Err: err}
}

// FatalSynthesis wraps err as an unrecoverable synthesis failure.
func FatalSynthesis(segment int, err error) *SynthesisError {
	return &SynthesisError{Segment: segment, Fatal: true, Err: err}
}

// DeviceError wraps a failure from the audio output. Any device failure
// is fatal to the session: audio written to a broken sink is lost, so
// the whole stream stops.
type DeviceError struct {
	// Op names the device operation that failed, such as "open" or "write".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewDeviceError wraps err as an audio output failure.
func NewDeviceError(op string, err error) *DeviceError {
	return &DeviceError{Op: op, Err: err}
}

// IsFatalSynthesis reports whether err is a synthesis failure that
// should end production.
func IsFatalSynthesis(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se) && se.Fatal
}

// IsTransientSynthesis reports whether err is a synthesis failure the
// stream can recover from by skipping the segment.
func IsTransientSynthesis(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se) && !se.Fatal
}

// IsDeviceError reports whether err came from the audio output.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
