package tts

import "time"

// Event is a session notification. Any of the *Event structs below may
// appear on the engine's event channel. The channel is buffered and
// never blocks the stream: listeners that fall behind lose events.
type Event interface{}

// SegmentStartedEvent indicates synthesis of a segment has begun.
type SegmentStartedEvent struct {
	Index int    // Segment index
	Text  string // Segment text
}

// SegmentSynthesizedEvent indicates a segment was rendered to PCM.
type SegmentSynthesizedEvent struct {
	Index   int           // Segment index
	Bytes   int           // PCM bytes produced
	Frames  int           // Frames the segment was cut into
	Elapsed time.Duration // Synthesis wall time
}

// SegmentSkippedEvent indicates a segment was dropped after a
// transient synthesis failure. The stream continues with the next
// segment.
type SegmentSkippedEvent struct {
	Index int   // Segment index
	Err   error // The transient failure
}

// FramePlayedEvent indicates one frame finished writing to the output.
type FramePlayedEvent struct {
	Segment    int           // Segment the frame came from
	Index      int           // Frame index within the segment
	Length     time.Duration // Playback length of the frame
	QueueDepth int           // Frames left in the queue after the pop
}

// PausedEvent indicates the session is holding at a checkpoint.
type PausedEvent struct{}

// ResumedEvent indicates a paused session is running again.
type ResumedEvent struct{}

// DrainingEvent indicates the input is exhausted and the queue has
// been closed; buffered frames are still playing out.
type DrainingEvent struct {
	Queued int // Frames still in the queue at close
}

// StopReason explains why a session ended.
type StopReason string

const (
	// StopReasonComplete means the input played to the end.
	StopReasonComplete StopReason = "complete"
	// StopReasonUser means stop was requested from the control surface.
	StopReasonUser StopReason = "user"
	// StopReasonQuit means the session was torn down entirely.
	StopReasonQuit StopReason = "quit"
	// StopReasonError means a fatal error ended the session.
	StopReasonError StopReason = "error"
)

// StoppedEvent indicates the session is winding down.
type StoppedEvent struct {
	Reason StopReason
}

// CompletedEvent is the final event of a session, emitted after both
// worker loops have exited.
type CompletedEvent struct {
	Stats SessionStats
}
