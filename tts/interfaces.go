package tts

import "context"

// SegmentSource yields text segments on demand. Sources are pull
// based: the producer fetches exactly one segment ahead of synthesis,
// so a slow or infinite input never piles up in memory.
type SegmentSource interface {
	// Next returns the next segment to synthesize. It returns io.EOF
	// once the input is exhausted. Any other error ends the stream.
	Next() (TextSegment, error)
}

// SegmentSourceFunc adapts a plain function to the SegmentSource
// interface.
type SegmentSourceFunc func() (TextSegment, error)

// Next calls f.
func (f SegmentSourceFunc) Next() (TextSegment, error) {
	return f()
}

// Synthesizer renders one segment of text as PCM audio. A synthesizer
// is identified by the voice model it loaded and produces a fixed PCM
// layout for the life of the session.
type Synthesizer interface {
	// Synthesize renders text as raw PCM in the layout reported by
	// Format. The context covers the whole call: stopping a session
	// cancels in-flight synthesis. Failures are classified through
	// SynthesisError, where transient errors skip the segment and
	// fatal ones end the stream.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// Voice returns the identifier of the loaded voice model.
	Voice() string

	// Format reports the PCM layout produced by Synthesize.
	Format() AudioFormat
}

// Output is a blocking audio sink. Write returns once the sink has
// accepted the frame, which for a real device means the device buffer
// had room. That backpressure is what paces the playback loop to real
// time.
type Output interface {
	// Write plays one frame. A failed write is fatal to the session.
	Write(frame AudioFrame) error

	// Close releases the sink. Close is idempotent.
	Close() error
}
