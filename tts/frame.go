package tts

import (
	"fmt"
	"time"
)

// TextSegment is a unit of text handed to the synthesizer. Segments are
// produced lazily by a SegmentSource and carry their ordinal so frames
// synthesized from them can be traced back to their origin.
type TextSegment struct {
	// Index is the zero-based position of the segment in the input.
	Index int

	// Text is the raw text to synthesize.
	Text string
}

// IsEmpty reports whether the segment contains no speakable text.
func (s TextSegment) IsEmpty() bool {
	return len(s.Text) == 0
}

// AudioFrame is a bounded chunk of PCM audio ready for playback.
// Frames are cut from a segment's synthesized audio so that pause and
// stop requests take effect between frames rather than between whole
// segments.
type AudioFrame struct {
	// Segment is the index of the TextSegment this frame was cut from.
	Segment int

	// Index is the zero-based position of this frame within its segment.
	Index int

	// Data is raw PCM in the session's AudioFormat.
	Data []byte

	// Last marks the final frame of a segment.
	Last bool
}

// Duration returns the playback time of the frame in the given format.
func (f AudioFrame) Duration(format AudioFormat) time.Duration {
	return format.Duration(len(f.Data))
}

// String implements fmt.Stringer for log output.
func (f AudioFrame) String() string {
	return fmt.Sprintf("frame{seg=%d idx=%d bytes=%d last=%v}", f.Segment, f.Index, len(f.Data), f.Last)
}

// splitFrames cuts synthesized PCM into frames of at most frameBytes
// each. The split never lands mid-sample: frameBytes is rounded down to
// the format's block alignment before cutting. The final frame carries
// whatever remains and is marked Last.
func splitFrames(segment int, pcm []byte, frameBytes int, align int) []AudioFrame {
	if len(pcm) == 0 {
		return nil
	}
	if align <= 0 {
		align = 1
	}
	if frameBytes < align {
		frameBytes = align
	}
	frameBytes -= frameBytes % align

	frames := make([]AudioFrame, 0, (len(pcm)+frameBytes-1)/frameBytes)
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frames = append(frames, AudioFrame{
			Segment: segment,
			Index:   len(frames),
			Data:    pcm[off:end],
		})
	}
	frames[len(frames)-1].Last = true
	return frames
}
