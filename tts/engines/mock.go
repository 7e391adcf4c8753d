package engines

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

// MockConfig controls the mock engine's behavior.
type MockConfig struct {
	// Delay is the simulated synthesis time per call.
	Delay time.Duration

	// WordsPerMinute paces the generated audio length. Zero means 150.
	WordsPerMinute int

	// FailEvery makes every Nth call fail. Zero disables failures.
	FailEvery int

	// FailFatal makes injected failures fatal instead of transient.
	FailFatal bool
}

// Mock is a deterministic offline synthesizer. It produces a
// low-amplitude ramp sized from the text length, so playback is
// audible but inoffensive, and frame counts are reproducible.
type Mock struct {
	cfg    MockConfig
	format tts.AudioFormat
	calls  atomic.Int64
}

// NewMock builds a mock engine producing the given PCM format.
func NewMock(format tts.AudioFormat, cfg MockConfig) *Mock {
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 150
	}
	return &Mock{cfg: cfg, format: format}
}

// Synthesize produces PCM whose playback length matches speaking the
// text at the configured words per minute.
func (m *Mock) Synthesize(ctx context.Context, text string) ([]byte, error) {
	n := m.calls.Add(1)

	if m.cfg.Delay > 0 {
		select {
		case <-time.After(m.cfg.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.cfg.FailEvery > 0 && n%int64(m.cfg.FailEvery) == 0 {
		return nil, &tts.SynthesisError{
			Segment: tts.NoSegment,
			Voice:   m.Voice(),
			Fatal:   m.cfg.FailFatal,
			Err:     errors.New("injected mock failure"),
		}
	}

	words := len(strings.Fields(text))
	if words < 1 {
		words = 1
	}
	duration := time.Duration(float64(words) / float64(m.cfg.WordsPerMinute) * float64(time.Minute))

	pcm := make([]byte, m.format.BytesFor(duration))
	for i := 0; i+1 < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(i%1024))
	}
	return pcm, nil
}

// Voice returns the mock voice name.
func (m *Mock) Voice() string { return "mock" }

// Format returns the configured PCM layout.
func (m *Mock) Format() tts.AudioFormat { return m.format }

// Calls returns how many synthesis calls the engine has served.
func (m *Mock) Calls() int64 { return m.calls.Load() }
