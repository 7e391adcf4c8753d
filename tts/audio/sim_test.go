package audio

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

var simFormat = tts.AudioFormat{SampleRate: 8000, Channels: 1, BitDepth: 16}

func TestSim_PacesWrites(t *testing.T) {
	// Ten 20 ms frames at real-time pacing should take right around
	// 200 ms end to end.
	s := NewSim(simFormat, 1.0, log.New(io.Discard))

	frame := tts.AudioFrame{Data: make([]byte, 320)}
	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := s.Write(frame); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 150*time.Millisecond {
		t.Errorf("Writes finished in %v, pacing is too fast", elapsed)
	}
	if elapsed > 600*time.Millisecond {
		t.Errorf("Writes took %v, pacing is too slow", elapsed)
	}
}

func TestSim_SpeedupScalesPacing(t *testing.T) {
	s := NewSim(simFormat, 20.0, log.New(io.Discard))

	frame := tts.AudioFrame{Data: make([]byte, 320)}
	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := s.Write(frame); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	// 200 ms of audio at 20x should take around 10 ms.
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("Writes took %v at 20x speedup", elapsed)
	}
}

func TestSim_Counters(t *testing.T) {
	s := NewSim(simFormat, 100.0, log.New(io.Discard))

	for i := 0; i < 3; i++ {
		if err := s.Write(tts.AudioFrame{Data: make([]byte, 320)}); err != nil {
			t.Fatal(err)
		}
	}

	if s.Frames() != 3 {
		t.Errorf("Expected 3 frames, got %d", s.Frames())
	}
	if s.Bytes() != 960 {
		t.Errorf("Expected 960 bytes, got %d", s.Bytes())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSim_ImplementsOutput(t *testing.T) {
	var _ tts.Output = (*Sim)(nil)
	var _ tts.Output = (*Speaker)(nil)
}
