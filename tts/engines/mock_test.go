package engines

import (
	"context"
	"testing"
	"time"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

var mockFormat = tts.AudioFormat{SampleRate: 8000, Channels: 1, BitDepth: 16}

func TestMock_DeterministicLength(t *testing.T) {
	m := NewMock(mockFormat, MockConfig{WordsPerMinute: 150})

	// Five words at 150 wpm is 2 seconds, which at 8 kHz mono 16-bit
	// is 32000 bytes.
	pcm, err := m.Synthesize(context.Background(), "one two three four five")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(pcm) != 32000 {
		t.Errorf("Expected 32000 bytes, got %d", len(pcm))
	}

	again, err := m.Synthesize(context.Background(), "one two three four five")
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(pcm) {
		t.Errorf("Same text produced different lengths: %d vs %d", len(pcm), len(again))
	}
}

func TestMock_MinimumOneWord(t *testing.T) {
	m := NewMock(mockFormat, MockConfig{WordsPerMinute: 150})

	pcm, err := m.Synthesize(context.Background(), "   ")
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) == 0 {
		t.Error("Blank text should still produce one word of audio")
	}
	if len(pcm)%mockFormat.BlockAlign() != 0 {
		t.Error("Output must be sample aligned")
	}
}

func TestMock_FailEvery(t *testing.T) {
	m := NewMock(mockFormat, MockConfig{FailEvery: 2})

	if _, err := m.Synthesize(context.Background(), "a"); err != nil {
		t.Fatalf("Call 1 should succeed: %v", err)
	}
	_, err := m.Synthesize(context.Background(), "b")
	if err == nil {
		t.Fatal("Call 2 should fail")
	}
	if !tts.IsTransientSynthesis(err) {
		t.Errorf("Injected failure should be transient, got %v", err)
	}
	if _, err := m.Synthesize(context.Background(), "c"); err != nil {
		t.Fatalf("Call 3 should succeed: %v", err)
	}

	if m.Calls() != 3 {
		t.Errorf("Expected 3 calls, got %d", m.Calls())
	}
}

func TestMock_FailFatal(t *testing.T) {
	m := NewMock(mockFormat, MockConfig{FailEvery: 1, FailFatal: true})

	_, err := m.Synthesize(context.Background(), "a")
	if !tts.IsFatalSynthesis(err) {
		t.Errorf("Expected fatal failure, got %v", err)
	}
}

func TestMock_ContextCancelled(t *testing.T) {
	m := NewMock(mockFormat, MockConfig{Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Synthesize(ctx, "a"); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestMock_ImplementsSynthesizer(t *testing.T) {
	var _ tts.Synthesizer = (*Mock)(nil)
	var _ tts.Synthesizer = (*Piper)(nil)
}
