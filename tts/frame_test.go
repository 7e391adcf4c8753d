package tts

import (
	"testing"
	"time"
)

func TestSplitFrames(t *testing.T) {
	tests := []struct {
		name       string
		pcmBytes   int
		frameBytes int
		wantSizes  []int
	}{
		{"exact multiple", 960, 320, []int{320, 320, 320}},
		{"remainder tail", 800, 320, []int{320, 320, 160}},
		{"single short", 100, 320, []int{100}},
		{"single exact", 320, 320, []int{320}},
		{"empty", 0, 320, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := make([]byte, tt.pcmBytes)
			frames := splitFrames(7, pcm, tt.frameBytes, 2)

			if len(frames) != len(tt.wantSizes) {
				t.Fatalf("Expected %d frames, got %d", len(tt.wantSizes), len(frames))
			}
			for i, f := range frames {
				if len(f.Data) != tt.wantSizes[i] {
					t.Errorf("Frame %d has %d bytes, expected %d", i, len(f.Data), tt.wantSizes[i])
				}
				if f.Segment != 7 {
					t.Errorf("Frame %d has segment %d, expected 7", i, f.Segment)
				}
				if f.Index != i {
					t.Errorf("Frame %d has index %d", i, f.Index)
				}
				wantLast := i == len(frames)-1
				if f.Last != wantLast {
					t.Errorf("Frame %d Last = %v, expected %v", i, f.Last, wantLast)
				}
			}
		})
	}
}

func TestSplitFrames_SampleAlignment(t *testing.T) {
	// An odd frame size must be rounded down so no frame splits a
	// 16-bit sample in half.
	pcm := make([]byte, 1000)
	frames := splitFrames(0, pcm, 333, 2)

	total := 0
	for i, f := range frames {
		total += len(f.Data)
		if i < len(frames)-1 && len(f.Data)%2 != 0 {
			t.Errorf("Frame %d has odd size %d", i, len(f.Data))
		}
	}
	if total != 1000 {
		t.Errorf("Frames cover %d bytes, expected 1000", total)
	}
}

func TestSplitFrames_TinyFrameSize(t *testing.T) {
	// A frame size below the alignment is bumped up to one sample.
	pcm := make([]byte, 8)
	frames := splitFrames(0, pcm, 1, 2)

	if len(frames) != 4 {
		t.Fatalf("Expected 4 single-sample frames, got %d", len(frames))
	}
}

func TestAudioFormat_Durations(t *testing.T) {
	f := AudioFormat{SampleRate: 22050, Channels: 1, BitDepth: 16}

	if got := f.BlockAlign(); got != 2 {
		t.Errorf("BlockAlign = %d, expected 2", got)
	}
	if got := f.BytesPerSecond(); got != 44100 {
		t.Errorf("BytesPerSecond = %d, expected 44100", got)
	}
	if got := f.Duration(44100); got != time.Second {
		t.Errorf("Duration(44100) = %v, expected 1s", got)
	}
	if got := f.BytesFor(time.Second); got != 44100 {
		t.Errorf("BytesFor(1s) = %d, expected 44100", got)
	}

	// BytesFor always lands on a sample boundary.
	if got := f.BytesFor(123 * time.Millisecond); got%2 != 0 {
		t.Errorf("BytesFor(123ms) = %d, not sample aligned", got)
	}
}

func TestAudioFrame_Duration(t *testing.T) {
	f := AudioFormat{SampleRate: 8000, Channels: 1, BitDepth: 16}
	frame := AudioFrame{Data: make([]byte, 320)}

	if got := frame.Duration(f); got != 20*time.Millisecond {
		t.Errorf("Duration = %v, expected 20ms", got)
	}
}
