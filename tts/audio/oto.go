// Package audio provides the playback sinks for the streaming core: a
// live speaker backed by oto and a rate-paced simulated sink for runs
// without an audio device.
package audio

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

// The oto context is process-wide and cannot be torn down, so it is
// created once and pinned to the first format requested.
var (
	otoCtx     *oto.Context
	otoCtxErr  error
	otoCtxOnce sync.Once
	otoCtxRate int
)

func otoContext(format tts.AudioFormat) (*oto.Context, error) {
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, playback is 16-bit only", format.BitDepth)
	}

	otoCtxOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		switch runtime.GOOS {
		case "darwin":
			op.BufferSize = 100 * time.Millisecond
		default:
			op.BufferSize = 50 * time.Millisecond
		}

		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoCtxErr = fmt.Errorf("opening audio device: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoCtxRate = format.SampleRate
	})

	if otoCtxErr != nil {
		return nil, otoCtxErr
	}
	if otoCtxRate != format.SampleRate {
		return nil, fmt.Errorf("audio device is pinned to %d Hz, cannot switch to %d Hz", otoCtxRate, format.SampleRate)
	}
	return otoCtx, nil
}

// Speaker plays frames on the system audio device. Frames stream
// through a pipe into an oto player, so Write blocks once the device
// buffer is full, which paces the whole pipeline close to real time.
type Speaker struct {
	player *oto.Player
	pw     *io.PipeWriter
	format tts.AudioFormat
	log    *log.Logger
	closed atomic.Bool
}

// NewSpeaker opens the audio device for the given format. Volume is a
// linear multiplier, where 1.0 is unchanged.
func NewSpeaker(format tts.AudioFormat, volume float64, logger *log.Logger) (*Speaker, error) {
	ctx, err := otoContext(format)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	if volume >= 0 && volume != 1.0 {
		player.SetVolume(volume)
	}
	player.Play()

	s := &Speaker{
		player: player,
		pw:     pw,
		format: format,
		log:    logger.WithPrefix("speaker"),
	}
	s.log.Debug("device open", "format", format.String(), "volume", volume)
	return s, nil
}

// Write queues one frame on the device. It blocks while the device
// buffer is full.
func (s *Speaker) Write(frame tts.AudioFrame) error {
	if s.closed.Load() {
		return errors.New("speaker is closed")
	}
	if _, err := s.pw.Write(frame.Data); err != nil {
		return err
	}
	if err := s.player.Err(); err != nil {
		return err
	}
	return nil
}

// Close lets the buffered audio finish and releases the player. Safe
// to call twice.
func (s *Speaker) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.pw.Close()

	// Give the device buffer a moment to play out the tail instead of
	// clipping it.
	deadline := time.Now().Add(2 * time.Second)
	for s.player.IsPlaying() && s.player.BufferedSize() > 0 {
		if time.Now().After(deadline) {
			s.log.Warn("device did not drain, closing anyway")
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return s.player.Close()
}
