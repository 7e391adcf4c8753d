package audio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

// Sim consumes frames at playback speed without touching an audio
// device. It stands in for the speaker under --no-audio and in tests,
// keeping the pipeline's timing behavior intact: writes block for as
// long as the frame would take to play, scaled by the speedup factor.
type Sim struct {
	format  tts.AudioFormat
	limiter *rate.Limiter
	log     *log.Logger

	frames atomic.Int64
	bytes  atomic.Int64
}

// NewSim builds a simulated sink. A speedup of 1.0 paces writes in
// real time; larger values run proportionally faster.
func NewSim(format tts.AudioFormat, speedup float64, logger *log.Logger) *Sim {
	if speedup <= 0 {
		speedup = 1.0
	}
	bps := float64(format.BytesPerSecond()) * speedup
	burst := int(bps)
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(bps), burst)
	// Start the bucket empty so pacing holds from the first frame.
	limiter.ReserveN(time.Now(), burst)

	return &Sim{
		format:  format,
		limiter: limiter,
		log:     logger.WithPrefix("sim"),
	}
}

// Write blocks for the frame's scaled playback time.
func (s *Sim) Write(frame tts.AudioFrame) error {
	if err := s.limiter.WaitN(context.Background(), len(frame.Data)); err != nil {
		return err
	}
	s.frames.Add(1)
	s.bytes.Add(int64(len(frame.Data)))
	return nil
}

// Close implements the sink interface.
func (s *Sim) Close() error {
	s.log.Debug("sim sink done", "frames", s.frames.Load(), "bytes", s.bytes.Load())
	return nil
}

// Frames returns how many frames have been written.
func (s *Sim) Frames() int64 { return s.frames.Load() }

// Bytes returns how many PCM bytes have been written.
func (s *Sim) Bytes() int64 { return s.bytes.Load() }
