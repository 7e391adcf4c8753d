package tts

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for the streaming core.
const (
	// DefaultQueueCapacity bounds the frame queue. Sixteen frames of
	// the default frame length buffer around three seconds of audio,
	// enough to ride out synthesis jitter without hoarding memory.
	DefaultQueueCapacity = 16

	// DefaultFrameMillis is the playback length of one frame. It is
	// also the worst-case reaction time to pause and stop requests,
	// since control is only checked between frames.
	DefaultFrameMillis = 200

	// DefaultSampleRate matches the medium-quality piper voices.
	DefaultSampleRate = 22050

	// DefaultSynthTimeout bounds a single synthesis call.
	DefaultSynthTimeout = 30 * time.Second
)

// AudioFormat describes the PCM layout of a stream.
type AudioFormat struct {
	SampleRate int // Samples per second
	Channels   int // 1 for mono, 2 for stereo
	BitDepth   int // Bits per sample
}

// BlockAlign returns the byte size of one sample across all channels.
func (f AudioFormat) BlockAlign() int {
	return f.Channels * f.BitDepth / 8
}

// BytesPerSecond returns the PCM byte rate of the format.
func (f AudioFormat) BytesPerSecond() int {
	return f.SampleRate * f.BlockAlign()
}

// Duration converts a byte count in this format to playback time.
func (f AudioFormat) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count covering d, rounded down to whole
// samples.
func (f AudioFormat) BytesFor(d time.Duration) int {
	n := int(d * time.Duration(f.BytesPerSecond()) / time.Second)
	if align := f.BlockAlign(); align > 0 {
		n -= n % align
	}
	return n
}

// String returns a compact description such as "22050Hz/1ch/16bit".
func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// Config holds the streaming core settings. Values normally come from
// the config file via viper, with TTS_STREAMER_* environment variables
// overriding individual fields.
type Config struct {
	// Engine selects the synthesis backend.
	Engine string `yaml:"engine" env:"TTS_STREAMER_ENGINE"`

	// Voice is the voice model identifier, such as "en_US-lessac-medium".
	Voice string `yaml:"voice" env:"TTS_STREAMER_VOICE"`

	// VoiceDir is where voice models are discovered.
	VoiceDir string `yaml:"voice_dir" env:"TTS_STREAMER_VOICE_DIR"`

	// PiperBinary overrides piper binary discovery. Empty means look in
	// PATH and the usual install locations.
	PiperBinary string `yaml:"piper_binary" env:"TTS_STREAMER_PIPER_BINARY"`

	// Speed is the speech rate multiplier.
	Speed float64 `yaml:"speed" env:"TTS_STREAMER_SPEED"`

	// Volume scales playback amplitude.
	Volume float64 `yaml:"volume" env:"TTS_STREAMER_VOLUME"`

	// SampleRate is the PCM sample rate in Hz.
	SampleRate int `yaml:"sample_rate" env:"TTS_STREAMER_SAMPLE_RATE"`

	// QueueCapacity bounds the frame queue between producer and consumer.
	QueueCapacity int `yaml:"queue_capacity" env:"TTS_STREAMER_QUEUE_CAPACITY"`

	// FrameMillis is the playback length of one frame in milliseconds.
	FrameMillis int `yaml:"frame_millis" env:"TTS_STREAMER_FRAME_MILLIS"`

	// SynthTimeout bounds a single synthesis call.
	SynthTimeout time.Duration `yaml:"synth_timeout" env:"TTS_STREAMER_SYNTH_TIMEOUT"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:        "piper",
		Voice:         "en_US-lessac-medium",
		Speed:         1.0,
		Volume:        1.0,
		SampleRate:    DefaultSampleRate,
		QueueCapacity: DefaultQueueCapacity,
		FrameMillis:   DefaultFrameMillis,
		SynthTimeout:  DefaultSynthTimeout,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validEngines := []string{"piper", "mock"}
	engineValid := false
	for _, e := range validEngines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = strings.ToLower(c.Engine)
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("invalid engine '%s': must be one of %v", c.Engine, validEngines)
	}

	if c.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}

	if c.Speed < 0.5 || c.Speed > 2.0 {
		return fmt.Errorf("speed must be between 0.5 and 2.0, got %g", c.Speed)
	}

	if c.Volume < 0.0 || c.Volume > 2.0 {
		return fmt.Errorf("volume must be between 0.0 and 2.0, got %g", c.Volume)
	}

	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	sampleRateValid := false
	for _, sr := range validSampleRates {
		if c.SampleRate == sr {
			sampleRateValid = true
			break
		}
	}
	if !sampleRateValid {
		return fmt.Errorf("invalid sample rate %d: must be one of %v", c.SampleRate, validSampleRates)
	}

	if c.QueueCapacity < 1 || c.QueueCapacity > 256 {
		return fmt.Errorf("queue capacity must be between 1 and 256, got %d", c.QueueCapacity)
	}

	if c.FrameMillis < 20 || c.FrameMillis > 1000 {
		return fmt.Errorf("frame length must be between 20 and 1000 ms, got %d", c.FrameMillis)
	}

	if c.SynthTimeout < time.Second {
		return fmt.Errorf("synthesis timeout must be at least 1 second, got %v", c.SynthTimeout)
	}

	return nil
}

// Format returns the PCM layout implied by the configuration. Piper
// voices are mono 16-bit; the sample rate follows the voice model.
func (c *Config) Format() AudioFormat {
	return AudioFormat{
		SampleRate: c.SampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

// FrameBytes returns the byte size of one frame in the configured
// format, aligned to whole samples.
func (c *Config) FrameBytes() int {
	return c.Format().BytesFor(time.Duration(c.FrameMillis) * time.Millisecond)
}

// FrameInterval returns the playback length of one frame.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameMillis) * time.Millisecond
}
