package engines

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

// SynthesisCache stores rendered PCM keyed by the synthesis inputs.
// A nil cache disables caching.
type SynthesisCache interface {
	Get(key string) ([]byte, bool)
	Put(key string, pcm []byte)
}

// Piper renders text with the piper binary, one subprocess per
// synthesis call. A fresh process per call costs a little startup time
// but can never wedge the whole session the way a long-lived pipe can:
// cancellation just kills the child.
type Piper struct {
	binary  string
	voice   Voice
	speed   float64
	speaker int
	format  tts.AudioFormat
	cache   SynthesisCache
	log     *log.Logger
}

// modelConfig is the slice of the piper .onnx.json we care about.
type modelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	NumSpeakers int `json:"num_speakers"`
}

// NewPiper builds a piper engine for the given voice. The binary is
// resolved from the config override, then PATH, then the usual install
// locations. The output sample rate comes from the model's config
// file, falling back to the configured rate.
func NewPiper(cfg tts.Config, voice Voice, logger *log.Logger) (*Piper, error) {
	binary, err := findPiperBinary(cfg.PiperBinary)
	if err != nil {
		return nil, err
	}

	format := tts.AudioFormat{SampleRate: cfg.SampleRate, Channels: 1, BitDepth: 16}
	if mc, err := readModelConfig(voice.ConfigPath); err == nil && mc.Audio.SampleRate > 0 {
		format.SampleRate = mc.Audio.SampleRate
	}

	p := &Piper{
		binary:  binary,
		voice:   voice,
		speed:   cfg.Speed,
		speaker: -1,
		format:  format,
		log:     logger.WithPrefix("piper"),
	}
	p.log.Debug("engine ready",
		"binary", binary,
		"model", voice.ModelPath,
		"format", format.String())
	return p, nil
}

// SetCache attaches a synthesis cache. Call before the engine is used.
func (p *Piper) SetCache(c SynthesisCache) { p.cache = c }

// SetSpeaker selects a speaker id for multi-speaker models. Negative
// means the model default.
func (p *Piper) SetSpeaker(id int) { p.speaker = id }

// Voice returns the active voice model name.
func (p *Piper) Voice() string { return p.voice.Name }

// Format returns the PCM layout piper produces for this model.
func (p *Piper) Format() tts.AudioFormat { return p.format }

// Synthesize renders text to raw PCM. The subprocess runs under ctx,
// so cancelling the session kills an in-flight child. Timeouts, empty
// output and per-text failures come back transient; a missing binary,
// model or config comes back fatal.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var key string
	if p.cache != nil {
		key = p.synthKey(text)
		if pcm, ok := p.cache.Get(key); ok {
			p.log.Debug("cache hit", "bytes", len(pcm))
			return pcm, nil
		}
	}

	cmd := exec.CommandContext(ctx, p.binary, p.args()...)
	cmd.Stdin = strings.NewReader(text + "\n")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, p.classify(ctx, err, stderr.String())
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, p.transient(errors.New("no audio produced"))
	}
	if rem := len(pcm) % p.format.BlockAlign(); rem != 0 {
		// Pad a truncated trailing sample rather than dropping it.
		pcm = append(pcm, make([]byte, p.format.BlockAlign()-rem)...)
	}

	if p.cache != nil {
		p.cache.Put(key, pcm)
	}
	p.log.Debug("synthesized",
		"chars", len(text),
		"bytes", len(pcm),
		"elapsed", time.Since(start))
	return pcm, nil
}

// Validate checks that the binary and model are usable by rendering a
// short test phrase.
func (p *Piper) Validate(ctx context.Context) error {
	if _, err := os.Stat(p.voice.ModelPath); err != nil {
		return fmt.Errorf("voice model not accessible: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := p.Synthesize(ctx, "ready"); err != nil {
		return fmt.Errorf("test synthesis failed: %w", err)
	}
	return nil
}

func (p *Piper) args() []string {
	args := []string{"--model", p.voice.ModelPath, "--output-raw"}
	if p.voice.ConfigPath != "" {
		args = append(args, "--config", p.voice.ConfigPath)
	}
	if p.speed > 0 && p.speed != 1.0 {
		// Piper scales phoneme length, so a faster rate is a smaller
		// scale.
		args = append(args, "--length-scale", strconv.FormatFloat(1.0/p.speed, 'f', 3, 64))
	}
	if p.speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(p.speaker))
	}
	return args
}

// classify turns a subprocess failure into the session error taxonomy.
func (p *Piper) classify(ctx context.Context, runErr error, stderr string) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return p.transient(fmt.Errorf("synthesis timed out: %w", ctx.Err()))
	}

	cause := runErr
	if line := lastLine(stderr); line != "" {
		cause = fmt.Errorf("%w: %s", runErr, line)
	}

	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, fs.ErrNotExist) || fatalStderr(stderr) {
		return p.fatal(cause)
	}
	return p.transient(cause)
}

// fatalStderr reports whether piper's stderr points at a setup problem
// that retrying with different text cannot fix.
func fatalStderr(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{
		"no such file",
		"failed to load",
		"invalid model",
		"onnxruntime",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func (p *Piper) transient(err error) error {
	return &tts.SynthesisError{Segment: tts.NoSegment, Voice: p.voice.Name, Err: err}
}

func (p *Piper) fatal(err error) error {
	return &tts.SynthesisError{Segment: tts.NoSegment, Voice: p.voice.Name, Fatal: true, Err: err}
}

// synthKey digests everything that shapes the output, so a cache entry
// is valid only for this exact text, voice and rate.
func (p *Piper) synthKey(text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%.3f\x00%d", text, p.voice.Name, p.speed, p.speaker)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// findPiperBinary resolves the piper executable. An explicit override
// must exist; otherwise PATH is searched, then the common install
// locations.
func findPiperBinary(override string) (string, error) {
	if override != "" {
		expanded, err := homedir.Expand(override)
		if err == nil {
			override = expanded
		}
		if path, err := exec.LookPath(override); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("piper binary not found at %q", override)
	}

	if path, err := exec.LookPath("piper"); err == nil {
		return path, nil
	}

	locations := []string{
		"/usr/local/bin/piper",
		"/usr/bin/piper",
	}
	if home, err := homedir.Dir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".local", "bin", "piper"),
			filepath.Join(home, "bin", "piper"),
		)
	}
	for _, loc := range locations {
		if info, err := os.Stat(loc); err == nil && !info.IsDir() {
			return loc, nil
		}
	}
	return "", errors.New("piper binary not found, install piper or set piper_binary")
}

// readModelConfig parses the sibling .onnx.json of a voice model.
func readModelConfig(path string) (modelConfig, error) {
	var mc modelConfig
	if path == "" {
		return mc, errors.New("no model config")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mc, err
	}
	if err := json.Unmarshal(data, &mc); err != nil {
		return mc, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return mc, nil
}
