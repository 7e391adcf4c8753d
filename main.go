package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/IshankAgarwal/AI-TTS-Streamer/internal/cache"
	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
	"github.com/IshankAgarwal/AI-TTS-Streamer/tts/audio"
	"github.com/IshankAgarwal/AI-TTS-Streamer/tts/engines"
	"github.com/IshankAgarwal/AI-TTS-Streamer/tts/source"
	"github.com/IshankAgarwal/AI-TTS-Streamer/ui"
)

const appName = "tts-streamer"

// watchDebounce soaks up the burst of filesystem events an editor
// fires for a single save.
const watchDebounce = 300 * time.Millisecond

// errWatchDone ends a watch loop cleanly on SIGINT.
var errWatchDone = errors.New("watch interrupted")

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	voiceQuery string
	engineName string
	voiceDir   string
	speed      float64
	volume     float64
	noAudio    bool
	plainMode  bool
	previewDoc bool
	watchFiles bool
	startLine  int
	debug      bool

	// coreCfg is the validated engine configuration assembled in
	// validateOptions. Everything after flag parsing reads it.
	coreCfg tts.Config

	keyword = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF")).Render
	subtle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render

	rootCmd = &cobra.Command{
		Use:   appName + " [SOURCE]",
		Short: "Read markdown and text aloud from the command line",
		Long: paragraph(fmt.Sprintf(
			"\nRead markdown and text aloud from the command line, %s.",
			keyword("synthesizing ahead of playback"),
		)),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func paragraph(s string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render(s)
}

// sourceArg picks the document argument, falling back to piped stdin
// and then to the current directory.
func sourceArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	piped, err := stdinIsPipe()
	if err != nil {
		return "", err
	}
	if piped {
		return "-", nil
	}
	return ".", nil
}

func execute(cmd *cobra.Command, args []string) error {
	arg, err := sourceArg(args)
	if err != nil {
		return err
	}

	doc, err := source.Resolve(arg)
	if err != nil {
		return err
	}

	if previewDoc {
		return runPreview(doc)
	}
	return runSessions(doc)
}

// runSessions plays the document, and with --watch keeps replaying it
// every time the underlying file changes. Quitting the session or
// interrupting the watch ends the loop; stopping only ends the current
// playback.
func runSessions(doc *source.Document) error {
	watching := watchFiles && doc.Path != ""
	if watchFiles && doc.Path == "" {
		log.Warn("watch needs a file source; running once", "source", doc.Name)
	}

	for {
		stats, err := runOnce(doc)
		if err != nil {
			return err
		}
		if !watching || stats.Reason == tts.StopReasonQuit {
			return nil
		}
		if err := waitForChange(doc.Path); err != nil {
			if errors.Is(err, errWatchDone) {
				return nil
			}
			return err
		}
		next, err := source.Resolve(doc.Path)
		if err != nil {
			return err
		}
		doc = next
	}
}

// runOnce wires one engine and plays the document through it. The
// engine owns the synthesizer and the sink; closing it tears both down.
func runOnce(doc *source.Document) (tts.SessionStats, error) {
	logger := log.Default()

	synth, cleanup, err := buildSynthesizer(logger)
	if err != nil {
		return tts.SessionStats{}, err
	}
	defer cleanup()

	out, err := buildSink(synth.Format(), logger)
	if err != nil {
		return tts.SessionStats{}, err
	}

	// The voice model decides the true sample rate; the configured
	// one only seeds discovery.
	cfg := coreCfg
	cfg.SampleRate = synth.Format().SampleRate

	e, err := tts.New(cfg, doc.Segments(startLine), synth, out)
	if err != nil {
		_ = out.Close()
		return tts.SessionStats{}, err
	}
	defer e.Close() //nolint:errcheck
	e.SetLogger(logger)

	var stats tts.SessionStats
	if useUI() {
		stats, err = runUI(e, doc, synth.Voice())
	} else {
		stats, err = runPlain(e)
	}
	logStats(e, stats)
	return stats, err
}

// buildSynthesizer constructs the configured engine. The returned
// cleanup releases resources the engine itself does not own, which
// today is only the synthesis cache.
func buildSynthesizer(logger *log.Logger) (tts.Synthesizer, func(), error) {
	if coreCfg.Engine == "mock" {
		return engines.NewMock(coreCfg.Format(), engines.MockConfig{}), func() {}, nil
	}

	dirs := engines.DefaultVoiceDirs()
	if coreCfg.VoiceDir != "" {
		dirs = []string{coreCfg.VoiceDir}
	}
	voices, err := engines.DiscoverVoices(dirs...)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to scan voice models: %w", err)
	}
	voice, err := engines.SelectVoice(voices, coreCfg.Voice)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("voice selected", "name", voice.Name, "model", voice.ModelPath)

	p, err := engines.NewPiper(coreCfg, voice, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if !viper.GetBool("cache.disabled") {
		mgr, err := cache.New(cacheConfig(), logger)
		if err != nil {
			log.Warn("synthesis cache unavailable", "err", err)
		} else {
			p.SetCache(mgr)
			cleanup = func() { _ = mgr.Close() }
		}
	}
	return p, cleanup, nil
}

func cacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	if mb := viper.GetInt64("cache.memory_mb"); mb > 0 {
		cfg.MemoryBytes = mb << 20
	}
	if mb := viper.GetInt64("cache.disk_mb"); mb > 0 {
		cfg.DiskBytes = mb << 20
	}
	cfg.Dir = viper.GetString("cache.dir")
	if cfg.Dir != "" {
		if dir, err := homedir.Expand(cfg.Dir); err == nil {
			cfg.Dir = dir
		}
	} else {
		scope := gap.NewScope(gap.User, appName)
		if dir, err := scope.CacheDir(); err == nil {
			cfg.Dir = filepath.Join(dir, "synth")
		}
	}
	return cfg
}

func buildSink(format tts.AudioFormat, logger *log.Logger) (tts.Output, error) {
	if noAudio {
		return audio.NewSim(format, 1.0, logger), nil
	}
	sp, err := audio.NewSpeaker(format, coreCfg.Volume, logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio device (try --no-audio): %w", err)
	}
	return sp, nil
}

// runUI drives the session through the interactive display. The final
// model carries the session stats once playback ends.
func runUI(e *tts.Engine, doc *source.Document, voice string) (tts.SessionStats, error) {
	m := ui.New(e, doc.Name, voice)
	final, err := ui.NewProgram(m).Run()
	if err != nil {
		return tts.SessionStats{}, fmt.Errorf("unable to run the display: %w", err)
	}

	if fm, ok := final.(ui.Model); ok {
		if stats, done := fm.Stats(); done {
			return stats, stats.Err
		}
		if err := fm.Err(); err != nil {
			return tts.SessionStats{}, err
		}
	}

	// The display exited before the stream finished. Drop the rest
	// and collect whatever the engine accounted for.
	e.Quit()
	stats, err := e.AwaitCompletion()
	if errors.Is(err, tts.ErrNotStarted) {
		return tts.SessionStats{}, nil
	}
	return stats, err
}

// runPlain streams without the display, for pipes and dumb terminals.
// The first interrupt finishes the queued audio; the second drops it.
func runPlain(e *tts.Engine) (tts.SessionStats, error) {
	if err := e.Start(); err != nil {
		return tts.SessionStats{}, err
	}

	done := make(chan struct{})
	defer close(done)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
			log.Info("finishing queued audio, interrupt again to drop it")
			e.Stop()
		case <-done:
			return
		}
		select {
		case <-sigs:
			e.Quit()
		case <-done:
		}
	}()

	stats, err := e.AwaitCompletion()
	return stats, err
}

func logStats(e *tts.Engine, stats tts.SessionStats) {
	if stats.Reason == "" {
		return
	}
	q := e.Status().Queue
	log.Info("session finished",
		"reason", stats.Reason,
		"segments", stats.Segments,
		"skipped", stats.SegmentsSkipped,
		"frames", stats.FramesPlayed,
		"abandoned", stats.FramesAbandoned,
		"pcm", humanize.Bytes(uint64(stats.BytesSynthesized)),
		"audio", stats.AudioPlayed.Round(time.Millisecond),
		"wall", stats.Elapsed.Round(time.Millisecond),
	)
	log.Debug("queue totals",
		"enqueued", q.TotalEnqueued,
		"dequeued", q.TotalDequeued,
		"peak", q.PeakSize,
	)
}

// runPreview prints the document with line numbers so --start-line has
// something to aim at. Markdown gets a rendered copy first when stdout
// is a terminal; the numbers always refer to the raw lines, which is
// what segmentation counts.
func runPreview(doc *source.Document) error {
	if doc.Markdown && term.IsTerminal(int(os.Stdout.Fd())) {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(int(terminalWidth())), //nolint:gosec
		)
		if err != nil {
			return fmt.Errorf("unable to create renderer: %w", err)
		}
		out, err := r.Render(doc.Raw())
		if err != nil {
			return fmt.Errorf("unable to render markdown: %w", err)
		}
		fmt.Print(out)
		fmt.Println(subtle(strings.Repeat("─", 40)))
	}

	for i, line := range doc.Lines() {
		fmt.Printf("%s %s\n", subtle(fmt.Sprintf("%4d", i+1)), line)
	}

	target := doc.Path
	if target == "" {
		target = doc.Name
	}
	fmt.Println()
	fmt.Println(subtle(fmt.Sprintf("pick a line, then: %s %s --start-line N", appName, target)))
	return nil
}

// waitForChange blocks until the watched file is written again or the
// user interrupts. The parent directory is watched because editors
// replace files on save, which retires the original inode.
func waitForChange(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch for changes: %w", err)
	}
	defer w.Close() //nolint:errcheck

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", dir, err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	log.Info("watching for changes", "path", path)

	for {
		select {
		case <-sigs:
			return errWatchDone
		case err := <-w.Errors:
			return fmt.Errorf("watch failed: %w", err)
		case ev := <-w.Events:
			if filepath.Clean(ev.Name) != path || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			debounce := time.NewTimer(watchDebounce)
			for {
				select {
				case <-w.Events:
					if !debounce.Stop() {
						<-debounce.C
					}
					debounce.Reset(watchDebounce)
				case <-debounce.C:
					return nil
				case <-sigs:
					debounce.Stop()
					return errWatchDone
				}
			}
		}
	}
}

// useUI reports whether the interactive display should drive the
// session. Piped input or output falls back to the plain runner.
func useUI() bool {
	return !plainMode &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd()))
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func terminalWidth() uint {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width := uint(w) //nolint:gosec
		if width > 120 {
			width = 120
		}
		return width
	}
	return 80
}

// validateOptions folds the flag, file and environment configuration
// into coreCfg and rejects anything out of range before a session
// starts.
func validateOptions(cmd *cobra.Command) error {
	cfg := tts.DefaultConfig()
	cfg.Engine = viper.GetString("engine")
	cfg.Voice = viper.GetString("voice")
	cfg.VoiceDir = viper.GetString("voice_dir")
	cfg.PiperBinary = viper.GetString("piper_binary")
	cfg.Speed = viper.GetFloat64("speed")
	cfg.Volume = viper.GetFloat64("volume")
	if sr := viper.GetInt("sample_rate"); sr > 0 {
		cfg.SampleRate = sr
	}
	if qc := viper.GetInt("queue_capacity"); qc > 0 {
		cfg.QueueCapacity = qc
	}
	if fm := viper.GetInt("frame_millis"); fm > 0 {
		cfg.FrameMillis = fm
	}
	if st := viper.GetDuration("synth_timeout"); st > 0 {
		cfg.SynthTimeout = st
	}

	// The environment wins over both the file and the flags.
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}
	if cfg.VoiceDir != "" {
		dir, err := homedir.Expand(cfg.VoiceDir)
		if err != nil {
			return fmt.Errorf("unable to expand voice dir: %w", err)
		}
		cfg.VoiceDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	coreCfg = cfg

	noAudio = viper.GetBool("no_audio")
	plainMode = viper.GetBool("plain")

	if debug || viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	if useUI() && viper.GetString("log_file") == "" {
		// Engine logs would tear the inline display.
		log.SetOutput(io.Discard)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

// setupLog routes logging to stderr, or to the configured log file.
// The file logger records everything with timestamps, so a quiet
// session stays debuggable after the fact.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)

	logFile := viper.GetString("log_file")
	if logFile == "" {
		return func() error { return nil }, nil
	}

	path, err := homedir.Expand(logFile)
	if err != nil {
		return nil, fmt.Errorf("unable to expand log path: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetDefault(log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           log.DebugLevel,
	}))
	return f.Close, nil
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("TTS_STREAMER_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("tts_streamer")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

var manCmd = &cobra.Command{
	Use:    "man",
	Short:  "Generate man pages",
	Args:   cobra.NoArgs,
	Hidden: true,
	RunE: func(*cobra.Command, []string) error {
		manPage, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return fmt.Errorf("unable to generate man page: %w", err)
		}
		_, err = fmt.Fprint(os.Stdout, manPage.Build(roff.NewDocument()))
		return err
	},
}

func init() {
	tryLoadConfigFromDefaultPlaces()

	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVarP(&engineName, "engine", "e", "", "synthesis engine (piper or mock)")
	rootCmd.Flags().StringVarP(&voiceQuery, "voice", "v", "", "voice model name or language prefix")
	rootCmd.Flags().StringVar(&voiceDir, "voice-dir", "", "directory holding piper voice models")
	rootCmd.Flags().Float64Var(&speed, "speed", 1.0, "speech rate, 0.5 to 2.0")
	rootCmd.Flags().Float64Var(&volume, "volume", 1.0, "playback volume, 0.0 to 2.0")
	rootCmd.Flags().BoolVar(&noAudio, "no-audio", false, "pace the stream without an audio device")
	rootCmd.Flags().IntVar(&startLine, "start-line", 0, "start reading at this line")
	rootCmd.Flags().BoolVar(&previewDoc, "preview", false, "print the numbered document and exit")
	rootCmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "replay when the file changes")
	rootCmd.Flags().BoolVar(&plainMode, "plain", false, "run without the interactive display")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "log debug output")

	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("voice_dir", rootCmd.Flags().Lookup("voice-dir"))
	_ = viper.BindPFlag("speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("volume", rootCmd.Flags().Lookup("volume"))
	_ = viper.BindPFlag("no_audio", rootCmd.Flags().Lookup("no-audio"))
	_ = viper.BindPFlag("plain", rootCmd.Flags().Lookup("plain"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))

	viper.SetDefault("engine", "piper")
	viper.SetDefault("voice", "en_US-lessac-medium")
	viper.SetDefault("voice_dir", "")
	viper.SetDefault("piper_binary", "")
	viper.SetDefault("speed", 1.0)
	viper.SetDefault("volume", 1.0)
	viper.SetDefault("sample_rate", tts.DefaultSampleRate)
	viper.SetDefault("queue_capacity", tts.DefaultQueueCapacity)
	viper.SetDefault("frame_millis", tts.DefaultFrameMillis)
	viper.SetDefault("synth_timeout", "30s")
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.memory_mb", 100)
	viper.SetDefault("cache.disk_mb", 1024)
	viper.SetDefault("cache.disabled", false)
	viper.SetDefault("log_file", "")

	rootCmd.AddCommand(configCmd, voicesCmd, manCmd)
}
