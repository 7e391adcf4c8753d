package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# synthesis engine: piper or mock
engine: "piper"
# voice model name, or a prefix like "en_US"
voice: "en_US-lessac-medium"
# extra directory to scan for voice models
# voice_dir: "~/piper-models"
# explicit path to the piper binary (default: found on PATH)
# piper_binary: "/usr/local/bin/piper"

# speech rate multiplier (0.5 to 2.0)
speed: 1.0
# playback volume (0.0 to 2.0)
volume: 1.0

# PCM sample rate used by the mock engine; piper voices decide their own
sample_rate: 22050
# frames buffered between synthesis and playback
queue_capacity: 16
# playback length of one frame, in milliseconds
frame_millis: 200
# bound on a single synthesis call
synth_timeout: "30s"

# synthesized audio cache
cache:
  # skip caching entirely
  disabled: false
  # memory tier budget, in megabytes
  memory_mb: 100
  # disk tier budget, in megabytes
  disk_mb: 1024
  # disk tier location (default: the user cache directory)
  # dir: "~/.cache/tts-streamer/synth"

# append logs here instead of stderr
# log_file: "/tmp/tts-streamer.log"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the " + appName + " config file",
	Long:    paragraph(fmt.Sprintf("\n%s the %s config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"), appName)),
	Example: paragraph(appName + " config\n" + appName + " config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd(appName, configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
