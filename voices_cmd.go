package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts/engines"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List installed piper voice models",
	Long: paragraph(fmt.Sprintf(
		"\nList the piper voice models %s can stream with. Models are matched by name or by a language prefix, so --voice en_GB picks the first British voice.",
		keyword(appName),
	)),
	Example: paragraph(appName + " voices\n" + appName + " voices --voice-dir ~/my-models"),
	Args:    cobra.NoArgs,
	RunE:    listVoices,
}

func listVoices(*cobra.Command, []string) error {
	dirs := engines.DefaultVoiceDirs()
	if coreCfg.VoiceDir != "" {
		dirs = []string{coreCfg.VoiceDir}
	}

	voices, err := engines.DiscoverVoices(dirs...)
	if err != nil {
		return fmt.Errorf("unable to scan voice models: %w", err)
	}

	if len(voices) == 0 {
		fmt.Println(paragraph(fmt.Sprintf(
			"\nNo voice models found. Download piper %s models, with their %s sidecars, into one of:",
			keyword(".onnx"), keyword(".onnx.json"),
		)))
		for _, d := range dirs {
			fmt.Println("  " + d)
		}
		return nil
	}

	// Mark the voice a bare run would pick.
	selected := ""
	if v, err := engines.SelectVoice(voices, coreCfg.Voice); err == nil {
		selected = v.ModelPath
	}

	nameW := runewidth.StringWidth("NAME")
	langW := runewidth.StringWidth("LANGUAGE")
	qualW := runewidth.StringWidth("QUALITY")
	for _, v := range voices {
		if n := runewidth.StringWidth(v.Name); n > nameW {
			nameW = n
		}
		if n := runewidth.StringWidth(v.Language); n > langW {
			langW = n
		}
		if n := runewidth.StringWidth(v.Quality); n > qualW {
			qualW = n
		}
	}

	bold := lipgloss.NewStyle().Bold(true).Render
	fmt.Printf("  %s  %s  %s  %s\n",
		bold(runewidth.FillRight("NAME", nameW)),
		bold(runewidth.FillRight("LANGUAGE", langW)),
		bold(runewidth.FillRight("QUALITY", qualW)),
		bold("SIZE"),
	)
	for _, v := range voices {
		marker := " "
		if v.ModelPath == selected {
			marker = keyword("●")
		}
		fmt.Printf("%s %s  %s  %s  %s\n",
			marker,
			runewidth.FillRight(v.Name, nameW),
			runewidth.FillRight(v.Language, langW),
			runewidth.FillRight(v.Quality, qualW),
			humanize.Bytes(uint64(v.Size)), //nolint:gosec
		)
	}

	fmt.Println()
	fmt.Println(subtle(fmt.Sprintf("%d voices found. Pick one with --voice NAME.", len(voices))))
	return nil
}
