package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

var (
	sepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	flashStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))
	drainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

// statusView folds engine events into the fields the status line shows.
// The bubbletea update loop owns it; there is no locking.
type statusView struct {
	state        tts.EngineState
	segment      int    // index of the segment being heard
	text         string // its text
	texts        map[int]string
	skipped      int
	synthesizing bool
	draining     bool
	queued       int
	frames       int64
	bytes        int64
	played       time.Duration
	err          error
	stats        *tts.SessionStats
}

func newStatusView() statusView {
	return statusView{
		state:   tts.EngineIdle,
		segment: -1,
		texts:   make(map[int]string),
	}
}

// apply updates the view from one engine event.
func (s *statusView) apply(ev tts.Event) {
	switch m := ev.(type) {
	case tts.SegmentStartedEvent:
		if s.state == tts.EngineIdle {
			s.state = tts.EngineRunning
		}
		s.synthesizing = true
		s.texts[m.Index] = m.Text
		if s.segment < 0 {
			s.segment = m.Index
			s.text = m.Text
		}

	case tts.SegmentSynthesizedEvent:
		s.synthesizing = false
		s.bytes += int64(m.Bytes)

	case tts.SegmentSkippedEvent:
		s.synthesizing = false
		s.skipped++
		delete(s.texts, m.Index)

	case tts.FramePlayedEvent:
		if s.state == tts.EngineIdle {
			s.state = tts.EngineRunning
		}
		s.frames++
		s.played += m.Length
		s.queued = m.QueueDepth
		if m.Segment != s.segment {
			s.segment = m.Segment
			s.text = s.texts[m.Segment]
			for idx := range s.texts {
				if idx < m.Segment {
					delete(s.texts, idx)
				}
			}
		}

	case tts.PausedEvent:
		s.state = tts.EnginePaused

	case tts.ResumedEvent:
		s.state = tts.EngineRunning

	case tts.DrainingEvent:
		s.draining = true
		s.queued = m.Queued

	case tts.StoppedEvent:
		s.state = tts.EngineStopping

	case tts.CompletedEvent:
		st := m.Stats
		s.stats = &st
		s.err = st.Err
		if st.Err != nil {
			s.state = tts.EngineError
		} else {
			s.state = tts.EngineDone
		}
	}
}

// fail marks the session as broken before it produced any events.
func (s *statusView) fail(err error) {
	s.state = tts.EngineError
	s.err = err
}

// render draws the one-line status. A non-empty spin frame replaces the
// state icon while a segment is being synthesized.
func (s *statusView) render(width int, spin string) string {
	icon := stateStyle(s.state).Render(stateIcon(s.state))
	if spin != "" && s.state == tts.EngineRunning {
		icon = spin
	}

	parts := []string{
		icon + " " + runewidth.FillLeft(formatDuration(s.played), 5),
	}

	if s.segment >= 0 {
		counter := fmt.Sprintf("seg %d", s.segment+1)
		if s.skipped > 0 {
			counter += fmt.Sprintf(" (%d skipped)", s.skipped)
		}
		parts = append(parts, counterStyle.Render(counter))
	}

	if s.frames > 0 {
		parts = append(parts, counterStyle.Render(
			fmt.Sprintf("%d frames · %s", s.frames, humanize.Bytes(uint64(s.bytes))),
		))
	}

	if s.draining && s.state != tts.EngineDone {
		parts = append(parts, drainStyle.Render(fmt.Sprintf("draining %d", s.queued)))
	}

	if s.err != nil {
		parts = append(parts, errStyle.Render(s.err.Error()))
	}

	line := strings.Join(parts, sepStyle.Render(" │ "))

	if s.text != "" && width > 0 {
		room := width - lipgloss.Width(line) - 3
		if room > 8 {
			line += sepStyle.Render(" │ ") + truncate.StringWithTail(s.text, uint(room), "...")
		}
	}

	return line
}

// summary draws the end-of-session line.
func (s *statusView) summary() string {
	st := s.stats
	if st == nil {
		return ""
	}
	if st.Err != nil {
		return errStyle.Render(fmt.Sprintf("✗ %v", st.Err))
	}

	var label string
	switch st.Reason {
	case tts.StopReasonComplete:
		label = "finished"
	case tts.StopReasonUser:
		label = "stopped"
	case tts.StopReasonQuit:
		label = "quit"
	default:
		label = string(st.Reason)
	}

	segments := fmt.Sprintf("%d segments", st.Segments)
	if st.SegmentsSkipped > 0 {
		segments += fmt.Sprintf(" (%d skipped)", st.SegmentsSkipped)
	}

	parts := []string{
		stateStyle(tts.EngineDone).Render("■ " + label),
		segments,
		fmt.Sprintf("%d frames · %s", st.FramesPlayed, humanize.Bytes(uint64(st.BytesSynthesized))),
		fmt.Sprintf("audio %s · wall %s", formatDuration(st.AudioPlayed), formatDuration(st.Elapsed)),
	}

	return strings.Join(parts, sepStyle.Render(" │ "))
}

// stateIcon returns the glyph for an engine state.
func stateIcon(st tts.EngineState) string {
	switch st {
	case tts.EngineRunning:
		return "▶"
	case tts.EnginePaused:
		return "⏸"
	case tts.EngineStopping:
		return "◼"
	case tts.EngineError:
		return "✗"
	case tts.EngineIdle, tts.EngineDone:
		return "■"
	default:
		return "○"
	}
}

// stateColor returns the display color for an engine state.
func stateColor(st tts.EngineState) lipgloss.Color {
	switch st {
	case tts.EngineRunning:
		return lipgloss.Color("#00FF00")
	case tts.EnginePaused:
		return lipgloss.Color("#FFFF00")
	case tts.EngineStopping:
		return lipgloss.Color("#FF8800")
	case tts.EngineError:
		return lipgloss.Color("#FF0000")
	default:
		return lipgloss.Color("#888888")
	}
}

func stateStyle(st tts.EngineState) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(stateColor(st))
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
