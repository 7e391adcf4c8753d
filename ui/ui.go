// Package ui is the interactive control surface for a streaming
// session. It renders a compact status line inline, so finished output
// stays in the terminal scrollback, and maps a handful of keys onto the
// engine's control surface. Engine events drive the display.
package ui

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/IshankAgarwal/AI-TTS-Streamer/tts"
)

// keyMap defines the playback controls.
type keyMap struct {
	Pause  key.Binding
	Resume key.Binding
	Toggle key.Binding
	Stop   key.Binding
	Copy   key.Binding
	Quit   key.Binding
	Help   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Pause:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Resume: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume")),
		Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Copy:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy segment")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

// ShortHelp returns the bindings for the mini help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Stop, k.Copy, k.Quit, k.Help}
}

// FullHelp returns the bindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.Resume, k.Toggle},
		{k.Stop, k.Quit},
		{k.Copy, k.Help},
	}
}

// eventMsg carries one engine event into the update loop.
type eventMsg struct{ ev tts.Event }

// startFailedMsg reports that the engine refused to start.
type startFailedMsg struct{ err error }

// flashTimeoutMsg clears a transient status message.
type flashTimeoutMsg struct{}

// Model is the inline control surface for one streaming session. The
// engine must be wired but not started; Init starts it.
type Model struct {
	engine *tts.Engine
	doc    string
	voice  string

	status  statusView
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	width    int
	flash    string
	quitting bool
}

// New builds the control surface for a configured engine.
func New(engine *tts.Engine, doc, voice string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))

	return Model{
		engine:  engine,
		doc:     doc,
		voice:   voice,
		status:  newStatusView(),
		keys:    defaultKeyMap(),
		help:    help.New(),
		spinner: sp,
	}
}

// NewProgram wraps the model in a bubbletea program. The session
// renders inline rather than on the alternate screen.
func NewProgram(m Model) *tea.Program {
	return tea.NewProgram(m)
}

// Stats returns the final session stats once the program has finished.
func (m Model) Stats() (tts.SessionStats, bool) {
	if m.status.stats == nil {
		return tts.SessionStats{}, false
	}
	return *m.status.stats, true
}

// Err returns the fatal session error, if any.
func (m Model) Err() error {
	return m.status.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.startEngine, m.listen(), m.spinner.Tick)
}

func (m Model) startEngine() tea.Msg {
	if err := m.engine.Start(); err != nil {
		return startFailedMsg{err}
	}
	return nil
}

// listen waits for the next engine event. The channel never closes;
// after CompletedEvent no further listen command is issued.
func (m Model) listen() tea.Cmd {
	events := m.engine.Events()
	return func() tea.Msg {
		return eventMsg{<-events}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case eventMsg:
		m.status.apply(msg.ev)
		if _, done := msg.ev.(tts.CompletedEvent); done {
			return m, tea.Quit
		}
		cmds := []tea.Cmd{m.listen()}
		if _, ok := msg.ev.(tts.SegmentStartedEvent); ok {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case startFailedMsg:
		m.status.fail(msg.err)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.status.synthesizing {
			return m, cmd
		}
		return m, nil

	case flashTimeoutMsg:
		m.flash = ""
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Pause):
		m.engine.Pause()

	case key.Matches(msg, m.keys.Resume):
		m.engine.Resume()

	case key.Matches(msg, m.keys.Toggle):
		if m.engine.State() == tts.EnginePaused {
			m.engine.Resume()
		} else {
			m.engine.Pause()
		}

	case key.Matches(msg, m.keys.Stop):
		m.engine.Stop()

	case key.Matches(msg, m.keys.Quit):
		if m.quitting || m.status.stats != nil {
			// Second press, or the session already ended.
			return m, tea.Quit
		}
		m.quitting = true
		m.engine.Quit()

	case key.Matches(msg, m.keys.Copy):
		if text := m.status.text; text != "" {
			// Copy using OSC 52 and the native system clipboard.
			termenv.Copy(text)
			_ = clipboard.WriteAll(text)
			m.flash = "copied segment"
			return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg {
				return flashTimeoutMsg{}
			})
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")

	if m.status.stats != nil {
		b.WriteString(m.status.summary())
		b.WriteString("\n")
		return b.String()
	}

	var spin string
	if m.status.synthesizing {
		spin = m.spinner.View()
	}
	b.WriteString(m.status.render(m.width, spin))
	if m.flash != "" {
		b.WriteString("  ")
		b.WriteString(flashStyle.Render(m.flash))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")

	return b.String()
}

func (m Model) header() string {
	h := "reading " + m.doc
	if m.voice != "" {
		h += " · voice " + m.voice
	}
	return headerStyle.Render(h)
}
