//go:build !gui

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/metcalfc/scrawl/internal/config"
	"github.com/metcalfc/scrawl/internal/export"
	"github.com/metcalfc/scrawl/internal/reveal"
	"github.com/metcalfc/scrawl/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	matchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFD700"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	copiedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

const controlsHelp = "/: search  c: copy  t: export .txt  p: export .pdf  s: skip  r: reload  q: quit"

// configChangedMsg carries reloaded settings into the event loop.
type configChangedMsg struct {
	cfg session.Config
}

type model struct {
	s       *session.Session
	load    session.LoadFunc
	fetch   session.FetchFunc
	label   string
	updates <-chan session.Config

	search    textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	searching bool
	quitting  bool
	width     int
	height    int
}

func newModel(s *session.Session, load session.LoadFunc, fetch session.FetchFunc, label string, updates <-chan session.Config) model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search"
	ti.CharLimit = 256

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := model{
		s:        s,
		load:     load,
		fetch:    fetch,
		label:    label,
		updates:  updates,
		search:   ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
	m.resize()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.s.LoadDictionary(m.load),
		m.s.Upload(m.label, m.fetch),
		waitForConfig(m.updates),
	)
}

func waitForConfig(ch <-chan session.Config) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return nil
		}
		return configChangedMsg{cfg: cfg}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			cmds = append(cmds, m.updateSearch(msg))
			break
		}
		switch msg.String() {
		case "/":
			m.searching = true
			cmds = append(cmds, m.search.Focus())
		case "esc":
			m.search.SetValue("")
			m.s.SetQuery("")
			m.s.ClearNotice()
		case "c":
			cmds = append(cmds, m.s.Copy())
		case "t":
			m.s.Export(export.Text)
		case "p":
			m.s.Export(export.PDF)
		case "s":
			m.s.SkipReveal()
		case "r":
			cmds = append(cmds, m.s.Upload(m.label, m.fetch))
		case "q", "Q", "ctrl+c":
			m.quitting = true
			m.s.Close()
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case configChangedMsg:
		m.s.ApplyConfig(msg.cfg)
		cmds = append(cmds, waitForConfig(m.updates))

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	default:
		cmds = append(cmds, m.s.Update(msg))
		if m.searching {
			var cmd tea.Cmd
			m.search, cmd = m.search.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.refresh()
	return m, tea.Batch(cmds...)
}

// updateSearch feeds a key to the search box. Enter keeps the query and
// leaves the box; esc clears it.
func (m *model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.s.SetQuery("")
		m.resize()
		return nil
	case "enter":
		m.searching = false
		m.search.Blur()
		m.resize()
		return nil
	case "ctrl+c":
		m.quitting = true
		m.s.Close()
		return tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.s.SetQuery(m.search.Value())
	return cmd
}

// resize fits the viewport between the header and the footer.
func (m *model) resize() {
	footer := 2
	if m.searching || m.s.Query() != "" {
		footer++
	}
	h := m.height - 2 - footer
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.search.Width = m.width - 4
}

// refresh re-renders the document into the viewport. While text is still
// being typed the view follows the cursor.
func (m *model) refresh() {
	m.resize()
	m.viewport.SetContent(m.body())
	if m.s.RevealState() == reveal.Revealing {
		m.viewport.GotoBottom()
	}
}

func (m model) body() string {
	width := m.width
	if width < 10 {
		width = 10
	}

	var sb strings.Builder
	sb.WriteString(wordwrap.String(renderSpans(m.s.Spans(), matchStyle), width))

	if m.s.RevealState() == reveal.Complete && m.s.HasCorrections() {
		sb.WriteString("\n\n")
		sb.WriteString(sectionStyle.Render("Corrected"))
		sb.WriteString("\n")
		sb.WriteString(wordwrap.String(renderSpans(m.s.CorrectedSpans(), matchStyle), width))
	}
	return sb.String()
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n\n")

	switch {
	case m.s.Loading():
		sb.WriteString(fmt.Sprintf("  %s Reading %s...", m.spinner.View(), m.s.Label()))
	case m.s.Raw() == "" && m.s.Notice().Err == nil:
		sb.WriteString("  No text.")
	default:
		sb.WriteString(m.viewport.View())
	}
	sb.WriteString("\n")

	if m.searching {
		sb.WriteString(m.search.View())
		sb.WriteString("\n")
	} else if q := m.s.Query(); q != "" {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("search %q: %d matches (esc to clear)", q, m.s.Matches())))
		sb.WriteString("\n")
	}

	if n := m.s.Notice(); !n.Empty() {
		if n.Err != nil {
			sb.WriteString(errorStyle.Render(n.String()))
		} else {
			sb.WriteString(noticeStyle.Render(n.String()))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(controlsStyle.Render(controlsHelp))
	return sb.String()
}

func (m model) header() string {
	title := titleStyle.Render("scrawl")
	if label := m.s.Label(); label != "" {
		title += statusStyle.Render(label)
	}

	var parts []string
	if revealed, total := m.s.RevealProgress(); total > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d", revealed, total))
	}
	switch {
	case m.s.DictionaryLoading():
		parts = append(parts, m.spinner.View()+" dictionary")
	case m.s.DictionaryErr() != nil:
		parts = append(parts, "no dictionary")
	case m.s.DictionaryReady():
		parts = append(parts, "spellcheck on")
	}
	status := statusStyle.Render(strings.Join(parts, " | "))
	if m.s.Copied() {
		status += copiedStyle.Render(" copied")
	}
	return title + status
}

// runViewer runs the terminal viewer until the user quits or ctx is done.
func runViewer(ctx context.Context, e *env, in input) error {
	s := session.New(sessionConfig(e.cfg.Get()), session.WithLogger(e.log))
	defer s.Close()

	var updates chan session.Config
	if e.cfg.ConfigFileUsed() != "" {
		updates = make(chan session.Config, 1)
		e.cfg.OnChange(func(c *config.Config) {
			e.log.Info("config reloaded", "file", e.cfg.ConfigFileUsed())
			select {
			case updates <- sessionConfig(c):
			default:
			}
		})
		e.cfg.OnError(func(err error) {
			e.log.Warn("config reload rejected", "err", err)
		})
		e.cfg.WatchConfig()
	}

	m := newModel(s, e.loadDictionary, e.fetch(in), in.label(), updates)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
