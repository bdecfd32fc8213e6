// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aleopantest/aleopantest/internal/session"
	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// STATE
// =============================================================================

// Screen is the view currently shown.
type Screen int

const (
	ScreenList    Screen = iota // tool catalog
	ScreenForm                  // parameters of the selected tool
	ScreenRunning               // spinner while the orchestrator works
	ScreenResult                // envelope viewport
)

func (s Screen) String() string {
	switch s {
	case ScreenList:
		return "list"
	case ScreenForm:
		return "form"
	case ScreenRunning:
		return "running"
	case ScreenResult:
		return "result"
	default:
		return "unknown"
	}
}

// Options wires the model to the shared services.
type Options struct {
	Registry     *tools.Registry
	Orchestrator *tools.Orchestrator
	Governor     *session.Governor
}

// runDoneMsg carries the outcome of one orchestrator call.
type runDoneMsg struct {
	env *tools.Envelope
	err error
}

// toolItem adapts tool metadata to the list component.
type toolItem struct {
	meta tools.Metadata
}

func (i toolItem) Title() string { return i.meta.Name + "  " + mutedStyle.Render(i.meta.ID) }

func (i toolItem) Description() string {
	return riskStyle(i.meta.RiskLevel).Render(i.meta.RiskLevel.String()) + "  " +
		i.meta.Category.Title() + "  " + i.meta.Description
}

func (i toolItem) FilterValue() string {
	return i.meta.ID + " " + i.meta.Name + " " + string(i.meta.Category) + " " + strings.Join(i.meta.Tags, " ")
}

// Model is the root Bubble Tea model: list, form, running and result screens
// under a header that tracks the session clock.
type Model struct {
	opts Options
	keys KeyMap
	ctx  context.Context

	screen  Screen
	list    list.Model
	form    *form
	spinner spinner.Model
	view    viewport.Model

	selected  tools.Metadata
	lastReq   tools.Request
	env       *tools.Envelope
	showJSON  bool
	started   time.Time
	cancelRun context.CancelFunc

	notice  string
	expired bool

	width  int
	height int
}

// New builds the model. Runs inherit ctx so an interrupt cancels them.
func New(ctx context.Context, opts Options) Model {
	var items []list.Item
	for _, g := range opts.Registry.List() {
		for _, meta := range g.Tools {
			items = append(items, toolItem{meta: meta})
		}
	}

	l := list.New(items, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Tools"
	l.SetStatusBarItemName("tool", "tools")
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle
	// q and ctrl+c are handled here; esc must not quit from the list.
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(Cyan)

	return Model{
		opts:    opts,
		keys:    DefaultKeyMap(),
		ctx:     ctx,
		screen:  ScreenList,
		list:    l,
		spinner: sp,
		view:    viewport.New(80, 20),
		width:   80,
		height:  24,
	}
}

// Screen reports the active screen.
func (m Model) Screen() Screen { return m.screen }

// Envelope returns the last result, nil before the first run.
func (m Model) Envelope() *tools.Envelope { return m.env }

// Init starts the session clock.
func (m Model) Init() tea.Cmd {
	return session.TickCmd()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update routes messages to the active screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case session.TickMsg:
		if m.expired {
			return m, nil
		}
		return m, m.opts.Governor.HandleTick()

	case session.ExpiredMsg:
		// No further ticks: HandleTick would answer immediately.
		m.expired = true
		m.notice = "Session quota exhausted. New runs are refused; press q to quit."
		return m, nil

	case spinner.TickMsg:
		if m.screen != ScreenRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case runDoneMsg:
		return m.handleRunDone(msg)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			m.stopRun()
			return m, tea.Quit
		}
		switch m.screen {
		case ScreenList:
			return m.updateList(msg)
		case ScreenForm:
			return m.updateForm(msg)
		case ScreenRunning:
			if key.Matches(msg, m.keys.Back) {
				m.stopRun()
				m.notice = "Cancelling..."
			}
			return m, nil
		case ScreenResult:
			return m.updateResult(msg)
		}
	}

	// Non-key messages such as cursor blinks still reach the components.
	var cmd tea.Cmd
	switch m.screen {
	case ScreenList:
		m.list, cmd = m.list.Update(msg)
	case ScreenForm:
		cmd = m.form.update(msg)
	case ScreenResult:
		m.view, cmd = m.view.Update(msg)
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While filtering every key belongs to the filter input.
	if m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(toolItem)
			if !ok {
				return m, nil
			}
			m.selected = item.meta
			m.form = newForm(item.meta)
			m.notice = ""
			m.screen = ScreenForm
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenList
		m.notice = ""
		return m, nil
	case key.Matches(msg, m.keys.Next):
		m.form.next()
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.form.prev()
		return m, nil
	case key.Matches(msg, m.keys.Select):
		if missing := m.form.missing(); len(missing) > 0 {
			m.notice = "Required: " + strings.Join(missing, ", ")
			return m, nil
		}
		params := m.form.params()
		target, _ := params["target"].(string)
		return m.startRun(tools.Request{
			ToolID:      m.selected.ID,
			Target:      target,
			Params:      params,
			Interactive: true,
		})
	}
	return m, m.form.update(msg)
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.screen = ScreenForm
		m.notice = ""
		return m, nil
	case key.Matches(msg, m.keys.Rerun):
		return m.startRun(m.lastReq)
	case key.Matches(msg, m.keys.ToggleJSON):
		m.showJSON = !m.showJSON
		m.view.SetContent(m.resultContent())
		m.view.GotoTop()
		return m, nil
	}
	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

// =============================================================================
// RUNS
// =============================================================================

func (m Model) startRun(req tools.Request) (tea.Model, tea.Cmd) {
	if m.expired {
		m.notice = "Session quota exhausted."
		return m, nil
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelRun = cancel
	m.lastReq = req
	m.started = time.Now()
	m.notice = ""
	m.screen = ScreenRunning

	orch := m.opts.Orchestrator
	run := func() tea.Msg {
		defer cancel()
		env, err := orch.Execute(ctx, req)
		return runDoneMsg{env: env, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *Model) stopRun() {
	if m.cancelRun != nil {
		m.cancelRun()
		m.cancelRun = nil
	}
}

func (m Model) handleRunDone(msg runDoneMsg) (tea.Model, tea.Cmd) {
	m.cancelRun = nil
	if msg.err != nil {
		// Only an unknown or unavailable tool gets here.
		m.screen = ScreenForm
		m.notice = msg.err.Error()
		return m, nil
	}
	m.env = msg.env
	m.showJSON = false
	m.screen = ScreenResult
	m.view.SetContent(m.resultContent())
	m.view.GotoTop()
	return m, nil
}

func (m Model) resultContent() string {
	if m.env == nil {
		return ""
	}
	if m.showJSON {
		data, err := m.env.JSON()
		if err != nil {
			return errorStyle.Render(err.Error())
		}
		return string(data)
	}
	return renderEnvelope(m.env, m.width)
}

// =============================================================================
// VIEW
// =============================================================================

const (
	headerHeight = 1
	footerHeight = 2
)

func (m *Model) layout() {
	body := max(m.height-headerHeight-footerHeight-1, 3)
	m.list.SetSize(m.width, body)
	m.view.Width = m.width
	m.view.Height = body - 2
}

// View renders the header, the active screen and the key help.
func (m Model) View() string {
	var body string
	var help string
	switch m.screen {
	case ScreenList:
		body = m.list.View()
		help = helpLine(m.keys.Select, m.keys.Quit) + "  / filter"
	case ScreenForm:
		body = titleStyle.Render(m.selected.Name) + "  " + riskStyle(m.selected.RiskLevel).Render(m.selected.RiskLevel.String()) +
			"\n" + mutedStyle.Render(m.selected.Description) + "\n\n" + m.form.view(m.width)
		help = helpLine(m.keys.Select, m.keys.Next, m.keys.Prev, m.keys.Back)
	case ScreenRunning:
		elapsed := time.Since(m.started).Truncate(100 * time.Millisecond)
		body = fmt.Sprintf("\n  %s Running %s (%s)", m.spinner.View(), titleStyle.Render(m.selected.Name), elapsed)
		help = helpLine(m.keys.Back, m.keys.ForceQuit)
	case ScreenResult:
		body = m.view.View()
		help = helpLine(m.keys.Rerun, m.keys.ToggleJSON, m.keys.Back, m.keys.Quit)
	}
	if m.notice != "" {
		body += "\n" + warningStyle.Render(m.notice)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		body,
		footerStyle.Width(m.width).Render(help),
	)
}

func (m Model) header() string {
	st := m.opts.Governor.GetStatus()
	brand := accentStyle.Render("< ") + brandStyle.Render("aleopantest") + accentStyle.Render(" >")
	clock := "session " + st.SessionID + "  " + st.Remaining + " left"
	clockStyle := mutedStyle
	if !st.Active {
		clock = "session " + st.SessionID + "  EXPIRED"
		clockStyle = errorStyle
	}
	gap := max(m.width-lipgloss.Width(brand)-lipgloss.Width(clock)-2, 1)
	return headerStyle.Render(brand + strings.Repeat(" ", gap) + clockStyle.Render(clock))
}

// renderEnvelope is the result screen text.
func renderEnvelope(env *tools.Envelope, width int) string {
	var sb strings.Builder
	info := env.ToolInfo
	status := env.Execution.Status
	fmt.Fprintf(&sb, "%s  %s\n", titleStyle.Render(info.Name), statusStyle(status).Render(strings.ToUpper(string(status))))
	fmt.Fprintf(&sb, "%s%s\n", labelStyle.Render("Risk"), riskStyle(info.RiskLevel).Render(info.RiskLevel.String()))
	fmt.Fprintf(&sb, "%s%.2fs\n", labelStyle.Render("Duration"), env.Execution.Duration)
	fmt.Fprintf(&sb, "%s%s@%s\n", labelStyle.Render("Operator"), env.Execution.Admin.Username, env.Execution.Admin.Hostname)

	sb.WriteString(sectionStyle.Render(fmt.Sprintf("Results (%d)", env.Summary.TotalResults)) + "\n")
	wrap := lipgloss.NewStyle().Width(max(width-6, 20))
	for i, r := range env.Results {
		fmt.Fprintf(&sb, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%2d.", i+1)), wrap.Render(tools.FormatResult(r)))
	}
	if len(env.RealErrors()) > 0 {
		sb.WriteString(sectionStyle.Render("Errors") + "\n")
		for _, e := range env.Errors {
			sb.WriteString(errorStyle.Render("x ") + wrap.Render(e) + "\n")
		}
	}
	if len(env.Warnings) > 0 {
		sb.WriteString(sectionStyle.Render("Warnings") + "\n")
		for _, w := range env.Warnings {
			sb.WriteString(warningStyle.Render("! ") + wrap.Render(w) + "\n")
		}
	}
	if info.LegalDisclaimer != "" && info.RiskLevel.IsHigh() {
		sb.WriteString("\n" + mutedStyle.Render(info.LegalDisclaimer) + "\n")
	}
	return sb.String()
}

// =============================================================================
// PROGRAM
// =============================================================================

// Run starts the TUI on the alternate screen and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
