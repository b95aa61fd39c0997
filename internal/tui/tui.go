package tui

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/codesoul/internal/indexer"
	"github.com/dshills/codesoul/pkg/types"
)

// Session is what the chat needs from a codesoul session
type Session interface {
	Root() string
	Start(ctx context.Context, reset bool, progress indexer.ProgressFunc) (*indexer.Statistics, types.Persona, error)
	Answer(ctx context.Context, question string) iter.Seq[string]
}

// viewState represents the current screen of the application.
type viewState int

const (
	// viewIngesting shows the progress narrative while the index is built
	viewIngesting viewState = iota
	// viewChat is the conversation
	viewChat
)

type role int

const (
	roleUser role = iota
	roleSoul
	roleSystem
)

type chatMessage struct {
	role    role
	content string
}

// stoppedMarker is appended to an answer cut short with esc
const stoppedMarker = " [stopped]"

// progressMsg carries one ingestion event
type progressMsg indexer.Event

// readyMsg is sent when ingestion and persona setup are done
type readyMsg struct {
	stats   *indexer.Statistics
	persona types.Persona
}

// startErr is sent when ingestion fails
type startErr struct{ error }

// fragmentMsg is one piece of the answer to stream id
type fragmentMsg struct {
	id   int
	text string
}

// streamEndMsg is sent when stream id has no more fragments
type streamEndMsg struct{ id int }

var (
	headerStyle = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	tierStyle   = lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("40")).Padding(0, 1).MarginLeft(1)
	userStyle   = lipgloss.NewStyle().Bold(true)
	soulStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(1)
)

// model is the Bubble Tea model for the chat
type model struct {
	ctx     context.Context
	session Session
	reset   bool
	events  chan tea.Msg

	state    viewState
	err      error
	progress []string
	persona  types.Persona
	history  []chatMessage

	streaming    bool
	streamID     int
	cancelStream context.CancelFunc
	startedAt    time.Time

	textArea      textarea.Model
	viewport      viewport.Model
	spinner       spinner.Model
	width, height int
}

// newModel creates a chat model for sess
func newModel(ctx context.Context, sess Session, reset bool) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ta := textarea.New()
	ta.Placeholder = "Ask the codebase..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = -1
	ta.SetHeight(1)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	return &model{
		ctx:       ctx,
		session:   sess,
		reset:     reset,
		events:    make(chan tea.Msg, 64),
		state:     viewIngesting,
		textArea:  ta,
		viewport:  viewport.New(80, 10),
		spinner:   s,
		startedAt: time.Now(),
	}
}

// Run starts the chat and blocks until the user quits
func Run(ctx context.Context, sess Session, reset bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(ctx, sess, reset)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// send delivers msg to the UI unless the program is shutting down
func (m *model) send(msg tea.Msg) bool {
	select {
	case m.events <- msg:
		return true
	case <-m.ctx.Done():
		return false
	}
}

// listen waits for the next background message
func (m *model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// startCmd ingests the root and derives the persona in the background
func (m *model) startCmd() tea.Cmd {
	return func() tea.Msg {
		go func() {
			stats, p, err := m.session.Start(m.ctx, m.reset, func(ev indexer.Event) {
				m.send(progressMsg(ev))
			})
			if err != nil {
				m.send(startErr{err})
				return
			}
			m.send(readyMsg{stats: stats, persona: p})
		}()
		return nil
	}
}

// askCmd streams the answer to question as fragment messages
func (m *model) askCmd(ctx context.Context, id int, question string) tea.Cmd {
	return func() tea.Msg {
		go func() {
			for frag := range m.session.Answer(ctx, question) {
				if ctx.Err() != nil || !m.send(fragmentMsg{id: id, text: frag}) {
					break
				}
			}
			m.send(streamEndMsg{id: id})
		}()
		return nil
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCmd(), m.listen())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.stopStream()
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming {
				m.stopStream()
				m.appendToAnswer(stoppedMarker)
				m.refresh()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.textArea.SetWidth(msg.Width - 3)
		headerHeight := 3
		footerHeight := 3
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.refresh()

	case progressMsg:
		m.progress = append(m.progress, msg.Message)
		return m, m.listen()

	case readyMsg:
		m.state = viewChat
		m.persona = msg.persona
		m.history = append(m.history, chatMessage{role: roleSystem, content: banner(msg.stats, msg.persona)})
		m.textArea.Focus()
		m.refresh()
		return m, m.listen()

	case startErr:
		m.err = msg.error
		return m, m.listen()

	case fragmentMsg:
		if m.streaming && msg.id == m.streamID {
			m.appendToAnswer(msg.text)
			m.refresh()
		}
		return m, m.listen()

	case streamEndMsg:
		if msg.id == m.streamID && m.streaming {
			m.streaming = false
			if m.cancelStream != nil {
				m.cancelStream()
				m.cancelStream = nil
			}
			m.textArea.Focus()
		}
		return m, m.listen()
	}

	if m.state == viewChat {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

		if !m.streaming {
			m.textArea, cmd = m.textArea.Update(msg)
			cmds = append(cmds, cmd)

			if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
				if question := strings.TrimSpace(m.textArea.Value()); question != "" {
					m.textArea.Reset()
					cmds = append(cmds, m.ask(question))
				}
			}
		}
	}

	if m.state == viewIngesting || m.streaming {
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// ask records question and starts streaming its answer
func (m *model) ask(question string) tea.Cmd {
	m.history = append(m.history,
		chatMessage{role: roleUser, content: question},
		chatMessage{role: roleSoul},
	)
	m.streamID++
	m.streaming = true
	m.startedAt = time.Now()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelStream = cancel
	m.refresh()
	return tea.Batch(m.spinner.Tick, m.askCmd(ctx, m.streamID, question))
}

// stopStream cancels the answer in flight
func (m *model) stopStream() {
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
	m.streaming = false
}

// appendToAnswer extends the last soul message
func (m *model) appendToAnswer(text string) {
	if n := len(m.history); n > 0 && m.history[n-1].role == roleSoul {
		m.history[n-1].content += text
	}
}

// refresh re-renders the history into the viewport
func (m *model) refresh() {
	width := m.width
	if width == 0 {
		width = 80
	}

	var b strings.Builder
	for _, msg := range m.history {
		var label string
		var style lipgloss.Style
		switch msg.role {
		case roleUser:
			label, style = "You: ", userStyle
		case roleSoul:
			label, style = m.persona.Name+": ", soulStyle
		default:
			b.WriteString(systemStyle.Width(width-2).Render(msg.content) + "\n\n")
			continue
		}
		rendered := style.Render(label)
		content := lipgloss.NewStyle().Width(max(width-lipgloss.Width(rendered)-2, 10)).Render(msg.content)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered, content) + "\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// banner introduces the persona once the index is ready
func banner(stats *indexer.Statistics, p types.Persona) string {
	var b strings.Builder
	if stats != nil {
		fmt.Fprintf(&b, "Indexed %d chunks from %d files.\n", stats.ChunksCreated, stats.FilesIndexed)
	}
	fmt.Fprintf(&b, "%s awakens. %s\n%s", p.Name, p.Description, p.Style)
	return b.String()
}

func (m *model) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\n(ctrl+c to quit)", m.err))
	}

	switch m.state {
	case viewIngesting:
		var b strings.Builder
		fmt.Fprintf(&b, "\n  %s Waking up %s... %.1fs\n\n", m.spinner.View(), m.session.Root(), time.Since(m.startedAt).Seconds())
		for _, line := range m.progress {
			b.WriteString("  " + systemStyle.Render(line) + "\n")
		}
		return b.String()

	default:
		header := lipgloss.JoinHorizontal(lipgloss.Top,
			headerStyle.Render(m.persona.Name),
			tierStyle.Render(string(m.persona.Tier)),
		)
		help := systemStyle.Render(" (enter to ask, esc to stop, ctrl+c to quit)")

		footer := m.textArea.View()
		if m.streaming {
			footer = fmt.Sprintf("%s %s is speaking... %.1fs", m.spinner.View(), m.persona.Name, time.Since(m.startedAt).Seconds())
		}
		return header + help + "\n\n" + m.viewport.View() + "\n" + footer
	}
}
