package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sandevgo/tuskrelay/internal/core"
	"github.com/sandevgo/tuskrelay/internal/service/admission"
	"github.com/sandevgo/tuskrelay/pkg/conv"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	relayStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

const inputHeight = 3

// Conversations is what the console needs from the conversation engine.
type Conversations interface {
	Process(ctx context.Context, userID int64, message, sessionID string) core.ConversationResult
}

type Deps struct {
	Engine Conversations
	Router core.CmdRouter
	Chat   *admission.Pipeline
}

type entry struct {
	from string
	text string
	meta string
	err  bool
}

type replyMsg struct {
	text string
	meta string
	err  bool
}

// Model is an interactive terminal chat bound to a single user.
type Model struct {
	ctx    context.Context
	deps   Deps
	userID int64

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	history  []entry
	waiting  bool
	quitting bool
	ready    bool
}

func New(ctx context.Context, userID int64, deps Deps) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message or /help (Enter to send, Ctrl+C to exit)"
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = metaStyle

	return Model{
		ctx:      ctx,
		deps:     deps,
		userID:   userID,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-inputHeight-2, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if text == "/exit" || text == "/quit" {
				m.quitting = true
				return m, tea.Quit
			}
			m.input.Reset()
			m.history = append(m.history, entry{from: "you", text: text})
			m.waiting = true
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.send(text))
		}

	case replyMsg:
		m.waiting = false
		m.history = append(m.history, entry{from: "relay", text: msg.text, meta: msg.meta, err: msg.err})
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	status := ""
	if m.waiting {
		status = m.spinner.View() + metaStyle.Render(" waiting for the model...")
	}

	return titleStyle.Render(fmt.Sprintf("TuskRelay console, user %d", m.userID)) + "\n" +
		m.viewport.View() + "\n" +
		status + "\n" +
		m.input.View()
}

// send answers one line the same way the chat transports do: commands go to
// the router, everything else is admitted and handed to the engine.
func (m Model) send(text string) tea.Cmd {
	ctx, deps, userID := m.ctx, m.deps, m.userID
	return func() tea.Msg {
		if out, ok := deps.Router.Execute(ctx, userID, text); ok {
			return replyMsg{text: out}
		}

		if deps.Chat != nil {
			if d := deps.Chat.Admit(ctx, userID); !d.Allowed {
				return replyMsg{text: d.Message, err: true}
			}
		}

		res := deps.Engine.Process(ctx, userID, text, "")
		if !res.Success {
			return replyMsg{text: res.Response, meta: string(res.Kind), err: true}
		}
		return replyMsg{
			text: res.Response,
			meta: fmt.Sprintf("%s · %d tokens · %s", shortID(res.SessionID), res.TokensUsed, time.Duration(res.ProcessingTimeMs)*time.Millisecond),
		}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	var sb strings.Builder
	for _, e := range m.history {
		switch e.from {
		case "you":
			sb.WriteString(userStyle.Render("you") + "\n")
		default:
			sb.WriteString(relayStyle.Render("relay") + "\n")
		}

		// replies are markdown rendered for telegram, plain text reads better here
		text := e.text
		if e.from != "you" {
			text = conv.HTMLToText(conv.MarkdownToTelegramHTML(text))
		}
		if e.err {
			text = errorStyle.Render(text)
		}
		sb.WriteString(text + "\n")
		if e.meta != "" {
			sb.WriteString(metaStyle.Render(e.meta) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Run starts the console in the alternate screen and blocks until the user quits.
func Run(ctx context.Context, userID int64, deps Deps) error {
	p := tea.NewProgram(New(ctx, userID, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
