// Package tui is the interactive terminal chat: a Bubble Tea program that
// renders a chatclient session as it streams.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/rovo/pkg/chatclient"
	"github.com/papercomputeco/rovo/pkg/chatstore"
)

// UI configuration constants
const (
	defaultWidth         = 100
	defaultHeight        = 30
	inputCharLimit       = 4000
	inputHeightReserved  = 2
	statusHeightReserved = 3
	minContentHeight     = 5
)

// Options carries per-session context sent with every turn.
type Options struct {
	UserName           string
	ContextDescription string
}

// ChatProgram encapsulates the chat TUI program
type ChatProgram struct {
	model  chatModel
	client *chatclient.Client
}

// NewChatProgram creates a chat program over client.
func NewChatProgram(client *chatclient.Client, opts Options) *ChatProgram {
	return &ChatProgram{model: newModel(client, opts), client: client}
}

// Run starts the program and blocks until the user quits.
func (p *ChatProgram) Run() error {
	program := tea.NewProgram(p.model, tea.WithAltScreen())

	unsubscribe := p.client.Store().Subscribe(func(chatstore.Message) {
		program.Send(storeChangedMsg{})
	})
	defer unsubscribe()
	defer p.client.Cancel()

	_, err := program.Run()
	return err
}

type (
	storeChangedMsg struct{}
	turnDoneMsg     struct{ err error }
)

// chatModel is the Bubble Tea model for one session.
type chatModel struct {
	client *chatclient.Client
	opts   Options

	input    textinput.Model
	view     viewport.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer
	style    string

	messages   []chatstore.Message
	inFlight   bool
	suggestion int
	err        error

	width  int
	height int
}

func newModel(client *chatclient.Client, opts Options) chatModel {
	input := textinput.New()
	input.Placeholder = "Ask Rovo anything"
	input.Focus()
	input.CharLimit = inputCharLimit
	input.Width = defaultWidth - 3
	input.Prompt = ""

	m := chatModel{
		client:     client,
		opts:       opts,
		input:      input,
		view:       viewport.New(defaultWidth, defaultHeight),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(accentStyle)),
		style:      markdownStyle(),
		suggestion: -1,
		width:      defaultWidth,
		height:     defaultHeight,
	}
	m.markdown = newMarkdownRenderer(m.style, defaultWidth)
	return m
}

// markdownStyle picks the glamour style matching the terminal background.
func markdownStyle() string {
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func newMarkdownRenderer(style string, width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyPress(msg)...)

	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)

	case storeChangedMsg:
		m.messages = m.client.Store().Messages()
		m.refreshContent()

	case turnDoneMsg:
		m.inFlight = false
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		m.messages = m.client.Store().Messages()
		m.refreshContent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.inFlight {
			m.refreshContent()
		}
	}

	if _, isKey := msg.(tea.KeyMsg); !isKey || !m.inFlight {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *chatModel) handleKeyPress(msg tea.KeyMsg) []tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.client.Cancel()
		return []tea.Cmd{tea.Quit}

	case tea.KeyEsc:
		if m.inFlight {
			m.client.Cancel()
		}

	case tea.KeyEnter:
		if m.inFlight {
			return nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return nil
		}
		m.input.Reset()
		m.inFlight = true
		m.suggestion = -1
		m.err = nil
		return []tea.Cmd{m.sendTurn(text)}

	case tea.KeyTab:
		if m.inFlight {
			return nil
		}
		if questions := m.lastSuggestions(); len(questions) > 0 {
			m.suggestion = (m.suggestion + 1) % len(questions)
			m.input.SetValue(questions[m.suggestion])
			m.input.CursorEnd()
			m.refreshContent()
		}

	case tea.KeyUp:
		m.view.LineUp(1)

	case tea.KeyDown:
		m.view.LineDown(1)

	case tea.KeyPgUp:
		m.view.ViewUp()

	case tea.KeyPgDown:
		m.view.ViewDown()
	}
	return nil
}

func (m chatModel) sendTurn(text string) tea.Cmd {
	client, opts := m.client, m.opts
	return func() tea.Msg {
		_, err := client.SendTurn(context.Background(), chatclient.TurnRequest{
			Message:            text,
			ContextDescription: opts.ContextDescription,
			UserName:           opts.UserName,
		})
		return turnDoneMsg{err: err}
	}
}

func (m *chatModel) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	contentHeight := msg.Height - inputHeightReserved - statusHeightReserved
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}

	m.view.Width = msg.Width
	m.view.Height = contentHeight
	m.input.Width = msg.Width - 3
	m.markdown = newMarkdownRenderer(m.style, msg.Width-2)

	m.refreshContent()
}

// lastSuggestions returns the follow-up questions of the newest assistant message.
func (m chatModel) lastSuggestions() []string {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Type == chatstore.TypeAssistant {
			return m.messages[i].SuggestedQuestions
		}
	}
	return nil
}

func (m *chatModel) refreshContent() {
	atBottom := m.view.AtBottom()
	m.view.SetContent(m.renderMessages())
	if atBottom || m.inFlight {
		m.view.GotoBottom()
	}
}

func (m chatModel) renderMessages() string {
	var b strings.Builder
	last := len(m.messages) - 1
	for i, msg := range m.messages {
		b.WriteString("\n")
		switch msg.Type {
		case chatstore.TypeUser:
			b.WriteString(boldStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Width(m.width).Render(msg.Content))
			b.WriteString("\n")
		case chatstore.TypeAssistant:
			b.WriteString(m.renderAssistant(msg, i == last))
		}
	}
	return b.String()
}

func (m chatModel) renderAssistant(msg chatstore.Message, last bool) string {
	var b strings.Builder
	b.WriteString(accentStyle.Render("Rovo"))
	b.WriteString("\n")

	switch {
	case msg.Failed:
		b.WriteString(errorStyle.Render(msg.Content))
		b.WriteString("\n")
	case msg.IsStreaming && msg.Content == "":
		b.WriteString(m.spinner.View() + dimStyle.Render(" thinking"))
		b.WriteString("\n")
	case msg.IsStreaming:
		b.WriteString(lipgloss.NewStyle().Width(m.width).Render(msg.Content))
		b.WriteString(" " + m.spinner.View())
		b.WriteString("\n")
	default:
		b.WriteString(m.renderMarkdown(msg.Content))
	}

	if msg.WidgetLoading {
		b.WriteString(m.spinner.View() + dimStyle.Render(" loading widget"))
		b.WriteString("\n")
	}
	if msg.Widget != nil {
		b.WriteString(renderWidget(msg.Widget, m.width))
		b.WriteString("\n")
	}

	if last && len(msg.SuggestedQuestions) > 0 {
		for i, q := range msg.SuggestedQuestions {
			if i == m.suggestion {
				b.WriteString(selectedStyle.Render("  › " + q))
			} else {
				b.WriteString(dimStyle.Render("  › " + q))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m chatModel) renderMarkdown(content string) string {
	if m.markdown == nil {
		return content + "\n"
	}
	out, err := m.markdown.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

func (m chatModel) View() string {
	status := dimStyle.Render("Rovo chat")
	if m.inFlight {
		status += dimStyle.Render(" • answering...")
	}
	if m.err != nil {
		status += " " + errorStyle.Render(m.err.Error())
	}

	var inputView, help string
	if m.inFlight {
		inputView = dimStyle.Render("> waiting for the answer...")
		help = dimStyle.Render("Esc cancel • Ctrl+C quit")
	} else {
		inputView = promptStyle.Render("> ") + m.input.View()
		help = dimStyle.Render("Enter send • Tab suggestion • ↑↓ scroll • Ctrl+C quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left, status, m.view.View(), inputView, help)
}
