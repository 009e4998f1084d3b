package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/diogo/querychat/internal/api"
	"github.com/diogo/querychat/internal/chat"
	"github.com/diogo/querychat/internal/logging"
	"github.com/diogo/querychat/internal/models"
	"github.com/diogo/querychat/internal/render"
)

// Animation tick message
type animationTickMsg time.Time

// exchangeDoneMsg carries a backend answer back onto the event loop
type exchangeDoneMsg struct {
	id   chat.RequestID
	resp *models.ChatResponse
	err  error
}

// Options configures the chat TUI
type Options struct {
	// Title shown in the header, usually the backend URL
	Title    string
	Markdown render.Options
	// SaveDir, when set, receives every image the backend returns
	SaveDir string
	Logger  *zap.Logger
}

// Model represents the TUI state. All transcript mutations happen in Update.
type Model struct {
	ctx    context.Context
	widget *chat.Widget
	opts   Options
	logger *zap.Logger

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	ready          bool
	animationFrame int
	savedImages    map[models.MessageID]string

	// Dimensions
	width  int
	height int
}

// NewChatModel creates a new chat TUI model around a widget
func NewChatModel(ctx context.Context, widget *chat.Widget, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Markdown == (render.Options{}) {
		opts.Markdown = render.DefaultOptions()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about your data..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	return Model{
		ctx:         ctx,
		widget:      widget,
		opts:        opts,
		logger:      logging.OrNop(opts.Logger),
		textarea:    ta,
		spinner:     s,
		savedImages: make(map[models.MessageID]string),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
	)
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3 // Header panel with border
		inputHeight := 5  // Input panel with border
		statusHeight := 1 // Status bar
		borders := 2      // Messages panel border

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - borders
		if vpHeight < 3 {
			vpHeight = 3
		}
		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			input := strings.TrimSpace(m.textarea.Value())
			if input == "/exit" || input == "/quit" {
				return m, tea.Quit
			}

			pending, ok := m.widget.BeginInput(&m.textarea)
			if !ok {
				return m, nil
			}
			m.refresh()

			wasIdle := m.widget.InFlight() == 1
			cmds = append(cmds, m.exchange(pending))
			if wasIdle {
				m.animationFrame = 0
				cmds = append(cmds, m.spinner.Tick, animationTick())
			}
			return m, tea.Batch(cmds...)
		}

	case exchangeDoneMsg:
		appended := m.widget.Complete(msg.id, msg.resp, msg.err)
		m.saveImages(appended)
		m.refresh()

	case spinner.TickMsg:
		if m.loading() {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.loading() {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		}
	}

	// Only pass KeyMsg to textarea to prevent escape sequence leaks
	if _, ok := msg.(tea.KeyMsg); ok {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// exchange runs the backend call off the event loop
func (m Model) exchange(p chat.Pending) tea.Cmd {
	widget := m.widget
	ctx := m.ctx
	return func() tea.Msg {
		resp, err := widget.Exchange(ctx, p)
		return exchangeDoneMsg{id: p.ID, resp: resp, err: err}
	}
}

func (m Model) loading() bool {
	return m.widget.InFlight() > 0
}

// saveImages writes image messages to SaveDir when configured
func (m Model) saveImages(msgs []models.Message) {
	if m.opts.SaveDir == "" {
		return
	}
	for _, msg := range msgs {
		if !msg.IsImage() {
			continue
		}
		path, err := api.SaveImage(msg, api.ImageSaveOptions{Directory: m.opts.SaveDir})
		if err != nil {
			m.logger.Warn("failed to save image", zap.Error(err))
			continue
		}
		m.savedImages[msg.ID] = path
	}
}

// refresh re-renders the transcript and keeps the newest message in view
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// renderMessages renders every transcript message as a labelled bubble
func (m Model) renderMessages() string {
	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	if bubbleWidth < 10 {
		bubbleWidth = 10
	}

	for i, msg := range m.widget.Transcript().Messages() {
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Sender == models.SenderUser {
			label := userLabelStyle.Render("● You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(msg.Content)
			content.WriteString(label + "\n" + bubble + "\n")
			continue
		}

		var body string
		switch {
		case msg.IsImage():
			body = imageStyle.Render("🖼 " + render.ImageLine(msg, m.savedImages[msg.ID]))
		case msg.IsPlaceholder():
			body = placeholderStyle.Render(msg.Content)
		case msg.IsError():
			body = botErrorStyle.Render(msg.Content)
		default:
			body = render.MarkdownOrPlain(msg.Content, m.opts.Markdown.WithWidth(bubbleWidth-4))
		}

		label := botLabelStyle.Render("✦ Assistant")
		bubble := botBubbleStyle.Width(bubbleWidth).Render(body)
		content.WriteString(label + "\n" + bubble + "\n")
	}

	return content.String()
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	// Header
	title := m.opts.Title
	if title == "" {
		title = models.DefaultBaseURL
	}
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("✦ querychat"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(title),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	// Messages
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(m.viewport.View()))

	// Input
	inputContent := lipgloss.JoinVertical(
		lipgloss.Left,
		inputLabelStyle.Render("You"),
		m.textarea.View(),
	)
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	// Status bar
	sections = append(sections, m.renderStatusBar(contentWidth))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderLoadingIndicator renders the animated in-flight marker for the status bar
func (m Model) renderLoadingIndicator() string {
	frame := m.animationFrame

	var dots strings.Builder
	numDots := (frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dotColor := gradientColors[(frame+i)%len(gradientColors)]
			dots.WriteString(lipgloss.NewStyle().Foreground(dotColor).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextDim).Render("○"))
		}
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(
		fmt.Sprintf(" %d pending ", m.widget.InFlight()))
	return m.spinner.View() + text + dots.String()
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", "Quit"},
		{"↑↓", "Scroll"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	if m.loading() {
		items = append(items, m.renderLoadingIndicator())
	}

	bar := strings.Join(items, "  │  ")
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// RunChat starts the chat TUI. Requests still in flight are cancelled when it exits.
func RunChat(ctx context.Context, widget *chat.Widget, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewChatModel(ctx, widget, opts)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// Cancelled from outside, e.g. on SIGINT
		return nil
	}
	return err
}
