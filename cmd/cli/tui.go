package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/deepai/deepai-client/pkg/models"
	"github.com/deepai/deepai-client/pkg/prompt"
	"github.com/deepai/deepai-client/pkg/runner"
	"github.com/deepai/deepai-client/pkg/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	cursorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	selectedItemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1) // Red
)

type state int

const (
	stateMenu state = iota
	stateSelectingPrompt
	stateSelectingSession
	stateSelectingMode
	stateSelectingModel
	stateChatting
)

var menuOptions = []string{"New Chat", "Continue Session", "Change Mode", "Select Model"}

// chatModes are the modes that run a chat exchange.
var chatModes = []store.AiMode{
	store.ModeMyFavorites,
	store.ModeChatLLM,
	store.ModeDigitalPerson,
	store.ModeKnowledgeBase,
	store.ModeLocalAI,
}

type errMsg struct{ err error }
type storeUpdateMsg store.Key
type navigateMsg store.Key
type runnerErrorMsg struct{ err error }
type promptsMsg []prompt.Prompt
type sessionReadyMsg store.Key
type signedOutMsg struct{}
type noticeMsg string

type model struct {
	ctx     context.Context
	app     *app
	updates <-chan store.Key

	// State
	state             state
	availableModels   []models.Choice
	availableSessions []store.Session
	availablePrompts  []prompt.Prompt
	cursor            int
	listOffset        int
	width             int
	height            int
	err               error
	notice            string

	// UI Components
	viewport viewport.Model
	textarea textarea.Model
	renderer *glamour.TermRenderer
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(envFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a.refresh(ctx)
	a.store.SetSelectedModel(a.defaultModel(ctx))

	go func() {
		if err := a.runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Runner stopped", "error", err)
		}
	}()

	updates := a.store.Subscribe()
	defer a.store.Unsubscribe(updates)

	p := tea.NewProgram(initialModel(ctx, a, updates))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run terminal UI: %w", err)
	}
	return nil
}

func initialModel(ctx context.Context, a *app, updates <-chan store.Key) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 4000

	ta.SetWidth(80)
	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent("Welcome! Select an option.")

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	m := model{
		ctx:      ctx,
		app:      a,
		updates:  updates,
		state:    stateMenu,
		viewport: vp,
		textarea: ta,
		renderer: r,
	}
	if !a.auth.SignedIn() {
		m.notice = "Not signed in. Run \"deepai login\" to reach the backend."
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForUpdate(m.updates),
		waitForNavigation(m.app.nav.keys),
		waitForRunnerError(m.app.runner.ErrorChan),
		waitForSignOut(m.app.signedOut),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var tiCmd, vpCmd tea.Cmd
	// This prevents the Enter key used for menu selection from leaking into the textarea.
	switch msg.(type) {
	case tea.KeyMsg:
		if m.state == stateChatting {
			m.textarea, tiCmd = m.textarea.Update(msg)
			cmds = append(cmds, tiCmd)
		}
	default:
		m.textarea, tiCmd = m.textarea.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.textarea.SetWidth(msg.Width)
		m.viewport.Height = max(msg.Height-m.textarea.Height()-2, 0) // Header + Margin
		m.viewport.YPosition = 2

		// Recreate renderer with new width
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(max(m.width-4, 20)),
		)
		m.clampOffset()
		if m.state == stateChatting {
			m.render()
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.app.runner.Cancel() {
				m.notice = "Generation canceled."
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.state != stateMenu {
				m.state = stateMenu
				m.cursor, m.listOffset = 0, 0
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyEnter:
			m.err = nil
			switch m.state {
			case stateMenu:
				return m.selectMenu()
			case stateSelectingPrompt:
				return m.selectPrompt()
			case stateSelectingSession:
				return m.selectSession()
			case stateSelectingMode:
				return m.selectMode()
			case stateSelectingModel:
				return m.selectModel()
			case stateChatting:
				return m.sendMessage()
			}
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				m.clampOffset()
			}
		case tea.KeyDown:
			if m.cursor < m.listLen()-1 {
				m.cursor++
				m.clampOffset()
			}
		}

	case storeUpdateMsg:
		if m.state == stateChatting {
			key := store.Key(msg)
			if key == store.Pending || key == m.app.store.Active() {
				m.render()
			}
		}
		cmds = append(cmds, waitForUpdate(m.updates))

	case navigateMsg:
		slog.Debug("TUI received navigation", "key", store.Key(msg))
		if store.Key(msg) == store.Pending && m.state == stateChatting {
			m.state = stateMenu
			m.cursor, m.listOffset = 0, 0
		}
		cmds = append(cmds, waitForNavigation(m.app.nav.keys))

	case promptsMsg:
		m.availablePrompts = msg
		m.state = stateSelectingPrompt
		m.cursor, m.listOffset = 0, 0

	case sessionReadyMsg:
		return m.enterChat()

	case noticeMsg:
		m.notice = string(msg)

	case errMsg:
		m.err = msg.err

	case runnerErrorMsg:
		slog.Debug("TUI received runner error", "error", msg.err)
		if !errors.Is(msg.err, runner.ErrDropped) {
			m.err = msg.err
		}
		cmds = append(cmds, waitForRunnerError(m.app.runner.ErrorChan))

	case signedOutMsg:
		m.err = errors.New("session expired, run \"deepai login\" to sign in again")
		cmds = append(cmds, waitForSignOut(m.app.signedOut))
	}

	return m, tea.Batch(cmds...)
}

func (m model) maxViewable() int {
	return max(m.height-7, 1)
}

// clampOffset keeps the cursor inside the visible window of the list.
func (m *model) clampOffset() {
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+m.maxViewable() {
		m.listOffset = m.cursor - m.maxViewable() + 1
	}
	if m.listOffset < 0 {
		m.listOffset = 0
	}
}

func (m model) listLen() int {
	switch m.state {
	case stateMenu:
		return len(menuOptions)
	case stateSelectingPrompt:
		return len(m.availablePrompts)
	case stateSelectingSession:
		return len(m.availableSessions)
	case stateSelectingMode:
		return len(chatModes)
	case stateSelectingModel:
		return len(m.availableModels)
	}
	return 0
}

func (m model) header() string {
	return titleStyle.Render(fmt.Sprintf("DeepAI | %s | %s", m.app.store.Mode(), m.app.store.SelectedModel()))
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	} else if m.notice != "" {
		errorView = dimStyle.Render(m.notice)
	}

	switch m.state {
	case stateMenu:
		return m.listView("Main Menu", menuOptions, nil, errorView)

	case stateSelectingPrompt:
		lines := make([]string, len(m.availablePrompts))
		for i, p := range m.availablePrompts {
			lines[i] = p.Title
			if p.Description != "" {
				lines[i] += dimStyle.Render(" - " + p.Description)
			}
		}
		return m.listView("Select Role", lines, nil, errorView)

	case stateSelectingSession:
		lines := make([]string, len(m.availableSessions))
		for i, s := range m.availableSessions {
			lines[i] = fmt.Sprintf("%s (%d messages)", s.Title, len(m.app.store.MessagesOf(s.Key)))
		}
		return m.listView("Select Session", lines, nil, errorView)

	case stateSelectingMode:
		lines := make([]string, len(chatModes))
		for i, mode := range chatModes {
			lines[i] = string(mode)
		}
		return m.listView("Select Mode", lines, nil, errorView)

	case stateSelectingModel:
		lines := make([]string, len(m.availableModels))
		disabled := make([]bool, len(m.availableModels))
		for i, ch := range m.availableModels {
			lines[i] = fmt.Sprintf("%s (%s)", ch.Label, ch.Name)
			disabled[i] = ch.Disabled
		}
		return m.listView("Select Model", lines, disabled, errorView)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.header(),
		"",
		m.viewport.View(),
		"",
		errorView,
		m.textarea.View(),
	)
}

// listView renders the visible window of a selectable list.
func (m model) listView(title string, lines []string, disabled []bool, errorView string) string {
	header := titleStyle.Render(title)

	start := m.listOffset
	end := min(start+m.maxViewable(), len(lines))

	var optionsView []string
	for i := start; i < end; i++ {
		cursor := " "
		line := lines[i]
		switch {
		case disabled != nil && disabled[i]:
			line = dimStyle.Render(line + " [premium]")
		case m.cursor == i:
			line = selectedItemStyle.Render(line)
		}
		if m.cursor == i {
			cursor = ">"
		}
		optionsView = append(optionsView, fmt.Sprintf("%s %s", cursorStyle.Render(cursor), line))
	}
	if len(lines) == 0 {
		optionsView = append(optionsView, dimStyle.Render("  (empty)"))
	}

	list := lipgloss.JoinVertical(lipgloss.Left, optionsView...)
	footer := "Press Enter to select, Esc to go back."

	return lipgloss.JoinVertical(lipgloss.Left, header, "", list, "", footer, errorView)
}

// Actions

func (m model) selectMenu() (model, tea.Cmd) {
	switch m.cursor {
	case 0: // New Chat
		if m.app.store.Mode() == store.ModeMyFavorites {
			return m, m.fetchPrompts()
		}
		return m, m.newSession(store.Session{Title: store.DefaultTitle})
	case 1: // Continue Session
		sessions := m.app.store.HistoryByMode(m.app.store.Mode())
		if len(sessions) == 0 {
			m.err = errors.New("no existing sessions in this mode")
			return m, nil
		}
		m.availableSessions = sessions
		m.state = stateSelectingSession
	case 2: // Change Mode
		m.state = stateSelectingMode
	case 3: // Select Model
		m.availableModels = m.app.catalog.Choices()
		m.state = stateSelectingModel
	}
	m.cursor, m.listOffset = 0, 0
	return m, nil
}

func (m model) selectPrompt() (model, tea.Cmd) {
	if m.cursor >= len(m.availablePrompts) {
		return m, nil
	}
	p := m.availablePrompts[m.cursor]
	return m, m.newSession(store.Session{
		Title:       p.Title,
		Icon:        p.Icon,
		Description: p.Description,
		Greetings:   p.Greetings,
	})
}

func (m model) selectSession() (model, tea.Cmd) {
	if m.cursor >= len(m.availableSessions) {
		return m, nil
	}
	m.app.store.SetActive(m.availableSessions[m.cursor].Key)
	return m.enterChat()
}

func (m model) selectMode() (model, tea.Cmd) {
	mode := chatModes[m.cursor]
	m.app.store.SetMode(mode)
	m.state = stateMenu
	m.cursor, m.listOffset = 0, 0
	if !m.app.auth.SignedIn() {
		return m, nil
	}
	return m, func() tea.Msg {
		if _, err := m.app.store.FetchHistory(m.ctx); err != nil {
			return errMsg{err}
		}
		return noticeMsg(fmt.Sprintf("Switched to %s.", mode))
	}
}

func (m model) selectModel() (model, tea.Cmd) {
	if m.cursor >= len(m.availableModels) {
		return m, nil
	}
	ch := m.availableModels[m.cursor]
	if ch.Disabled {
		m.err = fmt.Errorf("%s requires a premium account", ch.Label)
		return m, nil
	}
	m.app.store.SetSelectedModel(ch.Name)
	m.state = stateMenu
	m.cursor, m.listOffset = 0, 0
	return m, m.saveModel(ch.Name)
}

func (m model) enterChat() (model, tea.Cmd) {
	m.state = stateChatting
	m.textarea.Placeholder = "Type a message..."
	m.textarea.Focus()
	m.render()
	return m, nil
}

func (m model) sendMessage() (model, tea.Cmd) {
	v := strings.TrimSpace(m.textarea.Value())
	if v == "" {
		return m, nil
	}
	m.textarea.Reset()
	m.notice = ""

	switch {
	case v == "/exit":
		return m, tea.Quit

	case v == "/back":
		m.state = stateMenu
		m.cursor, m.listOffset = 0, 0
		return m, nil

	case v == "/regen":
		msgs := m.app.store.MessagesOf(m.app.store.Active())
		if len(msgs) == 0 {
			return m, nil
		}
		return m, m.submit(runner.Job{Kind: runner.KindRegenerate, Key: m.app.store.Active(), Index: len(msgs) - 1})

	case strings.HasPrefix(v, "/model "):
		name := strings.TrimSpace(strings.TrimPrefix(v, "/model "))
		if !m.app.catalog.Allowed(name) {
			m.err = fmt.Errorf("model %q is not available", name)
			return m, nil
		}
		m.app.store.SetSelectedModel(name)
		return m, m.saveModel(name)

	case strings.HasPrefix(v, "/mode "):
		mode := store.AiMode(strings.TrimSpace(strings.TrimPrefix(v, "/mode ")))
		if !mode.Valid() {
			m.err = fmt.Errorf("unknown mode %q", mode)
			return m, nil
		}
		m.app.store.SetMode(mode)
		return m, nil
	}

	return m, m.submit(runner.Job{
		Kind:   runner.KindSend,
		Key:    m.app.store.Active(),
		Prompt: v,
		Model:  m.app.store.SelectedModel(),
	})
}

func (m model) submit(job runner.Job) tea.Cmd {
	return func() tea.Msg {
		if err := m.app.runner.Submit(job); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

func (m model) fetchPrompts() tea.Cmd {
	return func() tea.Msg {
		if err := m.app.prompts.Fetch(m.ctx); err != nil {
			slog.Warn("Failed to fetch prompts, using cached list", "error", err)
		}
		list := m.app.prompts.List()
		if len(list) == 0 {
			return errMsg{errors.New("the prompt library is empty")}
		}
		return promptsMsg(list)
	}
}

// newSession registers a session in the current mode and opens it. A role
// with greetings speaks first.
func (m model) newSession(sess store.Session) tea.Cmd {
	return func() tea.Msg {
		sess.AiMode = m.app.store.Mode()
		created, err := m.app.store.AddSession(m.ctx, sess, nil)
		if err != nil {
			return errMsg{err}
		}
		m.app.runner.Greet(created.Key, created.Greetings)
		return sessionReadyMsg(created.Key)
	}
}

func (m model) saveModel(name string) tea.Cmd {
	if !m.app.auth.SignedIn() {
		return nil
	}
	return func() tea.Msg {
		if err := m.app.users.UpdateModel(m.ctx, name); err != nil {
			return errMsg{err}
		}
		return noticeMsg("Model set to " + name + ".")
	}
}

// render draws the active session's messages into the viewport.
func (m *model) render() {
	msgs := m.app.store.MessagesOf(m.app.store.Active())

	var sb strings.Builder
	for _, msg := range msgs {
		if msg.Role == store.RoleUser {
			sb.WriteString(userStyle.Render("You: "))
		} else {
			sb.WriteString(senderStyle.Render("AI: "))
		}
		sb.WriteString("\n")

		switch {
		case msg.Error:
			sb.WriteString(errorStyle.Render(msg.Text))
		case msg.Loading && msg.Text == "":
			sb.WriteString(dimStyle.Render("  thinking..."))
		default:
			sb.WriteString(m.markdown(msg.Text))
		}
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m model) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text // Fallback
	}
	return rendered
}

func waitForRunnerError(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return runnerErrorMsg{err}
	}
}

func waitForUpdate(sub <-chan store.Key) tea.Cmd {
	return func() tea.Msg {
		key, ok := <-sub
		if !ok {
			return nil
		}
		return storeUpdateMsg(key)
	}
}

func waitForNavigation(ch <-chan store.Key) tea.Cmd {
	return func() tea.Msg {
		key, ok := <-ch
		if !ok {
			return nil
		}
		return navigateMsg(key)
	}
}

func waitForSignOut(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return signedOutMsg{}
	}
}
