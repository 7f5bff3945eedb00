package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Zacy-Sokach/AgentChat/internal/events"
	"github.com/Zacy-Sokach/AgentChat/internal/session"
	"github.com/Zacy-Sokach/AgentChat/internal/wallet"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version 是当前的 AgentChat 版本，由 main 包设置
var Version string

const (
	pulseInterval  = 600 * time.Millisecond
	balanceTimeout = 10 * time.Second
)

// Controller 界面所需的会话控制器操作，*session.Controller 满足此接口
type Controller interface {
	State() session.State
	SubmitMessage(ctx context.Context, text string) error
	SelectTemplate(ctx context.Context, text string) error
	ToggleAutonomous(ctx context.Context) error
}

// BalanceFunc 查询钱包余额
type BalanceFunc func(ctx context.Context) (string, error)

// Options 界面配置
type Options struct {
	Wallet    wallet.Info
	Balance   BalanceFunc
	Templates []string
	Bus       events.Bus
	Logger    *slog.Logger
}

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	labelStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	activeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	pulseStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("22"))
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
	templateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

type Model struct {
	ctx      context.Context
	ctrl     Controller
	ui       *UIStateManager
	markdown *MarkdownRenderer
	logger   *slog.Logger

	wallet      wallet.Info
	balanceFn   BalanceFunc
	balance     string
	templates   []string
	selected    int
	state       session.State
	pulse       bool
	status      string
	statusIsErr bool
}

// NewModel 创建界面模型
func NewModel(ctx context.Context, ctrl Controller, opts Options) Model {
	templates := opts.Templates
	if len(templates) == 0 {
		templates = session.DefaultTemplates()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		ctx:       ctx,
		ctrl:      ctrl,
		ui:        NewUIStateManager(),
		markdown:  NewMarkdownRenderer(),
		logger:    logger.With("component", "tui"),
		wallet:    opts.Wallet,
		balanceFn: opts.Balance,
		templates: templates,
		state:     ctrl.State(),
	}
}

// Run 启动全屏界面，直到用户退出或 ctx 被取消
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	m := NewModel(ctx, ctrl, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := Forward(opts.Bus, p)
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.ui.spinner.Tick, pulse(), m.fetchBalance())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.ui.Resize(msg.Width, msg.Height, m.state.IsAutonomous)
		m.refreshViewport()

	case refreshMsg:
		return m, m.refresh()

	case opResultMsg:
		m.setStatus(msg)
		return m, m.refresh()

	case balanceMsg:
		if msg.err != nil {
			m.logger.Warn("balance query failed", "error", msg.err)
		} else {
			m.balance = msg.balance
		}
		return m, nil

	case pulseMsg:
		m.pulse = !m.pulse
		return m, pulse()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.ui.spinner, cmd = m.ui.spinner.Update(msg)
		if m.state.IsLoading {
			m.refreshViewport()
		}
		return m, cmd
	}

	if m.inputEnabled() {
		var cmd tea.Cmd
		m.ui.textarea, cmd = m.ui.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	// 视口只响应翻页键，其余按键留给输入框
	if key, ok := msg.(tea.KeyMsg); !ok || key.Type == tea.KeyPgUp || key.Type == tea.KeyPgDown {
		var cmd tea.Cmd
		m.ui.viewport, cmd = m.ui.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey 处理快捷键，返回 false 表示交给输入框和视口
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit, true
	case tea.KeyCtrlA:
		return m.toggle(), true
	case tea.KeyPgUp, tea.KeyPgDown:
		return nil, false
	}

	if m.state.IsAutonomous {
		return nil, true
	}

	switch msg.Type {
	case tea.KeyTab:
		m.selected = (m.selected + 1) % len(m.templates)
		return nil, true
	case tea.KeyShiftTab:
		m.selected = (m.selected - 1 + len(m.templates)) % len(m.templates)
		return nil, true
	case tea.KeyCtrlT:
		if m.state.IsLoading {
			return nil, true
		}
		return m.sendTemplate(), true
	case tea.KeyEnter:
		if m.state.IsLoading {
			return nil, true
		}
		input := m.ui.textarea.Value()
		// 空输入不发送，模板只能通过 Ctrl+T 显式发送
		if strings.TrimSpace(input) == "" {
			return nil, true
		}
		m.ui.textarea.Reset()
		return m.submit(input), true
	}
	return nil, false
}

func (m *Model) submit(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return opResultMsg{op: "send", err: ctrl.SubmitMessage(ctx, text)}
	}
}

func (m *Model) sendTemplate() tea.Cmd {
	text := m.templates[m.selected]
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return opResultMsg{op: "template", err: ctrl.SelectTemplate(ctx, text)}
	}
}

func (m *Model) toggle() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return opResultMsg{op: "toggle", err: ctrl.ToggleAutonomous(ctx)}
	}
}

// refresh 重新读取控制器快照，更新布局并在请求结束后刷新余额
func (m *Model) refresh() tea.Cmd {
	prev := m.state
	m.state = m.ctrl.State()

	if prev.IsAutonomous != m.state.IsAutonomous && m.ui.IsReady() {
		m.ui.Resize(m.ui.width, m.ui.height, m.state.IsAutonomous)
	}
	m.ui.SetInputEnabled(m.inputEnabled())
	m.refreshViewport()

	if prev.IsLoading && !m.state.IsLoading {
		return m.fetchBalance()
	}
	return nil
}

func (m *Model) setStatus(msg opResultMsg) {
	switch {
	case msg.err == nil:
		m.status = ""
		m.statusIsErr = false
	case errors.Is(msg.err, session.ErrBusy):
		m.status = "Waiting for the current request to finish"
		m.statusIsErr = false
	case errors.Is(msg.err, session.ErrEmptyMessage):
		m.status = ""
	default:
		m.status = msg.err.Error()
		m.statusIsErr = true
		m.logger.Error("operation failed", "op", msg.op, "error", msg.err)
	}
}

func (m Model) inputEnabled() bool {
	return !m.state.IsAutonomous && !m.state.IsLoading
}

func (m *Model) fetchBalance() tea.Cmd {
	if m.balanceFn == nil {
		return nil
	}
	fn, parent := m.balanceFn, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, balanceTimeout)
		defer cancel()
		b, err := fn(ctx)
		return balanceMsg{balance: b, err: err}
	}
}

func pulse() tea.Cmd {
	return tea.Tick(pulseInterval, func(t time.Time) tea.Msg {
		return pulseMsg(t)
	})
}

func (m *Model) refreshViewport() {
	if !m.ui.IsReady() {
		return
	}
	m.ui.viewport.SetContent(m.formatMessages())
	m.ui.viewport.GotoBottom()
}

func (m Model) formatMessages() string {
	width := m.ui.Width()
	bubbleWidth := width * 3 / 4
	if bubbleWidth < 20 {
		bubbleWidth = width
	}

	var sb strings.Builder
	for _, msg := range m.state.Messages {
		switch msg.Role {
		case session.RoleUser:
			body := userStyle.Width(bubbleWidth).Align(lipgloss.Right).Render(msg.Content)
			label := labelStyle.Inherit(userStyle).Render("You")
			sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, label))
			sb.WriteString("\n")
			sb.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Right, body))
		default:
			body := assistantStyle.Width(bubbleWidth).Render(m.markdown.Render(msg.Content))
			sb.WriteString(labelStyle.Inherit(assistantStyle).Render("Agent"))
			sb.WriteString("\n")
			sb.WriteString(body)
		}
		sb.WriteString("\n\n")
	}
	if m.state.IsLoading {
		sb.WriteString(m.ui.spinner.View())
		sb.WriteString(dimStyle.Render(" Thinking..."))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.ui.IsReady() {
		return "Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.ui.viewport.View(), m.footerView())
}

func (m Model) headerView() string {
	left := "👛 "
	if m.wallet.Address != "" {
		left += m.wallet.Short()
	} else {
		left += dimStyle.Render("no wallet")
	}
	if m.wallet.NetworkID != "" {
		left += dimStyle.Render(" · " + m.wallet.NetworkID)
	}
	if m.balance != "" {
		left += dimStyle.Render(" · ") + m.balance
	}

	right := "🤖 " + m.robotState()
	gap := m.ui.Width() - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right + "\n"
}

func (m Model) robotState() string {
	switch {
	case m.state.IsPendingDeactivation:
		return warnStyle.Render("stopping")
	case m.state.IsAutonomous:
		if m.pulse {
			return pulseStyle.Render("autonomous")
		}
		return activeStyle.Render("autonomous")
	default:
		return dimStyle.Render("manual")
	}
}

func (m Model) footerView() string {
	var sb strings.Builder
	if m.state.IsAutonomous {
		if m.state.IsPendingDeactivation {
			sb.WriteString(warnStyle.Render("Completing final action..."))
		} else {
			sb.WriteString(activeStyle.Render("Autonomous mode on"))
		}
		sb.WriteString("\n")
		sb.WriteString(m.helpView())
		return sb.String()
	}

	sb.WriteString(m.templateRow())
	sb.WriteString("\n")
	sb.WriteString(m.ui.textarea.View())
	sb.WriteString("\n")
	sb.WriteString(m.helpView())
	return sb.String()
}

func (m Model) templateRow() string {
	parts := make([]string, len(m.templates))
	for i, t := range m.templates {
		if i == m.selected {
			parts[i] = selectedStyle.Render(" " + t + " ")
		} else {
			parts[i] = templateStyle.Render(" " + t + " ")
		}
	}
	return strings.Join(parts, dimStyle.Render("│"))
}

func (m Model) helpView() string {
	if m.status != "" {
		if m.statusIsErr {
			return errorStyle.Render(m.status)
		}
		return warnStyle.Render(m.status)
	}
	help := "Enter: send • Tab: next template • Ctrl+T: send template • Ctrl+A: autonomous • Ctrl+C: quit"
	switch {
	case m.state.IsPendingDeactivation:
		help = "Stopping after the current action • Ctrl+C: quit"
	case m.state.IsAutonomous:
		help = "Ctrl+A: stop autonomous mode • PgUp/PgDn: scroll • Ctrl+C: quit"
	case m.state.IsLoading:
		if m.state.PendingInput != "" {
			help = "Sending: " + m.state.PendingInput
		} else {
			help = "Waiting for the agent... • Ctrl+A: autonomous • Ctrl+C: quit"
		}
	}
	return dimStyle.Render(help)
}
