package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight         = 2
	inputHeight          = 3
	manualFooterHeight   = inputHeight + 3 // 模板行、输入框、帮助行和分隔空行
	autonomousFootHeight = 3
)

// UIStateManager 管理UI组件的状态和布局
type UIStateManager struct {
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	ready    bool
	width    int
	height   int
}

// NewUIStateManager 创建新的UI状态管理器
func NewUIStateManager() *UIStateManager {
	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(inputHeight)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return &UIStateManager{
		viewport: viewport.New(80, 20),
		textarea: ta,
		spinner:  sp,
		width:    80,
	}
}

// IsReady 检查是否已收到终端尺寸
func (m *UIStateManager) IsReady() bool {
	return m.ready
}

// Width 当前终端宽度
func (m *UIStateManager) Width() int {
	return m.width
}

// Resize 根据终端尺寸和当前底栏高度调整组件
func (m *UIStateManager) Resize(width, height int, autonomous bool) {
	m.width, m.height = width, height
	vpHeight := m.viewportHeight(autonomous)
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.viewport.YPosition = headerHeight
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(width)
}

func (m *UIStateManager) viewportHeight(autonomous bool) int {
	footer := manualFooterHeight
	if autonomous {
		footer = autonomousFootHeight
	}
	h := m.height - headerHeight - footer
	if h < 1 {
		h = 1
	}
	return h
}

// SetInputEnabled 加载中或自主模式下禁止输入
func (m *UIStateManager) SetInputEnabled(enabled bool) {
	if enabled {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}
