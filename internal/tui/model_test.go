package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/Zacy-Sokach/AgentChat/internal/api"
	"github.com/Zacy-Sokach/AgentChat/internal/events"
	"github.com/Zacy-Sokach/AgentChat/internal/session"
	"github.com/Zacy-Sokach/AgentChat/internal/wallet"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu        sync.Mutex
	state     session.State
	submitted []string
	templates []string
	toggles   int
	err       error
}

func newFakeController() *fakeController {
	return &fakeController{state: session.State{
		Messages: []session.Message{{Role: session.RoleAssistant, Content: "Hello, how can I help you today?"}},
	}}
}

func (f *fakeController) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) set(fn func(*session.State)) {
	f.mu.Lock()
	fn(&f.state)
	f.mu.Unlock()
}

func (f *fakeController) SubmitMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, text)
	return f.err
}

func (f *fakeController) SelectTemplate(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates = append(f.templates, text)
	return f.err
}

func (f *fakeController) ToggleAutonomous(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	return f.err
}

func newTestModel(t *testing.T, ctrl Controller) Model {
	t.Helper()
	info, err := wallet.NewInfo("0x52908400098527886e0f7030069857d2e4169ee7", "base-sepolia")
	require.NoError(t, err)
	m := NewModel(context.Background(), ctrl, Options{
		Wallet:    info,
		Templates: []string{"Deploy an NFT", "Launch a token"},
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestViewShowsHeaderAndGreeting(t *testing.T) {
	m := newTestModel(t, newFakeController())
	view := m.View()

	assert.Contains(t, view, "0x529...69EE7")
	assert.Contains(t, view, "base-sepolia")
	assert.Contains(t, view, "manual")
	assert.Contains(t, view, "Hello, how can I help you today?")
	assert.Contains(t, view, "Deploy an NFT")
}

func TestEnterSubmitsTypedMessage(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)
	m = typeText(t, m, "Hello")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	result := cmd()
	assert.Equal(t, opResultMsg{op: "send"}, result)
	assert.Equal(t, []string{"Hello"}, ctrl.submitted)
	assert.Empty(t, m.ui.textarea.Value())
}

func TestEnterOnEmptyInputSendsNothing(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.selected)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.selected)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, 1, m.selected)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	m = typeText(t, m, "   ")
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.templates)
	assert.Empty(t, ctrl.submitted)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"Launch a token"}, ctrl.templates)
}

func TestInputIgnoredWhileLoading(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)
	ctrl.set(func(s *session.State) { s.IsLoading = true })
	m, _ = update(t, m, refreshMsg{})

	assert.Contains(t, m.View(), "Thinking...")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.submitted)
	assert.Empty(t, ctrl.templates)
}

func TestAutonomousFooterStates(t *testing.T) {
	ctrl := newFakeController()
	m := newTestModel(t, ctrl)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.toggles)

	ctrl.set(func(s *session.State) {
		s.IsAutonomous = true
		s.Phase = session.PhaseActive
	})
	m, _ = update(t, m, refreshMsg{})
	view := m.View()
	assert.Contains(t, view, "Autonomous mode on")
	assert.Contains(t, view, "autonomous")
	assert.NotContains(t, view, "Deploy an NFT")

	// 自主模式下普通按键不会提交任何内容
	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	ctrl.set(func(s *session.State) {
		s.IsLoading = true
		s.IsPendingDeactivation = true
		s.Phase = session.PhaseStoppingAfterCurrent
	})
	m, _ = update(t, m, refreshMsg{})
	view = m.View()
	assert.Contains(t, view, "Completing final action...")
	assert.Contains(t, view, "stopping")
}

func TestBusyStatusIsNotAnError(t *testing.T) {
	m := newTestModel(t, newFakeController())
	m, _ = update(t, m, opResultMsg{op: "send", err: session.ErrBusy})
	assert.False(t, m.statusIsErr)
	assert.Contains(t, m.View(), "Waiting for the current request to finish")

	m, _ = update(t, m, opResultMsg{op: "send"})
	assert.Empty(t, m.status)
}

func TestBalanceRefreshAfterRequest(t *testing.T) {
	ctrl := newFakeController()
	calls := 0
	m := NewModel(context.Background(), ctrl, Options{
		Balance: func(context.Context) (string, error) {
			calls++
			return "1.5000 ETH", nil
		},
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	ctrl.set(func(s *session.State) { s.IsLoading = true })
	m, cmd := update(t, m, refreshMsg{})
	assert.Nil(t, cmd)

	ctrl.set(func(s *session.State) { s.IsLoading = false })
	m, cmd = update(t, m, refreshMsg{})
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, calls)
	assert.Contains(t, m.View(), "1.5000 ETH")
}

type recordingSender struct {
	ch chan tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) { s.ch <- msg }

func TestForwardSendsRefreshOnStateChange(t *testing.T) {
	bus := events.NewMemoryBus()
	sender := &recordingSender{ch: make(chan tea.Msg, 4)}
	unsubscribe := Forward(bus, sender)

	bus.Publish(events.NewEvent(events.TypeStateChanged, session.State{}))
	msg := <-sender.ch
	assert.IsType(t, refreshMsg{}, msg)

	unsubscribe()
	bus.Publish(events.NewEvent(events.TypeStateChanged, session.State{}))
	select {
	case msg := <-sender.ch:
		t.Fatalf("unexpected message after unsubscribe: %v", msg)
	default:
	}
}

func TestModelWithRealController(t *testing.T) {
	ctrl := session.New(api.EndpointFunc(func(_ context.Context, msg string, _ bool) (string, error) {
		return "echo: " + msg, nil
	}))
	t.Cleanup(ctrl.Close)

	m := newTestModel(t, ctrl)
	m = typeText(t, m, "ping")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.True(t, strings.Contains(m.View(), "echo: ping"))
}
