package tui

import (
	"github.com/Zacy-Sokach/AgentChat/internal/events"
	tea "github.com/charmbracelet/bubbletea"
)

// Sender 是 *tea.Program 中用于注入消息的部分
type Sender interface {
	Send(msg tea.Msg)
}

// programForwarder 把控制器的状态事件转发给 bubbletea 程序
type programForwarder struct {
	sender Sender
}

// Handle 在新的 goroutine 中发送，避免控制器发布事件时被界面阻塞
func (f *programForwarder) Handle(events.Event) error {
	go f.sender.Send(refreshMsg{})
	return nil
}

func (f *programForwarder) Priority() int { return 50 }

// Forward 订阅状态变化事件并转发给程序，返回取消订阅函数
func Forward(bus events.Bus, sender Sender) func() {
	if bus == nil || sender == nil {
		return func() {}
	}
	h := &programForwarder{sender: sender}
	bus.Subscribe(events.TypeStateChanged, h)
	return func() { bus.Unsubscribe(events.TypeStateChanged, h) }
}
