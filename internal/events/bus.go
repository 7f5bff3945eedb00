package events

import (
	"reflect"
	"sort"
	"sync"
	"time"
)

// 事件类型常量
const (
	// TypeMessageAdded 会话日志追加了一条消息，Data 为 session.Message
	TypeMessageAdded = "message.added"
	// TypeStateChanged 会话标志位发生变化，Data 为 session.State
	TypeStateChanged = "state.changed"
)

// Event 事件接口
type Event interface {
	Type() string
	Data() interface{}
	Timestamp() time.Time
}

// Handler 事件处理器
type Handler interface {
	// Handle 处理事件，返回的错误只用于日志
	Handle(event Event) error
	// Priority 数值越小越先执行
	Priority() int
}

// Bus 事件总线接口
type Bus interface {
	Subscribe(eventType string, handler Handler)
	Unsubscribe(eventType string, handler Handler)
	Publish(event Event)
	Clear()
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	eventType string
	data      interface{}
	timestamp time.Time
}

// NewEvent 创建事件
func NewEvent(eventType string, data interface{}) *BaseEvent {
	return &BaseEvent{
		eventType: eventType,
		data:      data,
		timestamp: time.Now(),
	}
}

func (e *BaseEvent) Type() string         { return e.eventType }
func (e *BaseEvent) Data() interface{}    { return e.data }
func (e *BaseEvent) Timestamp() time.Time { return e.timestamp }

// HandlerFunc 把函数包装成默认优先级的 Handler
type HandlerFunc func(Event) error

func (f HandlerFunc) Handle(event Event) error { return f(event) }
func (f HandlerFunc) Priority() int            { return 100 }

// MemoryBus 内存事件总线实现。Publish 同步执行；并发发布之间不排序，需要顺序的发布方自行串行化。
type MemoryBus struct {
	handlers map[string][]Handler
	mutex    sync.RWMutex
	onError  func(event Event, err error)
}

// NewMemoryBus 创建内存事件总线
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
	}
}

// OnError 设置处理器出错时的回调
func (bus *MemoryBus) OnError(fn func(event Event, err error)) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.onError = fn
}

// Subscribe 订阅事件
func (bus *MemoryBus) Subscribe(eventType string, handler Handler) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	handlers := append(bus.handlers[eventType], handler)
	// 按优先级排序，相同优先级保持订阅顺序
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].Priority() < handlers[j].Priority()
	})
	bus.handlers[eventType] = handlers
}

// Unsubscribe 取消订阅事件。HandlerFunc 不可比较，传入时直接忽略。
func (bus *MemoryBus) Unsubscribe(eventType string, handler Handler) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if !reflect.TypeOf(handler).Comparable() {
		return
	}
	handlers := bus.handlers[eventType]
	for i, h := range handlers {
		if reflect.TypeOf(h) == reflect.TypeOf(handler) && h == handler {
			bus.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
}

// Publish 发布事件
func (bus *MemoryBus) Publish(event Event) {
	bus.mutex.RLock()
	handlers := append([]Handler(nil), bus.handlers[event.Type()]...)
	onError := bus.onError
	bus.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// Clear 清空所有订阅
func (bus *MemoryBus) Clear() {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	bus.handlers = make(map[string][]Handler)
}
