package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/AgentChat/internal/api"
	"github.com/Zacy-Sokach/AgentChat/internal/events"
	"github.com/google/uuid"
)

// DefaultPollInterval 自主模式两次请求之间的固定间隔
const DefaultPollInterval = 10 * time.Second

var (
	// ErrEmptyMessage 消息为空或只有空白
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy 已有请求在进行中
	ErrBusy = errors.New("a request is already in flight")
	// ErrClosed 控制器已关闭
	ErrClosed = errors.New("session controller is closed")

	errAborted = errors.New("agent call aborted")
)

// Option 配置 Controller
type Option func(*Controller)

// WithPrompts 覆盖提示文本，空字段使用默认值
func WithPrompts(p Prompts) Option {
	return func(c *Controller) { c.prompts = p.withDefaults() }
}

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock 替换时钟实现
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithEventBus 设置状态变化的发布目标。
// 事件按日志顺序串行发布；处理器可以读取 State，但不能同步调用会修改状态的方法。
func WithEventBus(bus events.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithLogger 设置日志记录器
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller 会话控制器：维护消息日志和自主模式状态机，并串行化所有对智能体服务的请求。
//
// 所有状态在 mu 保护下修改；挂起点只有智能体调用和轮询等待两处。
// 同一时刻最多只有一个请求在进行中，由容量为 1 的 slot 保证。
type Controller struct {
	endpoint  api.Endpoint
	prompts   Prompts
	interval  time.Duration
	clock     Clock
	bus       events.Bus
	logger    *slog.Logger
	sessionID string

	slot chan struct{}

	// loopCtx 供轮询请求使用，Close 时取消
	loopCtx    context.Context
	loopCancel context.CancelFunc
	wg         sync.WaitGroup

	// pubMu 先于 mu 获取，保证事件按日志顺序发布
	pubMu sync.Mutex

	mu                  sync.Mutex
	messages            []Message
	pendingInput        string
	loading             bool
	autonomous          bool
	starting            bool
	pendingDeactivation bool
	stopLoop            chan struct{}
	closed              bool
}

// New 创建会话控制器
func New(endpoint api.Endpoint, opts ...Option) *Controller {
	c := &Controller{
		endpoint:  endpoint,
		prompts:   DefaultPrompts(),
		interval:  DefaultPollInterval,
		clock:     realClock{},
		logger:    slog.Default().With("component", "session"),
		sessionID: uuid.NewString(),
		slot:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session_id", c.sessionID)
	c.loopCtx, c.loopCancel = context.WithCancel(context.Background())
	c.messages = []Message{{Role: RoleAssistant, Content: c.prompts.Greeting}}
	return c
}

// ID 返回会话标识，仅用于日志关联
func (c *Controller) ID() string {
	return c.sessionID
}

// PollInterval 返回轮询间隔
func (c *Controller) PollInterval() time.Duration {
	return c.interval
}

// State 返回状态快照
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Messages 返回消息日志副本
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Phase 返回自主模式当前阶段
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

// SetPendingInput 更新正在编辑的输入
func (c *Controller) SetPendingInput(text string) {
	c.update(func(cs *changeSet) {
		if c.pendingInput == text {
			return
		}
		c.pendingInput = text
		cs.stateChanged = true
	})
}

// SubmitMessage 发送一条手动消息。智能体调用失败时追加一条通用错误消息，不向调用方返回错误；
// 只有前置条件不满足时才返回 ErrEmptyMessage、ErrBusy 或 ErrClosed。
func (c *Controller) SubmitMessage(ctx context.Context, text string) error {
	return c.send(ctx, text, false)
}

// SelectTemplate 与 SubmitMessage 相同，但在发送前把模板文本写入输入框用于界面反馈
func (c *Controller) SelectTemplate(ctx context.Context, text string) error {
	return c.send(ctx, text, true)
}

func (c *Controller) send(ctx context.Context, text string, fromTemplate bool) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if !c.tryAcquire() {
		return ErrBusy
	}
	defer c.release()

	var closed bool
	c.update(func(cs *changeSet) {
		if c.closed {
			closed = true
			return
		}
		if fromTemplate {
			c.pendingInput = text
		}
		c.appendLocked(cs, RoleUser, text)
		c.loading = true
	})
	if closed {
		return ErrClosed
	}

	start := time.Now()
	reply, err := "", errAborted
	defer func() {
		c.update(func(cs *changeSet) {
			if err != nil {
				c.appendLocked(cs, RoleAssistant, c.prompts.ErrorReply)
			} else {
				c.appendLocked(cs, RoleAssistant, reply)
			}
			c.pendingInput = ""
			c.finishRequestLocked(cs)
		})
		if err != nil {
			c.logger.Warn("agent request failed", "autonomous", false, "duration", time.Since(start), "error", err)
		} else {
			c.logger.Debug("agent request completed", "autonomous", false, "duration", time.Since(start))
		}
	}()

	reply, err = c.endpoint.SendTurn(ctx, text, false)
	return nil
}

// Close 停止轮询循环并取消进行中的自主请求，可重复调用
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopLoopLocked()
	c.mu.Unlock()

	c.loopCancel()
	c.wg.Wait()
}

func (c *Controller) tryAcquire() bool {
	select {
	case c.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (c *Controller) release() {
	<-c.slot
}

// changeSet 收集一次状态修改产生的事件，在释放锁之后统一发布
type changeSet struct {
	added        []Message
	stateChanged bool
}

// update 在锁内执行 fn，释放 mu 后发布事件，处理器读取 State 不会死锁。
// 发布期间持有 pubMu，其他修改要等前一批事件发布完成。
func (c *Controller) update(fn func(cs *changeSet)) {
	var cs changeSet
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.mu.Lock()
	fn(&cs)
	var snapshot State
	if cs.stateChanged || len(cs.added) > 0 {
		snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()

	if c.bus == nil {
		return
	}
	for _, msg := range cs.added {
		c.bus.Publish(events.NewEvent(events.TypeMessageAdded, msg))
	}
	if cs.stateChanged || len(cs.added) > 0 {
		c.bus.Publish(events.NewEvent(events.TypeStateChanged, snapshot))
	}
}

func (c *Controller) appendLocked(cs *changeSet, role Role, content string) {
	msg := Message{Role: role, Content: content}
	c.messages = append(c.messages, msg)
	cs.added = append(cs.added, msg)
}

// finishRequestLocked 是每次 loading 变为 false 之后执行的唯一转换：
// 若有挂起的停用请求，则在此关闭自主模式并清除挂起标志。
func (c *Controller) finishRequestLocked(cs *changeSet) {
	c.loading = false
	cs.stateChanged = true
	if !c.pendingDeactivation {
		return
	}
	c.pendingDeactivation = false
	c.autonomous = false
	c.starting = false
	c.stopLoopLocked()
	c.logger.Info("autonomous mode stopped after in-flight request")
}

func (c *Controller) stopLoopLocked() {
	if c.stopLoop != nil {
		close(c.stopLoop)
		c.stopLoop = nil
	}
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case !c.autonomous:
		return PhaseIdle
	case c.pendingDeactivation:
		return PhaseStoppingAfterCurrent
	case c.starting:
		return PhaseStarting
	default:
		return PhaseActive
	}
}

func (c *Controller) snapshotLocked() State {
	return State{
		Messages:              append([]Message(nil), c.messages...),
		PendingInput:          c.pendingInput,
		IsLoading:             c.loading,
		IsAutonomous:          c.autonomous,
		IsPendingDeactivation: c.pendingDeactivation,
		Phase:                 c.phaseLocked(),
	}
}
