package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// turn 是脚本化端点收到的一次调用，测试通过 reply 决定结果
type turn struct {
	message    string
	autonomous bool
	reply      chan result
}

type result struct {
	text string
	err  error
}

func (t turn) succeed(text string) { t.reply <- result{text: text} }
func (t turn) fail(err error)      { t.reply <- result{err: err} }

// scriptedEndpoint 每次调用都阻塞，直到测试给出回复
type scriptedEndpoint struct {
	calls    chan turn
	inflight atomic.Int32
	maxSeen  atomic.Int32
	total    atomic.Int32
}

func newScriptedEndpoint() *scriptedEndpoint {
	return &scriptedEndpoint{calls: make(chan turn)}
}

func (e *scriptedEndpoint) SendTurn(ctx context.Context, message string, autonomous bool) (string, error) {
	n := e.inflight.Add(1)
	defer e.inflight.Add(-1)
	e.total.Add(1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	t := turn{message: message, autonomous: autonomous, reply: make(chan result, 1)}
	select {
	case e.calls <- t:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case r := <-t.reply:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *scriptedEndpoint) expect(t *testing.T) turn {
	t.Helper()
	select {
	case call := <-e.calls:
		return call
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for agent call")
		return turn{}
	}
}

func (e *scriptedEndpoint) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case call := <-e.calls:
		t.Fatalf("unexpected agent call: %q", call.message)
	case <-time.After(d):
	}
}

// manualClock 只有在测试调用 fire 时才触发等待
type manualClock struct {
	mu      sync.Mutex
	waiters []chan time.Time
	armed   chan time.Duration
	armedN  atomic.Int32
}

func newManualClock() *manualClock {
	return &manualClock{armed: make(chan time.Duration, 16)}
}

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	c.armedN.Add(1)
	c.armed <- d
	return ch
}

// awaitArmed 等待循环进入下一次等待，返回请求的间隔
func (c *manualClock) awaitArmed(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-c.armed:
		return d
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for poll timer")
		return 0
	}
}

func (c *manualClock) fire() {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()
	for _, ch := range waiters {
		ch <- time.Now()
	}
}

// runAsync 在后台执行阻塞操作，返回其错误通道
func runAsync(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

func awaitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for operation to finish")
		return nil
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
