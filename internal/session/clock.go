package session

import "time"

// Clock 提供轮询间隔的等待，测试中可替换为手动推进的实现
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
