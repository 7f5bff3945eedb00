package utils

import "net/http"

// Doer 抽象出 *http.Client 的 Do 方法，便于在测试中替换传输层
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}
