package api

import (
	"context"
	"encoding/json"
)

// Endpoint 是智能体服务暴露的唯一操作：发送一轮对话并取回回复文本。
// 对调用方来说每次调用都是无状态的，会话与工具状态由后端自行维护。
type Endpoint interface {
	SendTurn(ctx context.Context, message string, autonomous bool) (string, error)
}

// EndpointFunc 让普通函数满足 Endpoint 接口
type EndpointFunc func(ctx context.Context, message string, autonomous bool) (string, error)

// SendTurn 调用 f 本身
func (f EndpointFunc) SendTurn(ctx context.Context, message string, autonomous bool) (string, error) {
	return f(ctx, message, autonomous)
}

// ChatRequest 是 POST /api/chat 的请求体
type ChatRequest struct {
	Message      string `json:"message"`
	IsAutonomous bool   `json:"isAutonomous"`
}

// ChatResponse 是成功时的响应体。Response 使用指针以区分缺失字段和空字符串。
type ChatResponse struct {
	Response *string `json:"response"`
}

// errorBody 是服务端失败时返回的 {"error": "..."}
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

// message 从 error 字段中取出可读文本，兼容字符串和对象两种形态
func (b errorBody) message() string {
	if len(b.Error) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(b.Error)
}
