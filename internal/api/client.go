package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/AgentChat/internal/utils"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL 指向本地运行的智能体服务
	DefaultBaseURL = "http://localhost:3000"

	chatPath = "/api/chat"

	// RequestIDHeader 每次调用都会携带一个新的请求 ID，便于与后端日志对照
	RequestIDHeader = "X-Request-ID"
)

// ErrMalformedResponse 表示响应体不是包含 response 文本字段的 JSON 对象
var ErrMalformedResponse = errors.New("malformed agent response")

// APIError 表示智能体服务返回了非成功状态码
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("agent endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("agent endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// 全局共享的HTTP客户端，实现连接池化
var (
	sharedHTTPClient *http.Client
	httpClientOnce   sync.Once
)

// getSharedHTTPClient 返回共享的HTTP客户端实例。
// 不设置整体超时：一次调用可能触发多个链上操作，耗时由 Options.Timeout 控制。
func getSharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		sharedHTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	})
	return sharedHTTPClient
}

// Options 配置 Client
type Options struct {
	// BaseURL 智能体服务地址，默认 DefaultBaseURL
	BaseURL string
	// APIKey 非空时以 Bearer 方式发送
	APIKey string
	// Timeout 单次调用超时，0 表示不限制
	Timeout time.Duration
	// HTTPClient 为空时使用共享客户端
	HTTPClient utils.Doer
}

// Client 通过 JSON over HTTP 调用智能体服务
type Client struct {
	baseURL *url.URL
	apiKey  string
	timeout time.Duration
	client  utils.Doer
}

var _ Endpoint = (*Client)(nil)

// NewClient 创建智能体服务客户端
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid agent endpoint url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid agent endpoint url %q: scheme must be http or https", raw)
	}

	doer := opts.HTTPClient
	if doer == nil {
		doer = getSharedHTTPClient()
	}

	return &Client{
		baseURL: parsed,
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		client:  doer,
	}, nil
}

// BaseURL 返回规范化后的服务地址
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SendTurn 发送一轮对话。非 2xx 状态、网络错误以及缺少 response 字段的响应都视为失败。
func (c *Client) SendTurn(ctx context.Context, message string, autonomous bool) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(ChatRequest{Message: message, IsAutonomous: autonomous})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := c.newRequest(ctx, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError(resp.StatusCode, data)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if chatResp.Response == nil {
		return "", fmt.Errorf("%w: missing response field", ErrMalformedResponse)
	}
	return *chatResp.Response, nil
}

func (c *Client) newRequest(ctx context.Context, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, chatPath)}
	u := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func newAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		apiErr.Message = eb.message()
	}
	if apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}
