package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Zacy-Sokach/AgentChat/internal/session"
	"github.com/Zacy-Sokach/AgentChat/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL      = "http://localhost:3000"
	defaultNetworkID    = "base-sepolia"
	defaultPollInterval = 10
)

type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	Autonomous AutonomousConfig `yaml:"autonomous"`
	Templates  []string         `yaml:"templates"`
	Wallet     WalletConfig     `yaml:"wallet"`
	Log        LogConfig        `yaml:"log"`
}

// AgentConfig 智能体服务连接参数
type AgentConfig struct {
	BaseURL               string `yaml:"base_url"`
	APIKey                string `yaml:"api_key"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// AutonomousConfig 自主模式参数，提示文本为空时使用内置默认值
type AutonomousConfig struct {
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	KickoffPrompt       string        `yaml:"kickoff_prompt"`
	ContinuePrompt      string        `yaml:"continue_prompt"`
	Notices             NoticesConfig `yaml:"notices,omitempty"`
}

// NoticesConfig 会话中追加的各类提示文本
type NoticesConfig struct {
	Greeting    string `yaml:"greeting,omitempty"`
	Activated   string `yaml:"activated,omitempty"`
	Deactivated string `yaml:"deactivated,omitempty"`
	Pending     string `yaml:"pending,omitempty"`
	ErrorReply  string `yaml:"error_reply,omitempty"`
	StartFailed string `yaml:"start_failed,omitempty"`
	Retry       string `yaml:"retry,omitempty"`
}

// WalletConfig 智能体钱包的展示信息
type WalletConfig struct {
	Address   string `yaml:"address"`
	NetworkID string `yaml:"network_id"`
	RPCURL    string `yaml:"rpc_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile 读取指定路径的配置文件，文件不存在时返回默认配置
func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Agent.BaseURL == "" {
		c.Agent.BaseURL = defaultBaseURL
	}
	if c.Agent.RequestTimeoutSeconds < 0 {
		c.Agent.RequestTimeoutSeconds = 0
	}
	if c.Autonomous.PollIntervalSeconds <= 0 {
		c.Autonomous.PollIntervalSeconds = defaultPollInterval
	}
	if len(c.Templates) == 0 {
		c.Templates = session.DefaultTemplates()
	}
	if c.Wallet.NetworkID == "" {
		c.Wallet.NetworkID = defaultNetworkID
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// LoadDotEnv 加载工作目录下的 .env 文件，文件不存在时忽略。已存在的环境变量不会被覆盖。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv 用环境变量覆盖配置
func (c *Config) ApplyEnv() error {
	setString(&c.Agent.BaseURL, "AGENT_ENDPOINT")
	setString(&c.Agent.APIKey, "AGENT_API_KEY")
	setString(&c.Wallet.Address, "NEXT_PUBLIC_AGENT_ADDRESS")
	setString(&c.Wallet.Address, "AGENT_ADDRESS")
	setString(&c.Wallet.NetworkID, "NETWORK_ID")
	setString(&c.Wallet.RPCURL, "AGENT_RPC_URL")
	setString(&c.Log.Level, "AGENTCHAT_LOG_LEVEL")

	if v := strings.TrimSpace(os.Getenv("AGENT_POLL_INTERVAL")); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("AGENT_POLL_INTERVAL: %w", err)
		}
		c.Autonomous.PollIntervalSeconds = d
	}
	return nil
}

// PollInterval 轮询间隔
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Autonomous.PollIntervalSeconds) * time.Second
}

// RequestTimeout 单次请求超时，0 表示不限制
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Agent.RequestTimeoutSeconds) * time.Second
}

// Prompts 把配置中的提示词合并到默认提示文本上
func (c *Config) Prompts() session.Prompts {
	p := session.DefaultPrompts()
	if c.Autonomous.KickoffPrompt != "" {
		p.Kickoff = c.Autonomous.KickoffPrompt
	}
	if c.Autonomous.ContinuePrompt != "" {
		p.Continue = c.Autonomous.ContinuePrompt
	}

	n := c.Autonomous.Notices
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&p.Greeting, n.Greeting)
	override(&p.ActivatedNotice, n.Activated)
	override(&p.DeactivatedNotice, n.Deactivated)
	override(&p.PendingNotice, n.Pending)
	override(&p.ErrorReply, n.ErrorReply)
	override(&p.StartFailed, n.StartFailed)
	override(&p.RetryNotice, n.Retry)
	return p
}

// LogPath 日志文件路径，未配置时位于配置目录下
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := utils.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agentchat.log"), nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// parseSeconds 接受纯数字秒数或 time.ParseDuration 格式
func parseSeconds(v string) (int, error) {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return n, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < time.Second || d%time.Second != 0 {
		return 0, fmt.Errorf("must be a whole number of seconds (at least 1s), got %s", d)
	}
	return int(d / time.Second), nil
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
