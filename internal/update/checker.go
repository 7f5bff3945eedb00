package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Zacy-Sokach/AgentChat/internal/utils"
)

const (
	RepoOwner = "Zacy-Sokach"
	RepoName  = "AgentChat"
	Repo      = RepoOwner + "/" + RepoName

	defaultAPIBase = "https://api.github.com"
)

type ReleaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type Checker struct {
	client  utils.Doer
	apiBase string
}

// Option 配置 Checker
type Option func(*Checker)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(client utils.Doer) Option {
	return func(c *Checker) { c.client = client }
}

// WithAPIBase 替换 GitHub API 地址
func WithAPIBase(base string) Option {
	return func(c *Checker) { c.apiBase = strings.TrimRight(base, "/") }
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: defaultAPIBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LatestRelease 查询最新发布版本
func (c *Checker) LatestRelease(ctx context.Context) (ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ReleaseInfo{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ReleaseInfo{}, fmt.Errorf("failed to fetch latest version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ReleaseInfo{}, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return ReleaseInfo{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return release, nil
}

// CheckForUpdate 返回是否存在比 currentVersion 更新的版本。开发版本 "dev" 总是视为最新。
func (c *Checker) CheckForUpdate(ctx context.Context, currentVersion string) (bool, ReleaseInfo, error) {
	release, err := c.LatestRelease(ctx)
	if err != nil {
		return false, ReleaseInfo{}, err
	}
	if currentVersion == "" || currentVersion == "dev" {
		return false, release, nil
	}
	return compareVersions(currentVersion, release.TagName) < 0, release, nil
}

func compareVersions(v1, v2 string) int {
	v1 = strings.TrimPrefix(v1, "v")
	v2 = strings.TrimPrefix(v2, "v")

	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		var p1, p2 int
		fmt.Sscanf(parts1[i], "%d", &p1)
		fmt.Sscanf(parts2[i], "%d", &p2)

		if p1 < p2 {
			return -1
		}
		if p1 > p2 {
			return 1
		}
	}

	if len(parts1) < len(parts2) {
		return -1
	}
	if len(parts1) > len(parts2) {
		return 1
	}
	return 0
}
