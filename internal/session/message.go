package session

import "fmt"

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 会话日志中的一条消息，追加后不再修改
type Message struct {
	Role    Role
	Content string
}

// Phase 自主模式子系统所处的阶段，由标志位推导而来
type Phase int

const (
	// PhaseIdle 未开启自主模式
	PhaseIdle Phase = iota
	// PhaseStarting 启动请求进行中
	PhaseStarting
	// PhaseActive 轮询循环运行中
	PhaseActive
	// PhaseStoppingAfterCurrent 已请求停用，等待当前请求结束
	PhaseStoppingAfterCurrent
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseStoppingAfterCurrent:
		return "stopping-after-current"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State 控制器状态快照
type State struct {
	Messages              []Message
	PendingInput          string
	IsLoading             bool
	IsAutonomous          bool
	IsPendingDeactivation bool
	Phase                 Phase
}
