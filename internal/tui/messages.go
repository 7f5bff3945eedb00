package tui

import "time"

// refreshMsg 通知模型控制器状态已变化，模型需要重新读取快照
type refreshMsg struct{}

// opResultMsg 控制器操作完成
type opResultMsg struct {
	op  string
	err error
}

// balanceMsg 钱包余额查询结果
type balanceMsg struct {
	balance string
	err     error
}

// pulseMsg 自主模式指示灯的闪烁节拍
type pulseMsg time.Time
