package session

import (
	"context"
	"time"
)

// ToggleAutonomous 未激活时发送启动请求并在成功后开始轮询；已激活时转交 RequestDeactivation。
// 启动失败会追加一条错误消息并回到 Idle，不会自动重试。
func (c *Controller) ToggleAutonomous(ctx context.Context) error {
	c.mu.Lock()
	active, closed := c.autonomous, c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if active {
		c.RequestDeactivation()
		return nil
	}
	return c.startAutonomous(ctx)
}

func (c *Controller) startAutonomous(ctx context.Context) error {
	if !c.tryAcquire() {
		return ErrBusy
	}
	defer c.release()

	var skip bool
	c.update(func(cs *changeSet) {
		// 获取槽位期间可能已被其他调用启动
		if c.closed || c.autonomous {
			skip = true
			return
		}
		c.autonomous = true
		c.starting = true
		c.appendLocked(cs, RoleAssistant, c.prompts.ActivatedNotice)
		c.loading = true
	})
	if skip {
		return nil
	}
	c.logger.Info("autonomous mode starting")

	start := time.Now()
	reply, err := "", errAborted
	defer func() {
		var started bool
		c.update(func(cs *changeSet) {
			c.starting = false
			if err != nil {
				c.appendLocked(cs, RoleAssistant, c.prompts.StartFailed)
				c.autonomous = false
				c.pendingDeactivation = false
			} else {
				c.appendLocked(cs, RoleAssistant, reply)
			}
			c.finishRequestLocked(cs)
			if c.autonomous && !c.closed {
				c.startLoopLocked()
				started = true
			}
		})
		switch {
		case err != nil:
			c.logger.Warn("autonomous mode failed to start", "duration", time.Since(start), "error", err)
		case started:
			c.logger.Info("autonomous mode active", "poll_interval", c.interval)
		}
	}()

	reply, err = c.endpoint.SendTurn(ctx, c.prompts.Kickoff, true)
	return nil
}

// RequestDeactivation 请求停用自主模式。
// 没有请求进行中时立即停用；否则只设置挂起标志，待当前请求结束后再停用。
// 未激活时仅追加一条提示消息。
func (c *Controller) RequestDeactivation() {
	c.update(func(cs *changeSet) {
		switch {
		case !c.autonomous:
			c.appendLocked(cs, RoleAssistant, c.prompts.DeactivatedNotice)
		case c.pendingDeactivation:
			// 已在等待当前动作完成
		case c.loading:
			c.pendingDeactivation = true
			c.appendLocked(cs, RoleAssistant, c.prompts.PendingNotice)
			c.logger.Info("autonomous mode will stop after in-flight request")
		default:
			c.autonomous = false
			c.stopLoopLocked()
			c.appendLocked(cs, RoleAssistant, c.prompts.DeactivatedNotice)
			c.logger.Info("autonomous mode deactivated")
		}
		cs.stateChanged = true
	})
}

func (c *Controller) startLoopLocked() {
	stop := make(chan struct{})
	c.stopLoop = stop
	c.wg.Add(1)
	go c.run(stop)
}

// run 是自主模式的轮询循环：等待固定间隔，再执行一次请求，直到自主标志被清除。
func (c *Controller) run(stop <-chan struct{}) {
	defer c.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-c.clock.After(c.interval):
		}
		if !c.tick(stop) {
			return
		}
	}
}

// tick 执行一次轮询请求，返回是否继续调度下一次
func (c *Controller) tick(stop <-chan struct{}) bool {
	// 手动请求进行中时等待其完成
	select {
	case c.slot <- struct{}{}:
	case <-stop:
		return false
	}
	defer c.release()

	var proceed bool
	c.update(func(cs *changeSet) {
		if !c.ownsLoopLocked(stop) {
			return
		}
		proceed = true
		c.loading = true
		cs.stateChanged = true
	})
	if !proceed {
		return false
	}

	start := time.Now()
	reply, err := c.endpoint.SendTurn(c.loopCtx, c.prompts.Continue, true)

	var again bool
	c.update(func(cs *changeSet) {
		if c.autonomous && !c.closed {
			if err != nil {
				c.appendLocked(cs, RoleAssistant, c.prompts.RetryNotice)
			} else {
				c.appendLocked(cs, RoleAssistant, reply)
			}
		}
		c.finishRequestLocked(cs)
		again = c.ownsLoopLocked(stop)
	})

	if err != nil {
		c.logger.Warn("autonomous poll failed", "duration", time.Since(start), "error", err)
	} else {
		c.logger.Debug("autonomous poll completed", "duration", time.Since(start))
	}
	return again
}

// ownsLoopLocked 判断 stop 对应的循环是否仍是当前有效的循环
func (c *Controller) ownsLoopLocked(stop <-chan struct{}) bool {
	if !c.autonomous || c.closed || c.stopLoop == nil {
		return false
	}
	return c.stopLoop == stop
}
