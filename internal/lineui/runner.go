// Package lineui 为非交互终端提供逐行读写的前端，与全屏界面共用同一个会话控制器。
package lineui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Zacy-Sokach/AgentChat/internal/events"
	"github.com/Zacy-Sokach/AgentChat/internal/session"
)

// Controller 行模式所需的会话控制器操作
type Controller interface {
	State() session.State
	SubmitMessage(ctx context.Context, text string) error
	SelectTemplate(ctx context.Context, text string) error
	ToggleAutonomous(ctx context.Context) error
	RequestDeactivation()
}

type Runner struct {
	ctrl      Controller
	bus       events.Bus
	in        io.Reader
	out       io.Writer
	templates []string
	parser    *CommandParser
	logger    *slog.Logger

	mu sync.Mutex
	// printed 已打印的日志条数，日志只追加，按下标去重
	printed int
	wg      sync.WaitGroup
}

// Options 行模式配置
type Options struct {
	In        io.Reader
	Out       io.Writer
	Templates []string
	Logger    *slog.Logger
}

func New(ctrl Controller, bus events.Bus, opts Options) *Runner {
	templates := opts.Templates
	if len(templates) == 0 {
		templates = session.DefaultTemplates()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ctrl:      ctrl,
		bus:       bus,
		in:        opts.In,
		out:       opts.Out,
		templates: templates,
		parser:    NewCommandParser(),
		logger:    logger.With("component", "lineui"),
	}
}

// Handle 打印尚未输出的日志条目
func (r *Runner) Handle(e events.Event) error {
	if _, ok := e.Data().(session.Message); !ok {
		return fmt.Errorf("unexpected event data %T", e.Data())
	}
	r.flush()
	return nil
}

func (r *Runner) Priority() int { return 50 }

// Run 读取输入直到 /quit、输入结束或 ctx 取消。
// 输入结束时若自主模式仍在运行，则继续运行直到 ctx 取消。
func (r *Runner) Run(ctx context.Context) error {
	// 先订阅再输出快照，两者之间追加的消息由 flush 补上
	if r.bus != nil {
		r.bus.Subscribe(events.TypeMessageAdded, r)
		defer r.bus.Unsubscribe(events.TypeMessageAdded, r)
	}
	r.flush()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return nil
		case err := <-readErr:
			r.wg.Wait()
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if r.ctrl.State().IsAutonomous {
				r.notice("input closed, autonomous mode keeps running until interrupted")
				<-ctx.Done()
			}
			return nil
		case line := <-lines:
			if quit := r.dispatch(ctx, line); quit {
				r.wg.Wait()
				return nil
			}
		}
	}
}

// dispatch 执行一条命令，阻塞的控制器调用放到后台执行
func (r *Runner) dispatch(ctx context.Context, line string) bool {
	cmd := r.parser.Parse(line)
	if cmd == nil {
		return false
	}

	switch cmd.Type {
	case CommandTypeQuit:
		return true
	case CommandTypeStop:
		r.ctrl.RequestDeactivation()
	case CommandTypeTemplates:
		r.mu.Lock()
		for i, t := range r.templates {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, t)
		}
		r.mu.Unlock()
	case CommandTypeTemplate:
		if cmd.TemplateNumber < 1 || cmd.TemplateNumber > len(r.templates) {
			r.notice(fmt.Sprintf("no template %d, see /templates", cmd.TemplateNumber))
			return false
		}
		text := r.templates[cmd.TemplateNumber-1]
		r.background(cmd, func() error { return r.ctrl.SelectTemplate(ctx, text) })
	case CommandTypeToggle:
		r.background(cmd, func() error { return r.ctrl.ToggleAutonomous(ctx) })
	case CommandTypeMessage:
		r.background(cmd, func() error { return r.ctrl.SubmitMessage(ctx, cmd.Raw) })
	default:
		r.notice("unknown command " + cmd.Raw)
	}
	return false
}

func (r *Runner) background(cmd *Command, fn func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := fn()
		switch {
		case err == nil:
		case errors.Is(err, session.ErrBusy):
			r.notice("the agent is busy, try again when the current request finishes")
		default:
			r.logger.Error("command failed", "command", FormatCommandType(cmd.Type), "error", err)
			r.notice(err.Error())
		}
	}()
}

// flush 按日志顺序打印 printed 之后的消息
func (r *Runner) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.ctrl.State().Messages
	for _, msg := range msgs[min(r.printed, len(msgs)):] {
		fmt.Fprintf(r.out, "[%s] %s\n", msg.Role, msg.Content)
	}
	r.printed = max(r.printed, len(msgs))
}

func (r *Runner) notice(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "! %s\n", text)
}
