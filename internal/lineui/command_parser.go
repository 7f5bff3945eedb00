package lineui

import (
	"regexp"
	"strconv"
	"strings"
)

// CommandType 命令类型
type CommandType int

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeMessage
	CommandTypeToggle
	CommandTypeStop
	CommandTypeTemplates
	CommandTypeTemplate
	CommandTypeQuit
)

// Command 解析后的命令
type Command struct {
	Type CommandType
	Raw  string
	// TemplateNumber 从 1 开始的模板编号
	TemplateNumber int
}

// CommandParser 命令解析器，不以 "/" 开头的输入都视为普通消息
type CommandParser struct {
	togglePatterns    []*regexp.Regexp
	stopPatterns      []*regexp.Regexp
	templatesPatterns []*regexp.Regexp
	templatePatterns  []*regexp.Regexp
	quitPatterns      []*regexp.Regexp
}

// NewCommandParser 创建新的命令解析器
func NewCommandParser() *CommandParser {
	return &CommandParser{
		togglePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^/auto$`),
		},
		stopPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^/stop$`),
		},
		templatesPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^/templates$`),
		},
		templatePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^/t\s+(\d+)$`),
			regexp.MustCompile(`(?i)^/template\s+(\d+)$`),
		},
		quitPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^/quit$`),
			regexp.MustCompile(`(?i)^/exit$`),
		},
	}
}

// Parse 解析一行输入，空行返回 nil
func (p *CommandParser) Parse(input string) *Command {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if !strings.HasPrefix(input, "/") {
		return &Command{Type: CommandTypeMessage, Raw: input}
	}

	if matchAny(p.togglePatterns, input) {
		return &Command{Type: CommandTypeToggle, Raw: input}
	}
	if matchAny(p.stopPatterns, input) {
		return &Command{Type: CommandTypeStop, Raw: input}
	}
	if matchAny(p.templatesPatterns, input) {
		return &Command{Type: CommandTypeTemplates, Raw: input}
	}
	for _, pattern := range p.templatePatterns {
		if matches := pattern.FindStringSubmatch(input); matches != nil {
			n, err := strconv.Atoi(matches[1])
			if err != nil {
				break
			}
			return &Command{Type: CommandTypeTemplate, Raw: input, TemplateNumber: n}
		}
	}
	if matchAny(p.quitPatterns, input) {
		return &Command{Type: CommandTypeQuit, Raw: input}
	}

	return &Command{Type: CommandTypeUnknown, Raw: input}
}

func matchAny(patterns []*regexp.Regexp, input string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// FormatCommandType 格式化命令类型为字符串
func FormatCommandType(cmdType CommandType) string {
	switch cmdType {
	case CommandTypeMessage:
		return "message"
	case CommandTypeToggle:
		return "auto"
	case CommandTypeStop:
		return "stop"
	case CommandTypeTemplates:
		return "templates"
	case CommandTypeTemplate:
		return "template"
	case CommandTypeQuit:
		return "quit"
	default:
		return "unknown"
	}
}
