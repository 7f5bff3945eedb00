package tui

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	bf "github.com/russross/blackfriday/v2"
)

// MarkdownRenderer 把智能体回复中的 Markdown 渲染为终端 ANSI 文本
type MarkdownRenderer struct {
	heading lipgloss.Style
	code    lipgloss.Style
	link    lipgloss.Style
	quote   lipgloss.Style
	rule    lipgloss.Style

	mu    sync.Mutex
	cache map[uint64]string
}

const markdownCacheSize = 256

// NewMarkdownRenderer 创建新的 Markdown 渲染器
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		heading: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		code:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")),
		link:    lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("39")),
		quote:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		rule:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		cache:   make(map[uint64]string),
	}
}

// Render 渲染 Markdown 文本，结果按内容缓存
func (r *MarkdownRenderer) Render(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}

	h := fnv.New64a()
	h.Write([]byte(markdown))
	key := h.Sum64()

	r.mu.Lock()
	if out, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return out
	}
	r.mu.Unlock()

	out := bf.Run([]byte(markdown),
		bf.WithRenderer(&ansiRenderer{styles: r}),
		bf.WithExtensions(bf.CommonExtensions),
	)
	result := strings.TrimRight(string(out), "\n")

	r.mu.Lock()
	if len(r.cache) >= markdownCacheSize {
		r.cache = make(map[uint64]string)
	}
	r.cache[key] = result
	r.mu.Unlock()

	return result
}

// ansiRenderer 实现 blackfriday.Renderer。
// 行内样式需要完整文本，因此对这类节点先渲染子节点再整体着色，并跳过默认遍历。
type ansiRenderer struct {
	styles *MarkdownRenderer
}

func (r *ansiRenderer) RenderHeader(io.Writer, *bf.Node) {}
func (r *ansiRenderer) RenderFooter(io.Writer, *bf.Node) {}

func (r *ansiRenderer) RenderNode(w io.Writer, node *bf.Node, entering bool) bf.WalkStatus {
	s := r.styles
	switch node.Type {
	case bf.Text, bf.HTMLSpan:
		if entering {
			w.Write(node.Literal)
		}
	case bf.Softbreak, bf.Hardbreak:
		io.WriteString(w, "\n")
	case bf.Code:
		io.WriteString(w, s.code.Render(string(node.Literal)))
	case bf.Emph:
		io.WriteString(w, lipgloss.NewStyle().Italic(true).Render(r.children(node)))
		return bf.SkipChildren
	case bf.Strong:
		io.WriteString(w, lipgloss.NewStyle().Bold(true).Render(r.children(node)))
		return bf.SkipChildren
	case bf.Del:
		io.WriteString(w, lipgloss.NewStyle().Strikethrough(true).Render(r.children(node)))
		return bf.SkipChildren
	case bf.Link:
		text := r.children(node)
		io.WriteString(w, s.link.Render(text))
		if dest := string(node.LinkData.Destination); dest != "" && dest != text {
			fmt.Fprintf(w, " (%s)", dest)
		}
		return bf.SkipChildren
	case bf.Image:
		fmt.Fprintf(w, "[image: %s] (%s)", r.children(node), node.LinkData.Destination)
		return bf.SkipChildren
	case bf.Heading:
		io.WriteString(w, s.heading.Render(r.children(node)))
		io.WriteString(w, "\n\n")
		return bf.SkipChildren
	case bf.Paragraph:
		if !entering {
			if node.Parent != nil && node.Parent.Type == bf.Item {
				io.WriteString(w, "\n")
			} else {
				io.WriteString(w, "\n\n")
			}
		}
	case bf.List:
		if !entering && (node.Parent == nil || node.Parent.Type != bf.Item) {
			io.WriteString(w, "\n")
		}
	case bf.Item:
		if entering {
			io.WriteString(w, listPrefix(node))
		}
	case bf.CodeBlock:
		for _, line := range strings.Split(strings.TrimRight(string(node.Literal), "\n"), "\n") {
			io.WriteString(w, "  ")
			io.WriteString(w, s.code.Render(line))
			io.WriteString(w, "\n")
		}
		io.WriteString(w, "\n")
	case bf.BlockQuote:
		body := strings.TrimRight(r.children(node), "\n")
		for _, line := range strings.Split(body, "\n") {
			io.WriteString(w, s.quote.Render("│ "+line))
			io.WriteString(w, "\n")
		}
		io.WriteString(w, "\n")
		return bf.SkipChildren
	case bf.HorizontalRule:
		io.WriteString(w, s.rule.Render(strings.Repeat("─", 24)))
		io.WriteString(w, "\n\n")
	case bf.HTMLBlock:
		w.Write(node.Literal)
		io.WriteString(w, "\n\n")
	case bf.TableCell:
		if entering && node.Prev != nil {
			io.WriteString(w, " | ")
		}
		if entering && node.TableCellData.IsHeader {
			io.WriteString(w, lipgloss.NewStyle().Bold(true).Render(r.children(node)))
			return bf.SkipChildren
		}
	case bf.TableRow:
		if !entering {
			io.WriteString(w, "\n")
		}
	case bf.Table:
		if !entering {
			io.WriteString(w, "\n")
		}
	}
	return bf.GoToNext
}

// children 把节点的子节点渲染为字符串
func (r *ansiRenderer) children(node *bf.Node) string {
	var buf bytes.Buffer
	for c := node.FirstChild; c != nil; c = c.Next {
		c.Walk(func(n *bf.Node, entering bool) bf.WalkStatus {
			return r.RenderNode(&buf, n, entering)
		})
	}
	return buf.String()
}

// listPrefix 计算列表项的缩进和符号
func listPrefix(item *bf.Node) string {
	depth := 0
	for p := item.Parent; p != nil; p = p.Parent {
		if p.Type == bf.List {
			depth++
		}
	}
	indent := strings.Repeat("  ", max(depth-1, 0))

	if item.ListFlags&bf.ListTypeOrdered != 0 {
		n := 1
		for prev := item.Prev; prev != nil; prev = prev.Prev {
			n++
		}
		return fmt.Sprintf("%s%d. ", indent, n)
	}
	return indent + "• "
}
