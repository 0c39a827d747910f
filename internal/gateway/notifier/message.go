package notifier

import (
	"strings"
	"time"

	"quorumtrader/internal/pkg/text"
)

// Telegram 单条消息上限 4096，留出余量。
const maxMessageLen = 3800

// MessageSection 表示通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述统一格式的推送，例如启动摘要。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// Section appends a section and returns the message for chaining.
func (m StructuredMessage) Section(title string, lines ...string) StructuredMessage {
	m.Sections = append(append([]MessageSection(nil), m.Sections...), MessageSection{Title: title, Lines: lines})
	return m
}

// RenderMarkdown 生成 Markdown 文本；段落放进代码块，超长截断。
func (m StructuredMessage) RenderMarkdown() string {
	var parts []string
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		parts = append(parts, header)
	}
	var blocks []string
	for _, sec := range m.Sections {
		lines := nonEmpty(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		var b strings.Builder
		if title := strings.TrimSpace(sec.Title); title != "" {
			b.WriteString(escapeFence(title) + "\n")
		}
		for i, line := range lines {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + escapeFence(line))
		}
		blocks = append(blocks, b.String())
	}
	if len(blocks) > 0 {
		parts = append(parts, "```\n"+strings.Join(blocks, "\n\n")+"\n```")
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		parts = append(parts, escapeFence(footer))
	}
	if !m.Timestamp.IsZero() {
		parts = append(parts, "time: "+m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return text.Truncate(strings.Join(parts, "\n\n"), maxMessageLen)
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
