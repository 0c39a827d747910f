package logger

import (
	"io"
	"log"
	"strings"
	"sync"

	"quorumtrader/internal/pkg/jsonutil"
)

var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

// SetLLMWriter routes decision source traffic to w; nil disables the dump.
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmDumpPayload = enabled
	llmMu.Unlock()
}

type llmSection struct {
	Title string
	Body  string
}

func logLLM(kind, source, symbol string, sections []llmSection) {
	llmMu.Lock()
	out := llmLog
	llmMu.Unlock()
	if out == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM]")
	for _, part := range []string{kind, source, symbol} {
		if part == "" {
			continue
		}
		b.WriteString("[")
		b.WriteString(part)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" {
			title = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	out.Print(b.String())
}

// LogLLMRequest records the prompt sent to a decision source. payload is the
// serialized request body and is only written when payload dumping is on.
func LogLLMRequest(source, symbol, systemPrompt, userPrompt, payload string) {
	sections := []llmSection{
		{Title: "SYSTEM", Body: systemPrompt},
		{Title: "USER", Body: userPrompt},
	}
	llmMu.Lock()
	dump := llmDumpPayload
	llmMu.Unlock()
	if dump && strings.TrimSpace(payload) != "" {
		sections = append(sections, llmSection{Title: "PAYLOAD", Body: jsonutil.Compact(payload)})
	}
	logLLM("request", source, symbol, sections)
}

// LogLLMResponse 记录原始响应体; 合法 JSON 会压成单行, 其余原样保留.
func LogLLMResponse(source, symbol, raw string) {
	logLLM("response", source, symbol, []llmSection{{Title: "RAW", Body: jsonutil.Compact(raw)}})
}
