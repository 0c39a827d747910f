// Package prompt renders the market snapshot into the text sent to every decision source.
package prompt

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"quorumtrader/internal/market"
)

// DefaultTemplate 与所有决策源共享；字段名即快照键。
const DefaultTemplate = `You are part of an ensemble of trading models. You are given the latest market snapshot
for {{.symbol}} on the {{.timeframe}} timeframe. Decide whether to buy, sell, or hold.

Reply strictly as JSON with keys: action (buy/sell/hold), confidence (0-1 float),
stop_pct (decimal percent of entry price for stop loss), take_pct (decimal percent for
take profit), and reason (concise string).

Market data:
price_open: {{.open}}
price_high: {{.high}}
price_low: {{.low}}
price_close: {{.close}}
volume: {{.volume}}
rsi: {{.rsi}}
momentum_5: {{.momentum_5}}
timestamp: {{.timestamp}}`

// TemplateSource supplies the current template text. Registry implements it.
type TemplateSource interface {
	Current() (*template.Template, int64)
}

// Builder renders prompts from a TemplateSource, falling back to DefaultTemplate.
type Builder struct {
	source   TemplateSource
	fallback *template.Template
}

func NewBuilder(source TemplateSource) *Builder {
	return &Builder{source: source, fallback: mustCompile("default", DefaultTemplate)}
}

// Build renders the prompt for symbol/timeframe. A template that references a
// key missing from the snapshot is an error.
func (b *Builder) Build(symbol, timeframe string, snap market.Snapshot) (string, error) {
	if err := snap.Validate(); err != nil {
		return "", err
	}
	tpl := b.fallback
	if b.source != nil {
		if cur, _ := b.source.Current(); cur != nil {
			tpl = cur
		}
	}
	data := make(map[string]any, len(snap.Values)+3)
	for k, v := range snap.Fields() {
		if f, ok := v.(float64); ok {
			data[k] = strconv.FormatFloat(f, 'f', -1, 64)
			continue
		}
		data[k] = v
	}
	data["symbol"] = symbol
	data["timeframe"] = timeframe

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", symbol, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func compile(name, text string) (*template.Template, error) {
	return template.New(name).Option("missingkey=error").Parse(text)
}

func mustCompile(name, text string) *template.Template {
	tpl, err := compile(name, text)
	if err != nil {
		panic(err)
	}
	return tpl
}
