package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaggedJSONRecords(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat(FormatJSON)
	t.Cleanup(func() {
		SetFormat(FormatText)
		SetOutput(os.Stdout)
		SetLevel("info")
	})

	Taggedf(TagRiskDenied, "BTC/USDT notional %.2f over budget", 100.0)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, TagRiskDenied, rec["class"])
	assert.Equal(t, "BTC/USDT notional 100.00 over budget", rec["msg"])
}

func TestLevelAndInfoBlock(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetLevel("info")
	})

	SetLevel("warn")
	Infof("hidden")
	Warnf("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	SetLevel("debug")
	InfoBlock("line one\n\n  line two  \n")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "line two")
}

func TestLLMDumpCompactsJSON(t *testing.T) {
	var buf bytes.Buffer
	SetLLMWriter(&buf)
	EnableLLMPayloadDump(true)
	t.Cleanup(func() {
		SetLLMWriter(nil)
		EnableLLMPayloadDump(false)
	})

	LogLLMRequest("gpt", "BTC/USDT", "sys", "user", "{\n  \"model\": \"m\",\n  \"n\": 1\n}")
	LogLLMResponse("gpt", "BTC/USDT", "{\n  \"id\": \"r1\"\n}\n")
	LogLLMResponse("gpt", "BTC/USDT", "not json {")

	out := buf.String()
	assert.Contains(t, out, "--- PAYLOAD ---\n{\"model\":\"m\",\"n\":1}\n")
	assert.Contains(t, out, "--- RAW ---\n{\"id\":\"r1\"}\n")
	assert.Contains(t, out, "--- RAW ---\nnot json {\n")
}
