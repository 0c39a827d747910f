// Package jsonutil pulls a JSON document out of free-form model replies.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

const codeFence = "```"

// ErrNoObject is returned when the reply does not contain a balanced JSON object.
var ErrNoObject = errors.New("no json object found")

// ExtractObject returns the first balanced JSON object in raw. A fenced code
// block (```json ... ```) is preferred over bare text around it.
func ExtractObject(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoObject
	}
	if block, ok := fencedBlock(raw); ok {
		if obj, ok := balancedObject(block); ok {
			return obj, nil
		}
	}
	if obj, ok := balancedObject(raw); ok {
		return obj, nil
	}
	return "", ErrNoObject
}

// Compact strips insignificant whitespace; invalid input is returned trimmed.
func Compact(raw string) string {
	raw = strings.TrimSpace(raw)
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}

func fencedBlock(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	// drop a language hint such as "json" on the opening line
	if idx := strings.IndexByte(block, '\n'); idx != -1 {
		if hint := strings.TrimSpace(block[:idx]); hint != "" && !strings.ContainsRune(hint, '{') {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

func balancedObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}
