package decision

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"quorumtrader/internal/logger"
	"quorumtrader/internal/pkg/jsonutil"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

//go:embed decision_schema.json
var decisionSchema []byte

var numericFields = []string{"confidence", "stop_pct", "take_pct"}

// Parser turns a raw model reply into a Decision.
type Parser struct {
	schema *jsonschema.Schema
}

func NewParser() (*Parser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", bytes.NewReader(decisionSchema)); err != nil {
		return nil, fmt.Errorf("load decision schema: %w", err)
	}
	schema, err := compiler.Compile("decision.json")
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	return &Parser{schema: schema}, nil
}

// MustParser panics when the embedded schema does not compile.
func MustParser() *Parser {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}

// Parse extracts, sanitises and validates the JSON object in raw.
// Every failure is a *DecodeError.
func (p *Parser) Parse(sourceID, raw string) (Decision, error) {
	fail := func(err error) (Decision, error) {
		return Decision{}, &DecodeError{SourceID: sourceID, Raw: raw, Err: err}
	}
	obj, err := jsonutil.ExtractObject(raw)
	if err != nil {
		return fail(err)
	}
	if !gjson.Valid(obj) {
		return fail(fmt.Errorf("invalid json"))
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return fail(err)
	}
	sanitizeNumbers(doc)
	if err := p.schema.Validate(doc); err != nil {
		return fail(err)
	}

	parsed := gjson.Parse(obj)
	d := Decision{
		Action:       ParseAction(parsed.Get("action").String()),
		Confidence:   doc["confidence"].(float64),
		StopFraction: doc["stop_pct"].(float64),
		TakeFraction: doc["take_pct"].(float64),
		Reason:       strings.TrimSpace(parsed.Get("reason").String()),
		SourceID:     sourceID,
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		logger.Warnf("source %s confidence %.4f outside [0,1]", sourceID, d.Confidence)
	}
	return d, nil
}

// sanitizeNumbers 将 "0.8" 这类字符串数字转为 float64，兼容模型偶尔返回字符串的情况。
func sanitizeNumbers(doc map[string]any) {
	for _, key := range numericFields {
		s, ok := doc[key].(string)
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			doc[key] = f
		}
	}
}
