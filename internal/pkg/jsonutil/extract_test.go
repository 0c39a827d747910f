package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"bare", `{"action":"buy"}`, `{"action":"buy"}`},
		{"prose around", `Sure! {"action":"sell","reason":"a } in text"} hope that helps`, `{"action":"sell","reason":"a } in text"}`},
		{"fenced with hint", "analysis\n```json\n{\"a\":{\"b\":1}}\n```\nend", `{"a":{"b":1}}`},
		{"fence without hint", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"escaped quote", `{"reason":"say \"hi\" {"}`, `{"reason":"say \"hi\" {"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractObject(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractObject_Failures(t *testing.T) {
	for _, raw := range []string{"", "   ", "no json here", `{"unterminated": 1`} {
		_, err := ExtractObject(raw)
		assert.ErrorIs(t, err, ErrNoObject, raw)
	}
}

func TestCompact(t *testing.T) {
	assert.Equal(t, `{"a":1,"b":[1,2]}`, Compact("{ \"a\": 1,\n \"b\": [1, 2] }"))
	assert.Equal(t, "not json", Compact(" not json "))
}
