package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abcd", 2))
	// "风控" 每个字 3 字节，截断点落在第二个字中间
	assert.Equal(t, "风...", Truncate("风控", 4))
}
