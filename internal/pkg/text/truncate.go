// Package text holds small string helpers shared by notifier and audit code.
package text

import "unicode/utf8"

const ellipsis = "..."

// Truncate caps s at max bytes without splitting a UTF-8 sequence and appends
// an ellipsis when something was cut. max <= 0 disables the cap.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}
