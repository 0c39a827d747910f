// Package symbol converts between the BASE/QUOTE form used in configuration
// and the concatenated form used by spot exchanges.
package symbol

import (
	"fmt"
	"strings"
)

// knownQuotes is consulted when an exchange symbol carries no separator.
var knownQuotes = []string{"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Valid() bool { return s.Base != "" && s.Quote != "" }

// String renders BASE/QUOTE.
func (s Symbol) String() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Exchange renders BASEQUOTE as expected by Binance spot endpoints.
func (s Symbol) Exchange() string {
	if !s.Valid() {
		return ""
	}
	return s.Base + s.Quote
}

// Parse accepts BTC/USDT, btc/usdt, BTCUSDT and BTC/USDT:USDT.
func Parse(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		s = s[:idx]
	}
	if base, quote, ok := strings.Cut(s, "/"); ok {
		sym := Symbol{Base: strings.TrimSpace(base), Quote: strings.TrimSpace(quote)}
		if sym.Valid() {
			return sym, nil
		}
		return Symbol{}, fmt.Errorf("invalid symbol %q", raw)
	}
	for _, quote := range knownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}, nil
		}
	}
	return Symbol{}, fmt.Errorf("invalid symbol %q", raw)
}

// ToExchange is a convenience for Parse(raw).Exchange(); unparseable input is
// upper-cased with separators removed.
func ToExchange(raw string) string {
	if sym, err := Parse(raw); err == nil {
		return sym.Exchange()
	}
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), "/", "")
}
