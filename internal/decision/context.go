package decision

import "context"

type symbolKey struct{}

// WithSymbol tags ctx with the instrument a round is deciding on.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, symbolKey{}, symbol)
}

// SymbolFrom returns the instrument set by WithSymbol, or "".
func SymbolFrom(ctx context.Context) string {
	s, _ := ctx.Value(symbolKey{}).(string)
	return s
}
