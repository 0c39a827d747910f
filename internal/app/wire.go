//go:build wireinject

package app

import (
	"quorumtrader/internal/config"

	"github.com/google/wire"
)

var providerSet = wire.NewSet(
	provideParser,
	provideSources,
	provideDecisionLog,
	provideOrderStore,
	provideEnsemble,
	provideLedger,
	provideMarket,
	provideBackend,
	provideNotifier,
	provideDispatcher,
	providePrompts,
	provideScheduler,
	provideEngine,
	provideHTTP,
	provideSummary,
	newApp,
)

func buildAppWithWire(cfg *config.Config, opts Options) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}
