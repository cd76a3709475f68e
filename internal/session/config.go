package session

import (
	"github.com/bigbagadawgz/trenchsimulator/internal/config"
	"github.com/bigbagadawgz/trenchsimulator/internal/market"
	"github.com/bigbagadawgz/trenchsimulator/internal/risk"
)

// OptionsFromConfig maps the loaded configuration onto session options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		InitialPrice:   cfg.Market.InitialPrice,
		StartingCash:   cfg.Paper.StartingCash,
		HistorySize:    cfg.Market.HistorySize,
		TickInterval:   cfg.Market.TickInterval(),
		RedrawInterval: cfg.Market.RedrawInterval(),
		Username:       cfg.Leaderboard.Username,
		Params: market.Params{
			BaseVolatility: cfg.Market.BaseVolatility,
			SpikeThreshold: cfg.Market.SpikeThreshold,
			SpikeRange:     cfg.Market.SpikeRange,
			MinPrice:       cfg.Market.MinPrice,
		},
		Limits: risk.Limits{MaxAmountPerTrade: cfg.Risk.MaxAmountPerTrade},
	}
}
