package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bigbagadawgz/trenchsimulator/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Leaderboard.Username = "bob"
	cfg.Risk.MaxAmountPerTrade = 40
	cfg.Market.RedrawIntervalMs = 250

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 100.0, opts.InitialPrice)
	assert.Equal(t, 200.0, opts.StartingCash)
	assert.Equal(t, 200, opts.HistorySize)
	assert.Equal(t, 500*time.Millisecond, opts.TickInterval)
	assert.Equal(t, 250*time.Millisecond, opts.RedrawInterval)
	assert.Equal(t, "bob", opts.Username)
	assert.Equal(t, 8.0, opts.Params.BaseVolatility)
	assert.Equal(t, 0.9, opts.Params.SpikeThreshold)
	assert.Equal(t, 40.0, opts.Limits.MaxAmountPerTrade)

	assert.Equal(t, DefaultOptions(), OptionsFromConfig(nil))
}
