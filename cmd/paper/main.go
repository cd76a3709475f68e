// Binary paper runs the trench simulator game in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bigbagadawgz/trenchsimulator/internal/config"
	"github.com/bigbagadawgz/trenchsimulator/internal/exchange"
	"github.com/bigbagadawgz/trenchsimulator/internal/leaderboard"
	"github.com/bigbagadawgz/trenchsimulator/internal/market"
	"github.com/bigbagadawgz/trenchsimulator/internal/metrics"
	"github.com/bigbagadawgz/trenchsimulator/internal/paper"
	"github.com/bigbagadawgz/trenchsimulator/internal/session"
	"github.com/bigbagadawgz/trenchsimulator/internal/shell"
	"github.com/bigbagadawgz/trenchsimulator/internal/util"
)

type rootFlags struct {
	configPath string
	username   string
	seed       int64
	manual     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "paper",
		Short:         "Paper-trade a simulated meme coin chart",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd.Context(), flags)
		},
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file (defaults + TRENCH_* env when empty)")
	cmd.PersistentFlags().StringVarP(&flags.username, "user", "u", "", "player name for the leaderboard")
	cmd.Flags().Int64Var(&flags.seed, "seed", 0, "price process seed (0 = random)")
	cmd.Flags().BoolVar(&flags.manual, "manual", false, "advance the market only with the tick command")

	cmd.AddCommand(newLeaderboardCmd(flags))
	return cmd
}

func newLeaderboardCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "leaderboard",
		Aliases: []string{"top"},
		Short:   "Print the best players by realized profit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			store, err := leaderboard.Open(cfg.Leaderboard.DSN, cfg.Leaderboard.CacheTTL())
			if err != nil {
				return err
			}
			defer store.Close()

			if limit <= 0 {
				limit = cfg.Leaderboard.TopN
			}
			entries, err := store.Top(cmd.Context(), limit)
			if err != nil {
				return err
			}
			shell.NewConsole(cmd.OutOrStdout()).Leaderboard(entries)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "rows to show (default from config)")
	return cmd
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.username != "" {
		cfg.Leaderboard.Username = flags.username
	}
	if flags.seed != 0 {
		cfg.Market.Seed = flags.seed
	}
	return cfg, nil
}

func play(parent context.Context, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := util.NewLoggerTo(os.Stderr, cfg.App.LogLevel).With().Str("app", cfg.App.Name).Logger()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := ossignal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.App.MetricsAddr != "" {
		srv := metrics.Serve(cfg.App.MetricsAddr)
		defer srv.Close()
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	console := shell.NewConsole(os.Stdout)
	sessionOpts := []session.Option{
		session.WithLogger(log),
		session.WithSource(market.NewSource(cfg.Market.Seed)),
		session.WithRenderer(console),
	}

	if cfg.Paper.TradesPath != "" {
		recorder, err := paper.NewJSONLRecorder(cfg.Paper.TradesPath)
		if err != nil {
			return fmt.Errorf("trade recorder: %w", err)
		}
		defer recorder.Close()
		sessionOpts = append(sessionOpts, session.WithRecorder(recorder))
	}

	shellCfg := shell.Config{
		DefaultBuy: cfg.Paper.DefaultBuyAmount,
		TopN:       cfg.Leaderboard.TopN,
		AutoTick:   !flags.manual,
		Log:        log,
	}

	if cfg.Leaderboard.Enabled {
		store, err := openLeaderboard(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer store.Close()
		sessionOpts = append(sessionOpts, session.WithScoreSink(store))
		shellCfg.Ranker = store
	}

	if cfg.Ticker.Enabled {
		shellCfg.Ticker = startTicker(ctx, cfg, log)
	}

	sess := session.New(session.OptionsFromConfig(cfg), sessionOpts...)
	log.Info().Str("session", sess.ID()).Str("user", cfg.Leaderboard.Username).Msg("game started")

	return shell.New(sess, console, shellCfg).Run(ctx, os.Stdin)
}

func openLeaderboard(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*leaderboard.Store, error) {
	store, err := leaderboard.Open(cfg.Leaderboard.DSN, cfg.Leaderboard.CacheTTL())
	if err != nil {
		return nil, err
	}
	if err := store.Register(ctx, cfg.Leaderboard.Username); err != nil {
		if !errors.Is(err, leaderboard.ErrEmptyUsername) {
			store.Close()
			return nil, err
		}
		log.Warn().Msg("no username set, scores will not be published")
	}
	return store, nil
}

func startTicker(ctx context.Context, cfg *config.Config, log zerolog.Logger) *exchange.Board {
	feed := exchange.NewFeed(cfg.Ticker.Provider, cfg.Ticker.Symbols, log,
		exchange.WithPollInterval(cfg.Ticker.PollInterval()),
		exchange.WithRateLimit(cfg.Ticker.RequestsPerSec),
		exchange.WithDexScreenerConfig(cfg.Ticker.DexScreener.BaseURL, cfg.Ticker.DexScreener.DefaultChain),
	)
	board := exchange.NewBoard()
	quotes := make(chan exchange.Quote, 256)

	go func() {
		if err := feed.Run(ctx, quotes); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("provider", feed.Provider()).Msg("ticker stopped")
		}
	}()
	go board.Consume(ctx, quotes)
	return board
}
