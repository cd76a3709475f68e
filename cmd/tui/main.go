// Binary tui is a small menu for editing the game config and launching a round.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/bigbagadawgz/trenchsimulator/internal/config"
)

const defaultConfigPath = "config.yaml"

func main() {
	path := flag.String("config", defaultConfigPath, "config file to edit")
	flag.Parse()

	reader := bufio.NewReader(os.Stdin)
	cfg, err := loadOrDefault(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Trench Simulator ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit bankroll and risk")
		fmt.Println("3) Edit market")
		fmt.Println("4) Edit player and leaderboard")
		fmt.Println("5) Save config")
		fmt.Println("6) Launch game")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		switch strings.TrimSpace(input) {
		case "1":
			printSummary(cfg)
		case "2":
			editBankroll(reader, cfg)
		case "3":
			editMarket(reader, cfg)
		case "4":
			editPlayer(reader, cfg)
		case "5":
			if err := save(*path, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved to", *path)
			}
		case "6":
			if err := save(*path, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
				continue
			}
			launchGame(*path)
		case "7":
			reloaded, err := loadOrDefault(*path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Player: %s\n", valueOr(cfg.Leaderboard.Username, "(none)"))
	fmt.Printf("Starting cash: %.2f | default buy: %.2f\n", cfg.Paper.StartingCash, cfg.Paper.DefaultBuyAmount)
	fmt.Printf("Per-trade cap: %.2f (0 = none)\n", cfg.Risk.MaxAmountPerTrade)
	fmt.Printf("Initial price: %.2f | base volatility: %.2f\n", cfg.Market.InitialPrice, cfg.Market.BaseVolatility)
	fmt.Printf("Tick: %s | history: %d candles\n", cfg.Market.TickInterval(), cfg.Market.HistorySize)
	fmt.Printf("Leaderboard: enabled=%t dsn=%s top=%d\n", cfg.Leaderboard.Enabled, cfg.Leaderboard.DSN, cfg.Leaderboard.TopN)
	fmt.Printf("Ticker: enabled=%t provider=%s symbols=%s\n", cfg.Ticker.Enabled, cfg.Ticker.Provider, strings.Join(cfg.Ticker.Symbols, ","))
}

func editBankroll(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Bankroll / Risk ---")
	cfg.Paper.StartingCash = promptFloat(reader, "Starting cash", cfg.Paper.StartingCash)
	cfg.Paper.DefaultBuyAmount = promptFloat(reader, "Default buy amount", cfg.Paper.DefaultBuyAmount)
	cfg.Risk.MaxAmountPerTrade = promptFloat(reader, "Max amount per trade (0 = none)", cfg.Risk.MaxAmountPerTrade)
}

func editMarket(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Market ---")
	cfg.Market.InitialPrice = promptFloat(reader, "Initial price", cfg.Market.InitialPrice)
	cfg.Market.BaseVolatility = promptFloat(reader, "Base volatility", cfg.Market.BaseVolatility)
	cfg.Market.TickIntervalMs = int(promptFloat(reader, "Tick interval (ms)", float64(cfg.Market.TickIntervalMs)))
}

func editPlayer(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Player ---")
	fmt.Printf("Username [%s]: ", cfg.Leaderboard.Username)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Leaderboard.Username = strings.TrimSpace(line)
	}
	fmt.Printf("Leaderboard database [%s]: ", cfg.Leaderboard.DSN)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Leaderboard.DSN = strings.TrimSpace(line)
	}
	cfg.Leaderboard.Enabled = promptBool(reader, "Publish scores", cfg.Leaderboard.Enabled)
}

// launchGame hands the terminal to the game until it exits.
func launchGame(path string) {
	fmt.Println("Launching game (type quit to return)...")
	cmd := exec.CommandContext(context.Background(), "go", "run", "./cmd/paper", "--config", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "game exited: %v\n", err)
	}
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptBool(reader *bufio.Reader, label string, current bool) bool {
	fmt.Printf("%s [%t]: ", label, current)
	line, _ := reader.ReadString('\n')
	val, err := strconv.ParseBool(strings.TrimSpace(line))
	if err != nil {
		return current
	}
	return val
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func loadOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Load("")
	}
	return config.Load(path)
}

func save(path string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(path, cfg)
}
