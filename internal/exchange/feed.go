// Package exchange streams real-world quotes for the decorative ticker strip.
// Nothing here touches the paper account.
package exchange

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bigbagadawgz/trenchsimulator/internal/metrics"
)

const (
	// ProviderStub emits synthetic quotes (offline play, tests).
	ProviderStub = "stub"
	// ProviderBinance streams trades from Binance public websockets.
	ProviderBinance = "binance"
	// ProviderDexScreener polls the Dexscreener HTTP API for meme coin pairs.
	ProviderDexScreener = "dexscreener"
)

const (
	defaultPollInterval       = 2 * time.Second
	defaultStubInterval       = 500 * time.Millisecond
	defaultRequestsPerSec     = 2
	defaultDexScreenerBaseURL = "https://api.dexscreener.com"
	defaultBinanceURL         = "wss://stream.binance.com:9443/stream"
)

// Feed is a pluggable quote stream.
type Feed struct {
	provider     string
	log          zerolog.Logger
	pollInterval time.Duration
	stubInterval time.Duration
	binanceURL   string
	dexBaseURL   string
	dexChain     string
	client       *http.Client
	limiter      *rate.Limiter

	mu         sync.RWMutex
	symbols    []string
	lastPrices map[string]float64
}

// Option configures a Feed.
type Option func(*Feed)

// WithPollInterval overrides the polling cadence for HTTP providers.
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.pollInterval = d
		}
	}
}

// WithStubInterval overrides how often the stub provider emits.
func WithStubInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.stubInterval = d
		}
	}
}

// WithRateLimit caps outgoing HTTP requests per second.
func WithRateLimit(perSec float64) Option {
	return func(f *Feed) {
		if perSec > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithDexScreenerConfig sets the API base URL and the chain used when a symbol omits one.
func WithDexScreenerConfig(baseURL, defaultChain string) Option {
	return func(f *Feed) {
		if baseURL != "" {
			f.dexBaseURL = strings.TrimSuffix(baseURL, "/")
		}
		if defaultChain != "" {
			f.dexChain = strings.ToLower(defaultChain)
		}
	}
}

// WithBinanceURL points the websocket provider at another combined-stream endpoint.
func WithBinanceURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.binanceURL = url
		}
	}
}

// WithHTTPClient replaces the client used for polling.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Feed) {
		if c != nil {
			f.client = c
		}
	}
}

// NewFeed constructs a feed backed by provider; unknown providers fall back to the stub.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:     strings.ToLower(provider),
		log:          log.With().Str("component", "ticker").Logger(),
		pollInterval: defaultPollInterval,
		stubInterval: defaultStubInterval,
		binanceURL:   defaultBinanceURL,
		dexBaseURL:   defaultDexScreenerBaseURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(defaultRequestsPerSec), 1),
		lastPrices:   make(map[string]float64),
	}
	f.SetSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Provider reports the active provider name.
func (f *Feed) Provider() string { return f.provider }

// SetSymbols replaces the tracked symbols (deduplicated and sorted).
func (f *Feed) SetSymbols(symbols []string) {
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		if sym = strings.TrimSpace(sym); sym != "" {
			unique[sym] = struct{}{}
		}
	}
	out := make([]string, 0, len(unique))
	for sym := range unique {
		out = append(out, sym)
	}
	sort.Strings(out)

	f.mu.Lock()
	f.symbols = out
	f.mu.Unlock()
}

// Symbols returns a copy of the tracked symbols.
func (f *Feed) Symbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.symbols...)
}

func (f *Feed) lastPrice(symbol string) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastPrices[symbol]
}

func (f *Feed) swapLastPrice(symbol string, price float64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.lastPrices[symbol]
	f.lastPrices[symbol] = price
	return prev
}

// Run pushes quotes onto out until ctx is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- Quote) error {
	switch f.provider {
	case ProviderBinance:
		return f.runBinance(ctx, out)
	case ProviderDexScreener:
		return f.runDexScreener(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// emit delivers q unless ctx ends first.
func emit(ctx context.Context, out chan<- Quote, q Quote) error {
	select {
	case out <- q:
		metrics.QuotesTotal.WithLabelValues(q.Symbol).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- Quote) error {
	ticker := time.NewTicker(f.stubInterval)
	defer ticker.Stop()

	var step int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			step++
			for i, sym := range f.Symbols() {
				prev := f.lastPrice(sym)
				if prev == 0 {
					prev = 100
				}
				// small zig-zag drift, direction flips every few steps per symbol
				delta := 0.1
				side := 1
				if (step+i)%5 == 0 {
					delta, side = -0.25, -1
				}
				price := prev + delta
				f.swapLastPrice(sym, price)
				if err := emit(ctx, out, Quote{Symbol: sym, Price: price, Size: 1, Side: side, Ts: ts}); err != nil {
					return err
				}
			}
		}
	}
}
