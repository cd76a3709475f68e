package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type dexTarget struct {
	Alias   string
	Chain   string
	Address string
}

type dexPairsResponse struct {
	Pairs []dexPair `json:"pairs"`
	Pair  *dexPair  `json:"pair"`
}

type dexPair struct {
	PriceUsd    string `json:"priceUsd"`
	PriceNative string `json:"priceNative"`
	Txns        struct {
		M5 dexTxn `json:"m5"`
		H1 dexTxn `json:"h1"`
	} `json:"txns"`
	Volume struct {
		M5 float64 `json:"m5"`
		H1 float64 `json:"h1"`
	} `json:"volume"`
}

type dexTxn struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

func (r *dexPairsResponse) first() (*dexPair, bool) {
	if len(r.Pairs) > 0 {
		return &r.Pairs[0], true
	}
	return r.Pair, r.Pair != nil
}

func (f *Feed) runDexScreener(ctx context.Context, out chan<- Quote) error {
	targets, err := parseDexTargets(f.Symbols(), f.dexChain)
	if err != nil {
		return err
	}
	f.pollDex(ctx, targets, out)

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.pollDex(ctx, targets, out)
		}
	}
}

func (f *Feed) pollDex(ctx context.Context, targets []dexTarget, out chan<- Quote) {
	for _, target := range targets {
		q, err := f.fetchDex(ctx, target)
		if err != nil {
			if ctx.Err() == nil {
				f.log.Warn().Err(err).Str("symbol", target.Alias).Msg("dexscreener fetch failed")
			}
			continue
		}
		if emit(ctx, out, q) != nil {
			return
		}
	}
}

func (f *Feed) fetchDex(ctx context.Context, target dexTarget) (Quote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Quote{}, fmt.Errorf("rate limiter: %w", err)
	}
	url := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", f.dexBaseURL, target.Chain, target.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "trenchsimulator/1.0 (ticker)")
	resp, err := f.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload dexPairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, fmt.Errorf("decode response: %w", err)
	}
	pair, ok := payload.first()
	if !ok {
		return Quote{}, errors.New("no pair data returned")
	}
	price, err := pair.price()
	if err != nil {
		return Quote{}, err
	}
	prev := f.swapLastPrice(target.Alias, price)
	return Quote{
		Symbol: target.Alias,
		Price:  price,
		Size:   pair.avgTradeSize(price),
		Side:   pair.side(prev, price),
		Ts:     time.Now().UTC(),
	}, nil
}

func (p *dexPair) price() (float64, error) {
	for _, raw := range []string{p.PriceUsd, p.PriceNative} {
		if px, err := strconv.ParseFloat(raw, 64); err == nil && px > 0 {
			return px, nil
		}
	}
	return 0, errors.New("pair missing price")
}

// side follows the 5 minute buy/sell balance, else the price direction.
func (p *dexPair) side(prev, price float64) int {
	if buys, sells := p.Txns.M5.Buys, p.Txns.M5.Sells; buys+sells > 0 {
		if buys >= sells {
			return 1
		}
		return -1
	}
	if prev > 0 && price < prev {
		return -1
	}
	return 1
}

func (p *dexPair) avgTradeSize(price float64) float64 {
	windows := []struct {
		volume float64
		txns   dexTxn
	}{{p.Volume.M5, p.Txns.M5}, {p.Volume.H1, p.Txns.H1}}
	for _, w := range windows {
		if n := w.txns.Buys + w.txns.Sells; w.volume > 0 && n > 0 {
			return w.volume / float64(n) / price
		}
	}
	return 10 / price
}

// parseDexTargets reads symbols of the form ALIAS@chain/address; chain may be
// omitted ("ALIAS@/address" or "address") when defaultChain is set.
func parseDexTargets(symbols []string, defaultChain string) ([]dexTarget, error) {
	defaultChain = strings.ToLower(strings.TrimSpace(defaultChain))
	targets := make([]dexTarget, 0, len(symbols))
	for _, raw := range symbols {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		alias, location, found := strings.Cut(raw, "@")
		if !found {
			alias, location = "", raw
		}
		chain, address := defaultChain, location
		if c, a, ok := strings.Cut(location, "/"); ok {
			if c = strings.TrimSpace(c); c != "" {
				chain = strings.ToLower(c)
			}
			address = a
		}
		address = strings.TrimSpace(address)
		if chain == "" || address == "" {
			return nil, fmt.Errorf("dexscreener symbol %q missing chain or address", raw)
		}
		targets = append(targets, dexTarget{Alias: dexAlias(alias, address), Chain: chain, Address: address})
	}
	return targets, nil
}

// dexAlias builds an upper-case display name with the last six address characters as suffix.
func dexAlias(name, address string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z':
				return r - 'a' + 'A'
			case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
				return r
			}
			return -1
		}, s)
	}
	base, suffix := clean(name), clean(address)
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	switch {
	case base == "" && suffix == "":
		return "PAIR"
	case base == "":
		return "PAIR_" + suffix
	case suffix == "":
		return base
	}
	return base + "_" + suffix
}
