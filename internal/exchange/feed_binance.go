package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type binanceEnvelope struct {
	Stream string       `json:"stream"`
	Data   binanceTrade `json:"data"`
}

type binanceTrade struct {
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

func (f *Feed) binanceStreamURL(symbols []string) string {
	streams := make([]string, len(symbols))
	for i, sym := range symbols {
		streams[i] = strings.ToLower(sym) + "@trade"
	}
	return fmt.Sprintf("%s?streams=%s", f.binanceURL, strings.Join(streams, "/"))
}

func (f *Feed) runBinance(ctx context.Context, out chan<- Quote) error {
	symbols := f.Symbols()
	if len(symbols) == 0 {
		return errors.New("binance ticker requires at least one symbol")
	}
	url := f.binanceStreamURL(symbols)

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.consumeBinance(ctx, url, symbols, out)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn().Err(err).Dur("backoff", backoff).Msg("binance ticker disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (f *Feed) consumeBinance(ctx context.Context, url string, symbols []string, out chan<- Quote) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	f.log.Info().Str("provider", ProviderBinance).Strs("symbols", symbols).Msg("ticker connected")

	// unblock ReadMessage when the caller goes away
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx, conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		q, err := decodeBinanceQuote(message)
		if err != nil {
			f.log.Warn().Err(err).Msg("skipping binance message")
			continue
		}
		f.swapLastPrice(q.Symbol, q.Price)
		if err := emit(ctx, out, q); err != nil {
			return err
		}
	}
}

func (f *Feed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				f.log.Debug().Err(err).Msg("binance ping failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func decodeBinanceQuote(message []byte) (Quote, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return Quote{}, fmt.Errorf("decode: %w", err)
	}
	px, err := strconv.ParseFloat(env.Data.Price, 64)
	if err != nil || px <= 0 {
		return Quote{}, fmt.Errorf("invalid price %q", env.Data.Price)
	}
	qty, err := strconv.ParseFloat(env.Data.Quantity, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("invalid quantity %q", env.Data.Quantity)
	}
	side := 1
	if env.Data.IsBuyerMaker {
		side = -1
	}
	return Quote{
		Symbol: parseBinanceSymbol(env.Stream),
		Price:  px,
		Size:   qty,
		Side:   side,
		Ts:     time.UnixMilli(env.Data.TradeTime),
	}, nil
}

func parseBinanceSymbol(stream string) string {
	name, _, _ := strings.Cut(stream, "@")
	return strings.ToUpper(name)
}
