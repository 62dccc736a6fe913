package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// Coinbase は Coinbase Exchange の matches チャネルです
type Coinbase struct {
	ws      *WSClient
	product string
	log     *slog.Logger
}

func NewCoinbase(url, product string, reconnectMax time.Duration, log *slog.Logger) (*Coinbase, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("source", market.SOURCE_COINBASE)

	sub, err := json.Marshal(subscribeRequest{
		Type:       "subscribe",
		ProductIDs: []string{product},
		Channels:   []string{"matches"},
	})
	if err != nil {
		return nil, fmt.Errorf("購読リクエストの生成に失敗: %w", err)
	}

	ws := NewWSClient(url, reconnectMax, log)
	ws.Subscribe = sub
	return &Coinbase{ws: ws, product: product, log: log}, nil
}

func (c *Coinbase) Source() market.Source {
	return market.SOURCE_COINBASE
}

// Stream は market.TradeStreamer の実装です
func (c *Coinbase) Stream(ctx context.Context, out chan<- market.TradeEvent) error {
	return c.ws.Listen(ctx, func(msg []byte) {
		ev, ok, err := DecodeCoinbase(msg)
		if err != nil {
			c.log.Debug("matches パースエラー", "error", err)
			return
		}
		if !ok {
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	})
}

// DecodeCoinbase は match メッセージを共通の約定データに変換します。
// subscriptions や heartbeat など match 以外は ok=false になります。
func DecodeCoinbase(msg []byte) (market.TradeEvent, bool, error) {
	if !gjson.ValidBytes(msg) {
		return market.TradeEvent{}, false, fmt.Errorf("不正なJSONです")
	}
	res := gjson.ParseBytes(msg)
	if res.Get("type").String() != "match" {
		return market.TradeEvent{}, false, nil
	}

	side, err := market.ParseSide(res.Get("side").String())
	if err != nil {
		return market.TradeEvent{}, false, err
	}
	size, err := decimal.NewFromString(res.Get("size").String())
	if err != nil {
		return market.TradeEvent{}, false, fmt.Errorf("size が不正です: %w", err)
	}
	price, err := decimal.NewFromString(res.Get("price").String())
	if err != nil {
		return market.TradeEvent{}, false, fmt.Errorf("price が不正です: %w", err)
	}

	ev := market.TradeEvent{
		Source:   market.SOURCE_COINBASE,
		Symbol:   res.Get("product_id").String(),
		Side:     side,
		Quantity: size,
		Price:    price,
	}
	if ts := res.Get("time"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			ev.Time = t
		}
	}
	return ev, true, nil
}
