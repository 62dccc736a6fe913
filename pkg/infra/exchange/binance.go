package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

// aggTradeMessage は Binance の aggTrade ストリームのメッセージです（数量・価格は文字列で届く）
type aggTradeMessage struct {
	EventType    string          `json:"e"`
	Symbol       string          `json:"s"`
	Price        decimal.Decimal `json:"p"`
	Quantity     decimal.Decimal `json:"q"`
	TradeTime    int64           `json:"T"`
	BuyerIsMaker bool            `json:"m"`
}

// Binance は Binance の集約約定ストリームです
type Binance struct {
	ws     *WSClient
	symbol string
	log    *slog.Logger
}

func NewBinance(baseURL, symbol string, reconnectMax time.Duration, log *slog.Logger) *Binance {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("source", market.SOURCE_BINANCE)
	url := strings.TrimRight(baseURL, "/") + "/" + strings.ToLower(symbol) + "@aggTrade"
	return &Binance{
		ws:     NewWSClient(url, reconnectMax, log),
		symbol: symbol,
		log:    log,
	}
}

func (b *Binance) Source() market.Source {
	return market.SOURCE_BINANCE
}

// Stream は market.TradeStreamer の実装です
func (b *Binance) Stream(ctx context.Context, out chan<- market.TradeEvent) error {
	return b.ws.Listen(ctx, func(msg []byte) {
		ev, ok, err := DecodeBinance(msg)
		if err != nil {
			b.log.Debug("JSONパースエラー", "error", err)
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

// DecodeBinance は aggTrade メッセージを共通の約定データに変換します。
// 約定以外のメッセージ（購読応答など）は ok=false になります。
// 買い手がメイカー（m=true）なら売りが成行でぶつかった約定なので sell とみなします。
func DecodeBinance(msg []byte) (market.TradeEvent, bool, error) {
	var m aggTradeMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return market.TradeEvent{}, false, fmt.Errorf("aggTrade パースエラー: %w", err)
	}
	if m.EventType != "aggTrade" {
		return market.TradeEvent{}, false, nil
	}

	side := market.SIDE_BUY
	if m.BuyerIsMaker {
		side = market.SIDE_SELL
	}
	return market.TradeEvent{
		Source:   market.SOURCE_BINANCE,
		Symbol:   strings.ToLower(m.Symbol),
		Side:     side,
		Quantity: m.Quantity,
		Price:    m.Price,
		Time:     time.UnixMilli(m.TradeTime).UTC(),
	}, true, nil
}
