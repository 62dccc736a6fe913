package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source は約定データの取得元（取引所）です
type Source string

const (
	SOURCE_BINANCE  Source = "binance"
	SOURCE_COINBASE Source = "coinbase"
)

// Sources は評価対象となる全ソースです（固定順）
var Sources = []Source{SOURCE_BINANCE, SOURCE_COINBASE}

type Side string

const (
	SIDE_BUY  Side = "buy"
	SIDE_SELL Side = "sell"
)

// ParseSide は設定値や取引所メッセージの売買区分を変換します
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SIDE_BUY, nil
	case "sell":
		return SIDE_SELL, nil
	}
	return "", fmt.Errorf("売買区分が不正です: %q", s)
}

// TradeEvent はシステム共通の約定データ（取引所固有の形式を一切知らない純粋なデータ）
type TradeEvent struct {
	Source   Source
	Symbol   string
	Side     Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Time     time.Time
}

// TradeStreamer は取引所の約定ストリームを購読するための規格です
type TradeStreamer interface {
	Source() Source
	// Stream は ctx が終了するまで約定を out に流し続けます（再接続は実装側の責任）
	Stream(ctx context.Context, out chan<- TradeEvent) error
}
