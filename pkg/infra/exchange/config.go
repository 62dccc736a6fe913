package exchange

import "time"

// Config は取引所の約定ストリームに接続するための設定です
type Config struct {
	BinanceURL     string `envconfig:"BINANCE_WS_URL" default:"wss://stream.binance.com:9443/ws"`
	BinanceEnabled bool   `envconfig:"BINANCE_ENABLED" default:"true"`
	// BinanceSymbol が空ならダッシュボードの symbol を使います
	BinanceSymbol string `envconfig:"BINANCE_SYMBOL"`

	CoinbaseURL     string `envconfig:"COINBASE_WS_URL" default:"wss://ws-feed.exchange.coinbase.com"`
	CoinbaseEnabled bool   `envconfig:"COINBASE_ENABLED" default:"true"`
	CoinbaseSymbol  string `envconfig:"COINBASE_SYMBOL"`

	ReconnectMax time.Duration `envconfig:"FEED_RECONNECT_MAX" default:"30s"`
}
