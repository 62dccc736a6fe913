// mockfeed は Binance / Coinbase の約定ストリームとダッシュボード API を模したローカルサーバーです。
//
//	BINANCE_WS_URL=ws://localhost:18090/ws COINBASE_WS_URL=ws://localhost:18090/feed \
//	DASHBOARD_URL=http://localhost:18090 bridge run
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

type mockConfig struct {
	Addr     string        `envconfig:"MOCKFEED_ADDR" default:":18090"`
	Interval time.Duration `envconfig:"MOCKFEED_INTERVAL" default:"300ms"`
}

var log = slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "mockfeed")

func main() {
	var cfg mockConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Error("環境変数の読み込みエラー", "error", err)
		os.Exit(1)
	}

	// エンドポイントのルーティング
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", handleBinance(cfg.Interval))
	mux.HandleFunc("/feed", handleCoinbase(cfg.Interval))
	mux.HandleFunc("/api/configurations", handleConfigurations)

	log.Info("[Mock] サーバー起動: 約定モックが待機中...", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Error("サーバー起動エラー", "error", err)
		os.Exit(1)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// テスト用の数量シナリオ（波）
// 小口から始まり、Med 帯域 [10,20] を通過し、特殊技帯域 [50,100] まで跳ねてから戻る
var quantityWave = []string{
	"0.5", "2", "8",
	"12.5", // 🎯 [シナリオ1] Med 帯域で 'c' が押されるはず
	"15", "19.9", "30",
	"75", // 🎯 [シナリオ2] 特殊技スロットが発動するはず
	"80", // 500ms 以内なら破棄されるはず
	"40", "12", "3",
}

// 1. Binance aggTrade 配信用ハンドラー（/ws/{symbol}@aggTrade）
func handleBinance(interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream := strings.TrimPrefix(r.URL.Path, "/ws/")
		symbol, ok := strings.CutSuffix(stream, "@aggTrade")
		if !ok {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("アップグレードエラー", "error", err)
			return
		}
		defer conn.Close()
		log.Info("[Mock] 🎯 Binance ストリームへの接続を受け付けました", "symbol", symbol)

		for tick := 0; ; tick++ {
			now := time.Now()
			msg := map[string]any{
				"e": "aggTrade",
				"E": now.UnixMilli(),
				"s": strings.ToUpper(symbol),
				"a": tick,
				"p": "43000.00",
				"q": quantityWave[tick%len(quantityWave)],
				"T": now.UnixMilli(),
				"m": tick%len(quantityWave) >= 7, // 後半は売り
			}
			if !writeJSON(conn, msg) {
				return
			}
			time.Sleep(interval)
		}
	}
}

// 2. Coinbase matches 配信用ハンドラー（購読リクエストを待ってから配信）
func handleCoinbase(interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("アップグレードエラー", "error", err)
			return
		}
		defer conn.Close()

		var sub struct {
			Type       string   `json:"type"`
			ProductIDs []string `json:"product_ids"`
			Channels   []string `json:"channels"`
		}
		if err := conn.ReadJSON(&sub); err != nil || sub.Type != "subscribe" || len(sub.ProductIDs) == 0 {
			log.Warn("[Mock] ⚠️ 購読リクエストが不正です", "error", err)
			return
		}
		product := sub.ProductIDs[0]
		log.Info("[Mock] 🎯 Coinbase の購読を受け付けました", "product", product)

		if !writeJSON(conn, map[string]any{"type": "subscriptions", "channels": []map[string]any{{"name": "matches", "product_ids": sub.ProductIDs}}}) {
			return
		}
		for tick := 0; ; tick++ {
			side := "buy"
			if tick%3 == 0 {
				side = "sell"
			}
			msg := map[string]any{
				"type":       "match",
				"trade_id":   tick,
				"side":       side,
				"size":       quantityWave[(tick+4)%len(quantityWave)],
				"price":      "42990.00",
				"product_id": product,
				"time":       time.Now().UTC().Format(time.RFC3339Nano),
			}
			if !writeJSON(conn, msg) {
				return
			}
			time.Sleep(interval)
		}
	}
}

func writeJSON(conn *websocket.Conn, msg map[string]any) bool {
	data, _ := json.Marshal(msg)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Info("[Mock] 🔌 接続が切れました", "error", err)
		return false
	}
	return true
}

// 3. ダッシュボードの設定 API（本物と同じく数値は文字列で返す）
func handleConfigurations(w http.ResponseWriter, r *http.Request) {
	log.Debug("[Mock] 🔑 設定リクエストを受信しました")

	response := map[string]any{
		"isActive":       true,
		"symbol":         "btcusdt",
		"coinbaseSymbol": "BTC-USD",

		"binanceBuyWeakMin": "1",
		"binanceBuyWeakMax": "9.99",
		"binanceBuyWeakKey": "z",
		"binanceBuyMedMin":  "10",
		"binanceBuyMedMax":  "20",
		"binanceBuyMedKey":  "c",

		"binanceSpecial1Min":     "50",
		"binanceSpecial1Max":     "100",
		"binanceSpecial1Signal":  "sell",
		"binanceSpecial1Command": "++f,g,h,x",

		"coinbaseForwardMin":    "10",
		"coinbaseForwardMax":    "40",
		"coinbaseForwardSignal": "buy",
		"coinbaseForwardKey":    "d",

		"coinbaseJumpMin":      "0.1",
		"coinbaseJumpMax":      "5",
		"coinbaseJumpSignal":   "sell",
		"coinbaseJumpKey":      "w",
		"coinbaseJumpDelay":    "2",
		"coinbaseJumpLeftKey":  "a",
		"coinbaseJumpRightKey": "d",
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
