package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/r-umemoto/mame-bridge/pkg/config"
	"github.com/r-umemoto/mame-bridge/pkg/domain/history"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
	"github.com/r-umemoto/mame-bridge/pkg/domain/move"
	"github.com/r-umemoto/mame-bridge/pkg/domain/trigger"
	"github.com/r-umemoto/mame-bridge/pkg/infra/dashboard"
	"github.com/r-umemoto/mame-bridge/pkg/infra/exchange"
	"github.com/r-umemoto/mame-bridge/pkg/infra/journal"
	"github.com/r-umemoto/mame-bridge/pkg/infra/keyboard"
	"github.com/r-umemoto/mame-bridge/pkg/usecase"
)

// BuildEngine は、システム全体を俯瞰する「目次」です
func BuildEngine(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*Engine, error) {
	// 1. 設定の初回取得（購読する銘柄はここで決まる）
	store := trigger.NewStore(nil)
	refresher := dashboard.NewRefresher(buildSource(cfg.Dashboard), store, cfg.Dashboard.Refresh, log)
	settings, err := refresher.Load(ctx)
	if err != nil {
		return nil, err
	}

	// 2. インフラ層の構築（泥臭い設定はすべてここへ）
	streamers, err := buildStreamers(cfg.Exchange, settings, log)
	if err != nil {
		return nil, err
	}
	actuator, err := keyboard.New(cfg.Keyboard, log)
	if err != nil {
		return nil, err
	}

	var (
		jr      history.Journal
		closers []io.Closer
	)
	if cfg.JournalPath != "" {
		js, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		jr = js
		closers = append(closers, js)
	}

	// 3. ドメイン層とユースケースの組み立て
	evaluator := trigger.NewEvaluator(store, cfg.Bridge.Cooldowns(), NewRand(cfg.Bridge.Seed), log)
	executor := move.NewExecutor(actuator, move.SystemClock{}, cfg.Bridge.Timings(), log)
	serializer := move.NewSerializer(cfg.Bridge.AcquireWait)
	bridge := usecase.NewBridge(evaluator, executor, serializer, jr, cfg.Bridge.QueueSize, log)

	// 4. エンジンの完成
	return NewEngine(refresher, streamers, bridge, log, closers...), nil
}

// ---------------------------------------------------------
// ▼ ここから下は「下請け工場（プライベート関数）」に押し込む
// ---------------------------------------------------------

func buildSource(cfg dashboard.Config) dashboard.Source {
	if cfg.TriggerFile != "" {
		return dashboard.FileSource{Path: cfg.TriggerFile}
	}
	return dashboard.NewClient(cfg.URL, cfg.Timeout)
}

func buildStreamers(cfg exchange.Config, settings *trigger.Settings, log *slog.Logger) ([]market.TradeStreamer, error) {
	var streamers []market.TradeStreamer

	if cfg.BinanceEnabled {
		symbol := cfg.BinanceSymbol
		if symbol == "" {
			symbol = settings.Symbol
		}
		streamers = append(streamers, exchange.NewBinance(cfg.BinanceURL, symbol, cfg.ReconnectMax, log))
	}
	if cfg.CoinbaseEnabled {
		product := cfg.CoinbaseSymbol
		if product == "" {
			product = settings.CoinbaseSymbol
		}
		cb, err := exchange.NewCoinbase(cfg.CoinbaseURL, product, cfg.ReconnectMax, log)
		if err != nil {
			return nil, err
		}
		streamers = append(streamers, cb)
	}

	if len(streamers) == 0 {
		return nil, fmt.Errorf("有効な約定ストリームがありません (BINANCE_ENABLED / COINBASE_ENABLED)")
	}
	return streamers, nil
}

// NewRand はジャンプ方向の抽選用乱数です。seed が 0 なら起動時刻から作ります。
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}
