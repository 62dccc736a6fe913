package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
	"github.com/r-umemoto/mame-bridge/pkg/infra/dashboard"
	"github.com/r-umemoto/mame-bridge/pkg/usecase"
)

const (
	shutdownTimeout = 5 * time.Second
	tradeBuffer     = 100
)

// Engine はシステム全体のライフサイクル（初期化、実行、停止）を管理する司令部です
type Engine struct {
	refresher *dashboard.Refresher
	streamers []market.TradeStreamer
	bridge    *usecase.Bridge
	closers   []io.Closer
	log       *slog.Logger
}

func NewEngine(refresher *dashboard.Refresher, streamers []market.TradeStreamer, bridge *usecase.Bridge, log *slog.Logger, closers ...io.Closer) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		refresher: refresher,
		streamers: streamers,
		bridge:    bridge,
		closers:   closers,
		log:       log,
	}
}

// Run はストリーム購読・設定更新・ワーカーを起動し、ctx が終わるまで動かします。
// 終了時は実行中の入力がキー解放まで終わるのを待ってから戻ります。
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	trades := make(chan market.TradeEvent, tradeBuffer)

	g.Go(func() error { return e.refresher.Run(gctx) })
	g.Go(func() error { return e.bridge.Run(gctx) })
	for _, s := range e.streamers {
		g.Go(func() error {
			e.log.Info("📡 約定ストリームを購読します", "source", s.Source())
			return s.Stream(gctx, trades)
		})
	}

	// メインループ（すべての約定を1箇所でルーティングする）
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-trades:
				e.bridge.HandleTrade(ev)
			}
		}
	})

	e.log.Info("🚀 約定の監視を開始します...")
	err := g.Wait()
	e.log.Info("🚨 システム終了シグナルを検知！入力を止めて終了処理に入ります...")

	// ループを抜けた後の死に際の処理
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := e.bridge.Shutdown(sctx); serr != nil {
		e.log.Error("❌ 実行中の入力を待ちきれませんでした", "error", serr)
	}
	for _, c := range e.closers {
		if cerr := c.Close(); cerr != nil {
			e.log.Warn("⚠️ クローズに失敗", "error", cerr)
		}
	}
	e.log.Info("✅ 安全に停止しました")
	return err
}
