package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/r-umemoto/mame-bridge/pkg/domain/history"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
	"github.com/r-umemoto/mame-bridge/pkg/domain/move"
	"github.com/r-umemoto/mame-bridge/pkg/domain/trigger"
)

const journalTimeout = 2 * time.Second

// Bridge は約定イベントを受け取り、トリガー評価からキー入力の実行までを仲介するユースケースです
type Bridge struct {
	evaluator  *trigger.Evaluator
	executor   *move.Executor
	serializer *move.Serializer
	journal    history.Journal
	log        *slog.Logger

	tradeChannels map[market.Source]chan market.TradeEvent // ソースごとの約定処理チャネル

	inflight sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// NewBridge は journal が nil なら記録を行いません
func NewBridge(evaluator *trigger.Evaluator, executor *move.Executor, serializer *move.Serializer, journal history.Journal, queueSize int, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	b := &Bridge{
		evaluator:     evaluator,
		executor:      executor,
		serializer:    serializer,
		journal:       journal,
		log:           log.With("component", "bridge"),
		tradeChannels: make(map[market.Source]chan market.TradeEvent, len(market.Sources)),
	}

	// ソースごとにチャネルを作成（ソース間の順序は保証しない）
	for _, src := range market.Sources {
		b.tradeChannels[src] = make(chan market.TradeEvent, queueSize)
	}
	return b
}

// Run はソースごとのワーカーを起動し、ctx が終了するまでブロックします
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for src, ch := range b.tradeChannels {
		g.Go(func() error {
			b.worker(ctx, src, ch)
			return nil
		})
	}
	return g.Wait()
}

// worker は特定のソースの約定を専用に処理するGoroutineです
func (b *Bridge) worker(ctx context.Context, src market.Source, tradeCh <-chan market.TradeEvent) {
	log := b.log.With("source", src)
	log.Debug("👷 ワーカー起動")
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-tradeCh:
			for _, a := range b.evaluator.Evaluate(ev) {
				b.Dispatch(ctx, a)
			}
		}
	}
}

// HandleTrade はインフラ層から流れてきた約定を該当ソースのチャネルへルーティングします。
// ワーカーが追いついていない場合は古い入力を溜めずに破棄します。
func (b *Bridge) HandleTrade(ev market.TradeEvent) {
	ch, ok := b.tradeChannels[ev.Source]
	if !ok {
		b.log.Warn("⚠️ 未知のソースです", "source", ev.Source)
		return
	}
	select {
	case ch <- ev:
	default:
		b.log.Warn("⚠️ 約定チャネルがフルです。約定を破棄します", "source", ev.Source, "quantity", ev.Quantity)
	}
}

// Dispatch はアクションを別Goroutineで実行します。デバイスの確保待ちは Serializer の待機時間までです。
func (b *Bridge) Dispatch(ctx context.Context, a trigger.Action) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.finish(ctx, a, move.Result{}, move.ErrClosed)
		return
	}
	b.inflight.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.inflight.Done()

		var res move.Result
		err := b.serializer.Do(ctx, func() {
			res = b.executor.Execute(a.Command)
		})
		b.finish(ctx, a, res, err)
	}()
}

func (b *Bridge) finish(ctx context.Context, a trigger.Action, res move.Result, err error) {
	entry := history.Entry{
		ID:       a.ID,
		At:       a.At,
		Source:   a.Event.Source,
		Side:     a.Event.Side,
		Quantity: a.Event.Quantity,
		Family:   string(a.Family),
		Trigger:  a.Trigger,
		Command:  a.Command.String(),
		Presses:  res.Presses(),
		Failures: res.Failures(),
		Elapsed:  res.Elapsed,
	}
	log := b.log.With("id", a.ID, "trigger", a.Trigger, "command", entry.Command)

	switch {
	case err != nil:
		entry.Outcome = history.OUTCOME_DROPPED
		entry.Detail = err.Error()
		if errors.Is(err, move.ErrBusy) {
			log.Warn("🚫 入力デバイスが使用中のためアクションを破棄")
		} else {
			log.Info("🚫 アクションを破棄", "reason", err)
		}
	case !res.OK():
		entry.Outcome = history.OUTCOME_FAILED
		if res.Err != nil {
			entry.Detail = res.Err.Error()
		}
		log.Error("❌ キー操作の一部が失敗", "failures", entry.Failures, "error", res.Err)
	default:
		entry.Outcome = history.OUTCOME_EXECUTED
		log.Info("🎮 アクション実行", "family", a.Family, "quantity", a.Event.Quantity, "elapsed", res.Elapsed)
	}

	if b.journal == nil {
		return
	}
	// 停止処理中でも記録は残す
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := b.journal.Record(jctx, entry); err != nil {
		log.Error("❌ 実行記録の保存に失敗", "error", err)
	}
}

// Shutdown は新規アクションを止め、実行中のシーケンスがキー解放まで終わるのを待ちます
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.serializer.Close(ctx)
}
