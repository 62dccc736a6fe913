package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/r-umemoto/mame-bridge/pkg/domain/trigger"
)

const (
	initialTries = 5
	initialWait  = 2 * time.Second
)

// Refresher は設定を定期的に取り直し、trigger.Store を丸ごと差し替えます。
// 取得に失敗した回は直前の設定を使い続けます。
type Refresher struct {
	source   Source
	store    *trigger.Store
	interval time.Duration
	log      *slog.Logger

	// 初回取得のリトライ間隔（テストで短縮する）
	retryWait time.Duration
}

func NewRefresher(source Source, store *trigger.Store, interval time.Duration, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		source:    source,
		store:     store,
		interval:  interval,
		log:       log.With("component", "refresher"),
		retryWait: initialWait,
	}
}

// Load は初回の設定を取得します。ダッシュボードの起動待ちとして数回リトライします。
func (r *Refresher) Load(ctx context.Context) (*trigger.Settings, error) {
	settings, err := backoff.Retry(ctx, func() (*trigger.Settings, error) {
		return r.refresh(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(r.retryWait)),
		backoff.WithMaxTries(initialTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.log.Warn("⏳ 設定の取得に失敗。リトライします", "error", err, "wait", wait)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("初回の設定取得に失敗: %w", err)
	}
	return settings, nil
}

// Run は ctx が終了するまで interval ごとに設定を取り直します
func (r *Refresher) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.refresh(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("⚠️ 設定の更新に失敗。直前の設定を使い続けます", "error", err)
			}
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) (*trigger.Settings, error) {
	raw, err := r.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	settings, issues := trigger.FromMap(raw)
	for _, is := range issues {
		r.log.Debug("トリガー無効", "field", is.Field, "reason", is.Err)
	}

	prev := r.store.Swap(settings)
	if prev == nil || prev.Active != settings.Active || prev.Count() != settings.Count() {
		r.log.Info("🔄 設定を反映しました", "active", settings.Active, "triggers", settings.Count(), "issues", len(issues))
	}
	return settings, nil
}
