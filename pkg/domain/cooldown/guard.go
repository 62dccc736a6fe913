// Package cooldown はトリガーの連続発火を抑える状態を管理します。
package cooldown

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Guard はトリガー名ごとのクールダウンです。
// 前回の発火から window 以上経過していれば許可して記録し、そうでなければ記録せずに拒否します。
type Guard struct {
	window   time.Duration
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

func NewGuard(window time.Duration) *Guard {
	return &Guard{
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (g *Guard) Window() time.Duration {
	return g.window
}

// Admit は now 時点での発火を許可するかを判定します
func (g *Guard) Admit(name string, now time.Time) bool {
	if g.window <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	lim, ok := g.limiters[name]
	if !ok {
		// 初回は無条件で許可（エントリは削除しない：トリガー名の数は固定）
		lim = rate.NewLimiter(rate.Every(g.window), 1)
		g.limiters[name] = lim
	}
	return lim.AllowN(now, 1)
}
