package cooldown

import (
	"sync"
	"time"
)

// Periodic は「条件が続いている間は delay ごとに1回だけ発火する」トリガーの状態です。
// 条件が一度でも外れると active が落ち、次に条件を満たした瞬間に即発火します。
type Periodic struct {
	states map[string]*periodicState
	mu     sync.Mutex
}

type periodicState struct {
	lastFire time.Time
	active   bool
}

func NewPeriodic() *Periodic {
	return &Periodic{
		states: make(map[string]*periodicState),
	}
}

// Observe は now 時点の条件 held を伝え、発火すべきかを返します
func (p *Periodic) Observe(name string, held bool, delay time.Duration, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[name]
	if !ok {
		st = &periodicState{}
		p.states[name] = st
	}

	if !held {
		st.active = false
		return false
	}

	if !st.active || now.Sub(st.lastFire) >= delay {
		st.active = true
		st.lastFire = now
		return true
	}
	return false
}

// Reset は name の active を落とします（設定無効時など）
func (p *Periodic) Reset(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.states[name]; ok {
		st.active = false
	}
}
