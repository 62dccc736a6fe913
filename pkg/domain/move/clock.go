package move

import (
	"sync"
	"time"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
)

// Clock は入力タイミングの基準です。テストや parse コマンドでは仮想時計に差し替えます。
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock は実時間の Clock です
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Timeline は仮想時計と記録用アクチュエータを兼ねます。
// Sleep は実際には待たず、時刻を進めるだけです。
type Timeline struct {
	mu     sync.Mutex
	start  time.Time
	now    time.Time
	events []Transition

	// Fail が設定されていれば、その戻り値を SetKeyState の結果として返します
	Fail func(key command.Key, pressed bool) error
}

func NewTimeline() *Timeline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Timeline{start: start, now: start}
}

func (t *Timeline) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

func (t *Timeline) Sleep(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > 0 {
		t.now = t.now.Add(d)
	}
}

// SetKeyState は KeyActuator の実装です
func (t *Timeline) SetKeyState(key command.Key, pressed bool) error {
	var err error
	if t.Fail != nil {
		err = t.Fail(key, pressed)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, Transition{Key: key, Pressed: pressed, At: t.now.Sub(t.start), Err: err})
	return err
}

// Transitions は記録されたキー操作を時刻（開始からの経過）付きで返します
func (t *Timeline) Transitions() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Transition(nil), t.events...)
}

// Reset は記録と時計を初期状態に戻します
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = t.start
	t.events = nil
}
