// Package move はコマンドを実際のキー操作（押下・保持・解放）に変換して実行します。
package move

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
)

// ErrActuation はアクチュエータがキー操作の失敗を報告したことを表します
var ErrActuation = errors.New("キー操作に失敗しました")

// KeyActuator は仮想入力デバイスの規格です（OS側のキー送信はこの裏に隠れます）
type KeyActuator interface {
	SetKeyState(key command.Key, pressed bool) error
}

// Timings は各入力のフレーム数をミリ秒で表したものです（60fps で 10〜12 フレームの受付窓に収まる値）
type Timings struct {
	TapHold time.Duration

	RapidHold time.Duration
	RapidGap  time.Duration

	SequenceSingleHold time.Duration
	RollHold           time.Duration
	FinishLead         time.Duration
	FinishOverlap      time.Duration
	FinishTail         time.Duration

	// ChordStagger は同時押しの押下間隔です。0 が最新版の挙動、30ms が旧版の挙動です。
	ChordStagger    time.Duration
	ChordHold       time.Duration
	ChordReleaseGap time.Duration

	ChargeTime    time.Duration
	ChargeOverlap time.Duration
	ChargeGap     time.Duration
	AttackGap     time.Duration
	AttackHold    time.Duration
	ReleaseGap    time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		TapHold: 100 * time.Millisecond,

		RapidHold: 33 * time.Millisecond,
		RapidGap:  17 * time.Millisecond,

		SequenceSingleHold: 67 * time.Millisecond,
		RollHold:           33 * time.Millisecond,
		FinishLead:         33 * time.Millisecond,
		FinishOverlap:      33 * time.Millisecond,
		FinishTail:         17 * time.Millisecond,

		ChordStagger:    0,
		ChordHold:       100 * time.Millisecond,
		ChordReleaseGap: 30 * time.Millisecond,

		ChargeTime:    2000 * time.Millisecond,
		ChargeOverlap: 50 * time.Millisecond,
		ChargeGap:     33 * time.Millisecond,
		AttackGap:     33 * time.Millisecond,
		AttackHold:    100 * time.Millisecond,
		ReleaseGap:    17 * time.Millisecond,
	}
}

// Transition は試行した1回のキー操作です
type Transition struct {
	Key     command.Key
	Pressed bool
	At      time.Duration // シーケンス開始からの経過
	Err     error
}

// Result は1シーケンスの実行記録です
type Result struct {
	Command     command.Command
	Transitions []Transition
	Elapsed     time.Duration
	Err         error
}

// OK はすべてのキー操作が成功したかを返します
func (r Result) OK() bool {
	return r.Err == nil && r.Failures() == 0
}

func (r Result) Failures() int {
	n := 0
	for _, tr := range r.Transitions {
		if tr.Err != nil {
			n++
		}
	}
	return n
}

func (r Result) Presses() int {
	n := 0
	for _, tr := range r.Transitions {
		if tr.Pressed {
			n++
		}
	}
	return n
}

// Executor はコマンドを KeyActuator に対して最後まで実行します。
// 呼び出しの直列化は Serializer の責任で、Executor 自体はロックを持ちません。
type Executor struct {
	actuator KeyActuator
	clock    Clock
	timings  Timings
	log      *slog.Logger
}

func NewExecutor(actuator KeyActuator, clock Clock, timings Timings, log *slog.Logger) *Executor {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		actuator: actuator,
		clock:    clock,
		timings:  timings,
		log:      log,
	}
}

// Execute はコマンドを実行します。失敗したキー操作はログに残すだけで再試行しません。
// 押下を試みたキーは、どの経路で抜けても必ず解放を試みます。
func (e *Executor) Execute(cmd command.Command) (res Result) {
	s := &session{exec: e, start: e.clock.Now()}
	s.result.Command = cmd
	defer func() {
		s.releaseAll()
		s.result.Elapsed = e.clock.Now().Sub(s.start)
		res = s.result
	}()

	t := e.timings
	switch c := cmd.(type) {
	case command.Single:
		s.tap(c.Key, t.TapHold)

	case command.RapidRepeat:
		for i := 0; i < c.Count; i++ {
			s.tap(c.Key, t.RapidHold)
			s.wait(t.RapidGap)
		}

	case command.Sequential:
		e.sequential(s, c.Keys)

	case command.Simultaneous:
		for i, k := range c.Keys {
			if i > 0 {
				s.wait(t.ChordStagger)
			}
			s.press(k)
		}
		s.wait(t.ChordHold)
		for i := len(c.Keys) - 1; i >= 0; i-- {
			s.release(c.Keys[i])
			if i > 0 {
				s.wait(t.ChordReleaseGap)
			}
		}

	case command.Charge:
		s.press(c.ChargeKey)
		s.wait(t.ChargeTime)
		s.press(c.DirectionKey)
		s.wait(t.ChargeOverlap)
		s.release(c.ChargeKey)
		s.wait(t.ChargeGap)
		for i, k := range c.AttackKeys {
			if i > 0 {
				s.wait(t.AttackGap)
			}
			s.press(k)
		}
		s.wait(t.AttackHold)
		tail := make([]command.Key, 0, len(c.AttackKeys)+1)
		for i := len(c.AttackKeys) - 1; i >= 0; i-- {
			tail = append(tail, c.AttackKeys[i])
		}
		tail = append(tail, c.DirectionKey)
		for i, k := range tail {
			if i > 0 {
				s.wait(t.ReleaseGap)
			}
			s.release(k)
		}

	case command.HalfCircleCharge:
		s.press(c.ChargeKey)
		s.wait(t.ChargeTime)
		prev := c.ChargeKey
		for _, k := range c.DirectionKeys {
			s.press(k)
			s.wait(t.ChargeOverlap)
			s.release(prev)
			s.wait(t.ChargeGap)
			prev = k
		}
		s.tap(c.AttackKey, t.AttackHold)
		s.release(prev)

	case command.Hold:
		s.tap(c.Key, c.Duration)

	default:
		s.result.Err = fmt.Errorf("未対応のコマンドです: %T", cmd)
		e.log.Error("コマンド実行不可", "command", fmt.Sprint(cmd), "error", s.result.Err)
		return
	}

	e.log.Debug("🎮 シーケンス完了",
		"command", cmd.String(),
		"presses", s.result.Presses(),
		"failures", s.result.Failures())
	return
}

func (e *Executor) sequential(s *session, keys []command.Key) {
	t := e.timings
	switch len(keys) {
	case 0:
		return
	case 1:
		s.tap(keys[0], t.SequenceSingleHold)
		return
	}

	// 先頭側はロールで流し、最後の2つは方向保持＋攻撃の形で重ねる
	for _, k := range keys[:len(keys)-2] {
		s.tap(k, t.RollHold)
	}
	direction, attack := keys[len(keys)-2], keys[len(keys)-1]
	s.press(direction)
	s.wait(t.FinishLead)
	s.press(attack)
	s.wait(t.FinishOverlap)
	s.release(direction)
	s.wait(t.FinishTail)
	s.release(attack)
}

// session は1シーケンス分の押下状態を追跡します
type session struct {
	exec   *Executor
	start  time.Time
	held   []command.Key
	result Result
}

func (s *session) tap(k command.Key, hold time.Duration) {
	s.press(k)
	s.wait(hold)
	s.release(k)
}

// press は結果に関わらずキーを「押下中」として扱います（失敗しても解放は送る）
func (s *session) press(k command.Key) {
	s.held = append(s.held, k)
	s.actuate(k, true)
}

func (s *session) release(k command.Key) {
	for i := len(s.held) - 1; i >= 0; i-- {
		if s.held[i] == k {
			s.held = append(s.held[:i], s.held[i+1:]...)
			break
		}
	}
	s.actuate(k, false)
}

func (s *session) releaseAll() {
	for len(s.held) > 0 {
		s.release(s.held[len(s.held)-1])
	}
}

func (s *session) wait(d time.Duration) {
	if d > 0 {
		s.exec.clock.Sleep(d)
	}
}

func (s *session) actuate(k command.Key, pressed bool) {
	at := s.exec.clock.Now().Sub(s.start)
	err := s.call(k, pressed)
	if err != nil {
		s.exec.log.Warn("⚠️ キー操作失敗", "key", k.String(), "pressed", pressed, "error", err)
	}
	s.result.Transitions = append(s.result.Transitions, Transition{Key: k, Pressed: pressed, At: at, Err: err})
}

func (s *session) call(k command.Key, pressed bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActuation, r)
		}
	}()
	if err := s.exec.actuator.SetKeyState(k, pressed); err != nil {
		return fmt.Errorf("%w: key=%s pressed=%t: %v", ErrActuation, k, pressed, err)
	}
	return nil
}
