package trigger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
	"github.com/r-umemoto/mame-bridge/pkg/domain/cooldown"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

// Family はトリガーの系統です。系統同士は独立に評価されます。
type Family string

const (
	FAMILY_RANGE    Family = "range"
	FAMILY_SPECIAL  Family = "special"
	FAMILY_MOVEMENT Family = "movement"
	FAMILY_PERIODIC Family = "periodic"
)

// Action は評価の結果、実行が決まった1つの入力です
type Action struct {
	ID      string
	Family  Family
	Trigger string
	Event   market.TradeEvent
	Command command.Command
	At      time.Time
}

// Rand はジャンプ方向の抽選に使う乱数源です（テストでは固定値を注入）
type Rand interface {
	Float64() float64
}

// Cooldowns は系統ごとのクールダウン幅です
type Cooldowns struct {
	Range    time.Duration
	Special  time.Duration
	Movement time.Duration
}

func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		Range:    200 * time.Millisecond,
		Special:  500 * time.Millisecond,
		Movement: 500 * time.Millisecond,
	}
}

// Evaluator は約定イベントをトリガーと照合し、クールダウンを通過した Action を返します。
// クールダウン・周期状態は Evaluator が所有し、複数ソースから同時に呼び出せます。
type Evaluator struct {
	store    *Store
	rangeCD  *cooldown.Guard
	special  *cooldown.Guard
	movement *cooldown.Guard
	periodic *cooldown.Periodic

	rnd   Rand
	rndMu sync.Mutex

	log *slog.Logger
	now func() time.Time
}

func NewEvaluator(store *Store, cd Cooldowns, rnd Rand, log *slog.Logger) *Evaluator {
	if log == nil {
		log = slog.Default()
	}
	return &Evaluator{
		store:    store,
		rangeCD:  cooldown.NewGuard(cd.Range),
		special:  cooldown.NewGuard(cd.Special),
		movement: cooldown.NewGuard(cd.Movement),
		periodic: cooldown.NewPeriodic(),
		rnd:      rnd,
		log:      log.With("component", "evaluator"),
		now:      time.Now,
	}
}

// Evaluate は現在時刻でイベントを評価します
func (e *Evaluator) Evaluate(ev market.TradeEvent) []Action {
	return e.EvaluateAt(ev, e.now())
}

// EvaluateAt は now 時点でイベントを評価し、系統ごとに最大1つの Action を返します
func (e *Evaluator) EvaluateAt(ev market.TradeEvent, now time.Time) []Action {
	settings := e.store.Load()
	st := settings.For(ev.Source)
	if settings == nil || !settings.Active || st == nil {
		// 停止中は周期トリガーの継続状態も切る（再開時は即発火）
		e.resetPeriodics(ev.Source)
		return nil
	}

	var actions []Action
	if a, ok := e.evalRange(st, ev, now); ok {
		actions = append(actions, a)
	}
	if a, ok := e.evalSpecial(st, ev, now); ok {
		actions = append(actions, a)
	}
	if a, ok := e.evalMovement(st, ev, now); ok {
		actions = append(actions, a)
	}
	if a, ok := e.evalPeriodic(st, ev, now); ok {
		actions = append(actions, a)
	}
	return actions
}

func (e *Evaluator) evalRange(st *SourceTriggers, ev market.TradeEvent, now time.Time) (Action, bool) {
	for _, rt := range st.Ranges[ev.Side] {
		if !rt.Band.Contains(ev.Quantity) {
			continue
		}
		if !e.rangeCD.Admit(rt.Name, now) {
			e.log.Debug("⏳ クールダウン中", "trigger", rt.Name)
			return Action{}, false
		}
		return newAction(FAMILY_RANGE, rt.Name, ev, command.Single{Key: rt.Key}, now), true
	}
	return Action{}, false
}

func (e *Evaluator) evalSpecial(st *SourceTriggers, ev market.TradeEvent, now time.Time) (Action, bool) {
	for _, sp := range st.Specials {
		if sp.Signal != ev.Side || !sp.Band.Contains(ev.Quantity) {
			continue
		}
		if sp.ParseErr != nil {
			e.log.Warn("⚠️ 必殺技コマンドが解析できないためスキップ", "trigger", sp.Name, "command", sp.Text, "error", sp.ParseErr)
			return Action{}, false
		}
		if !e.special.Admit(sp.Name, now) {
			e.log.Debug("⏳ 必殺技クールダウン中", "trigger", sp.Name)
			return Action{}, false
		}
		return newAction(FAMILY_SPECIAL, sp.Name, ev, sp.Command, now), true
	}
	return Action{}, false
}

func (e *Evaluator) evalMovement(st *SourceTriggers, ev market.TradeEvent, now time.Time) (Action, bool) {
	for _, mv := range st.Movements {
		if mv.Signal != ev.Side || !mv.Band.Contains(ev.Quantity) {
			continue
		}
		if !e.movement.Admit(mv.Name, now) {
			return Action{}, false
		}
		return newAction(FAMILY_MOVEMENT, mv.Name, ev, command.Hold{Key: mv.Key, Duration: mv.Hold}, now), true
	}
	return Action{}, false
}

// evalPeriodic はジャンプ→しゃがみの順に評価します。
// 条件の外れた周期トリガーは、先に別の周期トリガーが発火していても状態をリセットします。
func (e *Evaluator) evalPeriodic(st *SourceTriggers, ev market.TradeEvent, now time.Time) (Action, bool) {
	var (
		fired Action
		ok    bool
	)
	for _, p := range st.Periodics {
		if !p.Holds(ev) {
			e.periodic.Observe(p.Name, false, p.Delay, now)
			continue
		}
		if ok {
			continue
		}
		if !e.periodic.Observe(p.Name, true, p.Delay, now) {
			continue
		}

		var cmd command.Command
		switch p.Kind {
		case PERIODIC_JUMP:
			v := e.pick(p.Variants)
			cmd = v.Command
			e.log.Debug("🦘 ジャンプ方向を抽選", "trigger", p.Name, "variant", v.Name)
		case PERIODIC_CROUCH:
			cmd = command.Hold{Key: p.Key, Duration: p.Hold}
		default:
			continue
		}
		fired, ok = newAction(FAMILY_PERIODIC, p.Name, ev, cmd, now), true
	}
	return fired, ok
}

// pick は重みに比例して方向を選びます
func (e *Evaluator) pick(variants []JumpVariant) JumpVariant {
	if len(variants) == 1 || e.rnd == nil {
		return variants[0]
	}
	total := 0.0
	for _, v := range variants {
		total += v.Weight
	}

	e.rndMu.Lock()
	r := e.rnd.Float64() * total
	e.rndMu.Unlock()

	for _, v := range variants {
		if r < v.Weight {
			return v
		}
		r -= v.Weight
	}
	return variants[len(variants)-1]
}

func (e *Evaluator) resetPeriodics(source market.Source) {
	e.periodic.Reset(periodicName(source, PERIODIC_JUMP))
	e.periodic.Reset(periodicName(source, PERIODIC_CROUCH))
}

func newAction(family Family, name string, ev market.TradeEvent, cmd command.Command, now time.Time) Action {
	return Action{
		ID:      uuid.NewString(),
		Family:  family,
		Trigger: name,
		Event:   ev,
		Command: cmd,
		At:      now,
	}
}
