package trigger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

// FromMap はダッシュボードのフラットな設定（{source}{Trigger}{Field} 形式）を検証済みの Settings に変換します。
// 欠落・不正なフィールドを含むトリガーは無効化され、Issue として報告されます。
// フィールドが1つも無いトリガーは「未設定」として黙って無効になります。
func FromMap(raw map[string]any) (*Settings, []Issue) {
	r := &reader{raw: raw}

	s := &Settings{
		Symbol:         r.optText("symbol", "btcusdt"),
		CoinbaseSymbol: r.optText("coinbaseSymbol", "BTC-USD"),
		Sources:        make(map[market.Source]*SourceTriggers, len(market.Sources)),
	}
	if active, ok := r.boolean("isActive"); ok {
		s.Active = active
	}

	for _, src := range market.Sources {
		s.Sources[src] = r.source(src)
	}
	return s, r.issues
}

func (r *reader) source(src market.Source) *SourceTriggers {
	st := &SourceTriggers{
		Source: src,
		Ranges: make(map[market.Side][]RangeTrigger, 2),
	}
	prefix := string(src)

	for _, side := range []market.Side{market.SIDE_BUY, market.SIDE_SELL} {
		for _, strength := range Strengths {
			name := prefix + capitalize(string(side)) + string(strength)
			if !r.configured(name, "Min", "Max", "Key") {
				continue
			}
			band, ok1 := r.band(name)
			key, ok2 := r.key(name + "Key")
			if ok1 && ok2 {
				st.Ranges[side] = append(st.Ranges[side], RangeTrigger{
					Name: name, Side: side, Strength: strength, Band: band, Key: key,
				})
			}
		}
	}

	for slot := 1; slot <= SpecialSlots; slot++ {
		name := fmt.Sprintf("%sSpecial%d", prefix, slot)
		if !r.configured(name, "Min", "Max", "Signal", "Command") {
			continue
		}
		band, ok1 := r.band(name)
		signal, ok2 := r.side(name + "Signal")
		text, ok3 := r.text(name + "Command")
		if !(ok1 && ok2 && ok3) {
			continue
		}
		sp := SpecialTrigger{Name: name, Slot: slot, Band: band, Signal: signal, Text: text}
		sp.Command, sp.Dropped, sp.ParseErr = command.Parse(text)
		st.Specials = append(st.Specials, sp)
	}

	for _, dir := range Directions {
		name := prefix + string(dir)
		if !r.configured(name, "Min", "Max", "Signal", "Key") {
			continue
		}
		band, ok1 := r.band(name)
		signal, ok2 := r.side(name + "Signal")
		key, ok3 := r.key(name + "Key")
		hold, ok4 := r.millis(name+"HoldMs", DefaultMovementHold)
		if ok1 && ok2 && ok3 && ok4 {
			st.Movements = append(st.Movements, MovementTrigger{
				Name: name, Direction: dir, Band: band, Signal: signal, Key: key, Hold: hold,
			})
		}
	}

	if p, ok := r.periodic(prefix, PERIODIC_JUMP); ok {
		st.Periodics = append(st.Periodics, p)
	}
	if p, ok := r.periodic(prefix, PERIODIC_CROUCH); ok {
		st.Periodics = append(st.Periodics, p)
	}
	return st
}

func (r *reader) periodic(prefix string, kind PeriodicKind) (PeriodicTrigger, bool) {
	name := prefix + string(kind)
	if !r.configured(name, "Min", "Max", "Signal", "Key", "Delay") {
		return PeriodicTrigger{}, false
	}
	band, ok1 := r.band(name)
	signal, ok2 := r.side(name + "Signal")
	key, ok3 := r.key(name + "Key")
	delay, ok4 := r.seconds(name + "Delay")
	if !(ok1 && ok2 && ok3 && ok4) {
		return PeriodicTrigger{}, false
	}
	p := PeriodicTrigger{Name: name, Kind: kind, Band: band, Signal: signal, Key: key, Delay: delay}

	switch kind {
	case PERIODIC_JUMP:
		variants := []JumpVariant{{
			Name:    "neutral",
			Weight:  r.weight(name + "NeutralWeight"),
			Command: command.Single{Key: key},
		}}
		if left, ok := r.optKey(name + "LeftKey"); ok {
			variants = append(variants, JumpVariant{
				Name:    "left",
				Weight:  r.weight(name + "LeftWeight"),
				Command: command.Simultaneous{Keys: []command.Key{left, key}},
			})
		}
		if right, ok := r.optKey(name + "RightKey"); ok {
			variants = append(variants, JumpVariant{
				Name:    "right",
				Weight:  r.weight(name + "RightWeight"),
				Command: command.Simultaneous{Keys: []command.Key{right, key}},
			})
		}
		for _, v := range variants {
			if v.Weight > 0 {
				p.Variants = append(p.Variants, v)
			}
		}
		if len(p.Variants) == 0 {
			r.issue(name+"NeutralWeight", fmt.Errorf("%w: 有効なジャンプ方向がありません", ErrInvalid))
			return PeriodicTrigger{}, false
		}

	case PERIODIC_CROUCH:
		hold, ok := r.millis(name+"HoldMs", DefaultCrouchHold)
		if !ok {
			return PeriodicTrigger{}, false
		}
		p.Hold = hold
	}
	return p, true
}

// reader はフラットな設定の型付き読み出しと Issue の収集を担当します
type reader struct {
	raw    map[string]any
	issues []Issue
}

func (r *reader) issue(field string, err error) {
	r.issues = append(r.issues, Issue{Field: field, Err: err})
}

func (r *reader) lookup(field string) (any, bool) {
	v, ok := r.raw[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// configured は name の中核フィールドが1つでも存在するかを返します
func (r *reader) configured(name string, fields ...string) bool {
	for _, f := range fields {
		if _, ok := r.lookup(name + f); ok {
			return true
		}
	}
	return false
}

func (r *reader) decimal(field string) (decimal.Decimal, bool) {
	v, ok := r.lookup(field)
	if !ok {
		r.issue(field, ErrMissing)
		return decimal.Decimal{}, false
	}
	d, err := toDecimal(v)
	if err != nil {
		r.issue(field, fmt.Errorf("%w: %v", ErrInvalid, err))
		return decimal.Decimal{}, false
	}
	return d, true
}

func (r *reader) band(name string) (Band, bool) {
	min, ok1 := r.decimal(name + "Min")
	max, ok2 := r.decimal(name + "Max")
	if !(ok1 && ok2) {
		return Band{}, false
	}
	if min.GreaterThan(max) {
		r.issue(name+"Min", fmt.Errorf("%w: min %s > max %s", ErrInvalid, min, max))
		return Band{}, false
	}
	return Band{Min: min, Max: max}, true
}

func (r *reader) text(field string) (string, bool) {
	v, ok := r.lookup(field)
	if !ok {
		r.issue(field, ErrMissing)
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		r.issue(field, fmt.Errorf("%w: 文字列ではありません (%T)", ErrInvalid, v))
		return "", false
	}
	return s, true
}

func (r *reader) optText(field, def string) string {
	v, ok := r.lookup(field)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func (r *reader) key(field string) (command.Key, bool) {
	s, ok := r.text(field)
	if !ok {
		return 0, false
	}
	k, ok := command.ParseKey(strings.ToLower(strings.TrimSpace(s)))
	if !ok {
		r.issue(field, fmt.Errorf("%w: %w %q", ErrInvalid, command.ErrUnknownKey, s))
		return 0, false
	}
	return k, true
}

// optKey は任意項目のキーです。空文字・欠落は「なし」として扱います。
func (r *reader) optKey(field string) (command.Key, bool) {
	v, ok := r.lookup(field)
	if !ok {
		return 0, false
	}
	if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
		return 0, false
	}
	return r.key(field)
}

func (r *reader) side(field string) (market.Side, bool) {
	s, ok := r.text(field)
	if !ok {
		return "", false
	}
	side, err := market.ParseSide(s)
	if err != nil {
		r.issue(field, fmt.Errorf("%w: %v", ErrInvalid, err))
		return "", false
	}
	return side, true
}

func (r *reader) boolean(field string) (bool, bool) {
	v, ok := r.lookup(field)
	if !ok {
		r.issue(field, ErrMissing)
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err == nil {
			return parsed, true
		}
	}
	r.issue(field, fmt.Errorf("%w: 真偽値ではありません (%v)", ErrInvalid, v))
	return false, false
}

// millis は任意項目のミリ秒です。欠落時は def を使います。
func (r *reader) millis(field string, def time.Duration) (time.Duration, bool) {
	if _, ok := r.lookup(field); !ok {
		return def, true
	}
	return r.duration(field, time.Millisecond, MaxHold)
}

func (r *reader) seconds(field string) (time.Duration, bool) {
	return r.duration(field, time.Second, MaxDelay)
}

// duration は unit 単位の数値を読み、0 以上 max 以下でなければ不正とします。
// 範囲の判定は変換前に行う（int64 の桁あふれで負になるのを防ぐ）。
func (r *reader) duration(field string, unit, max time.Duration) (time.Duration, bool) {
	d, ok := r.decimal(field)
	if !ok {
		return 0, false
	}
	if d.IsNegative() {
		r.issue(field, fmt.Errorf("%w: 負の時間です", ErrInvalid))
		return 0, false
	}
	ns := d.Mul(decimal.NewFromInt(int64(unit)))
	if ns.GreaterThan(decimal.NewFromInt(int64(max))) {
		r.issue(field, fmt.Errorf("%w: %s は上限 %s を超えています", ErrInvalid, d, max))
		return 0, false
	}
	return time.Duration(ns.IntPart()), true
}

// weight は任意項目の重みです。欠落時は 1、不正値は 0（その方向は無効）になります。
func (r *reader) weight(field string) float64 {
	if _, ok := r.lookup(field); !ok {
		return 1
	}
	d, ok := r.decimal(field)
	if !ok {
		return 0
	}
	return d.InexactFloat64()
}

// toDecimal はJSON数値・数値文字列（ダッシュボードは numeric を文字列で返す）・YAMLの整数を受け付けます
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint64:
		return decimal.NewFromUint64(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	}
	return decimal.Decimal{}, fmt.Errorf("数値ではありません (%T)", v)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
