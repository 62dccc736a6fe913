// Package trigger は約定イベントをトリガー設定と照らし合わせ、実行すべき入力を決めます。
package trigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

// SpecialSlots は取引所ごとの特殊技スロット数です
const SpecialSlots = 3

const (
	DefaultMovementHold = 500 * time.Millisecond
	DefaultCrouchHold   = 1000 * time.Millisecond

	// 押しっぱなしは停止処理の待ち時間に収める（超えるとキーが押されたまま終了する）
	MaxHold = 3 * time.Second

	// MaxDelay を超える周期は設定ミスとして扱う
	MaxDelay = time.Hour
)

var (
	ErrMissing = errors.New("設定がありません")
	ErrInvalid = errors.New("設定値が不正です")
)

// Issue はロード時に無効化されたトリガーの理由です（致命的ではない）
type Issue struct {
	Field string
	Err   error
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %v", i.Field, i.Err)
}

// Band は数量の閉区間 [Min, Max] です
type Band struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func (b Band) Contains(q decimal.Decimal) bool {
	return q.GreaterThanOrEqual(b.Min) && q.LessThanOrEqual(b.Max)
}

type Strength string

const (
	STRENGTH_WEAK   Strength = "Weak"
	STRENGTH_MED    Strength = "Med"
	STRENGTH_STRONG Strength = "Strong"
)

// Strengths は評価の優先順です
var Strengths = []Strength{STRENGTH_WEAK, STRENGTH_MED, STRENGTH_STRONG}

// RangeTrigger は数量が帯域に入ったら1キーを叩くトリガーです
type RangeTrigger struct {
	Name     string
	Side     market.Side
	Strength Strength
	Band     Band
	Key      command.Key
}

// SpecialTrigger はコマンド文字列で表された必殺技のトリガーです
type SpecialTrigger struct {
	Name    string
	Slot    int
	Band    Band
	Signal  market.Side
	Text    string
	Command command.Command
	// ParseErr が nil でなければ、このスロットは一致しても実行されません
	ParseErr error
	Dropped  []string
}

type Direction string

const (
	DIRECTION_FORWARD  Direction = "Forward"
	DIRECTION_BACKWARD Direction = "Backward"
)

var Directions = []Direction{DIRECTION_FORWARD, DIRECTION_BACKWARD}

// MovementTrigger は方向キーを一定時間押し続けるトリガーです
type MovementTrigger struct {
	Name      string
	Direction Direction
	Band      Band
	Signal    market.Side
	Key       command.Key
	Hold      time.Duration
}

type PeriodicKind string

const (
	PERIODIC_JUMP   PeriodicKind = "Jump"
	PERIODIC_CROUCH PeriodicKind = "Crouch"
)

// JumpVariant はジャンプの方向候補です（重み付きで抽選）
type JumpVariant struct {
	Name    string
	Weight  float64
	Command command.Command
}

// PeriodicTrigger は条件が続く間 Delay ごとに発火するトリガーです（ジャンプ・しゃがみ）
type PeriodicTrigger struct {
	Name   string
	Kind   PeriodicKind
	Band   Band
	Signal market.Side
	Key    command.Key
	Delay  time.Duration

	Variants []JumpVariant // Jump のみ
	Hold     time.Duration // Crouch のみ
}

func (p PeriodicTrigger) Holds(ev market.TradeEvent) bool {
	return p.Signal == ev.Side && p.Band.Contains(ev.Quantity)
}

// SourceTriggers は1つの取引所に紐づく全トリガーです
type SourceTriggers struct {
	Source    market.Source
	Ranges    map[market.Side][]RangeTrigger
	Specials  []SpecialTrigger
	Movements []MovementTrigger
	Periodics []PeriodicTrigger // Jump, Crouch の順
}

// Settings はロード時に検証済みの設定スナップショットです（読み取り専用）
type Settings struct {
	Active         bool
	Symbol         string
	CoinbaseSymbol string
	Sources        map[market.Source]*SourceTriggers
}

func (s *Settings) For(source market.Source) *SourceTriggers {
	if s == nil {
		return nil
	}
	return s.Sources[source]
}

// Count は有効なトリガー数を返します（ログ用）
func (s *Settings) Count() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, st := range s.Sources {
		for _, rs := range st.Ranges {
			n += len(rs)
		}
		n += len(st.Specials) + len(st.Movements) + len(st.Periodics)
	}
	return n
}

func periodicName(source market.Source, kind PeriodicKind) string {
	return string(source) + string(kind)
}
