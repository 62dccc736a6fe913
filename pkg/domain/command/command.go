// Package command は格闘ゲームの入力を表す小さなコマンド言語です。
//
// 例:
//
//	x          単発
//	xxx        連打（3回）
//	g,h,x      順番入力（波動拳など）
//	a+b        同時押し
//	++f,g,x    溜め技
//	++f,g,h,x  溜め＋半回転
package command

import (
	"strconv"
	"strings"
	"time"
)

// Key は操作対象の1文字キーです（[a-z0-9] のみ）
type Key rune

func (k Key) String() string {
	return string(rune(k))
}

// IsAllowed は許可されたアルファベットに含まれるかを返します
func (k Key) IsAllowed() bool {
	return (k >= 'a' && k <= 'z') || (k >= '0' && k <= '9')
}

// ParseKey は1文字トークンをキーに変換します
func ParseKey(token string) (Key, bool) {
	if len(token) != 1 {
		return 0, false
	}
	k := Key(token[0])
	if !k.IsAllowed() {
		return 0, false
	}
	return k, true
}

// Command はコンパイル済みの入力計画です
type Command interface {
	// String は正規化されたテキスト表現を返します
	String() string
	isCommand()
}

type Single struct {
	Key Key
}

type RapidRepeat struct {
	Key   Key
	Count int
}

type Sequential struct {
	Keys []Key
}

type Simultaneous struct {
	Keys []Key
}

type Charge struct {
	ChargeKey    Key
	DirectionKey Key
	AttackKeys   []Key
}

type HalfCircleCharge struct {
	ChargeKey     Key
	DirectionKeys []Key
	AttackKey     Key
}

// Hold は移動・しゃがみ用の長押しです。Parse からは生成されません。
type Hold struct {
	Key      Key
	Duration time.Duration
}

func (Single) isCommand()           {}
func (RapidRepeat) isCommand()      {}
func (Sequential) isCommand()       {}
func (Simultaneous) isCommand()     {}
func (Charge) isCommand()           {}
func (HalfCircleCharge) isCommand() {}
func (Hold) isCommand()             {}

func (c Single) String() string {
	return c.Key.String()
}

func (c RapidRepeat) String() string {
	return strings.Repeat(c.Key.String(), c.Count)
}

func (c Sequential) String() string {
	return joinKeys(c.Keys, ",")
}

func (c Simultaneous) String() string {
	return joinKeys(c.Keys, "+")
}

func (c Charge) String() string {
	keys := append([]Key{c.ChargeKey, c.DirectionKey}, c.AttackKeys...)
	return "++" + joinKeys(keys, ",")
}

func (c HalfCircleCharge) String() string {
	keys := append([]Key{c.ChargeKey}, c.DirectionKeys...)
	keys = append(keys, c.AttackKey)
	return "++" + joinKeys(keys, ",")
}

func (c Hold) String() string {
	return c.Key.String() + "@" + strconv.FormatInt(c.Duration.Milliseconds(), 10) + "ms"
}

func joinKeys(keys []Key, sep string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, sep)
}
