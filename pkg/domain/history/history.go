// Package history は発火したアクションの実行結果の記録形式を定義します。
package history

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

type Outcome string

const (
	OUTCOME_EXECUTED Outcome = "executed"
	OUTCOME_FAILED   Outcome = "failed"  // 一部のキー操作が失敗
	OUTCOME_DROPPED  Outcome = "dropped" // デバイス使用中・停止中で破棄
)

// Entry は1アクションの記録です
type Entry struct {
	ID       string
	At       time.Time
	Source   market.Source
	Side     market.Side
	Quantity decimal.Decimal
	Family   string
	Trigger  string
	Command  string
	Outcome  Outcome
	Presses  int
	Failures int
	Elapsed  time.Duration
	Detail   string
}

// Journal はアクション記録の保存先の規格です
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
