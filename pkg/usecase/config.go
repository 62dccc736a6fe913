package usecase

import (
	"time"

	"github.com/r-umemoto/mame-bridge/pkg/domain/move"
	"github.com/r-umemoto/mame-bridge/pkg/domain/trigger"
)

// Config はブリッジの挙動に関する設定です
type Config struct {
	RangeCooldown    time.Duration `envconfig:"BRIDGE_RANGE_COOLDOWN" default:"200ms"`
	SpecialCooldown  time.Duration `envconfig:"BRIDGE_SPECIAL_COOLDOWN" default:"500ms"`
	MovementCooldown time.Duration `envconfig:"BRIDGE_MOVEMENT_COOLDOWN" default:"500ms"`

	// AcquireWait を過ぎてもデバイスが空かなければアクションは破棄されます
	AcquireWait  time.Duration `envconfig:"BRIDGE_ACQUIRE_WAIT" default:"250ms"`
	ChordStagger time.Duration `envconfig:"BRIDGE_CHORD_STAGGER" default:"0s"`
	QueueSize    int           `envconfig:"BRIDGE_QUEUE_SIZE" default:"100"`
	// Seed が 0 なら起動時刻から生成します
	Seed uint64 `envconfig:"BRIDGE_SEED" default:"0"`
}

func (c Config) Cooldowns() trigger.Cooldowns {
	return trigger.Cooldowns{
		Range:    c.RangeCooldown,
		Special:  c.SpecialCooldown,
		Movement: c.MovementCooldown,
	}
}

func (c Config) Timings() move.Timings {
	t := move.DefaultTimings()
	t.ChordStagger = c.ChordStagger
	return t
}
