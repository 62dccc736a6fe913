// Package keyboard は move.KeyActuator の実装（OSへのキー送信）です。
package keyboard

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
	"github.com/r-umemoto/mame-bridge/pkg/domain/move"
)

const (
	DRIVER_LOG     = "log"
	DRIVER_XDOTOOL = "xdotool"
)

// Config はキー送信方式の設定です
type Config struct {
	Driver  string        `envconfig:"KEYBOARD_DRIVER" default:"log"`
	Xdotool string        `envconfig:"KEYBOARD_XDOTOOL" default:"xdotool"`
	Timeout time.Duration `envconfig:"KEYBOARD_TIMEOUT" default:"200ms"`
}

// New は設定に応じたアクチュエータを返します
func New(cfg Config, log *slog.Logger) (move.KeyActuator, error) {
	switch cfg.Driver {
	case "", DRIVER_LOG:
		return NewLogActuator(log), nil
	case DRIVER_XDOTOOL:
		path, err := exec.LookPath(cfg.Xdotool)
		if err != nil {
			return nil, fmt.Errorf("xdotool が見つかりません (%s): %w", cfg.Xdotool, err)
		}
		return &XdotoolActuator{Path: path, Timeout: cfg.Timeout}, nil
	}
	return nil, fmt.Errorf("未対応のキーボードドライバです: %s", cfg.Driver)
}

// LogActuator は実際には押さずにログに出すだけのドライランです
type LogActuator struct {
	log *slog.Logger
}

func NewLogActuator(log *slog.Logger) *LogActuator {
	if log == nil {
		log = slog.Default()
	}
	return &LogActuator{log: log.With("component", "keyboard")}
}

func (a *LogActuator) SetKeyState(key command.Key, pressed bool) error {
	if pressed {
		a.log.Debug("⬇️ key down", "key", key.String())
	} else {
		a.log.Debug("⬆️ key up", "key", key.String())
	}
	return nil
}

// XdotoolActuator は X11 上で xdotool keydown/keyup を呼び出します。
// キー操作ごとにプロセスを起動するため 1 回あたり数十 ms かかることがあり、
// 17〜33ms の入力間隔はその分ずれます。タイミングの基準は log ドライバで確認してください。
type XdotoolActuator struct {
	Path    string
	Timeout time.Duration
}

func (a *XdotoolActuator) SetKeyState(key command.Key, pressed bool) error {
	if !key.IsAllowed() {
		return fmt.Errorf("%w: %q", command.ErrUnknownKey, key.String())
	}
	action := "keyup"
	if pressed {
		action = "keydown"
	}

	ctx := context.Background()
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, a.Path, action, key.String()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("xdotool %s %s: %w (%s)", action, key, err, string(out))
	}
	return nil
}
