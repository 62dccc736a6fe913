package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/r-umemoto/mame-bridge/pkg/infra/dashboard"
	"github.com/r-umemoto/mame-bridge/pkg/infra/exchange"
	"github.com/r-umemoto/mame-bridge/pkg/infra/keyboard"
	"github.com/r-umemoto/mame-bridge/pkg/usecase"
)

// AppConfig はシステム全体の設定です
type AppConfig struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	// JournalPath が空なら実行記録を残しません
	JournalPath string `envconfig:"JOURNAL_PATH"`

	Dashboard dashboard.Config // ネストされた構造体も、タグに従って自動で読み込まれます
	Exchange  exchange.Config
	Bridge    usecase.Config
	Keyboard  keyboard.Config
}

// Load は環境変数から設定を自動でマッピングして返します
func Load() (*AppConfig, error) {
	// .envファイルがあれば読み込み、OSの環境変数にセットする（無い環境もあるのでエラーは無視）
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewLogger は LOG_LEVEL / LOG_FORMAT に従ったロガーを作ります
func (c *AppConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL が不正です: %q", s)
	}
	return level, nil
}
