package dashboard

import "time"

// Config はトリガー設定の取得元です。TriggerFile が指定されていればダッシュボードより優先します。
type Config struct {
	URL         string        `envconfig:"DASHBOARD_URL" default:"http://localhost:5000"`
	Refresh     time.Duration `envconfig:"DASHBOARD_REFRESH" default:"5s"`
	Timeout     time.Duration `envconfig:"DASHBOARD_TIMEOUT" default:"5s"`
	TriggerFile string        `envconfig:"TRIGGER_FILE"`
}
