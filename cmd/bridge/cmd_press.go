package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/r-umemoto/mame-bridge/pkg/config"
	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
	"github.com/r-umemoto/mame-bridge/pkg/domain/move"
	"github.com/r-umemoto/mame-bridge/pkg/infra/keyboard"
)

var pressFlags struct {
	delay time.Duration
}

var pressCmd = &cobra.Command{
	Use:   "press <command>",
	Short: "カウントダウンの後、コマンドを1回だけ実際に入力する（キーボード疎通確認用）",
	Args:  cobra.ExactArgs(1),
	RunE:  runPress,
}

func init() {
	pressCmd.Flags().DurationVar(&pressFlags.delay, "delay", 3*time.Second, "入力開始までの待ち時間（その間にゲーム画面へ切り替える）")
}

func runPress(cmd *cobra.Command, args []string) error {
	c, dropped, err := command.Parse(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	log := cfg.NewLogger(os.Stderr)
	if len(dropped) > 0 {
		log.Warn("⚠️ 不正なキーを読み捨てました", "dropped", dropped)
	}

	actuator, err := keyboard.New(cfg.Keyboard, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for left := pressFlags.delay; left > 0; left -= time.Second {
		fmt.Fprintf(out, "⏳ %v 後に %s を入力します...\n", left.Round(time.Second), c)
		time.Sleep(min(left, time.Second))
	}

	res := move.NewExecutor(actuator, move.SystemClock{}, cfg.Bridge.Timings(), log).Execute(c)
	fmt.Fprintln(out, renderTransitions(res.Transitions))
	if !res.OK() {
		return fmt.Errorf("%d 件のキー操作が失敗しました: %v", res.Failures(), res.Err)
	}
	fmt.Fprintf(out, "✅ 入力完了 (%v)\n", res.Elapsed)
	return nil
}
