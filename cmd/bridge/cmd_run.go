package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/r-umemoto/mame-bridge/pkg/config"
	"github.com/r-umemoto/mame-bridge/pkg/engine"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "約定の監視とキー入力を開始する（Ctrl+C で停止）",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	// 1. 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
	}
	log := cfg.NewLogger(os.Stderr)
	log.Info("システム起動: 初期化プロセスを開始します。")

	// 2. OSの終了シグナル（Ctrl+C）で全体を安全に停止する
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. エンジンの組み立て
	eng, err := engine.BuildEngine(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("エンジンの構築に失敗しました: %w", err)
	}

	// 4. 実行
	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("システムエラー: %w", err)
	}
	log.Info("システムを安全にシャットダウンしました。")
	return nil
}
