package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version はビルド時に -ldflags で埋め込みます
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "取引所の約定をゲーム入力（キー操作）に変換するブリッジ",
	Long:  "bridge は Binance / Coinbase の約定ストリームを購読し、\nダッシュボードで設定したトリガーに従ってキー入力を送ります。",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(pressCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
