package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/r-umemoto/mame-bridge/pkg/config"
	"github.com/r-umemoto/mame-bridge/pkg/domain/history"
	"github.com/r-umemoto/mame-bridge/pkg/infra/journal"
)

var historyFlags struct {
	limit   int
	journal string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "直近に発火したアクションの記録を表示する",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.IntVar(&historyFlags.limit, "limit", 20, "表示件数")
	f.StringVar(&historyFlags.journal, "journal", "", "journal DB のパス（省略時は JOURNAL_PATH）")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	path := historyFlags.journal
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
		}
		path = cfg.JournalPath
	}
	if path == "" {
		return fmt.Errorf("journal が指定されていません（--journal または JOURNAL_PATH）")
	}

	js, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer js.Close()

	entries, err := js.Recent(context.Background(), historyFlags.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "記録はまだありません。")
		return nil
	}
	fmt.Fprintln(out, renderHistory(entries))
	return nil
}

func renderHistory(entries []history.Entry) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"time", "source", "side", "qty", "trigger", "command", "outcome", "presses", "elapsed"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	for _, e := range entries {
		w.AppendRow(table.Row{
			e.At.Local().Format("15:04:05.000"),
			e.Source,
			e.Side,
			e.Quantity.String(),
			e.Trigger,
			e.Command,
			e.Outcome,
			e.Presses,
			e.Elapsed,
		})
	}
	return w.Render()
}
