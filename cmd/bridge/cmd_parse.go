package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
	"github.com/r-umemoto/mame-bridge/pkg/domain/move"
	"github.com/r-umemoto/mame-bridge/pkg/usecase"
)

var parseFlags struct {
	stagger time.Duration
}

var parseCmd = &cobra.Command{
	Use:   "parse <command>",
	Short: "コマンド文字列を解析し、押下タイミングを表示する（キーは送らない）",
	Example: `  bridge parse "++f,g,h,x"
  bridge parse "a+b" --stagger 30ms`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().DurationVar(&parseFlags.stagger, "stagger", 0, "同時押しの押下間隔（旧版の挙動は 30ms）")
}

func runParse(cmd *cobra.Command, args []string) error {
	cmdText := args[0]
	c, dropped, err := command.Parse(cmdText)
	if err != nil {
		return err
	}

	if parseFlags.stagger < 0 {
		return fmt.Errorf("--stagger が負です: %v", parseFlags.stagger)
	}
	timings := usecase.Config{ChordStagger: parseFlags.stagger}.Timings()

	// 仮想時計で実行して、実際に送られる操作を記録する
	tl := move.NewTimeline()
	res := move.NewExecutor(tl, tl, timings, discardLogger()).Execute(c)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Command: %s (%T)\n", c, c)
	if len(dropped) > 0 {
		fmt.Fprintf(out, "Dropped: %s\n", strings.Join(dropped, ", "))
	}
	fmt.Fprintln(out, renderTransitions(res.Transitions))
	fmt.Fprintf(out, "Total:   %v\n", res.Elapsed)
	return nil
}

func renderTransitions(trs []move.Transition) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"#", "ms", "key", "action"})
	for i, tr := range trs {
		action := "release"
		if tr.Pressed {
			action = "press"
		}
		w.AppendRow(table.Row{i + 1, tr.At.Milliseconds(), tr.Key.String(), action})
	}
	return w.Render()
}
