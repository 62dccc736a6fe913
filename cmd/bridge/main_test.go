package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/history"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
	"github.com/r-umemoto/mame-bridge/pkg/infra/journal"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestParseCommand_PrintsTimeline(t *testing.T) {
	out, err := execute(t, "parse", "++f,g,h,x")
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, out)
	}
	for _, want := range []string{"HalfCircleCharge", "press", "release", "Total:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseCommand_ReportsDroppedTokens(t *testing.T) {
	out, err := execute(t, "parse", "a,!,b")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(out, "Dropped: !") {
		t.Errorf("output:\n%s", out)
	}
}

func TestParseCommand_RejectsMalformed(t *testing.T) {
	if _, err := execute(t, "parse", "x@y"); err == nil {
		t.Fatal("parse x@y succeeded")
	}
	if _, err := execute(t, "parse", "++a,b"); err == nil {
		t.Fatal("parse ++a,b succeeded")
	}
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	js, err := journal.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	err = js.Record(context.Background(), history.Entry{
		ID:       "a1",
		At:       time.Now(),
		Source:   market.SOURCE_COINBASE,
		Side:     market.SIDE_SELL,
		Quantity: decimal.RequireFromString("3.5"),
		Family:   "special",
		Trigger:  "coinbaseSpecial1",
		Command:  "++a,d,p",
		Outcome:  history.OUTCOME_EXECUTED,
		Presses:  3,
		Elapsed:  2300 * time.Millisecond,
	})
	js.Close()
	if err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "history", "--journal", path, "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"coinbaseSpecial1", "++a,d,p", "executed", "3.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
