package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/r-umemoto/mame-bridge/pkg/domain/history"
	"github.com/r-umemoto/mame-bridge/pkg/domain/market"
)

func entry(id string, at time.Time, outcome history.Outcome) history.Entry {
	return history.Entry{
		ID:       id,
		At:       at,
		Source:   market.SOURCE_BINANCE,
		Side:     market.SIDE_BUY,
		Quantity: decimal.RequireFromString("12.5"),
		Family:   "range",
		Trigger:  "binanceBuyMed",
		Command:  "c",
		Outcome:  outcome,
		Presses:  1,
		Elapsed:  100 * time.Millisecond,
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	first := entry("a1", t0, history.OUTCOME_EXECUTED)
	second := entry("a2", t0.Add(time.Second), history.OUTCOME_DROPPED)
	second.Detail = "入力デバイスが使用中です"
	second.Presses = 0
	second.Elapsed = 0

	for _, e := range []history.Entry{first, second} {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s): %v", e.ID, err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if diff := cmp.Diff([]history.Entry{second, first}, got); diff != "" {
		t.Errorf("Recent (-want +got):\n%s", diff)
	}

	got, err = s.Recent(ctx, 1)
	if err != nil || len(got) != 1 || got[0].ID != "a2" {
		t.Errorf("Recent(1) = %v, %v", got, err)
	}
}

func TestStore_DuplicateID(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	e := entry("dup", time.Now(), history.OUTCOME_EXECUTED)
	if err := s.Record(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), e); err == nil {
		t.Error("duplicate id accepted")
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Close()

	// 既存のDBを開き直してもスキーマ作成は失敗しない
	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s.Close()
}
