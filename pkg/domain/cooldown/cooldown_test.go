package cooldown_test

import (
	"sync"
	"testing"
	"time"

	"github.com/r-umemoto/mame-bridge/pkg/domain/cooldown"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGuard_Window(t *testing.T) {
	for _, window := range []time.Duration{200 * time.Millisecond, 500 * time.Millisecond} {
		deltas := []time.Duration{
			0,
			time.Millisecond,
			window / 2,
			window - time.Millisecond,
			window,
			window + time.Millisecond,
			3 * window,
		}
		for _, delta := range deltas {
			g := cooldown.NewGuard(window)
			if !g.Admit("binanceSpecial1", t0) {
				t.Fatalf("window=%v: first Admit = false", window)
			}
			got := g.Admit("binanceSpecial1", t0.Add(delta))
			if want := delta >= window; got != want {
				t.Errorf("window=%v delta=%v: Admit = %t, want %t", window, delta, got, want)
			}
		}
	}
}

func TestGuard_RejectionDoesNotRecord(t *testing.T) {
	g := cooldown.NewGuard(500 * time.Millisecond)
	g.Admit("slot", t0)

	// 400ms の拒否が記録されていたら 900ms も拒否されてしまう
	if g.Admit("slot", t0.Add(400*time.Millisecond)) {
		t.Fatal("Admit at +400ms = true, want false")
	}
	if !g.Admit("slot", t0.Add(500*time.Millisecond)) {
		t.Error("Admit at +500ms = false, want true")
	}
	if g.Admit("slot", t0.Add(900*time.Millisecond)) {
		t.Error("Admit at +900ms = true, want false (last fire is +500ms)")
	}
}

func TestGuard_NamesAreIndependent(t *testing.T) {
	g := cooldown.NewGuard(500 * time.Millisecond)
	if !g.Admit("binanceBuyWeak", t0) || !g.Admit("binanceBuyMed", t0) {
		t.Fatal("distinct names must not share a window")
	}
	if g.Admit("binanceBuyWeak", t0.Add(100*time.Millisecond)) {
		t.Error("same name inside window admitted")
	}
}

func TestGuard_Concurrent(t *testing.T) {
	g := cooldown.NewGuard(time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Admit("shared", t0) {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if admitted != 1 {
		t.Errorf("admitted = %d, want 1", admitted)
	}
}

func TestPeriodic_FiresOncePerDelay(t *testing.T) {
	p := cooldown.NewPeriodic()
	delay := 2 * time.Second

	steps := []struct {
		at   time.Duration
		held bool
		want bool
	}{
		{0, true, true},
		{500 * time.Millisecond, true, false},
		{1999 * time.Millisecond, true, false},
		{2 * time.Second, true, true},
		{3 * time.Second, true, false},
		{4 * time.Second, true, true},
	}
	for _, st := range steps {
		if got := p.Observe("binanceJump", st.held, delay, t0.Add(st.at)); got != st.want {
			t.Errorf("at %v: Observe = %t, want %t", st.at, got, st.want)
		}
	}
}

func TestPeriodic_ReentryFiresImmediately(t *testing.T) {
	p := cooldown.NewPeriodic()
	delay := 10 * time.Second

	if !p.Observe("coinbaseCrouch", true, delay, t0) {
		t.Fatal("first Observe = false")
	}
	if p.Observe("coinbaseCrouch", true, delay, t0.Add(time.Second)) {
		t.Fatal("Observe inside delay = true")
	}
	if p.Observe("coinbaseCrouch", false, delay, t0.Add(2*time.Second)) {
		t.Fatal("Observe with condition false = true")
	}
	if !p.Observe("coinbaseCrouch", true, delay, t0.Add(3*time.Second)) {
		t.Error("re-entry after gap did not fire immediately")
	}
}

func TestPeriodic_Reset(t *testing.T) {
	p := cooldown.NewPeriodic()
	p.Observe("jump", true, time.Minute, t0)
	p.Reset("jump")
	if !p.Observe("jump", true, time.Minute, t0.Add(time.Second)) {
		t.Error("Observe after Reset = false, want true")
	}
}
