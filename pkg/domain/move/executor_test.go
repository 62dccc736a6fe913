package move_test

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/r-umemoto/mame-bridge/pkg/domain/command"
	"github.com/r-umemoto/mame-bridge/pkg/domain/move"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecutor(tl *move.Timeline, timings move.Timings) *move.Executor {
	return move.NewExecutor(tl, tl, timings, discardLogger())
}

// trace は "経過ms 押下(+)/解放(-)キー" 形式に整形します
func trace(trs []move.Transition) []string {
	out := make([]string, len(trs))
	for i, tr := range trs {
		sign := "-"
		if tr.Pressed {
			sign = "+"
		}
		out[i] = fmt.Sprintf("%d %s%s", tr.At.Milliseconds(), sign, tr.Key)
	}
	return out
}

func keys(s string) []command.Key {
	out := make([]command.Key, len(s))
	for i := range s {
		out[i] = command.Key(s[i])
	}
	return out
}

func TestExecute_Timelines(t *testing.T) {
	legacy := move.DefaultTimings()
	legacy.ChordStagger = 30 * time.Millisecond

	tests := []struct {
		name    string
		cmd     command.Command
		timings move.Timings
		want    []string
	}{
		{
			name: "single",
			cmd:  command.Single{Key: 'x'},
			want: []string{"0 +x", "100 -x"},
		},
		{
			name: "rapid repeat",
			cmd:  command.RapidRepeat{Key: 'x', Count: 3},
			want: []string{"0 +x", "33 -x", "50 +x", "83 -x", "100 +x", "133 -x"},
		},
		{
			name: "sequential single key",
			cmd:  command.Sequential{Keys: keys("g")},
			want: []string{"0 +g", "67 -g"},
		},
		{
			name: "sequential pair",
			cmd:  command.Sequential{Keys: keys("gx")},
			want: []string{"0 +g", "33 +x", "66 -g", "83 -x"},
		},
		{
			name: "sequential motion",
			cmd:  command.Sequential{Keys: keys("ghx")},
			want: []string{"0 +g", "33 -g", "33 +h", "66 +x", "99 -h", "116 -x"},
		},
		{
			name: "sequential repeated key",
			cmd:  command.Sequential{Keys: keys("hghx")},
			want: []string{"0 +h", "33 -h", "33 +g", "66 -g", "66 +h", "99 +x", "132 -h", "149 -x"},
		},
		{
			name: "simultaneous",
			cmd:  command.Simultaneous{Keys: keys("abc")},
			want: []string{"0 +a", "0 +b", "0 +c", "100 -c", "130 -b", "160 -a"},
		},
		{
			name:    "simultaneous legacy stagger",
			cmd:     command.Simultaneous{Keys: keys("abc")},
			timings: legacy,
			want:    []string{"0 +a", "30 +b", "60 +c", "160 -c", "190 -b", "220 -a"},
		},
		{
			name: "charge",
			cmd:  command.Charge{ChargeKey: 'f', DirectionKey: 'g', AttackKeys: keys("x")},
			want: []string{"0 +f", "2000 +g", "2050 -f", "2083 +x", "2183 -x", "2200 -g"},
		},
		{
			name: "charge with two attacks",
			cmd:  command.Charge{ChargeKey: 'f', DirectionKey: 'g', AttackKeys: keys("xy")},
			want: []string{"0 +f", "2000 +g", "2050 -f", "2083 +x", "2116 +y", "2216 -y", "2233 -x", "2250 -g"},
		},
		{
			name: "half circle charge",
			cmd:  command.HalfCircleCharge{ChargeKey: 'f', DirectionKeys: keys("gh"), AttackKey: 'x'},
			want: []string{"0 +f", "2000 +g", "2050 -f", "2083 +h", "2133 -g", "2166 +x", "2266 -x", "2266 -h"},
		},
		{
			name: "hold",
			cmd:  command.Hold{Key: 'k', Duration: 500 * time.Millisecond},
			want: []string{"0 +k", "500 -k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timings := tt.timings
			if timings == (move.Timings{}) {
				timings = move.DefaultTimings()
			}
			tl := move.NewTimeline()
			res := newExecutor(tl, timings).Execute(tt.cmd)

			if diff := cmp.Diff(tt.want, trace(res.Transitions)); diff != "" {
				t.Errorf("timeline mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(trace(res.Transitions), trace(tl.Transitions())); diff != "" {
				t.Errorf("result and actuator disagree (-result +actuator):\n%s", diff)
			}
			if !res.OK() {
				t.Errorf("OK() = false, want true")
			}
			assertBalanced(t, res.Transitions)
		})
	}
}

// 半回転溜めは命令順そのものが受付条件なので呼び出し列を厳密に確認する
func TestExecute_HalfCircleChargeCallOrder(t *testing.T) {
	cmd, _, err := command.Parse("++f,g,h,x")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := command.HalfCircleCharge{ChargeKey: 'f', DirectionKeys: keys("gh"), AttackKey: 'x'}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
	}

	tl := move.NewTimeline()
	newExecutor(tl, move.DefaultTimings()).Execute(cmd)

	var got []string
	for _, tr := range tl.Transitions() {
		verb := "release"
		if tr.Pressed {
			verb = "press"
		}
		got = append(got, verb+" "+tr.Key.String())
	}
	wantCalls := []string{
		"press f", "press g", "release f",
		"press h", "release g",
		"press x", "release x", "release h",
	}
	if diff := cmp.Diff(wantCalls, got); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_RapidRepeatPairs(t *testing.T) {
	for n := 1; n <= 12; n++ {
		tl := move.NewTimeline()
		res := newExecutor(tl, move.DefaultTimings()).Execute(command.RapidRepeat{Key: 'z', Count: n})

		presses, releases := 0, 0
		for _, tr := range res.Transitions {
			if tr.Pressed {
				presses++
			} else {
				releases++
			}
		}
		if presses != n || releases != n {
			t.Errorf("n=%d: presses=%d releases=%d", n, presses, releases)
		}
		if want := time.Duration(n) * 50 * time.Millisecond; res.Elapsed != want {
			t.Errorf("n=%d: elapsed = %v, want %v", n, res.Elapsed, want)
		}
	}
}

func TestExecute_SequentialReleaseOrdering(t *testing.T) {
	for _, seq := range []string{"gx", "ghx", "abcdx", "qwertyu"} {
		t.Run(seq, func(t *testing.T) {
			ks := keys(seq)
			tl := move.NewTimeline()
			res := newExecutor(tl, move.DefaultTimings()).Execute(command.Sequential{Keys: ks})

			trs := res.Transitions
			last := trs[len(trs)-1]
			if last.Pressed || last.Key != ks[len(ks)-1] {
				t.Fatalf("final transition = %+v, want release of %s", last, ks[len(ks)-1])
			}

			secondToLast := ks[len(ks)-2]
			n := 0
			for _, tr := range trs[:len(trs)-1] {
				if !tr.Pressed && tr.Key == secondToLast {
					n++
				}
			}
			if n != 1 {
				t.Errorf("releases of %s before final release = %d, want 1", secondToLast, n)
			}
			assertBalanced(t, trs)
		})
	}
}

func TestExecute_ReleasesAfterActuationFailure(t *testing.T) {
	tl := move.NewTimeline()
	tl.Fail = func(key command.Key, pressed bool) error {
		if key == 'g' && pressed {
			return errors.New("SendInput returned 0")
		}
		return nil
	}

	res := newExecutor(tl, move.DefaultTimings()).Execute(command.Charge{ChargeKey: 'f', DirectionKey: 'g', AttackKeys: keys("x")})

	if res.OK() {
		t.Fatal("OK() = true, want false after failed press")
	}
	if res.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", res.Failures())
	}
	for _, tr := range res.Transitions {
		if tr.Err != nil && !errors.Is(tr.Err, move.ErrActuation) {
			t.Errorf("transition error %v does not wrap ErrActuation", tr.Err)
		}
	}
	assertBalanced(t, tl.Transitions())
}

func TestExecute_RecoversPanickingActuator(t *testing.T) {
	tl := move.NewTimeline()
	tl.Fail = func(key command.Key, pressed bool) error {
		if key == 'h' && pressed {
			panic("device unplugged")
		}
		return nil
	}

	res := newExecutor(tl, move.DefaultTimings()).Execute(command.Sequential{Keys: keys("ghx")})

	if res.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", res.Failures())
	}
	assertBalanced(t, res.Transitions)
}

type unknownCommand struct{ command.Single }

func TestExecute_UnsupportedCommand(t *testing.T) {
	tl := move.NewTimeline()
	res := newExecutor(tl, move.DefaultTimings()).Execute(unknownCommand{})
	if res.Err == nil {
		t.Fatal("Err = nil, want error for unsupported command")
	}
	if len(tl.Transitions()) != 0 {
		t.Errorf("actuator called %d times, want 0", len(tl.Transitions()))
	}
}

// assertBalanced はすべての押下に対応する解放があることを確認します
func assertBalanced(t *testing.T, trs []move.Transition) {
	t.Helper()
	held := map[command.Key]int{}
	for _, tr := range trs {
		if tr.Pressed {
			held[tr.Key]++
		} else {
			held[tr.Key]--
		}
		if held[tr.Key] < 0 {
			t.Errorf("key %s released more often than pressed", tr.Key)
		}
	}
	for k, n := range held {
		if n != 0 {
			t.Errorf("key %s left with %d unmatched presses", k, n)
		}
	}
}
