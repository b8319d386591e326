package inkscan

import "testing"

func TestDecideStrategyPerJob(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want Strategy
	}{
		{"clear is full", Clear{}, StrategyFull},
		{"show text is full", ShowText{Text: "hi"}, StrategyFull},
		{"update line is quick", UpdateLine{Line: 0, Text: "hi"}, StrategyQuick},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(it *testing.T) {
			for _, last := range []Strategy{StrategyNone, StrategyFull, StrategyQuick} {
				if got, _ := decide(tt.job, last); got != tt.want {
					it.Errorf("decide(%T, %v) strategy = %v, want %v", tt.job, last, got, tt.want)
				}
			}
		})
	}
}

func TestDecideSyncsAtStrategyBoundary(t *testing.T) {
	// Clear, ShowText, UpdateLine: the base plane is synced exactly once,
	// when the strategy flips from full to quick.
	jobs := []Job{Clear{}, ShowText{Text: "X"}, UpdateLine{Line: 0, Text: "Y"}}

	last := StrategyNone
	var syncs []int
	for i, job := range jobs {
		strategy, sync := decide(job, last)
		if sync {
			syncs = append(syncs, i)
		}
		last = strategy
	}
	if len(syncs) != 1 || syncs[0] != 2 {
		t.Fatalf("expected one sync at the full-to-quick boundary, got syncs at %v", syncs)
	}
}

func TestDecideConsecutiveQuickDoesNotSync(t *testing.T) {
	last := StrategyQuick
	for i := 0; i < 3; i++ {
		strategy, sync := decide(UpdateLine{Line: i, Text: "x"}, last)
		if sync {
			t.Fatalf("consecutive quick refresh %d must not sync", i)
		}
		last = strategy
	}
}

func TestDecideFirstQuickSyncs(t *testing.T) {
	// A quick refresh as the very first job cannot assume a valid base
	// plane.
	if _, sync := decide(UpdateLine{Line: 1, Text: "hi"}, StrategyNone); !sync {
		t.Fatal("first quick refresh must sync the base plane")
	}
}

func TestDecideFullAfterQuickSyncs(t *testing.T) {
	if _, sync := decide(ShowText{Text: "new"}, StrategyQuick); !sync {
		t.Fatal("full refresh after quick must reconcile the base plane")
	}
	if _, sync := decide(Clear{}, StrategyFull); sync {
		t.Fatal("full refresh after full must not sync")
	}
}

func TestStrategyString(t *testing.T) {
	tests := []struct {
		s    Strategy
		want string
	}{
		{StrategyNone, "none"},
		{StrategyFull, "full"},
		{StrategyQuick, "quick"},
		{Strategy(42), "none"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Strategy(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
