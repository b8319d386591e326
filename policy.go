package inkscan

// Strategy selects how a frame reaches the panel.
type Strategy uint8

const (
	// StrategyNone records that no refresh has been applied yet, or that
	// the last attempt failed and the panel state is unknown.
	StrategyNone Strategy = iota

	// StrategyFull rewrites the whole panel with the flashing waveform.
	StrategyFull

	// StrategyQuick differences against the base plane, fast and
	// low-flicker but prone to ghosting.
	StrategyQuick
)

func (s Strategy) String() string {
	switch s {
	case StrategyFull:
		return "full"
	case StrategyQuick:
		return "quick"
	default:
		return "none"
	}
}

// decide maps a job and the previously applied strategy to the strategy for
// this job, and reports whether the base plane must be synchronized before
// refreshing. A sync happens only at strategy-transition boundaries: quick
// refreshes are valid solely against a base plane primed since the last full
// refresh, so the first quick after anything else syncs, including the very
// first job after startup or a failed refresh. Full refreshes sync when the
// previous job was quick, so that later quick updates never difference
// against content from before the full rewrite.
func decide(job Job, last Strategy) (strategy Strategy, sync bool) {
	switch job.(type) {
	case UpdateLine:
		return StrategyQuick, last != StrategyQuick
	default:
		return StrategyFull, last == StrategyQuick
	}
}
