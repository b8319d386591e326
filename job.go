package inkscan

// Job is a single screen mutation applied by the coordinator. The variants
// are closed: Clear, ShowText and UpdateLine.
type Job interface {
	isJob()
}

// Clear resets the screen to blank.
type Clear struct{}

// ShowText replaces the whole screen content. Lines are separated by '\n';
// lines beyond the screen's row capacity are dropped.
type ShowText struct {
	Text string
}

// UpdateLine replaces the content of a single text row. Line is bounded by
// the screen's row capacity and validated at submission.
type UpdateLine struct {
	Line int
	Text string
}

func (Clear) isJob()      {}
func (ShowText) isJob()   {}
func (UpdateLine) isJob() {}
