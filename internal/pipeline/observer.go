package pipeline

// Observer receives batch progress. BatchStarted is called once before any
// work, ItemFinished once per item in completion order, and BatchFinished
// once with the final summary. All calls happen on the goroutine that called
// Run, so implementations need no locking.
type Observer interface {
	BatchStarted(total int)
	ItemFinished(outcome Outcome)
	BatchFinished(summary Summary)
}

// NopObserver ignores all progress events.
type NopObserver struct{}

func (NopObserver) BatchStarted(int)      {}
func (NopObserver) ItemFinished(Outcome)  {}
func (NopObserver) BatchFinished(Summary) {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) BatchStarted(total int) {
	for _, o := range m {
		o.BatchStarted(total)
	}
}

func (m MultiObserver) ItemFinished(outcome Outcome) {
	for _, o := range m {
		o.ItemFinished(outcome)
	}
}

func (m MultiObserver) BatchFinished(summary Summary) {
	for _, o := range m {
		o.BatchFinished(summary)
	}
}
