package metrics

// Observer receives reconciliation engine events. Services depend on this
// interface so tests run without a metrics backend.
type Observer interface {
	RecordSyncSuccess()
	RecordSyncFailure(kind string)
	RecordEscalation()
	RecordStatusUpdate(direction string)
	ObserveSweepDuration(sweep string, seconds float64)
}

type nopObserver struct{}

func (nopObserver) RecordSyncSuccess()                   {}
func (nopObserver) RecordSyncFailure(string)             {}
func (nopObserver) RecordEscalation()                    {}
func (nopObserver) RecordStatusUpdate(string)            {}
func (nopObserver) ObserveSweepDuration(string, float64) {}

// NewNopObserver returns an Observer that discards everything.
func NewNopObserver() Observer {
	return nopObserver{}
}
