package downloader

// Observer receives pipeline events. Implementations must be safe for
// concurrent use: events arrive from many goroutines.
type Observer interface {
	// OutputReady is called once after the store has been prepared.
	OutputReady(location string, existed bool)
	// RequestStarted is called before the request for t is sent.
	RequestStarted(t Target)
	// RequestDropped is called for every request removed by the filter stage.
	RequestDropped(d Drop)
	// TransferDone is called once per transfer with its outcome.
	TransferDone(o Outcome)
	// RunFinished is called after every outcome has been collected.
	RunFinished(res *Result)
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (obs Observers) OutputReady(location string, existed bool) {
	for _, o := range obs {
		o.OutputReady(location, existed)
	}
}

func (obs Observers) RequestStarted(t Target) {
	for _, o := range obs {
		o.RequestStarted(t)
	}
}

func (obs Observers) RequestDropped(d Drop) {
	for _, o := range obs {
		o.RequestDropped(d)
	}
}

func (obs Observers) TransferDone(out Outcome) {
	for _, o := range obs {
		o.TransferDone(out)
	}
}

func (obs Observers) RunFinished(res *Result) {
	for _, o := range obs {
		o.RunFinished(res)
	}
}

type nopObserver struct{}

func (nopObserver) OutputReady(string, bool) {}
func (nopObserver) RequestStarted(Target)    {}
func (nopObserver) RequestDropped(Drop)      {}
func (nopObserver) TransferDone(Outcome)     {}
func (nopObserver) RunFinished(*Result)      {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
