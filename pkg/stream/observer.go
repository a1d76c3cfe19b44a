package stream

// Observer receives progress for one turn. Both methods are called on the
// goroutine running Client.Stream, in stream order.
type Observer interface {
	// Snapshot receives the full text accumulated so far after every token.
	// Implementations can simply replace whatever they last rendered.
	Snapshot(text string)

	// Notice receives an inline service error. The stream continues.
	Notice(msg string)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnSnapshot func(text string)
	OnNotice   func(msg string)
}

func (o ObserverFuncs) Snapshot(text string) {
	if o.OnSnapshot != nil {
		o.OnSnapshot(text)
	}
}

func (o ObserverFuncs) Notice(msg string) {
	if o.OnNotice != nil {
		o.OnNotice(msg)
	}
}

type nopObserver struct{}

func (nopObserver) Snapshot(string) {}
func (nopObserver) Notice(string)   {}
