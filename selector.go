package reactor

import "context"

// Loop drives the setup-select, select, handle-select protocol over a
// fixed set of EventSinks (typically one MessageServer and/or one or more
// MessageClients).
type Loop struct {
	selector Selector
	sinks    []EventSink

	inPreSelect  bool
	inPostSelect bool
}

// NewLoop constructs a Loop over sel that drives sinks every iteration.
func NewLoop(sel Selector, sinks ...EventSink) *Loop {
	return &Loop{selector: sel, sinks: sinks}
}

// AddSink registers an additional EventSink to be driven by future
// iterations. It must not be called between Step's setup and handle phases.
func (l *Loop) AddSink(sink EventSink) {
	if l.inPreSelect || l.inPostSelect {
		panic("reactor: AddSink called in the middle of a select iteration")
	}
	l.sinks = append(l.sinks, sink)
}

// Step runs exactly one begin→setup→select→handle→end iteration.
func (l *Loop) Step() error {
	l.selector.BeginSelect()
	l.inPreSelect = true

	pre := l.selector.PreSelectParams()
	for _, sink := range l.sinks {
		sink.SetupSelect(pre)
	}

	if err := l.selector.Select(); err != nil {
		l.inPreSelect = false
		l.selector.EndSelect()
		return err
	}

	l.inPreSelect = false
	l.inPostSelect = true

	post := l.selector.PostSelectParams()
	for _, sink := range l.sinks {
		sink.HandleSelect(post)
	}

	l.inPostSelect = false
	l.selector.EndSelect()
	return nil
}

// Run calls Step repeatedly until ctx is done or Step returns an error.
// ctx cancellation is only observed between iterations: Select itself is
// the one suspension point the reactor core may block on, and
// a Selector implementation is responsible for bounding how long that wait
// can last if it wants Run to notice cancellation promptly.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := l.Step(); err != nil {
			return err
		}
	}
}
