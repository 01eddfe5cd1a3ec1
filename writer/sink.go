package writer

import "vnflow/models"

// Sink is an append-only destination for validated ticks. Append is called
// synchronously from the message callback; implementations must be safe for
// use after reconnects but are never called concurrently for one session.
type Sink interface {
	Append(tick models.Tick) error
	Close() error
}

// MultiSink fans every tick out to all underlying sinks. The first error is
// returned but every sink still receives the tick.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines several sinks into one. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Append(tick models.Tick) error {
	var first error
	for _, s := range m.sinks {
		if err := s.Append(tick); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
