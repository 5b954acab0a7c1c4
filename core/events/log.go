package events

import "sync"

// Log is an append-only, ordered record of emitted events. State-changing
// operations are serialised by the engine, but observers may drain the log
// concurrently, hence the lock.
type Log struct {
	mu      sync.Mutex
	entries []Event
}

// NewLog returns an empty event log.
func NewLog() *Log {
	return &Log{}
}

// Emit appends the event to the log in arrival order.
func (l *Log) Emit(e Event) {
	if l == nil || e == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Events returns a snapshot of the log in emission order.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of events recorded so far.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
