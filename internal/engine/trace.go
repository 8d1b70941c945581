package engine

import "sync"

// EventType names a build trace event.
type EventType string

const (
	EventRuleStarted   EventType = "rule_started"
	EventRulePublished EventType = "rule_published"
	EventRuleFailed    EventType = "rule_failed"
	EventRuleSkipped   EventType = "rule_skipped"
	EventItemFailed    EventType = "item_failed"
	EventItemSkipped   EventType = "item_skipped"
	EventItemCancelled EventType = "item_cancelled"
)

// Event is one entry of the build trace, stamped by the logical clock.
type Event struct {
	Seq    int64     `json:"seq"`
	Type   EventType `json:"type"`
	Rule   string    `json:"rule"`
	Source string    `json:"source,omitempty"`
}

// tracer collects events from concurrently running rules. Seqs are taken
// under the lock, so the slice is always ordered by seq.
type tracer struct {
	mu     sync.Mutex
	clock  *Clock
	events []Event
}

func newTracer(clock *Clock) *tracer {
	return &tracer{clock: clock}
}

func (t *tracer) record(typ EventType, rule, source string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.clock.Next()
	t.events = append(t.events, Event{Seq: seq, Type: typ, Rule: rule, Source: source})
	return seq
}

func (t *tracer) snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}
