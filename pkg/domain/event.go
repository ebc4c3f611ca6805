package domain

// Event identifies one event instance.
// Two events with the same Name are the same event for queue removal.
type Event struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	Data string `json:"data,omitempty" yaml:"data,omitempty" mapstructure:"data"`
}

// NewEvent creates a payload-less event.
func NewEvent(name string) Event {
	return Event{Name: name}
}

// SameName reports whether both events carry the same name.
func (e Event) SameName(other Event) bool {
	return e.Name == other.Name
}

func (e Event) String() string {
	if e.Data == "" {
		return e.Name
	}
	return e.Name + "(" + e.Data + ")"
}

// ContainsEvent reports whether events holds an event named like ev.
func ContainsEvent(events []Event, ev Event) bool {
	for _, e := range events {
		if e.SameName(ev) {
			return true
		}
	}
	return false
}

// Location is the position of a logical thread inside its source, as reported by
// the per-line instrumentation.
type Location struct {
	Thread string `json:"thread"`
	Line   int    `json:"line"`
	// Depth is the call depth of the line, used by step over / step out.
	Depth int `json:"depth"`
}

// ThreadInfo describes one logical thread at a sync point.
type ThreadInfo struct {
	Name string `json:"name"`
	// Line is nil for threads that are not backed by a script.
	Line      *int    `json:"line,omitempty"`
	Requested []Event `json:"requested"`
	Blocked   []Event `json:"blocked"`
	WaitFor   []Event `json:"wait_for"`
}

// EventsStatus groups the event tokens of one sync point.
// Order inside every group is insertion order.
type EventsStatus struct {
	Requested []Event `json:"requested"`
	Blocked   []Event `json:"blocked"`
	Waited    []Event `json:"waited"`
	External  []Event `json:"external"`
}

// NewEventsStatus derives the events status of a set of threads and an external queue.
// Requested, blocked and waited events are de-duplicated by name; the external queue is
// kept as is because it may legitimately hold the same event twice.
func NewEventsStatus(threads []ThreadInfo, external []Event) EventsStatus {
	status := EventsStatus{
		Requested: []Event{},
		Blocked:   []Event{},
		Waited:    []Event{},
		External:  append([]Event{}, external...),
	}
	for _, t := range threads {
		status.Requested = appendUnique(status.Requested, t.Requested...)
		status.Blocked = appendUnique(status.Blocked, t.Blocked...)
		status.Waited = appendUnique(status.Waited, t.WaitFor...)
	}
	return status
}

func appendUnique(dst []Event, events ...Event) []Event {
	for _, ev := range events {
		if !ContainsEvent(dst, ev) {
			dst = append(dst, ev)
		}
	}
	return dst
}

// FailedAssertion marks a snapshot that is not state-valid.
type FailedAssertion struct {
	Message string `json:"message"`
	Thread  string `json:"thread,omitempty"`
}

func (f FailedAssertion) String() string {
	if f.Thread == "" {
		return f.Message
	}
	return f.Thread + ": " + f.Message
}
