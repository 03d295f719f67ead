package query

import "time"

// State is the freshness of a cache entry.
type State int

const (
	StateStale State = iota
	StateFresh
	StateInFlight
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateStale:
		return "stale"
	case StateFresh:
		return "fresh"
	case StateInFlight:
		return "in-flight"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Entry is a copy of one cache entry, as returned by Client.Peek.
type Entry struct {
	Key       Key
	Value     any
	HasValue  bool
	State     State
	Err       error
	UpdatedAt time.Time
}

// Status is the outcome of a read.
type Status int

const (
	// StatusPending: the actor or the identity is not available yet, nothing
	// was fetched. Never accompanied by an error.
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Result is what a read hands to a view. On StatusError, Data holds the
// last successfully fetched value when HasData is true.
type Result[T any] struct {
	Data      T
	HasData   bool
	Status    Status
	Stale     bool
	UpdatedAt time.Time
}

// Ready reports whether the read produced a value from a successful fetch
// or a fresh cache entry.
func (r Result[T]) Ready() bool { return r.Status == StatusSuccess }

// entry is the mutable cache slot behind a Key. gen is bumped by every
// invalidation; a fetch only marks the entry fresh if gen did not move
// while it ran.
type entry struct {
	value     any
	hasValue  bool
	valueGen  uint64
	gen       uint64
	state     State
	err       error
	updatedAt time.Time
	fetch     fetchFunc
}

func (e *entry) export(k Key) Entry {
	return Entry{Key: k, Value: e.value, HasValue: e.hasValue, State: e.state, Err: e.err, UpdatedAt: e.updatedAt}
}

func resultOf[T any](e Entry, status Status) Result[T] {
	r := Result[T]{Status: status, UpdatedAt: e.UpdatedAt, Stale: e.State != StateFresh}
	if e.HasValue {
		r.Data, _ = e.Value.(T)
		r.HasData = true
	}
	return r
}
