package smog

import (
	"fmt"
	"sync"
)

type trackedLocation struct {
	state  RequestState
	issued uint64
}

// Tracker owns the request state of every location in a session.
// Each fetch is tagged with a per-location sequence number; completions
// carrying anything but the latest number are dropped.
type Tracker struct {
	mu        sync.RWMutex
	ids       []LocationID
	locations map[LocationID]*trackedLocation
}

// NewTracker creates idle state for the given locations.
func NewTracker(ids []LocationID) *Tracker {
	locs := make(map[LocationID]*trackedLocation, len(ids))
	for _, id := range ids {
		locs[id] = &trackedLocation{state: RequestState{Status: StatusIdle}}
	}
	return &Tracker{
		ids:       append([]LocationID(nil), ids...),
		locations: locs,
	}
}

// Begin marks a location as loading and issues a new ticket for it.
// A previously held sample stays visible until the fetch completes.
func (t *Tracker) Begin(id LocationID) (Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	loc, ok := t.locations[id]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	loc.issued++
	loc.state.Status = StatusLoading
	loc.state.Error = ""
	return Ticket{ID: id, Seq: loc.issued}, nil
}

// BeginHeld issues tickets for every location holding a sample and returns
// those samples and labels, all under one lock. Locations without a sample
// are left alone.
func (t *Tracker) BeginHeld() ([]Ticket, []Sample, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		tickets []Ticket
		samples []Sample
		labels  []string
	)
	for _, id := range t.ids {
		loc := t.locations[id]
		if loc.state.Sample == nil {
			continue
		}
		samples = append(samples, *loc.state.Sample)
		labels = append(labels, loc.state.Label)

		loc.issued++
		loc.state.Status = StatusLoading
		loc.state.Error = ""
		tickets = append(tickets, Ticket{ID: id, Seq: loc.issued})
	}
	return tickets, samples, labels
}

// Resolve stores a successful sample. It reports false for stale tickets.
func (t *Tracker) Resolve(tk Ticket, sample Sample, label string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	loc, ok := t.current(tk)
	if !ok {
		return false
	}
	loc.state = RequestState{Status: StatusSuccess, Sample: &sample, Label: label}
	return true
}

// Reject records a failure. The previous sample, if any, is retained.
// It reports false for stale tickets.
func (t *Tracker) Reject(tk Ticket, msg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	loc, ok := t.current(tk)
	if !ok {
		return false
	}
	loc.state.Status = StatusError
	loc.state.Error = msg
	return true
}

// CommitBatch stores samples[i] for tickets[i], but only if every ticket is
// still current. A superseded batch changes no sample; locations it still
// owns leave the loading state.
func (t *Tracker) CommitBatch(tickets []Ticket, samples []Sample, labels []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(tickets) != len(samples) || !t.allCurrent(tickets) {
		t.release(tickets)
		return false
	}
	for i, tk := range tickets {
		s := samples[i]
		var label string
		if i < len(labels) {
			label = labels[i]
		}
		t.locations[tk.ID].state = RequestState{Status: StatusSuccess, Sample: &s, Label: label}
	}
	return true
}

// FailBatch records the same failure message on every ticket's location,
// but only if every ticket is still current. See CommitBatch.
func (t *Tracker) FailBatch(tickets []Ticket, msg string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.allCurrent(tickets) {
		t.release(tickets)
		return false
	}
	for _, tk := range tickets {
		loc := t.locations[tk.ID]
		loc.state.Status = StatusError
		loc.state.Error = msg
	}
	return true
}

// Dismiss blanks a location's error. The location shows its last sample if it
// has one, and returns to idle otherwise. In-flight fetches are unaffected.
func (t *Tracker) Dismiss(id LocationID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	loc, ok := t.locations[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	dismiss(loc)
	return nil
}

// DismissAll blanks the error of every location.
func (t *Tracker) DismissAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, loc := range t.locations {
		dismiss(loc)
	}
}

func dismiss(loc *trackedLocation) {
	if loc.state.Status != StatusError {
		loc.state.Error = ""
		return
	}
	loc.state.Error = ""
	if loc.state.Sample != nil {
		loc.state.Status = StatusSuccess
	} else {
		loc.state.Status = StatusIdle
	}
}

// State returns a copy of a location's state.
func (t *Tracker) State(id LocationID) (RequestState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	loc, ok := t.locations[id]
	if !ok {
		return RequestState{}, false
	}
	return copyState(loc.state), true
}

// IDs returns the tracked location ids in display order.
func (t *Tracker) IDs() []LocationID {
	return append([]LocationID(nil), t.ids...)
}

// Samples returns the held samples in display order, with their ids.
func (t *Tracker) Samples() ([]LocationID, []Sample) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		ids     []LocationID
		samples []Sample
	)
	for _, id := range t.ids {
		if s := t.locations[id].state.Sample; s != nil {
			ids = append(ids, id)
			samples = append(samples, *s)
		}
	}
	return ids, samples
}

// Points normalizes the currently held samples for the heat layer.
func (t *Tracker) Points() []NormalizedPoint {
	_, samples := t.Samples()
	return Normalize(samples)
}

func (t *Tracker) current(tk Ticket) (*trackedLocation, bool) {
	loc, ok := t.locations[tk.ID]
	if !ok || loc.issued != tk.Seq {
		return nil, false
	}
	return loc, true
}

// release settles the locations whose tickets are still current back to
// whatever they showed before the fetch began.
func (t *Tracker) release(tickets []Ticket) {
	for _, tk := range tickets {
		loc, ok := t.current(tk)
		if !ok {
			continue
		}
		if loc.state.Sample != nil {
			loc.state.Status = StatusSuccess
		} else {
			loc.state.Status = StatusIdle
		}
	}
}

func (t *Tracker) allCurrent(tickets []Ticket) bool {
	for _, tk := range tickets {
		if _, ok := t.current(tk); !ok {
			return false
		}
	}
	return true
}

func copyState(s RequestState) RequestState {
	if s.Sample != nil {
		sample := *s.Sample
		s.Sample = &sample
	}
	return s
}
