package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/smog-density-map/internal/observability"
	"github.com/i474232898/smog-density-map/internal/smog"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("session not found")
)

type entry struct {
	session  *smog.Session
	lastSeen time.Time
}

// MemoryStore is a concurrency-safe in-memory store of presenter sessions.
type MemoryStore struct {
	mu sync.Mutex

	// key: session id
	data map[string]*entry

	locations []smog.LocationID
	clock     clockwork.Clock
	metrics   *observability.Metrics

	// retention configuration
	maxSessions int           // max number of sessions held (0 = unlimited)
	maxAge      time.Duration // idle time after which a session is swept (0 = never)
}

// Options configures a MemoryStore.
type Options struct {
	Locations   int
	MaxSessions int
	MaxAge      time.Duration
	Clock       clockwork.Clock
	Metrics     *observability.Metrics
}

// NewMemoryStore creates a new MemoryStore. Every session it creates tracks
// opts.Locations locations.
func NewMemoryStore(opts Options) *MemoryStore {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	n := opts.Locations
	if n <= 0 {
		n = 2
	}
	return &MemoryStore{
		data:        make(map[string]*entry),
		locations:   smog.LocationIDs(n),
		clock:       clock,
		metrics:     opts.Metrics,
		maxSessions: opts.MaxSessions,
		maxAge:      opts.MaxAge,
	}
}

// Create starts a new session, evicting the least recently used one when the
// store is full.
func (s *MemoryStore) Create() (*smog.Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	sess := smog.NewSession(id.String(), s.locations)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.data) >= s.maxSessions {
		s.evictOldest()
	}
	s.data[sess.ID] = &entry{session: sess, lastSeen: s.clock.Now()}
	s.gauge()
	return sess, nil
}

// Get returns a session and marks it as recently used.
func (s *MemoryStore) Get(id string) (*smog.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = s.clock.Now()
	return e.session, nil
}

// Sweep removes sessions idle for longer than maxAge and returns how many
// were removed.
func (s *MemoryStore) Sweep() int {
	if s.maxAge <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock.Now().Add(-s.maxAge)
	removed := 0
	for id, e := range s.data {
		if e.lastSeen.Before(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	if removed > 0 && s.metrics != nil {
		s.metrics.SessionsEvicted.Add(float64(removed))
	}
	s.gauge()
	return removed
}

// Len returns the number of sessions held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *MemoryStore) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range s.data {
		if oldestID == "" || e.lastSeen.Before(oldest) {
			oldestID = id
			oldest = e.lastSeen
		}
	}
	if oldestID == "" {
		return
	}
	delete(s.data, oldestID)
	if s.metrics != nil {
		s.metrics.SessionsEvicted.Inc()
	}
}

func (s *MemoryStore) gauge() {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(len(s.data)))
	}
}
