package smog

// Session is one user's form input plus the request state of each location.
type Session struct {
	ID      string
	Input   *InputCollector
	Tracker *Tracker
}

// NewSession creates a session tracking the given locations.
func NewSession(id string, ids []LocationID) *Session {
	return &Session{
		ID:      id,
		Input:   NewInputCollector(ids),
		Tracker: NewTracker(ids),
	}
}
