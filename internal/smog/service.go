package smog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Service runs fetches for a session's locations and records the outcome in
// the session's tracker according to the configured join policy.
type Service struct {
	fetcher Fetcher
	labeler Labeler
	policy  JoinPolicy
}

// NewService creates a new Service. labeler may be nil.
func NewService(fetcher Fetcher, labeler Labeler, policy JoinPolicy) *Service {
	if policy == "" {
		policy = JoinAllOrNothing
	}
	return &Service{
		fetcher: fetcher,
		labeler: labeler,
		policy:  policy,
	}
}

// Policy returns the join policy used by Compare.
func (s *Service) Policy() JoinPolicy {
	return s.policy
}

type fetchResult struct {
	sample Sample
	label  string
	err    error
}

// Pending is a fetch whose locations are already marked as loading. Calling
// it performs the network round trips and records the outcome.
type Pending func(ctx context.Context) error

// Compare fetches every location of the session concurrently. The returned
// error joins the individual failures; the tracker already reflects them.
func (s *Service) Compare(ctx context.Context, sess *Session) error {
	pending, err := s.StartCompare(sess)
	if err != nil {
		return err
	}
	return pending(ctx)
}

// StartCompare marks every location as loading and returns the fetch.
func (s *Service) StartCompare(sess *Session) (Pending, error) {
	ids := sess.Input.IDs()
	tickets := make([]Ticket, 0, len(ids))
	coords := make([]Coordinate, 0, len(ids))
	for _, id := range ids {
		coord, _ := sess.Input.Coordinate(id)
		tk, err := sess.Tracker.Begin(id)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, tk)
		coords = append(coords, coord)
	}

	return func(ctx context.Context) error {
		log.Printf("DEBUG: compare for session %s with %d locations (%s)", sess.ID, len(tickets), s.policy)

		results := make([]fetchResult, len(tickets))
		var wg sync.WaitGroup
		for i, tk := range tickets {
			wg.Add(1)
			go func() {
				defer wg.Done()

				r := s.fetch(ctx, coords[i])
				results[i] = r

				if s.policy == JoinIndependent {
					s.settle(sess, tk, r)
				}
			}()
		}
		wg.Wait()

		var errs []error
		for i, r := range results {
			if r.err != nil {
				log.Printf("location %s fetch failed for session %s: %v", tickets[i].ID, sess.ID, r.err)
				errs = append(errs, fmt.Errorf("location %s: %w", tickets[i].ID, r.err))
			}
		}

		if s.policy == JoinAllOrNothing {
			s.join(sess, tickets, results, len(errs) > 0)
		}
		return errors.Join(errs...)
	}, nil
}

// join applies an all-or-nothing batch: one failure hides every result.
func (s *Service) join(sess *Session, tickets []Ticket, results []fetchResult, failed bool) {
	if failed {
		if !sess.Tracker.FailBatch(tickets, MsgBatchFailed) {
			log.Printf("DEBUG: discarding superseded batch for session %s", sess.ID)
		}
		return
	}

	samples := make([]Sample, len(results))
	labels := make([]string, len(results))
	for i, r := range results {
		samples[i] = r.sample
		labels[i] = r.label
	}
	if !sess.Tracker.CommitBatch(tickets, samples, labels) {
		log.Printf("DEBUG: discarding superseded batch for session %s", sess.ID)
	}
}

// FetchOne refreshes a single location, independently of the others.
func (s *Service) FetchOne(ctx context.Context, sess *Session, id LocationID) error {
	pending, err := s.StartFetchOne(sess, id)
	if err != nil {
		return err
	}
	return pending(ctx)
}

// StartFetchOne marks one location as loading and returns its fetch.
// It fails with ErrJoinedFetch under the all-or-nothing policy, where
// locations only ever change together.
func (s *Service) StartFetchOne(sess *Session, id LocationID) (Pending, error) {
	if s.policy == JoinAllOrNothing {
		return nil, ErrJoinedFetch
	}
	coord, ok := sess.Input.Coordinate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocation, id)
	}
	tk, err := sess.Tracker.Begin(id)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		r := s.fetch(ctx, coord)
		s.settle(sess, tk, r)
		return r.err
	}, nil
}

// Variate replaces the held samples with the service's simulated variation.
// Locations without a sample are left alone.
func (s *Service) Variate(ctx context.Context, sess *Session) error {
	pending, err := s.StartVariate(sess)
	if err != nil {
		return err
	}
	return pending(ctx)
}

// StartVariate marks every location holding a sample as loading and returns
// the variation request. It fails with ErrNothingToVary when no location
// holds a sample.
func (s *Service) StartVariate(sess *Session) (Pending, error) {
	tickets, samples, labels := sess.Tracker.BeginHeld()
	if len(tickets) == 0 {
		return nil, ErrNothingToVary
	}

	return func(ctx context.Context) error {
		varied, err := s.fetcher.FetchVariation(ctx, samples)
		if err != nil {
			log.Printf("variation failed for session %s: %v", sess.ID, err)
			if !sess.Tracker.FailBatch(tickets, UserMessage(err)) {
				log.Printf("DEBUG: discarding superseded variation failure for session %s", sess.ID)
			}
			return err
		}

		if !sess.Tracker.CommitBatch(tickets, varied, labels) {
			log.Printf("DEBUG: discarding superseded variation for session %s", sess.ID)
		}
		return nil
	}, nil
}

func (s *Service) fetch(ctx context.Context, coord Coordinate) fetchResult {
	sample, err := s.fetcher.FetchSample(ctx, coord)
	if err != nil {
		return fetchResult{err: err}
	}
	return fetchResult{sample: sample, label: s.label(ctx, sample)}
}

func (s *Service) label(ctx context.Context, sample Sample) string {
	if s.labeler == nil || sample.Location == nil {
		return ""
	}
	label, err := s.labeler.Label(ctx, *sample.Location)
	if err != nil {
		// Labels are cosmetic; the sample is still shown.
		log.Printf("reverse geocoding failed for %v,%v: %v", sample.Location.Lat, sample.Location.Lng, err)
		return ""
	}
	return label
}

func (s *Service) settle(sess *Session, tk Ticket, r fetchResult) {
	var applied bool
	if r.err != nil {
		applied = sess.Tracker.Reject(tk, UserMessage(r.err))
	} else {
		applied = sess.Tracker.Resolve(tk, r.sample, r.label)
	}
	if !applied {
		log.Printf("DEBUG: dropping stale result for location %s (seq %d) in session %s", tk.ID, tk.Seq, sess.ID)
	}
}
