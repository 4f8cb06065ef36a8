package smog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher answers from in-memory tables keyed by the typed latitude.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     int
	failures  map[string]error
	gates     map[string]chan struct{}
	variation func([]Sample) ([]Sample, error)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		failures: map[string]error{},
		gates:    map[string]chan struct{}{},
	}
}

func (f *fakeFetcher) FetchSample(ctx context.Context, coord Coordinate) (Sample, error) {
	loc, err := ParseCoordinate(coord)
	if err != nil {
		return Sample{}, err
	}

	f.mu.Lock()
	f.calls++
	gate := f.gates[coord.Lat]
	failure := f.failures[coord.Lat]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Sample{}, NetworkError("", ctx.Err())
		}
	}
	if failure != nil {
		return Sample{}, failure
	}
	return sampleAt(float64(loc.Lat), float64(loc.Lng), float64(loc.Lat)), nil
}

func (f *fakeFetcher) FetchVariation(_ context.Context, samples []Sample) ([]Sample, error) {
	if f.variation != nil {
		return f.variation(samples)
	}
	out := make([]Sample, len(samples))
	for i, s := range samples {
		out[i] = s
		out[i].SmogLevel = ptr(s.Smog() * 2)
	}
	return out, nil
}

func (f *fakeFetcher) gate(lat string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[lat] = ch
	return ch
}

type fakeLabeler struct{ err error }

func (l fakeLabeler) Label(_ context.Context, loc Location) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return "place", nil
}

func newTestSession(t *testing.T, coords ...Coordinate) *Session {
	t.Helper()
	sess := NewSession("test", LocationIDs(len(coords)))
	for i, c := range coords {
		id := LocationIDs(len(coords))[i]
		require.NoError(t, sess.Input.SetField(id, AxisLat, c.Lat))
		require.NoError(t, sess.Input.SetField(id, AxisLng, c.Lng))
	}
	return sess
}

func state(t *testing.T, sess *Session, id LocationID) RequestState {
	t.Helper()
	st, ok := sess.Tracker.State(id)
	require.True(t, ok)
	return st
}

func TestCompare_AllOrNothingSuccess(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := NewService(fetcher, fakeLabeler{}, JoinAllOrNothing)
	sess := newTestSession(t, Coordinate{"2", "10"}, Coordinate{"8", "20"})

	require.NoError(t, svc.Compare(context.Background(), sess))

	for _, id := range sess.Tracker.IDs() {
		st := state(t, sess, id)
		assert.Equal(t, StatusSuccess, st.Status)
		assert.Equal(t, "place", st.Label)
	}
	points := sess.Tracker.Points()
	require.Len(t, points, 2)
	assert.Equal(t, 0.25, points[0].Intensity)
	assert.Equal(t, 1.0, points[1].Intensity)
}

func TestCompare_InvalidInputNeverReachesNetwork(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := NewService(fetcher, nil, JoinAllOrNothing)
	sess := newTestSession(t, Coordinate{"abc", "10"}, Coordinate{"8", "20"})

	err := svc.Compare(context.Background(), sess)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 1, fetcher.calls, "only the valid location is fetched")
}

func TestCompare_AllOrNothingOneFailureHidesEverything(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failures["8"] = NetworkError("Invalid coordinates", nil)
	svc := NewService(fetcher, nil, JoinAllOrNothing)
	sess := newTestSession(t, Coordinate{"2", "10"}, Coordinate{"8", "20"})

	err := svc.Compare(context.Background(), sess)
	require.Error(t, err)

	for _, id := range sess.Tracker.IDs() {
		st := state(t, sess, id)
		assert.Equal(t, StatusError, st.Status)
		assert.Equal(t, MsgBatchFailed, st.Error)
		assert.Nil(t, st.Sample)
	}
	assert.Empty(t, sess.Tracker.Points())
}

func TestCompare_IndependentFailuresAreLocal(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failures["8"] = NetworkError("Invalid coordinates", nil)
	svc := NewService(fetcher, nil, JoinIndependent)
	sess := newTestSession(t, Coordinate{"2", "10"}, Coordinate{"8", "20"})

	err := svc.Compare(context.Background(), sess)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	first := state(t, sess, "1")
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Empty(t, first.Error)

	second := state(t, sess, "2")
	assert.Equal(t, StatusError, second.Status)
	assert.Equal(t, "Invalid coordinates", second.Error)
}

func TestStartCompare_MarksLoadingBeforeFetching(t *testing.T) {
	fetcher := newFakeFetcher()
	release := fetcher.gate("2")
	svc := NewService(fetcher, nil, JoinIndependent)
	sess := newTestSession(t, Coordinate{"2", "10"})

	pending, err := svc.StartCompare(sess)
	require.NoError(t, err)
	assert.Equal(t, StatusLoading, state(t, sess, "1").Status)

	done := make(chan error, 1)
	go func() { done <- pending(context.Background()) }()
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StatusSuccess, state(t, sess, "1").Status)
}

func TestFetchOne_LatestRequestWins(t *testing.T) {
	fetcher := newFakeFetcher()
	slow := fetcher.gate("1")
	svc := NewService(fetcher, nil, JoinIndependent)
	sess := newTestSession(t, Coordinate{"1", "10"})

	first, err := svc.StartFetchOne(sess, "1")
	require.NoError(t, err)

	require.NoError(t, sess.Input.SetField("1", AxisLat, "5"))
	second, err := svc.StartFetchOne(sess, "1")
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() { firstDone <- first(context.Background()) }()

	require.NoError(t, second(context.Background()))
	close(slow)
	require.NoError(t, <-firstDone)

	st := state(t, sess, "1")
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Equal(t, 5.0, st.Sample.Smog(), "the older response must not overwrite the newer one")
}

func TestFetchOne_LeavesOtherLocationsAlone(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := NewService(fetcher, nil, JoinIndependent)
	sess := newTestSession(t, Coordinate{"1", "10"}, Coordinate{"x", "y"})

	require.NoError(t, svc.FetchOne(context.Background(), sess, "1"))
	assert.Equal(t, StatusSuccess, state(t, sess, "1").Status)
	assert.Equal(t, StatusIdle, state(t, sess, "2").Status)

	err := svc.FetchOne(context.Background(), sess, "3")
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestFetchOne_LabelFailureStillShowsSample(t *testing.T) {
	svc := NewService(newFakeFetcher(), fakeLabeler{err: errors.New("quota")}, JoinIndependent)
	sess := newTestSession(t, Coordinate{"1", "10"})

	require.NoError(t, svc.FetchOne(context.Background(), sess, "1"))
	st := state(t, sess, "1")
	assert.Equal(t, StatusSuccess, st.Status)
	assert.Empty(t, st.Label)
}

func TestVariate_ReplacesHeldSamples(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := NewService(fetcher, fakeLabeler{}, JoinAllOrNothing)
	sess := newTestSession(t, Coordinate{"2", "10"}, Coordinate{"3", "20"})

	_, err := svc.StartVariate(sess)
	assert.ErrorIs(t, err, ErrNothingToVary)

	require.NoError(t, svc.Compare(context.Background(), sess))
	require.NoError(t, svc.Variate(context.Background(), sess))

	first := state(t, sess, "1")
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Equal(t, 4.0, first.Sample.Smog())
	assert.Equal(t, "place", first.Label, "labels survive a variation")
	assert.Equal(t, 6.0, state(t, sess, "2").Sample.Smog())
}

func TestVariate_FailureKeepsPreviousSamples(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.variation = func([]Sample) ([]Sample, error) {
		return nil, NetworkError("", nil)
	}
	svc := NewService(fetcher, nil, JoinAllOrNothing)
	sess := newTestSession(t, Coordinate{"2", "10"})

	require.NoError(t, svc.Compare(context.Background(), sess))
	require.Error(t, svc.Variate(context.Background(), sess))

	st := state(t, sess, "1")
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, MsgFetchFailed, st.Error)
	require.NotNil(t, st.Sample)
	assert.Equal(t, 2.0, st.Sample.Smog())
}

func TestNewService_DefaultsToAllOrNothing(t *testing.T) {
	svc := NewService(newFakeFetcher(), nil, "")
	assert.Equal(t, JoinAllOrNothing, svc.Policy())
}

func TestFetchOne_RejectedUnderAllOrNothing(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := NewService(fetcher, nil, JoinAllOrNothing)
	sess := newTestSession(t, Coordinate{"1", "10"}, Coordinate{"2", "20"})

	_, err := svc.StartFetchOne(sess, "1")
	assert.ErrorIs(t, err, ErrJoinedFetch)
	assert.Equal(t, StatusIdle, state(t, sess, "1").Status)
	assert.Zero(t, fetcher.calls)
}

func TestVariate_SupersededFailureLeavesNewerFetchAlone(t *testing.T) {
	fetcher := newFakeFetcher()
	svc := NewService(fetcher, nil, JoinIndependent)
	sess := newTestSession(t, Coordinate{"2", "10"}, Coordinate{"3", "20"})
	require.NoError(t, svc.Compare(context.Background(), sess))

	var newer Ticket
	fetcher.variation = func([]Sample) ([]Sample, error) {
		// Location 2 is refetched while the variation is in flight.
		tk, err := sess.Tracker.Begin("2")
		require.NoError(t, err)
		newer = tk
		return nil, NetworkError("", nil)
	}
	require.Error(t, svc.Variate(context.Background(), sess))

	first := state(t, sess, "1")
	assert.Equal(t, StatusSuccess, first.Status, "a superseded batch writes no error")
	assert.Empty(t, first.Error)
	assert.Equal(t, StatusLoading, state(t, sess, "2").Status)
	assert.True(t, sess.Tracker.Resolve(newer, sampleAt(3, 20, 7), ""))
}
