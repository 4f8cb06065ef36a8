package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/smog-density-map/internal/smog"
)

type countingStore struct {
	sweeps atomic.Int32
}

func (s *countingStore) Create() (*smog.Session, error) { return nil, nil }
func (s *countingStore) Get(string) (*smog.Session, error) {
	return nil, nil
}
func (s *countingStore) Sweep() int {
	s.sweeps.Add(1)
	return 1
}
func (s *countingStore) Len() int { return 0 }

func TestScheduler_SweepsPeriodically(t *testing.T) {
	st := &countingStore{}
	s := New(st, 50*time.Millisecond)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return st.sweeps.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
