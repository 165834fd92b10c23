package weatherstations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTracker(t *testing.T) {
	tr := NewStatusTracker("2024.06")
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	st := tr.Get()
	assert.Equal(t, StateStarting, st.State)
	assert.Equal(t, "2024.06", st.CatalogVersion)
	assert.False(t, st.Healthy(now, time.Hour))

	tr.RecordFailure(now, errors.New("dial tcp: refused"))
	assert.Equal(t, StateFailed, tr.Get().State)

	tr.RecordSuccess(now.Add(time.Minute))
	st = tr.Get()
	assert.Equal(t, StateHealthy, st.State)
	assert.Empty(t, st.LastError)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.True(t, st.Healthy(now.Add(10*time.Minute), 15*time.Minute))
	assert.False(t, st.Healthy(now.Add(time.Hour), 15*time.Minute))

	tr.RecordFailure(now.Add(2*time.Minute), errors.New("timeout"))
	tr.RecordFailure(now.Add(3*time.Minute), nil)
	st = tr.Get()
	assert.Equal(t, StateDegraded, st.State)
	assert.Equal(t, 2, st.ConsecutiveFailures)
	assert.Equal(t, "timeout", st.LastError)
	assert.EqualValues(t, 4, st.TotalPolls)
	assert.EqualValues(t, 3, st.TotalFailures)
}
