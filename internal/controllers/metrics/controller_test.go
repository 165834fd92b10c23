package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
)

var fetchedAt = time.Unix(1700000060, 0).UTC()

type fakeSource struct {
	snap   *weatherstations.Snapshot
	status weatherstations.Status
	events chan weatherstations.PollEvent
}

func (f *fakeSource) Snapshot() *weatherstations.Snapshot         { return f.snap }
func (f *fakeSource) Status() weatherstations.Status              { return f.status }
func (f *fakeSource) Subscribe() <-chan weatherstations.PollEvent { return f.events }

func healthySource(t *testing.T) *fakeSource {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "observation", "testdata", "v2_current.json"))
	require.NoError(t, err)
	obs, err := observation.NewNormalizer(nil).Normalize(raw, observation.APIv2, 1)
	require.NoError(t, err)
	return &fakeSource{
		snap: &weatherstations.Snapshot{
			Observation: obs,
			APIVersion:  observation.APIv2,
			PrimaryTxID: 1,
			FetchedAt:   fetchedAt,
		},
		status: weatherstations.Status{
			State:         weatherstations.StateHealthy,
			LastAttempt:   fetchedAt,
			LastSuccess:   fetchedAt,
			TotalPolls:    10,
			TotalFailures: 3,
		},
	}
}

func TestCollectorPollCounters(t *testing.T) {
	c := newStationCollector(healthySource(t), "home")

	expected := `
# HELP wlcloud_polls_total Completed polls by result.
# TYPE wlcloud_polls_total counter
wlcloud_polls_total{result="failure",station="home"} 3
wlcloud_polls_total{result="success",station="home"} 7
# HELP wlcloud_last_success_timestamp Unix time of the last successful poll.
# TYPE wlcloud_last_success_timestamp gauge
wlcloud_last_success_timestamp{station="home"} 1.70000006e+09
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"wlcloud_polls_total", "wlcloud_last_success_timestamp"))
}

func TestCollectorStationState(t *testing.T) {
	src := healthySource(t)
	src.status.State = weatherstations.StateDegraded
	c := newStationCollector(src, "home")

	assert.Equal(t, 4, testutil.CollectAndCount(c, "wlcloud_station_state"))
	expected := `
# HELP wlcloud_station_state 1 for the station's current state, 0 for the others.
# TYPE wlcloud_station_state gauge
wlcloud_station_state{state="degraded",station="home"} 1
wlcloud_station_state{state="failed",station="home"} 0
wlcloud_station_state{state="healthy",station="home"} 0
wlcloud_station_state{state="starting",station="home"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "wlcloud_station_state"))
}

func TestCollectorObservationValues(t *testing.T) {
	src := healthySource(t)
	c := newStationCollector(src, "home")

	numeric := 0
	for _, txID := range src.snap.Observation.TransmitterIDs() {
		bucket, _ := src.snap.Observation.Transmitter(txID)
		for _, f := range bucket.Keys() {
			if _, ok := bucket.Float(f); ok {
				numeric++
			}
		}
	}
	require.NotZero(t, numeric)
	assert.Equal(t, numeric, testutil.CollectAndCount(c, "wlcloud_observation_value"))
}

func TestCollectorBeforeFirstPoll(t *testing.T) {
	c := newStationCollector(&fakeSource{status: weatherstations.Status{State: weatherstations.StateStarting}}, "home")

	assert.Zero(t, testutil.CollectAndCount(c, "wlcloud_observation_value"))
	assert.Zero(t, testutil.CollectAndCount(c, "wlcloud_last_success_timestamp"))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "wlcloud_polls_total"))
}

func TestControllerDefaults(t *testing.T) {
	c, err := NewController(context.Background(), &sync.WaitGroup{}, config.MetricsData{Path: "stats"}, "home",
		healthySource(t), zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9110", c.Server.Addr)
	assert.Equal(t, "/stats", c.path)

	_, err = NewController(context.Background(), &sync.WaitGroup{}, config.MetricsData{}, "home", nil, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestHandlerServesRegistry(t *testing.T) {
	c, err := NewController(context.Background(), &sync.WaitGroup{}, config.MetricsData{}, "home",
		healthySource(t), zap.NewNop().Sugar())
	require.NoError(t, err)

	c.observe(weatherstations.PollEvent{Duration: 300 * time.Millisecond})
	c.observe(weatherstations.PollEvent{Err: errors.New("timeout"), Duration: 10 * time.Second})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `wlcloud_observation_value{field="TEMP_OUT",station="home",tx="1",unit="°F"} 68.5`)
	assert.Contains(t, text, `wlcloud_poll_duration_seconds_count{result="failure",station="home"} 1`)
	assert.Contains(t, text, `wlcloud_poll_duration_seconds_count{result="success",station="home"} 1`)
	assert.Contains(t, text, "go_goroutines")
}

func TestRecordStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := healthySource(t)
	src.events = make(chan weatherstations.PollEvent, 1)
	c, err := NewController(ctx, &sync.WaitGroup{}, config.MetricsData{}, "home", src, zap.NewNop().Sugar())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		c.record(src.events)
		close(done)
	}()
	src.events <- weatherstations.PollEvent{Duration: time.Second}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("record did not return after cancel")
	}
}
