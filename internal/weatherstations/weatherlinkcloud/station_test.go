package weatherlinkcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherlink"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mu         sync.Mutex
	current    []byte
	currentErr error
	station    *weatherlink.Station
	stationErr error
	sensors    []observation.SensorDescriptor
	fetches    int
	setupCalls int
}

func (f *fakeAPI) FetchCurrent(ctx context.Context, stationID int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.current, f.currentErr
}

func (f *fakeAPI) Station(ctx context.Context, stationID int) (*weatherlink.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupCalls++
	return f.station, f.stationErr
}

func (f *fakeAPI) Sensors(ctx context.Context) ([]observation.SensorDescriptor, error) {
	return f.sensors, nil
}

func (f *fakeAPI) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentErr = err
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../observation/testdata/" + name)
	require.NoError(t, err)
	return data
}

func newV2Fake(t *testing.T) *fakeAPI {
	var doc struct {
		Sensors []observation.SensorDescriptor `json:"sensors"`
	}
	require.NoError(t, json.Unmarshal(readFixture(t, "v2_sensors.json"), &doc))

	return &fakeAPI{
		current: readFixture(t, "v2_current.json"),
		station: &weatherlink.Station{StationID: 96230, StationName: "Strandvegen", ProductNumber: "6313"},
		sensors: doc.Sensors,
	}
}

func newTestStation(t *testing.T, ctx context.Context, settings Settings, api API) (*Station, *sync.WaitGroup) {
	t.Helper()
	wg := &sync.WaitGroup{}
	if settings.Name == "" {
		settings.Name = "test"
	}
	return NewStation(ctx, wg, settings, api, zap.NewNop().Sugar()), wg
}

func TestStartV2PollsImmediately(t *testing.T) {
	api := newV2Fake(t)
	s, wg := newTestStation(t, context.Background(), Settings{
		APIVersion: observation.APIv2,
		StationID:  96230,
	}, api)

	require.NoError(t, s.StartWeatherStation())
	defer func() {
		require.NoError(t, s.StopWeatherStation())
		wg.Wait()
	}()

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.PrimaryTxID)
	assert.Equal(t, "Strandvegen", snap.Station.StationName)
	assert.Len(t, snap.Sensors, 5, "sensors from other stations must be filtered out")

	v, ok := snap.Observation.Get(1, observation.TempOut)
	require.True(t, ok)
	f, _ := v.Float64()
	assert.Equal(t, 68.5, f)

	st := s.Status()
	assert.Equal(t, weatherstations.StateHealthy, st.State)
	assert.Equal(t, 1, st.PrimaryTxID)
	assert.EqualValues(t, 1, st.TotalPolls)
	assert.Equal(t, DefaultPollInterval, s.PollInterval())
}

func TestPollFailureKeepsSnapshot(t *testing.T) {
	api := newV2Fake(t)
	s, wg := newTestStation(t, context.Background(), Settings{APIVersion: observation.APIv2, StationID: 96230}, api)
	events := s.Subscribe()

	require.NoError(t, s.StartWeatherStation())
	defer func() {
		_ = s.StopWeatherStation()
		wg.Wait()
	}()

	first := <-events
	require.NoError(t, first.Err)
	require.NotNil(t, first.Snapshot)
	before := s.Snapshot()

	api.fail(fmt.Errorf("boom: %w", weatherlink.ErrCannotConnect))
	s.poll()

	failed := <-events
	assert.ErrorIs(t, failed.Err, weatherlink.ErrCannotConnect)
	assert.Nil(t, failed.Snapshot)
	assert.Same(t, before, s.Snapshot())

	st := s.Status()
	assert.Equal(t, weatherstations.StateDegraded, st.State)
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.Contains(t, st.LastError, "boom")
	assert.False(t, st.Healthy(time.Now(), time.Hour))

	api.fail(nil)
	s.poll()
	<-events
	assert.Equal(t, weatherstations.StateHealthy, s.Status().State)
	assert.NotSame(t, before, s.Snapshot())
}

func TestMalformedPayloadIsAFailedPoll(t *testing.T) {
	api := newV2Fake(t)
	api.current = []byte(`{"sensors":`)

	s, wg := newTestStation(t, context.Background(), Settings{APIVersion: observation.APIv2, StationID: 96230}, api)
	require.NoError(t, s.StartWeatherStation())
	defer func() {
		_ = s.StopWeatherStation()
		wg.Wait()
	}()

	assert.Nil(t, s.Snapshot())
	st := s.Status()
	assert.Equal(t, weatherstations.StateFailed, st.State)
	assert.Contains(t, st.LastError, "malformed")
}

func TestFatalSetupErrorStopsStartup(t *testing.T) {
	api := newV2Fake(t)
	api.stationErr = &weatherlink.StatusError{Endpoint: "station", StatusCode: 401, Err: weatherlink.ErrInvalidAuth}

	s, _ := newTestStation(t, context.Background(), Settings{APIVersion: observation.APIv2, StationID: 96230}, api)
	err := s.StartWeatherStation()
	require.Error(t, err)
	assert.ErrorIs(t, err, weatherlink.ErrInvalidAuth)
	assert.Equal(t, 1, api.setupCalls)
	assert.Zero(t, api.fetches)
}

func TestTransientSetupErrorRetriesUntilCancelled(t *testing.T) {
	api := newV2Fake(t)
	api.stationErr = weatherlink.ErrCannotConnect

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s, _ := newTestStation(t, ctx, Settings{APIVersion: observation.APIv2, StationID: 96230}, api)
	err := s.StartWeatherStation()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, weatherlink.ErrCannotConnect)
	assert.Zero(t, api.fetches)
}

func TestV1UsesTransmitterOne(t *testing.T) {
	api := &fakeAPI{current: readFixture(t, "v1_noaaext.json")}
	s, wg := newTestStation(t, context.Background(), Settings{APIVersion: observation.APIv1}, api)

	require.NoError(t, s.StartWeatherStation())
	defer func() {
		_ = s.StopWeatherStation()
		wg.Wait()
	}()

	assert.Zero(t, api.setupCalls)
	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Nil(t, snap.Station)
	assert.Equal(t, []int{1}, snap.Observation.TransmitterIDs())
}

func TestPollIntervalClamp(t *testing.T) {
	s, _ := newTestStation(t, context.Background(), Settings{APIVersion: observation.APIv1, PollInterval: 10 * time.Second}, &fakeAPI{})
	assert.Equal(t, MinPollInterval, s.PollInterval())
}

func TestSubscribersCloseOnStop(t *testing.T) {
	api := &fakeAPI{current: readFixture(t, "v1_noaaext.json")}
	s, wg := newTestStation(t, context.Background(), Settings{APIVersion: observation.APIv1}, api)
	events := s.Subscribe()

	require.NoError(t, s.StartWeatherStation())
	require.NoError(t, s.StopWeatherStation())
	wg.Wait()

	var n int
	for range events {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestSubscribeAfterStopIsClosed(t *testing.T) {
	api := &fakeAPI{current: readFixture(t, "v1_noaaext.json")}
	s, wg := newTestStation(t, context.Background(), Settings{APIVersion: observation.APIv1}, api)

	require.NoError(t, s.StartWeatherStation())
	require.NoError(t, s.StopWeatherStation())
	wg.Wait()

	select {
	case _, ok := <-s.Subscribe():
		assert.False(t, ok, "late subscriber receives no events")
	case <-time.After(time.Second):
		t.Fatal("late subscriber channel was never closed")
	}
}
