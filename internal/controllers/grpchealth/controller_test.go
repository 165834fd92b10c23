package grpchealth

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
)

var lastSuccess = time.Unix(1700000060, 0).UTC()

type fakeSource struct {
	mu     sync.Mutex
	status weatherstations.Status
	events chan weatherstations.PollEvent
}

func (f *fakeSource) Snapshot() *weatherstations.Snapshot         { return nil }
func (f *fakeSource) Subscribe() <-chan weatherstations.PollEvent { return f.events }

func (f *fakeSource) Status() weatherstations.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSource) setState(s string) {
	f.mu.Lock()
	f.status.State = s
	f.mu.Unlock()
}

func newSource(state string) *fakeSource {
	return &fakeSource{
		status: weatherstations.Status{State: state, LastSuccess: lastSuccess},
		events: make(chan weatherstations.PollEvent, 1),
	}
}

func newTestController(t *testing.T, ctx context.Context, src *fakeSource) *Controller {
	t.Helper()
	c, err := NewController(ctx, &sync.WaitGroup{}, config.HealthData{}, src, 15*time.Minute, zap.NewNop().Sugar())
	require.NoError(t, err)
	c.now = func() time.Time { return lastSuccess.Add(time.Minute) }
	c.update()
	return c
}

func dial(t *testing.T, c *Controller) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	require.NoError(t, c.serve(lis))

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestNewControllerDefaults(t *testing.T) {
	c := newTestController(t, context.Background(), newSource(weatherstations.StateHealthy))
	assert.Equal(t, "0.0.0.0:50051", c.listenAddr)

	_, err := NewController(context.Background(), &sync.WaitGroup{}, config.HealthData{}, nil, time.Minute, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestUpdate(t *testing.T) {
	src := newSource(weatherstations.StateHealthy)
	c := newTestController(t, context.Background(), src)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, c.update())

	src.setState(weatherstations.StateDegraded)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, c.update())

	src.setState(weatherstations.StateHealthy)
	c.now = func() time.Time { return lastSuccess.Add(time.Hour) }
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, c.update(), "stale data")
}

func TestHealthCheckOverGRPC(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newSource(weatherstations.StateHealthy)
	c := newTestController(t, ctx, src)
	client := dial(t, c)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	src.setState(weatherstations.StateFailed)
	src.events <- weatherstations.PollEvent{At: lastSuccess.Add(time.Minute)}
	assert.Eventually(t, func() bool {
		return check(t, client, ServiceName) == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}

func TestShutdownStopsServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := newSource(weatherstations.StateHealthy)
	c := newTestController(t, ctx, src)
	dial(t, c)

	cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}
}
