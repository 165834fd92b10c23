package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/weatherlink"
	"github.com/chrissnell/wlcloud/pkg/config"
)

func fakeWeatherLink(t *testing.T, stationStatus int) *httptest.Server {
	t.Helper()
	fixture := func(name string) []byte {
		data, err := os.ReadFile(filepath.Join("..", "observation", "testdata", name))
		require.NoError(t, err)
		return data
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/stations/96230", func(w http.ResponseWriter, _ *http.Request) {
		if stationStatus != http.StatusOK {
			w.WriteHeader(stationStatus)
			return
		}
		fmt.Fprint(w, `{"stations":[{"station_id":96230,"station_id_uuid":"0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9",`+
			`"station_name":"Hjemme","product_number":"6313CS"}]}`)
	})
	mux.HandleFunc("/v2/sensors", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fixture("v2_sensors.json"))
	})
	mux.HandleFunc("/v2/current/96230", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fixture("v2_current.json"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) config.ConfigProvider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
entry:
  version: 2
  name: home
  api-version: v2
  api-key-v2: key
  api-secret: secret
  station-id: 96230
  fetch-timeout: 2s
  base-url-v2: %s/v2
`, baseURL)), 0o600))

	p := config.NewYAMLProvider(path)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestRunStopsWithContext(t *testing.T) {
	srv := fakeWeatherLink(t, http.StatusOK)
	a := New(writeConfig(t, srv.URL), zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the context ended")
	}
}

func TestRunReturnsRejectedCredentials(t *testing.T) {
	srv := fakeWeatherLink(t, http.StatusUnauthorized)
	a := New(writeConfig(t, srv.URL), zap.NewNop().Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, weatherlink.ErrInvalidAuth)
	assert.True(t, weatherlink.IsFatal(err))
}

func TestRunRejectsInvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entry:\n  version: 2\n  name: home\n  api-version: v2\n"), 0o600))
	p := config.NewYAMLProvider(path)
	defer p.Close()

	err := New(p, zap.NewNop().Sugar()).Run(context.Background())
	assert.ErrorContains(t, err, "api_key_v2 is required")
}
