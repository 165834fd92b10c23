package main

import (
	"bytes"
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
	"github.com/urfave/cli/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherlink"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "internal", "observation", "testdata", name)
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(fixturePath(name))
	require.NoError(t, err)
	return data
}

func fakeWeatherLink(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/NoaaExt.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pass") != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(fixture(t, "v1_noaaext.json"))
	})
	mux.HandleFunc("/v2/stations/96230", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"stations":[{"station_id":96230,"station_id_uuid":"0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9",`+
			`"station_name":"Hjemme","product_number":"6313CS"}],"generated_at":1700000060}`)
	})
	mux.HandleFunc("/v2/sensors", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(fixture(t, "v2_sensors.json"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateV2(t *testing.T) {
	srv := fakeWeatherLink(t)
	client := weatherlink.New(observation.APIv2, weatherlink.Credentials{APIKey: "k", APISecret: "s"},
		weatherlink.WithBaseURLs(srv.URL+"/v1", srv.URL+"/v2"))

	var out bytes.Buffer
	require.NoError(t, validate(context.Background(), &out, client, observation.APIv2, 96230))
	assert.Contains(t, out.String(), `station "Hjemme"`)
	assert.Contains(t, out.String(), "primary transmitter 1")

	err := validate(context.Background(), &out, client, observation.APIv2, 1)
	assert.ErrorIs(t, err, weatherlink.ErrStationNotFound)
}

func TestValidateV1(t *testing.T) {
	srv := fakeWeatherLink(t)
	good := weatherlink.New(observation.APIv1, weatherlink.Credentials{Username: "001D0A00DE6A", Password: "pw", APIToken: "t"},
		weatherlink.WithBaseURLs(srv.URL+"/v1", ""))

	var out bytes.Buffer
	require.NoError(t, validate(context.Background(), &out, good, observation.APIv1, 0))
	assert.Equal(t, "OK: station \"Strandvegen\" (DID 001D0A00DE6A)\n", out.String())

	bad := weatherlink.New(observation.APIv1, weatherlink.Credentials{Username: "001D0A00DE6A", Password: "nope"},
		weatherlink.WithBaseURLs(srv.URL+"/v1", ""))
	err := validate(context.Background(), &out, bad, observation.APIv1, 0)
	require.ErrorIs(t, err, weatherlink.ErrInvalidAuth)

	var exit cli.ExitCoder
	require.ErrorAs(t, exitFor(err), &exit)
	assert.Equal(t, exitInvalidAuth, exit.ExitCode())
}

func TestExitFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("setup: %w", weatherlink.ErrInvalidAuth), exitInvalidAuth},
		{fmt.Errorf("setup: %w", weatherlink.ErrStationNotFound), exitInvalidAuth},
		{fmt.Errorf("poll: %w", weatherlink.ErrCannotConnect), exitCannotConnect},
	}
	for _, tt := range tests {
		var exit cli.ExitCoder
		require.ErrorAs(t, exitFor(tt.err), &exit, tt.err.Error())
		assert.Equal(t, tt.code, exit.ExitCode())
	}

	plain := fmt.Errorf("bad config")
	assert.Equal(t, plain, exitFor(plain))
}

func TestPrintStations(t *testing.T) {
	var out bytes.Buffer
	printStations(&out, []weatherlink.Station{
		{StationID: 96230, StationIDUUID: "0a1b", StationName: "Hjemme", ProductNumber: "6313CS", GatewayIDHex: "001D0A71A2B3"},
	})
	assert.Contains(t, out.String(), "STATION ID")
	assert.Contains(t, out.String(), "Hjemme")
	assert.Contains(t, out.String(), "WLC 6313CS")
}

func TestSnapshotForUsesObservationTimestamp(t *testing.T) {
	obs, err := observation.NewNormalizer(nil).Normalize(fixture(t, "v2_current.json"), observation.APIv2, 1)
	require.NoError(t, err)

	snap := snapshotFor(obs, observation.APIv2, 1)
	assert.Equal(t, time.Unix(1700000000, 0), snap.FetchedAt)

	rendered := renderEntities(entity.NewBuilder(nil, nil).Build(snap), obs, snap.FetchedAt)
	require.NotEmpty(t, rendered)
	for _, r := range rendered {
		if r.Key == "Timestamp" && r.TxID == 1 {
			assert.Equal(t, true, r.State.Value)
		}
	}
}

func TestWriteOutput(t *testing.T) {
	obs, err := observation.NewNormalizer(nil).Normalize(fixture(t, "v2_current.json"), observation.APIv2, 1)
	require.NoError(t, err)

	var js bytes.Buffer
	require.NoError(t, writeOutput(&js, obs, "json"))
	assert.Contains(t, js.String(), `"TEMP_OUT": 68.5`)

	var mp bytes.Buffer
	require.NoError(t, writeOutput(&mp, obs, "msgpack"))
	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(mp.Bytes(), &decoded))
	assert.NotEmpty(t, decoded)

	assert.Error(t, writeOutput(&js, obs, "xml"))
}

func TestNormalizeCommand(t *testing.T) {
	args := []string{"wlcloud", "--env-file", filepath.Join(t.TempDir(), "none.env"),
		"normalize", "--file", fixturePath("v1_noaaext.json"), "--api-version", "v1"}
	assert.NoError(t, newCommand().Run(context.Background(), args))

	args = []string{"wlcloud", "--env-file", filepath.Join(t.TempDir(), "none.env"),
		"normalize", "--file", fixturePath("v2_current.json"), "--api-version", "v9"}
	assert.Error(t, newCommand().Run(context.Background(), args))
}

func TestMigrateCommandYAML(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("entry:\n  name: home\n  username: u\n"), 0o600))

	args := []string{"wlcloud", "--env-file", filepath.Join(t.TempDir(), "none.env"), "--config", cfg, "migrate"}
	assert.NoError(t, newCommand().Run(context.Background(), args))
}
