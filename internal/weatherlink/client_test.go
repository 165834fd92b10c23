package weatherlink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func v2Client(srv *httptest.Server) *Client {
	return New(observation.APIv2,
		Credentials{APIKey: "key123", APISecret: "s3cret"},
		WithBaseURLs(srv.URL+"/v1", srv.URL+"/v2"),
		WithTimeout(2*time.Second),
	)
}

func TestFetchCurrentV2SendsCredentials(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/current/96230", r.URL.Path)
		assert.Equal(t, "key123", r.URL.Query().Get("api-key"))
		assert.Equal(t, "s3cret", r.Header.Get("X-Api-Secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"station_id_uuid":"abc","sensors":[]}`))
	})

	body, err := v2Client(srv).FetchCurrent(context.Background(), 96230)
	require.NoError(t, err)
	assert.JSONEq(t, `{"station_id_uuid":"abc","sensors":[]}`, string(body))
}

func TestFetchCurrentV1UsesQueryCredentials(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/NoaaExt.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "001D0A00DE6A", q.Get("user"))
		assert.Equal(t, "pw", q.Get("pass"))
		assert.Equal(t, "tok", q.Get("apiToken"))
		_, _ = w.Write([]byte(`{"temp_f":"35.2"}`))
	})

	c := New(observation.APIv1,
		Credentials{Username: "001D0A00DE6A", Password: "pw", APIToken: "tok"},
		WithBaseURLs(srv.URL+"/v1", ""))
	body, err := c.FetchCurrent(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, string(body), "35.2")
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		fatal  bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"code":1,"message":"bad key"}`, ErrInvalidAuth, true},
		{"forbidden", http.StatusForbidden, ``, ErrInvalidAuth, true},
		{"server error", http.StatusBadGateway, `upstream down`, ErrCannotConnect, false},
		{"rate limited", http.StatusTooManyRequests, ``, ErrCannotConnect, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := v2Client(srv).FetchCurrent(context.Background(), 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.fatal, IsFatal(err))

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "current", se.Endpoint)
		})
	}
}

func TestErrorMessagePrefersEnvelope(t *testing.T) {
	assert.Equal(t, "bad key", errorMessage([]byte(`{"code":1,"message":"bad key"}`)))
	assert.Equal(t, "plain", errorMessage([]byte("  plain \n")))
	assert.Len(t, errorMessage([]byte(strings.Repeat("x", 1000))), maxErrorBody)
}

func TestTransportErrorHidesCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(observation.APIv1,
		Credentials{Username: "user", Password: "hunter2", APIToken: "tok"},
		WithBaseURLs(base+"/v1", ""))
	_, err := c.FetchNoaaExt(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotConnect)
	assert.False(t, IsFatal(err))
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestFetchHonoursContext(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := v2Client(srv).FetchCurrent(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotConnect)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStationAndSensors(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/stations":
			_, _ = w.Write([]byte(`{"stations":[
				{"station_id":96230,"station_id_uuid":"0a1b2c3d-4e5f-6071-8293-a4b5c6d7e8f9","station_name":"Strandvegen","product_number":"6313","firmware_version":"1.4.2","gateway_id_hex":"001D0A71A2C1"},
				{"station_id":11111,"station_name":"Cabin"}]}`))
		case "/v2/stations/96230":
			_, _ = w.Write([]byte(`{"stations":[{"station_id":96230,"station_name":"Strandvegen","product_number":"6313"}]}`))
		case "/v2/stations/404":
			w.WriteHeader(http.StatusNotFound)
		case "/v2/stations/7":
			_, _ = w.Write([]byte(`{"stations":[]}`))
		case "/v2/sensors":
			_, _ = w.Write([]byte(`{"sensors":[
				{"lsid":1,"sensor_type":48,"data_structure_type":23,"tx_id":1,"station_id":96230,"product_name":"Vantage Vue ISS"},
				{"lsid":77,"sensor_type":323,"data_structure_type":16,"tx_id":null,"station_id":96230,"product_name":"AirLink","parent_device_name":"Garage"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	c := v2Client(srv)
	ctx := context.Background()

	stations, err := c.Stations(ctx)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "001D0A71A2C1", stations[0].GatewayIDHex)

	st, err := c.Station(ctx, 96230)
	require.NoError(t, err)
	assert.Equal(t, "Strandvegen", st.StationName)

	_, err = c.Station(ctx, 404)
	assert.ErrorIs(t, err, ErrStationNotFound)
	assert.True(t, IsFatal(err))

	_, err = c.Station(ctx, 7)
	assert.ErrorIs(t, err, ErrStationNotFound)

	sensors, err := c.Sensors(ctx)
	require.NoError(t, err)
	require.Len(t, sensors, 2)
	require.NotNil(t, sensors[0].TxID)
	assert.Equal(t, 1, *sensors[0].TxID)
	assert.Nil(t, sensors[1].TxID)
	assert.Equal(t, "Garage", sensors[1].ParentDeviceName)
}
