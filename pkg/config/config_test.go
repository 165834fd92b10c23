package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
entry:
  version: 2
  name: Strandvegen
  api-version: v2
  api-key-v2: key123
  api-secret: s3cret
  station-id: 96230
  poll-interval: 2m
controllers:
  - type: rest
    rest:
      listen-addr: 127.0.0.1
      port: 8080
      diagnostics-token: tok
  - type: mqtt
    mqtt:
      broker: tcp://localhost:1883
      discovery-prefix: homeassistant
`

func TestParseYAML(t *testing.T) {
	cfg, err := ParseYAML([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "Strandvegen", cfg.Entry.Name)
	assert.Equal(t, APIVersionV2, cfg.Entry.APIVersion)
	assert.Equal(t, 96230, cfg.Entry.StationID)
	require.NoError(t, cfg.Entry.Validate())

	interval, err := cfg.Entry.PollIntervalDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, interval)

	timeout, err := cfg.Entry.FetchTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, DefaultFetchTimeout, timeout)

	require.Len(t, cfg.Controllers, 2)
	rest, ok := cfg.FindController("rest")
	require.True(t, ok)
	assert.Equal(t, 8080, rest.RESTServer.Port)
	assert.Equal(t, "tok", rest.RESTServer.DiagnosticsToken)

	mqtt, ok := cfg.FindController("mqtt")
	require.True(t, ok)
	assert.Equal(t, "tcp://localhost:1883", mqtt.MQTT.Broker)

	_, ok = cfg.FindController("metrics")
	assert.False(t, ok)
}

func TestYAMLProviderMigratesLegacyEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entry:
  version: 1
  name: Old console
  username: "001D0A00DE6A"
  password: pw
  api-token: tok
`), 0o600))

	p := NewYAMLProvider(path)
	defer p.Close()

	entry, err := p.GetEntry()
	require.NoError(t, err)
	assert.Equal(t, EntryVersionCurrent, entry.Version)
	assert.Equal(t, APIVersionV1, entry.APIVersion)
	assert.NoError(t, entry.Validate())
	assert.True(t, p.IsReadOnly())
}

func TestMigrateEntry(t *testing.T) {
	tests := []struct {
		name        string
		in          EntryData
		wantChanged bool
		wantAPI     string
		wantErr     bool
	}{
		{"legacy", EntryData{Version: 1}, true, APIVersionV1, false},
		{"legacy ignores stray api_version", EntryData{Version: 1, APIVersion: "v2"}, true, APIVersionV1, false},
		{"unversioned v2", EntryData{APIVersion: "v2"}, true, APIVersionV2, false},
		{"unversioned without api", EntryData{}, true, APIVersionV1, false},
		{"current", EntryData{Version: 2, APIVersion: "v2"}, false, APIVersionV2, false},
		{"future", EntryData{Version: 3}, false, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.in
			changed, err := MigrateEntry(&e)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantAPI, e.APIVersion)
			assert.Equal(t, EntryVersionCurrent, e.Version)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   EntryData
		wantErr []string
	}{
		{
			name:  "complete v1",
			entry: EntryData{APIVersion: "v1", Username: "u", Password: "p", APIToken: "t"},
		},
		{
			name:    "v1 missing token",
			entry:   EntryData{APIVersion: "v1", Username: "u", Password: "p"},
			wantErr: []string{"apitoken"},
		},
		{
			name:    "v2 missing everything",
			entry:   EntryData{APIVersion: "v2"},
			wantErr: []string{"api_key_v2", "api_secret", "station_id"},
		},
		{
			name:    "unknown version and bad interval",
			entry:   EntryData{APIVersion: "v3", PollInterval: "soon"},
			wantErr: []string{"api_version", "poll_interval"},
		},
		{
			name:    "negative timeout",
			entry:   EntryData{APIVersion: "v2", APIKey: "k", APISecret: "s", StationID: 1, FetchTimeout: "-1s"},
			wantErr: []string{"fetch_timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("WLCLOUD_API_SECRET", "from-env")
	t.Setenv("WLCLOUD_STATION_ID", " 42 ")
	t.Setenv("WLCLOUD_API_KEY", "")

	e := EntryData{APIKey: "file-key", APISecret: "file-secret"}
	require.NoError(t, ApplyEnv(&e))
	assert.Equal(t, "from-env", e.APISecret)
	assert.Equal(t, 42, e.StationID)
	assert.Equal(t, "file-key", e.APIKey, "empty variables do not override")

	t.Setenv("WLCLOUD_STATION_ID", "abc")
	assert.Error(t, ApplyEnv(&e))
}

func TestLoadEnv(t *testing.T) {
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("WLCLOUD_TEST_LOADENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("WLCLOUD_TEST_LOADENV") })

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "loaded", os.Getenv("WLCLOUD_TEST_LOADENV"))
}

func TestRedact(t *testing.T) {
	cfg := ConfigData{
		Entry: EntryData{Name: "Home", APIVersion: "v2", APIKey: "k", APISecret: "s", StationID: 7},
		Controllers: []ControllerData{
			{Type: "mqtt", MQTT: &MQTTData{Broker: "tcp://b:1883", Username: "u", Password: "p"}},
		},
	}

	out, ok := Redact(cfg).(map[string]any)
	require.True(t, ok)

	entry := out["entry"].(map[string]any)
	assert.Equal(t, Redacted, entry["api_key_v2"])
	assert.Equal(t, Redacted, entry["api_secret"])
	assert.Equal(t, "Home", entry["name"])
	assert.EqualValues(t, 7, entry["station_id"])

	mqtt := out["controllers"].([]any)[0].(map[string]any)["mqtt"].(map[string]any)
	assert.Equal(t, Redacted, mqtt["password"])
	assert.Equal(t, Redacted, mqtt["username"])
	assert.Equal(t, "tcp://b:1883", mqtt["broker"])

	nested := Redact(map[string]any{"stations": []any{map[string]any{"user_email": "a@b.c", "station_name": "X"}}})
	st := nested.(map[string]any)["stations"].([]any)[0].(map[string]any)
	assert.Equal(t, Redacted, st["user_email"])
	assert.Equal(t, "X", st["station_name"])
}

func TestSQLiteProvider(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.EnsureSchema())
	require.NoError(t, p.EnsureSchema(), "schema creation is idempotent")

	_, err = p.GetEntry()
	assert.ErrorIs(t, err, ErrNoEntry)

	legacy := &EntryData{Version: 1, Name: "Old", Username: "u", Password: "p", APIToken: "t"}
	require.NoError(t, p.SaveEntry(legacy))

	entry, err := p.GetEntry()
	require.NoError(t, err)
	assert.Equal(t, APIVersionV1, entry.APIVersion, "migrated in memory")

	changed, err := p.MigrateStoredEntry()
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = p.MigrateStoredEntry()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, p.SaveController(&ControllerData{Type: "metrics", Metrics: &MetricsData{Port: 9100}}))
	require.NoError(t, p.SaveController(&ControllerData{Type: "metrics", Metrics: &MetricsData{Port: 9200}}))
	require.NoError(t, p.SaveController(&ControllerData{Type: "health", Health: &HealthData{Port: 50051}}))
	assert.Error(t, p.SaveController(&ControllerData{}))

	cfg, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Old", cfg.Entry.Name)
	assert.Equal(t, 2, cfg.Entry.Version)
	require.Len(t, cfg.Controllers, 2)
	metrics, ok := cfg.FindController("metrics")
	require.True(t, ok)
	assert.Equal(t, 9200, metrics.Metrics.Port)

	require.NoError(t, p.DeleteController("health"))
	assert.Error(t, p.DeleteController("health"))
	assert.False(t, p.IsReadOnly())
}
