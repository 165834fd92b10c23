package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WLCLOUD_"

// LoadEnv loads a dotenv file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays WLCLOUD_* variables onto the entry. Secrets are usually
// supplied this way rather than stored in the config file.
func ApplyEnv(e *EntryData) error {
	strVars := map[string]*string{
		"NAME":          &e.Name,
		"API_VERSION":   &e.APIVersion,
		"USERNAME":      &e.Username,
		"PASSWORD":      &e.Password,
		"API_TOKEN":     &e.APIToken,
		"API_KEY":       &e.APIKey,
		"API_SECRET":    &e.APISecret,
		"POLL_INTERVAL": &e.PollInterval,
		"FETCH_TIMEOUT": &e.FetchTimeout,
		"BASE_URL_V1":   &e.BaseURLV1,
		"BASE_URL_V2":   &e.BaseURLV2,
		"CATALOG_FILE":  &e.CatalogFile,
	}
	for name, dst := range strVars {
		if v, ok := lookupEnv(name); ok {
			*dst = v
		}
	}

	if v, ok := lookupEnv("STATION_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSTATION_ID: %w", EnvPrefix, err)
		}
		e.StationID = id
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
