package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNoEntry is returned when the database holds no station entry yet.
var ErrNoEntry = errors.New("no station entry configured")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version       INTEGER NOT NULL DEFAULT 1,
	name          TEXT    NOT NULL,
	api_version   TEXT,
	username      TEXT,
	password      TEXT,
	apitoken      TEXT,
	api_key_v2    TEXT,
	api_secret    TEXT,
	station_id    INTEGER,
	poll_interval TEXT,
	fetch_timeout TEXT,
	base_url_v1   TEXT,
	base_url_v2   TEXT,
	catalog_file  TEXT
);

CREATE TABLE IF NOT EXISTS controllers (
	type   TEXT PRIMARY KEY,
	config TEXT NOT NULL
);
`

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// EnsureSchema creates the configuration tables if they do not exist.
func (s *SQLiteProvider) EnsureSchema() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to create config schema: %w", err)
	}
	return nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	entry, err := s.GetEntry()
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}
	config.Entry = *entry

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetEntry returns the station entry, migrated in memory. Use
// MigrateStoredEntry to persist the upgrade.
func (s *SQLiteProvider) GetEntry() (*EntryData, error) {
	entry, err := s.loadEntry()
	if err != nil {
		return nil, err
	}
	if _, err := MigrateEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *SQLiteProvider) loadEntry() (*EntryData, error) {
	query := `
		SELECT version, name, api_version, username, password, apitoken,
		       api_key_v2, api_secret, station_id, poll_interval, fetch_timeout,
		       base_url_v1, base_url_v2, catalog_file
		FROM entries
		WHERE id = 1
	`

	var entry EntryData
	var apiVersion, username, password, apiToken, apiKey, apiSecret sql.NullString
	var pollInterval, fetchTimeout, baseV1, baseV2, catalogFile sql.NullString
	var stationID sql.NullInt64

	err := s.db.QueryRow(query).Scan(
		&entry.Version, &entry.Name, &apiVersion, &username, &password, &apiToken,
		&apiKey, &apiSecret, &stationID, &pollInterval, &fetchTimeout,
		&baseV1, &baseV2, &catalogFile,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEntry
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}

	// NULL columns become zero values
	entry.APIVersion = apiVersion.String
	entry.Username = username.String
	entry.Password = password.String
	entry.APIToken = apiToken.String
	entry.APIKey = apiKey.String
	entry.APISecret = apiSecret.String
	entry.StationID = int(stationID.Int64)
	entry.PollInterval = pollInterval.String
	entry.FetchTimeout = fetchTimeout.String
	entry.BaseURLV1 = baseV1.String
	entry.BaseURLV2 = baseV2.String
	entry.CatalogFile = catalogFile.String

	return &entry, nil
}

// SaveEntry inserts or replaces the station entry.
func (s *SQLiteProvider) SaveEntry(entry *EntryData) error {
	query := `
		INSERT INTO entries (id, version, name, api_version, username, password, apitoken,
		                     api_key_v2, api_secret, station_id, poll_interval, fetch_timeout,
		                     base_url_v1, base_url_v2, catalog_file)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			name = excluded.name,
			api_version = excluded.api_version,
			username = excluded.username,
			password = excluded.password,
			apitoken = excluded.apitoken,
			api_key_v2 = excluded.api_key_v2,
			api_secret = excluded.api_secret,
			station_id = excluded.station_id,
			poll_interval = excluded.poll_interval,
			fetch_timeout = excluded.fetch_timeout,
			base_url_v1 = excluded.base_url_v1,
			base_url_v2 = excluded.base_url_v2,
			catalog_file = excluded.catalog_file
	`

	_, err := s.db.Exec(query,
		entry.Version, entry.Name, nullString(entry.APIVersion),
		nullString(entry.Username), nullString(entry.Password), nullString(entry.APIToken),
		nullString(entry.APIKey), nullString(entry.APISecret), nullInt(entry.StationID),
		nullString(entry.PollInterval), nullString(entry.FetchTimeout),
		nullString(entry.BaseURLV1), nullString(entry.BaseURLV2), nullString(entry.CatalogFile),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

// MigrateStoredEntry upgrades the stored entry to the current schema version
// and reports whether a write happened.
func (s *SQLiteProvider) MigrateStoredEntry() (bool, error) {
	entry, err := s.loadEntry()
	if err != nil {
		return false, err
	}

	changed, err := MigrateEntry(entry)
	if err != nil || !changed {
		return false, err
	}
	if err := s.SaveEntry(entry); err != nil {
		return false, err
	}
	return true, nil
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	rows, err := s.db.Query(`SELECT type, config FROM controllers ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controllerType, raw string
		if err := rows.Scan(&controllerType, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		var controller ControllerData
		if err := json.Unmarshal([]byte(raw), &controller); err != nil {
			return nil, fmt.Errorf("controller %s has invalid config: %w", controllerType, err)
		}
		controller.Type = controllerType
		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// SaveController inserts or replaces the controller of the same type.
func (s *SQLiteProvider) SaveController(controller *ControllerData) error {
	if controller.Type == "" {
		return errors.New("controller type is required")
	}

	raw, err := json.Marshal(controller)
	if err != nil {
		return fmt.Errorf("failed to encode controller %s: %w", controller.Type, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO controllers (type, config) VALUES (?, ?)
		ON CONFLICT(type) DO UPDATE SET config = excluded.config
	`, controller.Type, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save controller %s: %w", controller.Type, err)
	}
	return nil
}

// DeleteController removes a controller configuration
func (s *SQLiteProvider) DeleteController(controllerType string) error {
	result, err := s.db.Exec(`DELETE FROM controllers WHERE type = ?`, controllerType)
	if err != nil {
		return fmt.Errorf("failed to delete controller: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("controller %s not found", controllerType)
	}
	return nil
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: i != 0}
}
