package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherlink"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/internal/weatherstations/weatherlinkcloud"
	"github.com/chrissnell/wlcloud/pkg/config"
	"github.com/chrissnell/wlcloud/pkg/sensorcatalog"
)

// WeatherStationManager owns the single polled station of this process.
type WeatherStationManager struct {
	station *weatherlinkcloud.Station
	maxAge  time.Duration
	logger  *zap.SugaredLogger
}

// NewClient builds a WeatherLink client for the entry's API version and
// credentials.
func NewClient(entry config.EntryData, logger *zap.SugaredLogger) (*weatherlink.Client, observation.APIVersion, error) {
	version, err := observation.ParseAPIVersion(entry.APIVersion)
	if err != nil {
		return nil, "", err
	}
	timeout, err := entry.FetchTimeoutDuration()
	if err != nil {
		return nil, "", fmt.Errorf("invalid fetch_timeout: %w", err)
	}

	client := weatherlink.New(version, weatherlink.Credentials{
		Username:  entry.Username,
		Password:  entry.Password,
		APIToken:  entry.APIToken,
		APIKey:    entry.APIKey,
		APISecret: entry.APISecret,
	},
		weatherlink.WithBaseURLs(entry.BaseURLV1, entry.BaseURLV2),
		weatherlink.WithTimeout(timeout),
		weatherlink.WithLogger(logger),
	)
	return client, version, nil
}

// LoadCatalog returns the catalog named by the entry, or the built-in one.
func LoadCatalog(entry config.EntryData) (*sensorcatalog.Catalog, error) {
	if entry.CatalogFile == "" {
		return sensorcatalog.Default(), nil
	}
	catalog, err := sensorcatalog.Load(entry.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("error loading sensor catalog: %w", err)
	}
	return catalog, nil
}

// NewWeatherStationManager validates the entry and creates the station.
func NewWeatherStationManager(ctx context.Context, wg *sync.WaitGroup, entry config.EntryData,
	catalog *sensorcatalog.Catalog, logger *zap.SugaredLogger) (*WeatherStationManager, error) {
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid station configuration: %w", err)
	}

	client, version, err := NewClient(entry, logger.Named("weatherlink"))
	if err != nil {
		return nil, err
	}

	// Validate has already parsed both durations.
	interval, _ := entry.PollIntervalDuration()
	timeout, _ := entry.FetchTimeoutDuration()

	logger.Infof("Initializing WeatherLink cloud station [%v]", entry.Name)
	station := weatherlinkcloud.NewStation(ctx, wg, weatherlinkcloud.Settings{
		Name:         entry.Name,
		APIVersion:   version,
		StationID:    entry.StationID,
		PollInterval: interval,
		FetchTimeout: timeout,
		Catalog:      catalog,
	}, client, logger.Named("station"))

	return &WeatherStationManager{
		station: station,
		maxAge:  2*station.PollInterval() + timeout,
		logger:  logger,
	}, nil
}

// StartWeatherStations resolves station metadata, runs the first poll and
// begins polling. It blocks until setup succeeds or fails permanently.
func (w *WeatherStationManager) StartWeatherStations() error {
	w.logger.Infof("Starting weather station [%v]...", w.station.StationName())
	if err := w.station.StartWeatherStation(); err != nil {
		return fmt.Errorf("failed to start weather station [%s]: %w", w.station.StationName(), err)
	}
	return nil
}

// Source exposes the station to controllers.
func (w *WeatherStationManager) Source() weatherstations.Source {
	return w.station
}

// MaxAge is how old the last successful poll may be before health checks
// fail: two missed polls plus one fetch timeout.
func (w *WeatherStationManager) MaxAge() time.Duration {
	return w.maxAge
}
