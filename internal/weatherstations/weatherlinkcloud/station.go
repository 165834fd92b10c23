// Package weatherlinkcloud polls a station through the WeatherLink cloud API
// and keeps the latest normalized observation.
package weatherlinkcloud

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chrissnell/wlcloud/internal/observation"
	"github.com/chrissnell/wlcloud/internal/weatherlink"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/sensorcatalog"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Minute
	MinPollInterval     = time.Minute

	initialSetupBackoff = 5 * time.Second
	subscriberBuffer    = 4
)

// API is the part of the WeatherLink client the station needs.
type API interface {
	FetchCurrent(ctx context.Context, stationID int) ([]byte, error)
	Station(ctx context.Context, stationID int) (*weatherlink.Station, error)
	Sensors(ctx context.Context) ([]observation.SensorDescriptor, error)
}

// Settings configures a Station.
type Settings struct {
	Name         string
	APIVersion   observation.APIVersion
	StationID    int
	PollInterval time.Duration
	FetchTimeout time.Duration
	Catalog      *sensorcatalog.Catalog
}

// Station represents one WeatherLink cloud station being polled
type Station struct {
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	settings Settings
	api      API
	logger   *zap.SugaredLogger
	now      func() time.Time

	normalizer  *observation.Normalizer
	primaryTxID int
	station     *weatherlink.Station
	sensors     []observation.SensorDescriptor

	snapshot atomic.Pointer[weatherstations.Snapshot]
	status   *weatherstations.StatusTracker

	subMu       sync.Mutex
	subscribers []chan weatherstations.PollEvent
	subClosed   bool
}

// NewStation creates a station. Nothing touches the network until
// StartWeatherStation.
func NewStation(ctx context.Context, wg *sync.WaitGroup, settings Settings, api API, logger *zap.SugaredLogger) *Station {
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	if settings.PollInterval < MinPollInterval {
		logger.Warnf("Poll interval %v too short, using minimum of %v", settings.PollInterval, MinPollInterval)
		settings.PollInterval = MinPollInterval
	}
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = weatherlink.DefaultTimeout
	}
	if settings.Catalog == nil {
		settings.Catalog = sensorcatalog.Default()
	}

	stationCtx, cancel := context.WithCancel(ctx)

	return &Station{
		ctx:         stationCtx,
		cancel:      cancel,
		wg:          wg,
		settings:    settings,
		api:         api,
		logger:      logger,
		now:         time.Now,
		primaryTxID: observation.DefaultPrimaryTxID,
		status:      weatherstations.NewStatusTracker(settings.Catalog.Version),
	}
}

// StationName returns the station name
func (s *Station) StationName() string {
	return s.settings.Name
}

// PollInterval returns the effective poll interval after clamping.
func (s *Station) PollInterval() time.Duration {
	return s.settings.PollInterval
}

// StartWeatherStation resolves station metadata, performs the first poll and
// starts the polling goroutine. Invalid credentials and unknown stations are
// returned immediately; other setup failures are retried until the context
// ends.
func (s *Station) StartWeatherStation() error {
	s.logger.Infof("Starting WeatherLink cloud station [%s] (API %s)", s.settings.Name, s.settings.APIVersion)

	if err := s.setupWithRetry(); err != nil {
		return err
	}

	s.poll()

	s.wg.Add(1)
	go s.runPollingMode()

	return nil
}

// StopWeatherStation stops polling.
func (s *Station) StopWeatherStation() error {
	s.logger.Infof("Stopping WeatherLink cloud station [%s]", s.settings.Name)
	s.cancel()
	return nil
}

// Snapshot returns the last successful poll result or nil.
func (s *Station) Snapshot() *weatherstations.Snapshot {
	return s.snapshot.Load()
}

// Status returns a copy of the poll status.
func (s *Station) Status() weatherstations.Status {
	return s.status.Get()
}

// Subscribe returns a channel receiving every poll outcome. Slow subscribers
// lose the oldest pending events rather than stalling the poll loop. Once
// polling has stopped the returned channel is already closed.
func (s *Station) Subscribe() <-chan weatherstations.PollEvent {
	ch := make(chan weatherstations.PollEvent, subscriberBuffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subClosed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Station) setupWithRetry() error {
	backoff := initialSetupBackoff
	for {
		err := s.setup(s.ctx)
		if err == nil {
			return nil
		}
		if weatherlink.IsFatal(err) {
			return fmt.Errorf("station [%s] setup failed: %w", s.settings.Name, err)
		}

		s.logger.Warnf("Station setup failed, retrying in %v: %v", backoff, err)
		select {
		case <-s.ctx.Done():
			return fmt.Errorf("station [%s] setup aborted: %w", s.settings.Name, errors.Join(s.ctx.Err(), err))
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.settings.PollInterval {
			backoff = s.settings.PollInterval
		}
	}
}

// setup resolves station metadata and the primary transmitter. v1 has
// neither, so it always uses transmitter 1.
func (s *Station) setup(ctx context.Context) error {
	opts := []observation.Option{observation.WithLogger(s.logger.Named("normalizer"))}

	switch s.settings.APIVersion {
	case observation.APIv1:
		s.primaryTxID = observation.DefaultPrimaryTxID

	case observation.APIv2:
		fetchCtx, cancel := context.WithTimeout(ctx, s.settings.FetchTimeout)
		defer cancel()

		station, err := s.api.Station(fetchCtx, s.settings.StationID)
		if err != nil {
			return fmt.Errorf("failed to fetch station %d: %w", s.settings.StationID, err)
		}
		all, err := s.api.Sensors(fetchCtx)
		if err != nil {
			return fmt.Errorf("failed to fetch sensors: %w", err)
		}

		s.station = station
		s.sensors = observation.FilterStation(all, station.StationID)
		s.primaryTxID = observation.SelectPrimaryTransmitter(s.sensors, s.settings.Catalog)
		opts = append(opts, observation.WithKnownSensors(s.sensors))

		s.logger.Infof("Station [%s] has %d sensors, primary transmitter %d, transmitters %v",
			station.StationName, len(s.sensors), s.primaryTxID, observation.TransmitterIDs(s.sensors))

	default:
		return fmt.Errorf("%w: %q", observation.ErrUnsupportedAPIVersion, s.settings.APIVersion)
	}

	s.normalizer = observation.NewNormalizer(s.settings.Catalog, opts...)
	s.status.SetPrimary(s.primaryTxID)
	return nil
}

// runPollingMode polls on a ticker until the context ends.
func (s *Station) runPollingMode() {
	defer s.wg.Done()
	defer s.closeSubscribers()

	ticker := time.NewTicker(s.settings.PollInterval)
	defer ticker.Stop()

	s.logger.Infof("Polling started with %v interval", s.settings.PollInterval)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

// poll runs one fetch/normalize cycle. The cached snapshot only changes on
// success.
func (s *Station) poll() {
	start := s.now()

	ctx, cancel := context.WithTimeout(s.ctx, s.settings.FetchTimeout)
	defer cancel()

	obs, err := s.fetch(ctx)
	if err != nil {
		s.status.RecordFailure(start, err)
		s.logger.Errorf("Failed to refresh observation: %v", err)
		s.publish(weatherstations.PollEvent{Err: err, At: start, Duration: s.now().Sub(start)})
		return
	}

	snap := &weatherstations.Snapshot{
		Observation: obs,
		APIVersion:  s.settings.APIVersion,
		PrimaryTxID: s.primaryTxID,
		FetchedAt:   start,
		Station:     s.station,
		Sensors:     s.sensors,
	}
	s.snapshot.Store(snap)
	s.status.RecordSuccess(start)
	s.logger.Debugf("Observation refreshed: transmitters %v", obs.TransmitterIDs())

	s.publish(weatherstations.PollEvent{Snapshot: snap, At: start, Duration: s.now().Sub(start)})
}

func (s *Station) fetch(ctx context.Context) (*observation.Observation, error) {
	raw, err := s.api.FetchCurrent(ctx, s.settings.StationID)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(raw, s.settings.APIVersion, s.primaryTxID)
}

func (s *Station) publish(ev weatherstations.PollEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		for {
			select {
			case ch <- ev:
			default:
				// Drop the oldest pending event and try again.
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (s *Station) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.subClosed = true
}
