// Package metrics exposes the station's observations and poll health to
// Prometheus.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
)

const (
	defaultListenAddr = "0.0.0.0"
	defaultPort       = 9110
	defaultPath       = "/metrics"
)

// Controller serves a private Prometheus registry over HTTP.
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	source   weatherstations.Source
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
	path     string
	Server   http.Server
	logger   *zap.SugaredLogger
}

// NewController builds the registry and HTTP server. station labels every
// series so several instances can share one Prometheus.
func NewController(ctx context.Context, wg *sync.WaitGroup, md config.MetricsData, station string,
	source weatherstations.Source, logger *zap.SugaredLogger) (*Controller, error) {
	if source == nil {
		return nil, fmt.Errorf("metrics controller requires a station source")
	}

	if md.ListenAddr == "" {
		md.ListenAddr = defaultListenAddr
	}
	if md.Port == 0 {
		logger.Infof("metrics.port not provided; defaulting to %d", defaultPort)
		md.Port = defaultPort
	}
	if md.Path == "" {
		md.Path = defaultPath
	}
	if !strings.HasPrefix(md.Path, "/") {
		md.Path = "/" + md.Path
	}

	c := &Controller{
		ctx:      ctx,
		wg:       wg,
		source:   source,
		registry: prometheus.NewRegistry(),
		path:     md.Path,
		logger:   logger,
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "poll_duration_seconds",
			Help:        "Wall time of one fetch and normalize cycle.",
			ConstLabels: prometheus.Labels{"station": station},
			Buckets:     []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}),
	}

	if err := c.registry.Register(newStationCollector(source, station)); err != nil {
		return nil, fmt.Errorf("error registering station collector: %w", err)
	}
	c.registry.MustRegister(
		c.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.Server.Addr = fmt.Sprintf("%v:%v", md.ListenAddr, md.Port)
	c.Server.Handler = c.Handler()
	c.Server.ReadHeaderTimeout = 10 * time.Second
	return c, nil
}

// Handler serves the registry at the configured path.
func (c *Controller) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(c.path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{c.logger},
		ErrorHandling: promhttp.ContinueOnError,
	}))
	return mux
}

// StartController starts the HTTP listener and the poll duration recorder.
func (c *Controller) StartController() error {
	c.logger.Infof("Starting metrics server on %s%s", c.Server.Addr, c.path)

	events := c.source.Subscribe()
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("metrics server error: %v", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		c.record(events)
		c.logger.Info("Shutting down the metrics server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warnf("metrics server shutdown: %v", err)
		}
	}()
	return nil
}

// record observes poll durations until ctx ends or the source closes.
func (c *Controller) record(events <-chan weatherstations.PollEvent) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.observe(ev)
		}
	}
}

func (c *Controller) observe(ev weatherstations.PollEvent) {
	result := "success"
	if ev.Err != nil {
		result = "failure"
	}
	c.duration.WithLabelValues(result).Observe(ev.Duration.Seconds())
}

// promLogger routes promhttp errors through zap.
type promLogger struct {
	l *zap.SugaredLogger
}

func (p promLogger) Println(v ...interface{}) {
	p.l.Error(v...)
}
