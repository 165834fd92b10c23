// Package grpchealth serves the standard gRPC health protocol for the station.
package grpchealth

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
)

// ServiceName is the named service reported alongside the overall ("") one.
const ServiceName = "wlcloud.Station"

const (
	defaultListenAddr = "0.0.0.0"
	defaultPort       = 50051
)

// Controller reports SERVING while the station is healthy.
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	source     weatherstations.Source
	maxAge     time.Duration
	listenAddr string
	Server     *grpc.Server
	health     *health.Server
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// NewController creates the gRPC server with the health and reflection
// services registered. maxAge has the same meaning as for the REST /healthz.
func NewController(ctx context.Context, wg *sync.WaitGroup, hc config.HealthData, source weatherstations.Source,
	maxAge time.Duration, logger *zap.SugaredLogger) (*Controller, error) {
	if source == nil {
		return nil, fmt.Errorf("health controller requires a station source")
	}
	if hc.ListenAddr == "" {
		hc.ListenAddr = defaultListenAddr
	}
	if hc.Port == 0 {
		logger.Infof("health.port not provided; defaulting to %d", defaultPort)
		hc.Port = defaultPort
	}

	c := &Controller{
		ctx:        ctx,
		wg:         wg,
		source:     source,
		maxAge:     maxAge,
		listenAddr: fmt.Sprintf("%v:%v", hc.ListenAddr, hc.Port),
		health:     health.NewServer(),
		logger:     logger,
		now:        time.Now,
	}

	if hc.Cert != "" && hc.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(hc.Cert, hc.Key)
		if err != nil {
			return nil, fmt.Errorf("could not create TLS server from keypair: %v", err)
		}
		c.Server = grpc.NewServer(grpc.Creds(creds))
	} else {
		c.Server = grpc.NewServer()
	}

	healthpb.RegisterHealthServer(c.Server, c.health)
	reflection.Register(c.Server)
	c.update()

	return c, nil
}

// update maps the station status onto both service names.
func (c *Controller) update() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if c.source.Status().Healthy(c.now(), c.maxAge) {
		status = healthpb.HealthCheckResponse_SERVING
	}
	c.health.SetServingStatus("", status)
	c.health.SetServingStatus(ServiceName, status)
	return status
}

// StartController listens and keeps the serving status current. Status is
// refreshed on every poll and on a timer, since a station that stops polling
// altogether must still turn NOT_SERVING once its data is too old.
func (c *Controller) StartController() error {
	l, err := net.Listen("tcp", c.listenAddr)
	if err != nil {
		return fmt.Errorf("health controller could not create listener: %w", err)
	}
	return c.serve(l)
}

func (c *Controller) serve(l net.Listener) error {
	c.logger.Infof("gRPC health listening on %s", l.Addr())
	events := c.source.Subscribe()

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(l); err != nil {
			c.logger.Errorf("gRPC health serve error: %v", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		c.watch(events)
		c.logger.Info("Stopping gRPC health controller...")
		c.health.Shutdown()
		c.Server.GracefulStop()
	}()
	return nil
}

func (c *Controller) watch(events <-chan weatherstations.PollEvent) {
	interval := c.maxAge / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := c.update()
	for {
		select {
		case <-c.ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-ticker.C:
		}
		if s := c.update(); s != last {
			c.logger.Infof("health status changed to %s", s)
			last = s
		}
	}
}
