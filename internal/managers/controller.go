package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/controllers/grpchealth"
	"github.com/chrissnell/wlcloud/internal/controllers/metrics"
	"github.com/chrissnell/wlcloud/internal/controllers/mqtt"
	"github.com/chrissnell/wlcloud/internal/controllers/restserver"
	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
)

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// ControllerManager creates and starts every configured controller.
type ControllerManager struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	entry       config.EntryData
	source      weatherstations.Source
	builder     *entity.Builder
	maxAge      time.Duration
	logger      *zap.SugaredLogger
	controllers []Controller
}

// NewControllerManager creates a controller for each configured section.
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, source weatherstations.Source,
	builder *entity.Builder, maxAge time.Duration, logger *zap.SugaredLogger) (*ControllerManager, error) {
	cm := &ControllerManager{
		ctx:         ctx,
		wg:          wg,
		entry:       cfg.Entry,
		source:      source,
		builder:     builder,
		maxAge:      maxAge,
		logger:      logger,
		controllers: make([]Controller, 0, len(cfg.Controllers)),
	}

	for _, con := range cfg.Controllers {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating %s controller: %v", con.Type, err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

// StartControllers starts every controller in configuration order.
func (cm *ControllerManager) StartControllers() error {
	cm.logger.Info("Starting controller manager...")

	for _, controller := range cm.controllers {
		if err := controller.StartController(); err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	cm.logger.Infof("Started %d controllers successfully", len(cm.controllers))
	return nil
}

// Len reports how many controllers were configured.
func (cm *ControllerManager) Len() int {
	return len(cm.controllers)
}

// createController creates a controller based on the controller configuration.
// Missing sections fall back to each controller's defaults, except MQTT which
// cannot run without a broker.
func (cm *ControllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "rest", "restserver":
		var rc config.RESTServerData
		if cc.RESTServer != nil {
			rc = *cc.RESTServer
		}
		return restserver.NewController(cm.ctx, cm.wg, rc, cm.entry, cm.source, cm.builder, cm.maxAge, cm.logger.Named("rest"))
	case "mqtt":
		if cc.MQTT == nil {
			return nil, fmt.Errorf("mqtt controller requires an mqtt section")
		}
		return mqtt.NewController(cm.ctx, cm.wg, *cc.MQTT, cm.source, cm.builder, cm.logger.Named("mqtt"))
	case "metrics", "prometheus":
		var md config.MetricsData
		if cc.Metrics != nil {
			md = *cc.Metrics
		}
		return metrics.NewController(cm.ctx, cm.wg, md, cm.entry.Name, cm.source, cm.logger.Named("metrics"))
	case "health", "grpc-health":
		var hd config.HealthData
		if cc.Health != nil {
			hd = *cc.Health
		}
		return grpchealth.NewController(cm.ctx, cm.wg, hd, cm.source, cm.maxAge, cm.logger.Named("health"))
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
