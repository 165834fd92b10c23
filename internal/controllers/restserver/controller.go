package restserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/log"
	"github.com/chrissnell/wlcloud/internal/weatherstations"
	"github.com/chrissnell/wlcloud/pkg/config"
)

const (
	defaultListenAddr = "0.0.0.0"
	defaultPort       = 8080
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	entry      config.EntryData
	source     weatherstations.Source
	builder    *entity.Builder
	maxAge     time.Duration
	Server     http.Server
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// NewController creates a new REST server controller. maxAge bounds how old
// the last successful poll may be before /healthz reports unhealthy.
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, entry config.EntryData,
	source weatherstations.Source, builder *entity.Builder, maxAge time.Duration, logger *zap.SugaredLogger) (*Controller, error) {
	if source == nil {
		return nil, fmt.Errorf("REST server requires a station source")
	}

	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = defaultListenAddr
	}
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", defaultPort)
		rc.Port = defaultPort
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		entry:      entry,
		source:     source,
		builder:    builder,
		maxAge:     maxAge,
		logger:     logger,
		now:        time.Now,
	}
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warnf("REST server shutdown: %v", err)
		}
	}()

	return nil
}

// Handler returns the router wrapped in the access log, recovery, gzip and
// CORS middleware.
func (c *Controller) Handler() http.Handler {
	var h http.Handler = c.setupRouter()
	h = handlers.CompressHandler(h)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Accept"}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{c.logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
	return handlers.CustomLoggingHandler(io.Discard, h, log.AccessLogFormatter)
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.sendError(w, r, http.StatusNotFound, "not found", nil)
	})

	router.HandleFunc("/observation", c.getObservation).Methods(http.MethodGet)
	router.HandleFunc("/transmitters/{id:-?[0-9]+}", c.getTransmitter).Methods(http.MethodGet)
	router.HandleFunc("/transmitters/{id:-?[0-9]+}/fields/{field}", c.getField).Methods(http.MethodGet)
	router.HandleFunc("/status", c.getStatus).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.getHealth).Methods(http.MethodGet)

	router.Handle("/diagnostics", c.authMiddleware(http.HandlerFunc(c.getDiagnostics))).Methods(http.MethodGet)

	return router
}

// authMiddleware checks the bearer token when one is configured.
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := c.restConfig.DiagnosticsToken
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			c.logger.Debugf("diagnostics auth failed from %s", r.RemoteAddr)
			c.sendError(w, r, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryLogger lets gorilla's recovery handler report panics through zap.
type recoveryLogger struct {
	l *zap.SugaredLogger
}

func (r recoveryLogger) Println(v ...interface{}) {
	r.l.Error(v...)
}
