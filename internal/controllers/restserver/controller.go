// Package restserver exposes the calibration engine over HTTP
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chrissnell/autocal/internal/engine"
	"github.com/chrissnell/autocal/internal/log"
	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/chrissnell/autocal/pkg/config"
	"github.com/chrissnell/autocal/pkg/responseformat"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Submitter runs one event or reset to completion, in order with the
// device's other submissions
type Submitter interface {
	Submit(ctx context.Context, ev engine.Event) (engine.Result, error)
	Reset(ctx context.Context, deviceID string, behavior types.ResetBehavior) (types.EventRecord, error)
}

// Deps are the services the handlers read from and write to
type Deps struct {
	Submitter Submitter
	Store     storage.HistoryStore
	Health    *storage.HealthManager
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	deps       Deps
	formatter  *responseformat.Formatter
	logger     *zap.SugaredLogger
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, deps Deps, logger *zap.SugaredLogger) (*Controller, error) {
	if deps.Submitter == nil || deps.Store == nil {
		return nil, fmt.Errorf("REST server requires an event submitter and a history store")
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		deps:       deps,
		formatter:  responseformat.NewFormatter(),
		logger:     logger,
	}

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Router()
	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server controller", "addr", c.Server.Addr)
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
		c.logger.Info("shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// Router configures the HTTP router with all endpoints
func (c *Controller) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger.Named("http")))

	router.HandleFunc("/devices/{device}/events", c.submitEvent).Methods(http.MethodPost)
	router.HandleFunc("/devices/{device}/history", c.getHistory).Methods(http.MethodGet)
	router.HandleFunc("/devices/{device}/rotation", c.getRotation).Methods(http.MethodGet)
	router.HandleFunc("/devices/{device}/reset", c.resetDevice).Methods(http.MethodPost)
	router.HandleFunc("/health", c.getHealth).Methods(http.MethodGet)
	router.HandleFunc("/version", c.getVersion).Methods(http.MethodGet)

	return router
}
