// Package gateway wires the report server together: configuration,
// catalog, compiled artifact cache, connection pools, render engine,
// and the HTTP API.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apiv1 "github.com/tsyork/loanwatch-jasper-reports/pkg/api/v1"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/catalog"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/common"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/compiler"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/datasource"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/engine"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/report"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/reports"
	"github.com/tsyork/loanwatch-jasper-reports/pkg/types"
)

const shutdownTimeout = 10 * time.Second

type Gateway struct {
	Config     types.AppConfig
	httpServer *http.Server
	echo       *echo.Echo
	ctx        context.Context
	cancelFunc context.CancelFunc

	baseRouteGroup *echo.Group
	rootRouteGroup *echo.Group

	catalog *catalog.Catalog
	cache   *compiler.Cache
	pools   *datasource.Manager
	service *report.Service
	poller  *catalog.Poller
	watcher *catalog.Watcher
}

func NewGateway() (*Gateway, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return nil, err
	}
	config := configManager.GetConfig()

	cat, err := catalog.New(config.Reports.WritablePath, reports.Bundle)
	if err != nil {
		return nil, err
	}

	eng := engine.NewSQLEngine()
	cache := compiler.NewCache(config.Reports.CacheSize, cat.Scanner, eng.Compile)
	cat.Scanner.OnEvict(cache.Remove)

	// Configuration values win over the environment when resolving
	// ${VAR:default} placeholders in credentials.
	resolver := common.NewResolver(configManager.GetRawValue)
	pools := datasource.NewManager(config.DataSource, resolver)

	defaultFormat, err := engine.ParseFormat(config.Reports.DefaultFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid default format: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	gateway := &Gateway{
		Config:     config,
		ctx:        ctx,
		cancelFunc: cancel,
		catalog:    cat,
		cache:      cache,
		pools:      pools,
		service:    report.NewService(cat, cache, pools, eng, defaultFormat),
	}

	// Initial scan so the catalog is populated before the first request
	count := cat.Rescan()
	log.Info().Int("templates", count).Msg("template catalog loaded")

	return gateway, nil
}

func (g *Gateway) initHTTP() error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())

	if g.Config.Gateway.HTTP.EnablePrettyLogs {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		}))
	}

	e.Use(middleware.Recover())

	g.echo = e
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port),
		Handler: e,
	}

	g.baseRouteGroup = e.Group(apiv1.HttpServerBaseRoute)
	g.rootRouteGroup = e.Group(apiv1.HttpServerRootRoute)

	apiv1.NewHealthGroup(g.baseRouteGroup.Group("/health"), g.service)
	apiv1.NewReportsGroup(g.baseRouteGroup.Group("/reports"), g.service)
	apiv1.NewDataSourcesGroup(g.baseRouteGroup.Group("/datasources"), g.service)

	return nil
}

// startBackground launches the rescan poller and, when a writable
// directory is configured, the filesystem watcher that feeds it.
func (g *Gateway) startBackground() {
	var trigger <-chan struct{}

	if g.Config.Reports.WritablePath != "" {
		watcher, err := catalog.NewWatcher(g.Config.Reports.WritablePath)
		if err != nil {
			log.Warn().Err(err).Msg("filesystem watcher unavailable, falling back to polling only")
		} else {
			g.watcher = watcher
			trigger = watcher.Trigger()
			go watcher.Start(g.ctx)
		}
	}

	g.poller = catalog.NewPoller(g.catalog.Scanner, g.Config.Reports.ScanInterval, trigger)
	go g.poller.Start(g.ctx)
}

// StartAsync starts the gateway servers without blocking
func (g *Gateway) StartAsync() error {
	if err := g.initHTTP(); err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	g.startBackground()

	go func() {
		addr := fmt.Sprintf("%s:%d", g.Config.Gateway.HTTP.Host, g.Config.Gateway.HTTP.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error().Err(err).Msg("failed to listen on http")
			return
		}

		if err := g.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	log.Info().
		Str("host", g.Config.Gateway.HTTP.Host).
		Int("port", g.Config.Gateway.HTTP.Port).
		Msg("gateway http server running")

	return nil
}

func (g *Gateway) Start() error {
	if err := g.StartAsync(); err != nil {
		return err
	}

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	<-terminationSignal

	log.Info().Msg("termination signal received. shutting down...")
	g.shutdown()

	return nil
}

// Shutdown gracefully shuts down the gateway (exported for external use)
func (g *Gateway) Shutdown() {
	g.shutdown()
}

func (g *Gateway) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return g.httpServer.Shutdown(ctx)
	})

	// stops the poller and watcher
	g.cancelFunc()

	eg.Go(func() error {
		g.pools.Close()
		return nil
	})

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("failed to shutdown gateway gracefully")
	}

	log.Info().Msg("gateway stopped")
}
