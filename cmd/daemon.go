package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"robot_control/internal/accesspoint"
	"robot_control/internal/config"
	"robot_control/internal/device"
	"robot_control/internal/hal"
	"robot_control/internal/handlers"
	"robot_control/internal/logger"
	"robot_control/internal/metrics"
	"robot_control/internal/repository"
	"robot_control/internal/repository/db"
	"robot_control/internal/server"
	"robot_control/internal/service"

	"github.com/gin-gonic/gin"
	kservice "github.com/kardianos/service"
)

const shutdownTimeout = 10 * time.Second

// program implements kservice.Interface. Start must not block, so the
// daemon runs in its own goroutine until Stop cancels it.
type program struct {
	cfgFile string

	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s kservice.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := run(ctx, p.cfgFile); err != nil {
			fmt.Fprintln(os.Stderr, "robotd:", err)
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(s kservice.Service) error {
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(shutdownTimeout + time.Second):
	}
	return nil
}

// run wires the daemon and blocks until ctx is cancelled.
func run(ctx context.Context, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log := logger.Get(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer func() { _ = log.Sync() }()

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer closeDB(sqlDB, log)

	pin, err := hal.OpenPin(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("open pin: %w", err)
	}

	// wire dependencies
	dev := device.New(pin, log)
	m := metrics.New()
	repos := repository.NewRepository(sqlDB)
	services := service.NewService(repos, dev, m, log)
	apiHandler := handlers.NewHandler(services, m, log)

	if err := services.Startup(ctx); err != nil {
		return err
	}

	ap := accesspoint.New(accesspoint.FromConfig(cfg.AccessPoint), log)
	ip, err := ap.Up(ctx)
	if err != nil {
		return fmt.Errorf("access point: %w", err)
	}
	defer takeDown(ap, log)
	if ip != "" {
		log.Infow("robot_api_address", "url", "http://"+ip+"/")
	}

	go services.Sampler.Run(ctx, cfg.Sampler.Tick)

	if cfg.Log.Level != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	robotSrv := &server.Server{}
	adminSrv := &server.Server{}
	errCh := make(chan error, 2)
	go func() {
		// Handlers stay open for the whole command duration after replying.
		errCh <- robotSrv.Run(cfg.Robot.Port, apiHandler.InitRoutes(), server.WithWriteTimeout(0))
	}()
	go func() {
		errCh <- adminSrv.Run(cfg.Admin.Port, apiHandler.InitAdminRoutes())
	}()
	log.Infow("robot_daemon_started", "robot_port", cfg.Robot.Port, "admin_port", cfg.Admin.Port,
		"gpio_driver", cfg.GPIO.Driver, "pin", pin.Name())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			log.Errorw("http_server_failed", "err", runErr)
		}
	}

	log.Infow("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	for _, srv := range []*server.Server{robotSrv, adminSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("server forced to shutdown", "err", err)
		}
	}
	return runErr
}

func takeDown(ap accesspoint.AccessPoint, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ap.Down(ctx); err != nil {
		log.Errorw("access_point_down_failed", "err", err)
	}
}

func closeDB(sqlDB *sql.DB, log *logger.Logger) {
	if err := sqlDB.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}
