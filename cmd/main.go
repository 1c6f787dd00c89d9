package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "controlling_tanks/docs"
	"controlling_tanks/internal/alert"
	"controlling_tanks/internal/config"
	"controlling_tanks/internal/handlers"
	"controlling_tanks/internal/logger"
	"controlling_tanks/internal/metrics"
	"controlling_tanks/internal/repository"
	"controlling_tanks/internal/repository/db"
	"controlling_tanks/internal/sensor"
	"controlling_tanks/internal/server"
	"controlling_tanks/internal/service"
	"controlling_tanks/internal/telemetry"
	"controlling_tanks/internal/waterlevel"
)

const shutdownTimeout = 10 * time.Second

// @title                       Tank Controller API
// @version                     1.0
// @description                 Pump safety coordination and water-level monitoring.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	configPath := flag.String("config", "", "path to config.yml (default configs/config.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer closeDB(sqlDB, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos := repository.NewRepository(sqlDB)
	m := metrics.New()

	// sensors
	drv, closeDrv := openDriver(cfg, log)
	defer closeDrv()
	overflow := openOverflow(cfg.Overflow, drv)

	levels := waterlevel.NewSystem(cfg.Sensor, drv, overflow, log.Named("waterlevel"))
	if err := levels.Init(); err != nil {
		log.Fatalw("failed to init water level system", "err", err)
	}

	// event sinks and alerting
	journal, err := repository.NewEventJournal(cfg.Storage.EventLog)
	if err != nil {
		log.Fatalw("failed to open event journal", "err", err)
	}
	recorders := alert.MultiRecorder{repos.EventRepo, journal}
	notifiers := alert.MultiNotifier{}

	if cfg.Alerts.MQTTBroker != "" {
		// disconnects when ctx is canceled at shutdown
		client, err := alert.ConnectMQTT(ctx, cfg.Alerts.MQTTBroker, cfg.Alerts.MQTTClientID, log.Named("mqtt"))
		if err != nil {
			log.Errorw("mqtt unavailable; events will not be published", "broker", cfg.Alerts.MQTTBroker, "err", err)
		} else {
			pub := alert.NewMQTTPublisher(client, cfg.Alerts.MQTTTopic, log.Named("mqtt"))
			recorders = append(recorders, pub)
			notifiers = append(notifiers, pub)
		}
	}
	if cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookTimeout, log.Named("webhook")))
	}

	safety := service.NewPumpSafetyService(cfg.Safety, service.PumpSafetyDeps{
		Levels:       levels,
		Overflow:     overflow,
		Recorder:     recorders,
		Alerter:      notifiers,
		Markers:      repository.NewMarkerFile(cfg.Storage.EmergencyMarker),
		Calibrations: repository.NewCalibrationFiles(cfg.Storage.CalibrationDir),
		Stats:        repos.PumpStatsRepo,
		Metrics:      m,
		Log:          log.Named("safety"),
	})
	if err := safety.RestoreState(ctx); err != nil {
		log.Errorw("failed to restore pump state", "err", err)
	}

	// level history
	sinks := []service.ReadingSink{repos.ReadingRepo}
	if cfg.Influx.Enabled() {
		influx := telemetry.NewInfluxSink(cfg.Influx)
		defer influx.Close()
		sinks = append(sinks, influx)
	}
	supervisor := service.NewSupervisorService(safety, levels, overflow, m, log.Named("supervisor"), sinks...)

	jobs, err := service.NewJobs(cfg.Jobs.SnapshotSchedule, safety, log.Named("jobs"))
	if err != nil {
		log.Fatalw("failed to schedule jobs", "err", err)
	}

	// wire dependencies
	services := service.NewService(repos, service.Deps{
		Safety:     safety,
		Levels:     levels,
		Auth:       service.NewAuthService(repos.Auth, cfg.Auth),
		Supervisor: supervisor,
	})
	apiHandler := handlers.NewHandler(services, m.Handler(), log.Named("http"))

	// start supervisor and scheduled jobs
	go services.Supervisor.Run(ctx, cfg.Jobs.PollInterval)
	jobs.Start()

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	jobs.Stop(stopCtx)
	if err := safety.SnapshotStats(stopCtx); err != nil {
		log.Errorw("final stats snapshot failed", "err", err)
	}
	safety.Close()
}

// openDriver opens the GPIO chip. Without one the sensors run degraded and
// report fallback levels instead of refusing to start.
func openDriver(cfg *config.Config, log *logger.Logger) (sensor.TimingDriver, func()) {
	if cfg.Sensor.SensorType == config.SensorMock && cfg.Overflow.Source == config.OverflowStatic {
		return sensor.Unavailable{}, func() {}
	}
	chip, err := sensor.OpenChip(cfg.Sensor.GPIOChip)
	if err != nil {
		log.Warnw("gpio unavailable; level sensors will run in fallback mode", "chip", cfg.Sensor.GPIOChip, "err", err)
		return sensor.Unavailable{Err: err}, func() {}
	}
	return chip, func() {
		if cerr := chip.Close(); cerr != nil {
			log.Errorw("failed to release gpio lines", "err", cerr)
		}
	}
}

func openOverflow(cfg config.OverflowConfig, drv sensor.TimingDriver) sensor.OverflowProvider {
	if cfg.Source == config.OverflowStatic {
		return sensor.NewStaticOverflow()
	}
	return sensor.NewFloatSwitches(drv, map[string]int{
		config.Tank1: cfg.Tank1Pin,
		config.Tank2: cfg.Tank2Pin,
	})
}

func closeDB(sqlDB *sql.DB, log *logger.Logger) {
	if cerr := sqlDB.Close(); cerr != nil {
		log.Errorw("failed to close sqlite", "err", cerr)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
