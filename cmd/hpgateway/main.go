// Command hpgateway mirrors hashpipe status buffers to Redis and routes
// set, query and gateway control commands back into them.
//
// Each managed instance's status buffer is written to the Redis hash
// "<domain>://<gwname>/<instance>/status" every --delay seconds. Commands
// published on the per-instance and broadcast channels update buffers in
// place. An optional Prometheus exporter, MQTT mirror, InfluxDB mirror and
// SQLite history can be enabled through the configuration file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	_ "github.com/nerrad567/hashpipe-gateway/migrations"

	"github.com/nerrad567/hashpipe-gateway/internal/exporter"
	"github.com/nerrad567/hashpipe-gateway/internal/gateway"
	"github.com/nerrad567/hashpipe-gateway/internal/history"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/database"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/redis"
	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errNoBuffers is returned when none of the requested status buffers opened.
var errNoBuffers = errors.New("no status buffers to gateway")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// run parses args, wires every component and blocks until ctx is cancelled
// or a quit command is received. Both end cleanly with a nil error.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, stdout)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		_, _ = fmt.Fprintf(stdout, "hpgateway %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting hashpipe gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)
	if opts.foreground {
		log.Debug("foreground requested; the gateway never daemonizes")
	}

	// Status buffers
	ids := make([]status.InstanceID, 0, len(cfg.Gateway.Instances))
	for _, id := range cfg.Gateway.Instances {
		ids = append(ids, status.InstanceID(id))
	}
	reg, err := status.Open(status.NewFileStore(cfg.Gateway.StatusDir), ids, cfg.Gateway.Create)
	if errors.Is(err, status.ErrNoInstances) {
		log.Error("no status buffers opened", "dir", cfg.Gateway.StatusDir, "error", err)
		return errNoBuffers
	}
	if err != nil {
		log.Warn("some status buffers could not be opened", "error", err)
	}
	defer func() {
		if closeErr := reg.Close(); closeErr != nil {
			log.Error("error closing status buffers", "error", closeErr)
		}
	}()
	log.Info("gateway hashpipe instances", "instances", reg.Describe(cfg.Gateway.Name))

	channels := gateway.Channels{Domain: cfg.Gateway.Domain, Gateway: cfg.Gateway.Name}

	// Redis
	rc, err := redis.Connect(ctx, cfg.Redis, log.Component("redis"))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		log.Info("closing redis connection")
		if closeErr := rc.Close(); closeErr != nil {
			log.Error("error closing redis", "error", closeErr)
		}
	}()

	// Optional sinks
	sinks, closeSinks := openSinks(ctx, cfg, channels, log)
	defer closeSinks()

	// Metrics
	promReg := prometheus.NewRegistry()
	metrics, err := exporter.NewGatewayMetrics(promReg)
	if err != nil {
		return fmt.Errorf("registering gateway metrics: %w", err)
	}
	if cfg.Exporter.Enabled {
		srv, srvErr := startExporter(ctx, cfg, reg, promReg, log)
		if srvErr != nil {
			return srvErr
		}
		defer func() {
			log.Info("stopping exporter")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping exporter", "error", closeErr)
			}
		}()
	}

	gw, err := gateway.New(gateway.Options{
		Channels:    channels,
		Registry:    reg,
		Broker:      gateway.NewRedisBroker(rc),
		Runtime:     gateway.NewRuntime(cfg.Gateway.Delay, cfg.Gateway.Notify, cfg.Gateway.Expire),
		LockTimeout: cfg.GetLockTimeout(),
		Sinks:       sinks,
		Metrics:     metrics,
		Logger:      log.Component("gateway"),
	})
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}

	log.Info("gateway running",
		"domain", cfg.Gateway.Domain,
		"name", cfg.Gateway.Name,
		"redis", rc.Addr(),
		"delay", cfg.Gateway.Delay,
	)

	err = gw.Run(ctx)
	switch {
	case errors.Is(err, gateway.ErrQuit):
		log.Info("quit command received, shutting down")
		return nil
	case err == nil, errors.Is(err, context.Canceled):
		log.Info("shutdown signal received")
		return nil
	default:
		return fmt.Errorf("gateway: %w", err)
	}
}

// loadConfig loads the configuration file, applies flags and validates.
func loadConfig(opts *options) (*config.Config, error) {
	path := opts.configFile()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := opts.apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSinks connects every enabled snapshot mirror. A mirror that cannot be
// reached is logged and left out; the gateway runs without it.
func openSinks(ctx context.Context, cfg *config.Config, ch gateway.Channels, log *logging.Logger) ([]gateway.SnapshotSink, func()) {
	var sinks []gateway.SnapshotSink
	var closers []func()

	if cfg.MQTT.Enabled {
		mc, err := mqtt.Connect(cfg.MQTT, cfg.Gateway.Name)
		if err != nil {
			log.Warn("mqtt mirror disabled", "error", err)
		} else {
			mc.SetLogger(log.Component("mqtt"))
			sinks = append(sinks, gateway.NewMQTTSink(mc, cfg.MQTT.TopicPrefix, ch, byte(cfg.MQTT.QoS)))
			closers = append(closers, func() {
				if closeErr := mc.Close(); closeErr != nil {
					log.Error("error closing mqtt", "error", closeErr)
				}
			})
			log.Info("mqtt mirror enabled", "host", cfg.MQTT.Broker.Host, "prefix", cfg.MQTT.TopicPrefix)
		}
	}

	if cfg.InfluxDB.Enabled {
		ic, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Warn("influxdb mirror disabled", "error", err)
		} else {
			ilog := log.Component("influxdb")
			ic.SetOnError(func(werr error) {
				ilog.Warn("influxdb write failed", "error", werr)
			})
			sinks = append(sinks, gateway.NewInfluxSink(ic, cfg.InfluxDB.Measurement, ch))
			closers = append(closers, func() {
				if closeErr := ic.Close(); closeErr != nil {
					log.Error("error closing influxdb", "error", closeErr)
				}
			})
			log.Info("influxdb mirror enabled", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	if cfg.History.Enabled {
		if sink, closeDB, err := openHistory(ctx, cfg); err != nil {
			log.Warn("snapshot history disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
			closers = append(closers, func() {
				if closeErr := closeDB(); closeErr != nil {
					log.Error("error closing database", "error", closeErr)
				}
			})
			log.Info("snapshot history enabled", "path", cfg.Database.Path,
				"interval", cfg.GetHistoryInterval(), "retention", cfg.GetHistoryRetention())
		}
	}

	return sinks, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
}

func openHistory(ctx context.Context, cfg *config.Config) (gateway.SnapshotSink, func() error, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	repo := history.NewSQLiteRepository(db.DB)
	sink := gateway.NewHistorySink(repo, cfg.Gateway.Name, cfg.GetHistoryInterval(), cfg.GetHistoryRetention())
	return sink, db.Close, nil
}

// startExporter registers the status buffer collector and starts the HTTP server.
func startExporter(ctx context.Context, cfg *config.Config, reg *status.Registry, promReg *prometheus.Registry, log *logging.Logger) (*exporter.Server, error) {
	elog := log.Component("exporter")

	collector := exporter.NewCollector(exporter.CollectorOptions{
		Registry:    reg,
		Domain:      cfg.Gateway.Domain,
		Gateway:     cfg.Gateway.Name,
		Name:        cfg.Exporter.Name,
		Help:        cfg.Exporter.Help,
		Fields:      cfg.Exporter.Fields,
		LockTimeout: cfg.GetLockTimeout(),
		Logger:      elog,
	})
	if err := promReg.Register(collector); err != nil {
		return nil, fmt.Errorf("registering status collector: %w", err)
	}
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := exporter.New(exporter.Options{
		Bind:     cfg.Exporter.Bind,
		Port:     cfg.Exporter.Port,
		Domain:   cfg.Gateway.Domain,
		Gateway:  cfg.Gateway.Name,
		Gatherer: promReg,
		Logger:   elog,
	})
	if err != nil {
		return nil, fmt.Errorf("creating exporter: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting exporter: %w", err)
	}
	log.Info("exporter listening", "addr", srv.Addr(), "fields", len(cfg.Exporter.Fields))
	return srv, nil
}
