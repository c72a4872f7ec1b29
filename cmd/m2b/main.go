// m2b - MQTT to Broadlink bridge
//
// m2b listens on an MQTT broker for requests to send, learn and manage
// infrared/RF codes and relays them to Broadlink RM transceivers on the
// local network. Devices, commands and the log level persist in a single
// config file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/api"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/config"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/database"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt2broadlink/internal/journal"
	"github.com/nerrad567/mqtt2broadlink/internal/learning"
	"github.com/nerrad567/mqtt2broadlink/internal/metrics"
	"github.com/nerrad567/mqtt2broadlink/internal/registry"
	"github.com/nerrad567/mqtt2broadlink/internal/router"
	"github.com/nerrad567/mqtt2broadlink/internal/store"
	"github.com/nerrad567/mqtt2broadlink/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// configEnv names the variable that overrides config.DefaultPath.
const configEnv = "M2B_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge and blocks until ctx is cancelled.
//
// Returns:
//   - error: nil on clean shutdown, or the startup failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo,funlen // linear startup sequence
	log := logging.Default()
	log.Info("starting m2b",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// The persisted level lives in the same document, so cfg.Logging.Level
	// already reflects the last log/level request.
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"prefix", cfg.MQTT.Prefix,
	)

	inventory := store.New(cfg.Document())
	log.Info("inventory loaded",
		"devices", len(inventory.DeviceNames()),
		"commands", len(inventory.CommandNames()),
	)

	var recorders []router.Recorder

	// Metrics (optional)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		recorders = append(recorders, m)
	}

	// Device registry
	devices := registry.New(inventory, registry.BroadlinkOpener{
		Timeout: cfg.Broadlink.Timeout,
		LocalIP: cfg.Broadlink.LocalIP,
	})
	devices.SetLogger(log)
	if m != nil {
		devices.OnOpenCount(m.SetDevicesOpen)
	}
	defer func() {
		log.Info("closing device handles")
		if closeErr := devices.Close(); closeErr != nil {
			log.Error("error closing device handles", "error", closeErr)
		}
	}()

	// Command journal (optional). A journal that cannot be opened is logged
	// and left off; the bridge still serves commands without it.
	db, jnl := openJournal(ctx, cfg.Database, log)
	if db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		recorders = append(recorders, jnl)
	}

	// Telemetry (optional). Same policy as the journal.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			log.Error("InfluxDB unavailable, telemetry disabled",
				"url", cfg.InfluxDB.URL,
				"error", err,
			)
			influxClient = nil
		}
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorders = append(recorders, influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	rt, err := router.New(router.Deps{
		Prefix:          cfg.MQTT.Prefix,
		Devices:         devices,
		Commands:        inventory,
		Learner:         learning.NewSession(),
		Levels:          log,
		DiscoverTimeout: cfg.Broadlink.Timeout,
		LocalIP:         cfg.Broadlink.LocalIP,
		Logger:          log,
		Recorders:       recorders,
	})
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	// Open configured devices before taking traffic.
	opened := devices.Warm(ctx)
	log.Info("device registry initialised",
		"configured", len(inventory.DeviceNames()),
		"open", opened,
	)

	// Connect to MQTT broker. This is the only fatal runtime dependency.
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT, log)
	if err != nil {
		log.Critical("unable to reach MQTT broker",
			"host", cfg.MQTT.Host,
			"port", cfg.MQTT.Port,
			"attempts", cfg.MQTT.ConnectAttempts,
			"error", err,
		)
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
		"client_id", cfg.MQTT.ClientID,
	)

	inbox := mqtt.NewInbox(mqtt.DefaultInboxSize)
	inbox.OnDrop(func(msg mqtt.Message) {
		log.Warn("inbox full, dropping message", "topic", msg.Topic)
		if m != nil {
			m.InboxDropped(msg)
		}
	})
	defer inbox.Close()

	topics := mqttClient.Topics()
	// #nosec G115 -- qos validated to 0..2 by config
	if subErr := mqttClient.SubscribeAll(topics.Subscriptions(), byte(cfg.MQTT.QoS), inbox.Handler()); subErr != nil {
		return fmt.Errorf("subscribing: %w", subErr)
	}
	log.Info("subscribed",
		"topics", topics.Subscriptions(),
		"count", mqttClient.SubscriptionCount(),
	)

	health := func(ctx context.Context) error {
		return healthCheck(ctx, mqttClient, db, influxClient)
	}

	// Status endpoint (optional)
	if m != nil {
		deps := api.Deps{
			Listen:    cfg.Metrics.Listen,
			Version:   version,
			Logger:    log,
			Health:    health,
			Metrics:   m.Handler(),
			Inventory: inventory,
		}
		if jnl != nil {
			deps.Journal = jnl
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating HTTP server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting HTTP server: %w", startErr)
		}
		defer func() {
			log.Info("stopping HTTP server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping HTTP server", "error", closeErr)
			}
		}()
	}

	// Only the broker gates startup. Optional sinks report through /health.
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if err := health(ctx); err != nil {
		log.Warn("optional dependency unhealthy", "error", err)
	}
	log.Info("initialisation complete, waiting for requests")

	if err := rt.Run(ctx, inbox); err != nil {
		return fmt.Errorf("dispatch loop: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// HTTP server, inbox, MQTT, InfluxDB, database, device handles.
	return nil
}

// openJournal opens the journal database and runs its migrations. Failures
// are logged and reported as nil so the caller runs without a journal.
func openJournal(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, *journal.Journal) {
	if !cfg.Enabled {
		return nil, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Error("journal database unavailable, journal disabled", "path", cfg.Path, "error", err)
		return nil, nil
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		log.Error("journal migrations failed, journal disabled", "path", cfg.Path, "error", err)
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
		return nil, nil
	}

	jnl := journal.New(db.DB)
	log.Info("command journal enabled", "path", db.Path())

	if cfg.Retention > 0 {
		pruned, err := jnl.Prune(ctx, time.Now().Add(-cfg.Retention))
		if err != nil {
			log.Warn("journal pruning failed", "error", err)
		} else if pruned > 0 {
			log.Info("journal pruned", "entries", pruned, "retention", cfg.Retention)
		}
	}
	return db, jnl
}

// getConfigPath returns the configuration file path.
// Uses M2B_CONFIG environment variable if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return config.DefaultPath
}

// healthCheck verifies the bridge's connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - mqttClient: MQTT client to check
//   - db: Journal database to check (nil if disabled)
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, db *database.DB, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
