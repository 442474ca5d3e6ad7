package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/homytech-sync/internal/activity"
	"github.com/nerrad567/homytech-sync/internal/api"
	"github.com/nerrad567/homytech-sync/internal/channel"
	"github.com/nerrad567/homytech-sync/internal/control"
	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/config"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/database"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/influxdb"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/logging"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/metrics"
	"github.com/nerrad567/homytech-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/homytech-sync/internal/journal"
	"github.com/nerrad567/homytech-sync/internal/mirror"
	"github.com/nerrad567/homytech-sync/internal/realtime"
	"github.com/nerrad567/homytech-sync/internal/telemetry"
	"github.com/nerrad567/homytech-sync/migrations"
)

// runDaemon loads the configuration and runs the daemon until ctx ends.
func runDaemon(ctx context.Context, opts *options) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	return run(ctx, cfg)
}

// run is the daemon, separated from the command for testability.
//
// Every store listener is registered before the snapshot loads so none
// of them misses the initial state.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting homysync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	be, err := connectBackend(ctx, cfg, log)
	if err != nil {
		return err
	}

	store := device.NewStore()
	store.SetLogger(log.Component("store"))

	met := metrics.New()

	commander := control.NewCommander(be.client, store, be.session)
	commander.SetLogger(log.Component("control"))
	commander.SetObserver(met)

	browser := activity.NewBrowser(be.client)
	browser.SetLogger(log.Component("activity"))

	// Local journal (optional)
	var jr *journal.Journal
	if cfg.Journal.Enabled {
		db, err := database.Open(database.Config{Name: cfg.Journal.Name})
		if err != nil {
			return fmt.Errorf("opening journal database: %w", err)
		}
		defer func() {
			log.Info("closing journal database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal database", "error", closeErr)
			}
		}()
		applied, err := db.Migrate(ctx, migrations.Source())
		if err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("journal ready", "migrations_applied", applied, "retention", cfg.Journal.Retention)

		jr = journal.New(db.DB, cfg.Journal.Retention)
		jr.SetLogger(log.Component("journal"))
		store.AddListener(jr)
	}

	// MQTT mirror (optional)
	if cfg.MQTT.Enabled {
		mir, closeMirror, err := startMirror(cfg, commander, log)
		if err != nil {
			return err
		}
		defer closeMirror()
		store.AddListener(mir)
	} else {
		log.Info("MQTT mirror disabled")
	}

	// InfluxDB telemetry (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			stats := influxClient.Stats()
			log.Info("closing InfluxDB connection", "queued", stats.Queued, "dropped", stats.Dropped)
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		store.AddListener(telemetry.NewRecorder(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	svc, err := realtime.New(store, newLoader(cfg, be, store, log, met), realtime.Config{
		ChannelBaseURL: cfg.ChannelBaseURL(),
		Header:         be.session.Header(),
		Backoff: channel.Backoff{
			Initial: cfg.GetInitialDelay(),
			Max:     cfg.GetMaxDelay(),
		},
		MaxMessageSize: int64(cfg.Channels.MaxMessageSize),
		ReadTimeout:    cfg.GetChannelReadTimeout(),
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.GetHandshakeTimeout(),
		},
		Logger:   log,
		Observer: met,
	})
	if err != nil {
		return fmt.Errorf("creating realtime service: %w", err)
	}
	met.MustRegister(metrics.NewChannelCollector(svc))

	// Local API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:         cfg.API,
			WS:             cfg.WebSocket,
			Metrics:        cfg.Metrics,
			Logger:         log,
			Store:          store,
			Commander:      commander,
			Logs:           browser,
			Channels:       svc,
			MetricsHandler: met.Handler(),
			Version:        version,
		}
		if jr != nil {
			deps.Journal = jr
		}
		server, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting realtime service: %w", err)
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			log.Error("error closing realtime service", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"state_known", store.Known(),
		"channel_base_url", cfg.ChannelBaseURL(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startMirror connects to the broker and starts the state mirror. The
// returned func stops the mirror and then disconnects.
func startMirror(cfg *config.Config, commander *control.Commander, log *logging.Logger) (*mirror.Mirror, func(), error) {
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttClient.SetLogger(log.Component("mqtt"))

	mir := mirror.New(mqttClient, mqttClient.Topics(), mqttClient.QoS())
	mir.SetLogger(log.Component("mirror"))

	// Retained state published while the broker was away failed; send the
	// latest of each group again.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		mir.Resync()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"prefix", mqttClient.Topics().Prefix(),
	)

	if cfg.MQTT.Commands {
		mir.SetToggler(commander)
		topic := mqttClient.Topics().AllCommands()
		if err := mqttClient.Subscribe(topic, mqttClient.QoS(), mir.HandleCommand); err != nil {
			mqttClient.Close() //nolint:errcheck // already failing
			return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		log.Info("MQTT commands enabled", "topic", topic)
	}
	mir.Start()

	closeFn := func() {
		mir.Close()
		stats := mir.Stats()
		log.Info("disconnecting from MQTT",
			"published", stats.Published,
			"superseded", stats.Superseded,
			"dropped", stats.Dropped,
		)
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}
	return mir, closeFn, nil
}
