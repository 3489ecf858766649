package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ForetagInc/arangodb-events-go/checkpoint"
	"github.com/ForetagInc/arangodb-events-go/data_source/arangodb"
	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/log"
	kafkasink "github.com/ForetagInc/arangodb-events-go/sink/kafka"
	"github.com/ForetagInc/arangodb-events-go/telemetry"
	"github.com/ForetagInc/arangodb-events-go/trigger"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

type subscriptionConfig struct {
	Collection string   `toml:"collection"`
	Events     []string `toml:"events"`
	Keys       []string `toml:"keys"`
}

type metricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

type tailerConfig struct {
	LogLevel            string                  `toml:"log-level"`
	LogPath             string                  `toml:"log-path"`
	Dispatch            string                  `toml:"dispatch"`
	StrictEventGrouping bool                    `toml:"strict-event-grouping"`
	Connection          arangodb.Config         `toml:"connection"`
	Metrics             metricsConfig           `toml:"metrics"`
	Checkpoint          *checkpoint.RedisConfig `toml:"checkpoint"`
	Kafka               *kafkasink.Config       `toml:"kafka"`
	Subscriptions       []subscriptionConfig    `toml:"subscription"`
}

func loadConfig(path string) (*tailerConfig, error) {
	cfg := &tailerConfig{
		LogLevel: "info",
		Dispatch: "sequential",
		Metrics:  metricsConfig{Bind: ":9105"},
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	if len(cfg.Subscriptions) == 0 {
		return nil, errors.New("config has no [[subscription]] blocks")
	}
	return cfg, nil
}

func parseDispatch(s string) (trigger.DispatchMode, error) {
	switch s {
	case "", "sequential":
		return trigger.DispatchSequential, nil
	case "concurrent":
		return trigger.DispatchConcurrent, nil
	}
	return trigger.DispatchSequential, errors.Errorf("unknown dispatch mode %q", s)
}

type logHandler struct{}

func (logHandler) Invoke(_ *trigger.HandlerContext, op *wal.DocumentOperation) error {
	log.Infof("%s %s/%s rev=%s tick=%s", op.Kind, op.Collection, op.Key, op.Revision, op.Tick)
	return nil
}

func buildHandler(cfg *tailerConfig) (trigger.Handler, func() error, error) {
	if cfg.Kafka == nil {
		return logHandler{}, func() error { return nil }, nil
	}
	sink, err := cfg.Kafka.Connect()
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return sink, sink.Close, nil
}

func buildStore(cfg *tailerConfig) (checkpoint.Store, func() error, error) {
	if cfg.Checkpoint == nil {
		return checkpoint.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := cfg.Checkpoint.Connect()
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	return store, store.Close, nil
}

func run() error {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return errors.Trace(err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log.Init(cfg.LogLevel, cfg.LogPath)

	mode, err := parseDispatch(cfg.Dispatch)
	if err != nil {
		return errors.Trace(err)
	}

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer closeStore()

	handler, closeHandler, err := buildHandler(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	defer closeHandler()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start, err := store.Load(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	tr, err := trigger.NewWithConfig(trigger.Config{
		Connection:          cfg.Connection,
		Dispatch:            mode,
		StrictEventGrouping: cfg.StrictEventGrouping,
		StartPosition:       start,
	})
	if err != nil {
		return errors.Trace(err)
	}

	for _, sub := range cfg.Subscriptions {
		for _, name := range sub.Events {
			ev, perr := trigger.ParseEvent(name)
			if perr != nil {
				return errors.Trace(perr)
			}
			if sub.Collection == "" {
				tr.Subscribe(ev, handler, nil, sub.Keys...)
			} else {
				tr.SubscribeTo(ev, sub.Collection, handler, nil, sub.Keys...)
			}
		}
	}

	if cfg.Metrics.Enabled {
		telemetry.Initialize()
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		go func() {
			if serveErr := http.ListenAndServe(cfg.Metrics.Bind, mux); serveErr != nil {
				log.Errorf("metrics listener on %s: %v", cfg.Metrics.Bind, serveErr)
			}
		}()
	}

	if err = tr.Init(ctx); err != nil {
		return errors.Trace(err)
	}

	go persistLoop(ctx, tr, store)

	err = tr.Start(ctx)
	savePosition(tr, store)
	log.Infof("tailer exited at tick %s, phase %s", tr.CurrentPosition(), tr.Phase())
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Trace(err)
	}
	return nil
}

func persistLoop(ctx context.Context, tr *trigger.Trigger, store checkpoint.Store) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			savePosition(tr, store)
		}
	}
}

func savePosition(tr *trigger.Trigger, store checkpoint.Store) {
	pos := tr.CurrentPosition()
	if !pos.Check() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Save(ctx, pos); err != nil {
		log.Errorf("save checkpoint at tick %s: %v", pos, err)
	}
}

func main() {
	if err := run(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
