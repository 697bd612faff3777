package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/shortontech/attributionrc/internal/attribution"
	"github.com/shortontech/attributionrc/internal/command"
	httpx "github.com/shortontech/attributionrc/internal/http"
	"github.com/shortontech/attributionrc/internal/lifecycle"
	"github.com/shortontech/attributionrc/internal/metrics"
	"github.com/shortontech/attributionrc/internal/remotecommand"
	"github.com/shortontech/attributionrc/internal/sdk"
	"github.com/shortontech/attributionrc/internal/sink"
	"github.com/shortontech/attributionrc/pkg/config"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := newLogger(cfg)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.NewMetrics()
	metricsServer := metrics.NewServer(metrics.LoadConfig(), log)
	if err := metricsServer.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start metrics server")
	}

	a, err := newApp(ctx, cfg, log, appMetrics)
	if err != nil {
		log.WithError(err).Fatal("failed to start")
	}

	if cfg.DemoMode {
		go runDemo(ctx, a.dispatcher, log)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.ServerAddr,
			"schema":  cfg.Schema,
			"outputs": a.fanout.Names(),
		}).Info("attributionrc listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	if err := a.Close(); err != nil {
		log.WithError(err).Warn("error while closing sinks")
	}
	_ = metricsServer.Shutdown(shutdownCtx)
	_ = tp.Shutdown(shutdownCtx)
}

// loadConfig reads the environment, or a config file named by -config or
// CONFIG_FILE, and validates the result.
func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("attributionrc", flag.ContinueOnError)
	path := fs.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML/JSON/TOML config file")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	var cfg config.Config
	if *path != "" {
		var err error
		if cfg, err = config.LoadFile(*path); err != nil {
			return config.Config{}, err
		}
	} else {
		cfg = config.Load()
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}

// newStore keeps SDK state in Redis when an address is configured.
func newStore(cfg config.Config) (sdk.StateStore, func() error) {
	if cfg.RedisAddr == "" {
		return sdk.NewMemoryStore(), func() error { return nil }
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return sdk.NewRedisStore(rdb, cfg.RedisKey), rdb.Close
}

type app struct {
	fanout     *sink.Fanout
	client     *sdk.Client
	instance   *attribution.Instance
	lifecycle  *lifecycle.Source
	dispatcher *remotecommand.Dispatcher
	handler    http.Handler
	closeStore func() error
}

// newApp wires sinks, the SDK client and the dispatcher behind the HTTP mux.
func newApp(ctx context.Context, cfg config.Config, log *logrus.Logger, m *metrics.Metrics) (*app, error) {
	schema, err := command.ParseSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}

	sinks, err := sink.FromOutputs(cfg.Outputs, log, m)
	if err != nil {
		return nil, err
	}
	fanout := sink.NewFanout(log, m, sinks...)
	if err := fanout.Start(ctx); err != nil {
		return nil, err
	}

	store, closeStore := newStore(cfg)
	client := sdk.NewClient(fanout.Emit,
		sdk.WithStore(store),
		sdk.WithLogger(log),
		sdk.WithQueueObserver(func(depth int) { m.SetQueueDepth("sdk", float64(depth)) }),
	)
	if err := client.Restore(ctx); err != nil {
		_ = fanout.Close()
		_ = closeStore()
		return nil, fmt.Errorf("restore sdk state: %w", err)
	}

	src := lifecycle.NewSource(log)
	inst := attribution.NewInstance(client, src,
		attribution.WithSchema(schema),
		attribution.WithLogger(log),
	)
	d := remotecommand.New(inst,
		remotecommand.WithID(cfg.CommandID),
		remotecommand.WithSchema(schema),
		remotecommand.WithLogger(log),
		remotecommand.WithRecorder(m),
	)

	env := httpx.Env{
		Cfg:        cfg,
		Dispatcher: d,
		Lifecycle:  src,
		Ready:      inst.Initialized,
		Metrics:    m,
		Log:        log,
	}
	if cfg.HMACSecret != "" || cfg.RequireHMAC {
		env.HMACAuth = httpx.NewHMACAuth(cfg.HMACSecret, cfg.RequireHMAC, log)
	}

	return &app{
		fanout:     fanout,
		client:     client,
		instance:   inst,
		lifecycle:  src,
		dispatcher: d,
		handler:    httpx.NewMux(env),
		closeStore: closeStore,
	}, nil
}

// Close flushes the SDK buffer into the sinks before closing them.
func (a *app) Close() error {
	a.client.Flush()
	return errors.Join(a.fanout.Close(), a.closeStore())
}
