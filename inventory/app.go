package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nexacart/order-events/common/discovery"
	"github.com/nexacart/order-events/common/discovery/consul"
	"github.com/nexacart/order-events/common/logger"
	"github.com/nexacart/order-events/common/metrics"
	"github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/eventing/envelope"
	"github.com/nexacart/order-events/eventing/store"
	"github.com/nexacart/order-events/resilience/breaker"
	"github.com/nexacart/order-events/resilience/health"
	"github.com/nexacart/order-events/resilience/reconnect"
)

// Config is the Inventory service's full environment-variable surface,
// per SPEC_FULL.md §6.
type Config struct {
	ServiceName      string
	InstanceID       string
	HTTPAddr         string
	ConsulAddr       string
	AMQPUser         string
	AMQPPass         string
	AMQPHost         string
	AMQPPort         string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPass     string
	PostgresDB       string
	Prefetch         int
	MaxRetries       int
	ReadinessTimeout time.Duration
	ReadyCheckQueue  string
	BreakerDisabled  bool
	BreakerPercent   int
	BreakerVolume    int
}

func (c Config) postgresConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

func (c Config) breakerOptions() breaker.Options {
	return breaker.Options{
		FailureThreshold: float64(c.BreakerPercent) / 100,
		VolumeThreshold:  c.BreakerVolume,
		Disabled:         c.BreakerDisabled,
	}
}

// App is the process lifecycle: connect, register, serve, shut down —
// grounded on the teacher's gateway/orders App{Start,Shutdown} shape.
type App struct {
	config          Config
	logger          *slog.Logger
	registry        discovery.Registry
	registration    *discovery.Registration
	eventStore      *store.PostgresStore
	channel         *amqp.Channel
	closeAMQP       func() error
	httpServer      *http.Server
	httpMetrics     *metrics.HTTPMetrics
	brokerMetrics   *metrics.BrokerMetrics
	health          *health.Handler
	cancelConsumers context.CancelFunc
}

// NewApp dials every dependency (Postgres, RabbitMQ, optionally Consul)
// and returns a ready-to-Start App.
func NewApp(ctx context.Context, config Config) (*App, error) {
	log := logger.NewLogger(config.ServiceName)

	registry, err := createRegistry(config.ConsulAddr, log)
	if err != nil {
		return nil, err
	}

	eventStore, err := reconnect.Dial(ctx, log, "postgres", func() (*store.PostgresStore, error) {
		return store.NewPostgresStore(config.postgresConnString())
	})
	if err != nil {
		return nil, err
	}

	conn, err := reconnect.Dial(ctx, log, "rabbitmq", func() (amqpConn, error) {
		ch, closeFn, err := broker.Connect(config.AMQPUser, config.AMQPPass, config.AMQPHost, config.AMQPPort)
		return amqpConn{ch, closeFn}, err
	})
	if err != nil {
		return nil, err
	}

	return &App{
		config:        config,
		logger:        log,
		registry:      registry,
		eventStore:    eventStore,
		channel:       conn.ch,
		closeAMQP:     conn.closeFn,
		httpMetrics:   metrics.NewHTTPMetrics(config.ServiceName),
		brokerMetrics: metrics.NewBrokerMetrics(config.ServiceName),
		health:        health.New(),
	}, nil
}

// amqpConn bundles the two return values of broker.Connect so it can
// flow through reconnect.Dial's single-value generic signature.
type amqpConn struct {
	ch      *amqp.Channel
	closeFn func() error
}

func (a *App) Start(ctx context.Context) error {
	if a.registry != nil {
		registration, err := discovery.Register(ctx, a.registry, a.logger, a.config.InstanceID, a.config.ServiceName, a.config.HTTPAddr)
		if err != nil {
			return err
		}
		a.registration = registration
	}

	if err := broker.DeclareExchanges(a.channel); err != nil {
		return err
	}

	mqCB := breaker.New("inventory-publisher", a.config.breakerOptions())
	dbCB := breaker.New("inventory-db", a.config.breakerOptions())
	publisher := broker.NewPublisher(a.channel, mqCB, a.brokerMetrics)
	registry := envelope.NewRegistry()
	events := store.WithBreaker(a.eventStore, dbCB)
	business := metrics.NewBusinessMetrics(a.config.ServiceName, "inventory_approved_total", "inventory_rejected_total")

	svc := NewService(events, publisher, registry, business)

	a.health.SetTimeout(a.config.ReadinessTimeout)
	a.health.Register("postgres", func(ctx context.Context) error { return a.eventStore.Ping(ctx) })
	a.health.Register("rabbitmq", health.BrokerChecker(a.channel, a.config.ReadyCheckQueue))

	consumerCtx, cancel := context.WithCancel(ctx)
	a.cancelConsumers = cancel
	err := startConsumers(consumerCtx, a.channel, svc, registry, a.logger, a.brokerMetrics,
		broker.WithPrefetch(a.config.Prefetch), broker.WithMaxRetries(a.config.MaxRetries))
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.health.Live)
	mux.HandleFunc("GET /ready", a.health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.httpServer = &http.Server{Addr: a.config.HTTPAddr, Handler: a.metricsMiddleware(mux)}

	a.logger.Info("starting http server", slog.String("addr", a.config.HTTPAddr))
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down gracefully")

	if a.cancelConsumers != nil {
		a.cancelConsumers()
	}
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", slog.Any("error", err))
		}
	}
	if a.closeAMQP != nil {
		if err := a.closeAMQP(); err != nil {
			a.logger.Error("error closing rabbitmq", slog.Any("error", err))
		}
	}
	if a.eventStore != nil {
		if err := a.eventStore.Close(); err != nil {
			a.logger.Error("error closing postgres", slog.Any("error", err))
		}
	}
	if a.registration != nil {
		return a.registration.Deregister(ctx)
	}
	return nil
}

func createRegistry(addr string, log *slog.Logger) (discovery.Registry, error) {
	if addr == "" {
		log.Info("consul address not provided, service discovery disabled")
		return nil, nil
	}
	return consul.NewRegistry(addr)
}

func (a *App) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)
		a.httpMetrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode), time.Since(start))
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *responseRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
