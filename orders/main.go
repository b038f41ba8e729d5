package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nexacart/order-events/common/config"
	"github.com/nexacart/order-events/common/discovery"
	"github.com/nexacart/order-events/common/logger"
	"github.com/nexacart/order-events/common/tracing"
)

// shutdownTimeout bounds App.Shutdown, including the graceful drain of
// in-flight HTTP requests. Consumers are stopped by cancelling their
// context; in-flight consumer handlers are not waited for.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using defaults")
	}

	overlay, err := config.LoadOverlay(config.GetEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		slog.Error("failed to load config file", slog.Any("error", err))
		os.Exit(1)
	}

	serviceName := overlay.Get("SERVICE_NAME", "orders")
	cfg := Config{
		ServiceName:      serviceName,
		InstanceID:       overlay.Get("INSTANCE_ID", discovery.GenerateInstanceID(serviceName)),
		HTTPAddr:         overlay.Get("HTTP_ADDR", ":8080"),
		ConsulAddr:       overlay.Get("CONSUL_ADDR", ""),
		AMQPUser:         overlay.Get("AMQP_USER", "guest"),
		AMQPPass:         overlay.Get("AMQP_PASS", "guest"),
		AMQPHost:         overlay.Get("AMQP_HOST", "localhost"),
		AMQPPort:         overlay.Get("AMQP_PORT", "5672"),
		MongoURI:         overlay.Get("MONGO_URI", "mongodb://localhost:27017"),
		RedisAddr:        overlay.Get("REDIS_ADDR", ""),
		Prefetch:         overlay.GetInt("PREFETCH", 1),
		MaxRetries:       overlay.GetInt("MAX_RETRIES", 3),
		ReadinessTimeout: time.Duration(overlay.GetInt("READINESS_TIMEOUT_MS", 1500)) * time.Millisecond,
		ReadyCheckQueue:  overlay.Get("READY_CHECK_QUEUE", "inventory.reserve.approved.q"),
		BreakerDisabled:  overlay.Get("BREAKER_DISABLED", "") == "true",
		BreakerPercent:   overlay.GetInt("BREAKER_FAILURE_PERCENT", 50),
		BreakerVolume:    overlay.GetInt("BREAKER_VOLUME_THRESHOLD", 5),
	}

	log := logger.NewLogger(cfg.ServiceName)
	log.Info("starting service", slog.String("instance_id", cfg.InstanceID), slog.String("http_addr", cfg.HTTPAddr))

	shutdownTracer, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		log.Error("failed to initialize tracer", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdownTracer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		log.Error("failed to create app", slog.Any("error", err))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("received shutdown signal")
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", slog.Any("error", err))
		}
		cancel()
	}()

	if err := app.Start(ctx); err != nil {
		log.Error("failed to start app", slog.Any("error", err))
		os.Exit(1)
	}
}
