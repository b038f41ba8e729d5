// Command replay republishes previously-stored events from an event
// store onto the broker, for incident recovery or rebuilding a
// downstream consumer's state. It never mutates the event store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nexacart/order-events/common/config"
	"github.com/nexacart/order-events/common/logger"
	"github.com/nexacart/order-events/eventing/broker"
	"github.com/nexacart/order-events/eventing/store"
	"github.com/nexacart/order-events/resilience/breaker"
)

// routingTable maps each known event type to the exchange and routing
// key it was originally published on. The replay tool never invents a
// new routing decision — it reuses the topology in
// eventing/broker/topology.go.
var routingTable = map[string]struct {
	Exchange   string
	RoutingKey string
}{
	"orders.created":             {broker.ExchangeOrders, "orders.created.v1"},
	"orders.cancelled":           {broker.ExchangeOrders, "orders.cancelled.v1"},
	"inventory.reserve.approved": {broker.ExchangeInventory, "inventory.reserve.approved.v1"},
	"inventory.reserve.rejected": {broker.ExchangeInventory, "inventory.reserve.rejected.v1"},
	"notification.sent":          {broker.ExchangeNotifications, "notification.sent.v1"},
}

func main() {
	var (
		storeKind = flag.String("store", "", "event store backend to replay from: mongo, postgres, or sqlite")
		dsn       = flag.String("dsn", "", "connection string/data source name for the chosen store")
		typeFlag  = flag.String("type", "", "filter: only replay events of this type")
		orderID   = flag.String("orderId", "", "filter: only replay events for this orderId")
		from      = flag.String("from", "", "filter: only replay events at or after this RFC3339 timestamp")
		to        = flag.String("to", "", "filter: only replay events at or before this RFC3339 timestamp")
		dryRun    = flag.Bool("dry-run", false, "list matching events without publishing them")
	)
	flag.Parse()

	log := logger.NewLogger("replay")

	filter, err := buildFilter(*typeFlag, *orderID, *from, *to)
	if err != nil {
		log.Error("invalid filter", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()

	eventStore, closeStore, err := openStore(ctx, *storeKind, *dsn)
	if err != nil {
		log.Error("failed to open event store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	events, err := eventStore.Find(ctx, filter)
	if err != nil {
		log.Error("failed to query event store", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("replay matched events", slog.Int("count", len(events)))

	if *dryRun {
		for _, env := range events {
			fmt.Printf("%s\t%s\tv%d\t%s\n", env.EventID, env.Type, env.Version, env.OccurredAt.Format(time.RFC3339))
		}
		return
	}

	amqpUser := config.GetEnv("AMQP_USER", "guest")
	amqpPass := config.GetEnv("AMQP_PASS", "guest")
	amqpHost := config.GetEnv("AMQP_HOST", "localhost")
	amqpPort := config.GetEnv("AMQP_PORT", "5672")

	ch, closeAMQP, err := broker.Connect(amqpUser, amqpPass, amqpHost, amqpPort)
	if err != nil {
		log.Error("failed to connect to rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeAMQP()

	if err := broker.DeclareExchanges(ch); err != nil {
		log.Error("failed to declare exchanges", slog.Any("error", err))
		os.Exit(1)
	}

	cb := breaker.New("replay-publisher", breaker.Options{})
	publisher := broker.NewPublisher(ch, cb, nil)

	republished, skipped := replayAll(ctx, publisher, events, log)
	log.Info("replay complete", slog.Int("republished", republished), slog.Int("skipped", skipped))
}

func buildFilter(typeFlag, orderID, from, to string) (store.Filter, error) {
	filter := store.Filter{Type: typeFlag, OrderID: orderID}
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return store.Filter{}, fmt.Errorf("parse --from: %w", err)
		}
		filter.From = t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return store.Filter{}, fmt.Errorf("parse --to: %w", err)
		}
		filter.To = t
	}
	return filter, nil
}

func openStore(ctx context.Context, kind, dsn string) (store.EventStore, func() error, error) {
	switch kind {
	case "postgres":
		s, err := store.NewPostgresStore(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "mongo":
		s, closeFn, err := openMongoStore(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown --store %q: must be mongo, postgres, or sqlite", kind)
	}
}
