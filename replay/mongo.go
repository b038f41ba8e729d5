package main

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nexacart/order-events/eventing/store"
)

func openMongoStore(ctx context.Context, uri string) (store.EventStore, func() error, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		return nil, nil, err
	}

	s, err := store.NewMongoStore(ctx, client)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error {
		return client.Disconnect(context.Background())
	}
	return s, closeFn, nil
}
