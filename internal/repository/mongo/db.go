package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary: Connect succeeds lazily even when the server is unreachable.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. Failures are returned
// joined so the caller can log them; the server keeps running without them.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var errs []error
	if err := EnsureUserIndexes(ctx, db.Collection(userCollectionName)); err != nil {
		errs = append(errs, err)
	}
	if err := EnsureRegimenIndexes(ctx, db.Collection(regimenCollectionName)); err != nil {
		errs = append(errs, err)
	}
	if err := EnsureWorkoutLogIndexes(ctx, db.Collection(workoutLogCollectionName)); err != nil {
		errs = append(errs, err)
	}
	if err := EnsureNotificationIndexes(ctx, db.Collection(notificationCollectionName)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// decodeAll drains a cursor into out and closes it.
func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]T, error) {
	defer cursor.Close(ctx)
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
