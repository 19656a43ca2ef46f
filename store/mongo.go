package store

import (
	"context"
	"errors"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoStore implements Store on a MongoDB replica set. Multi-document
// atomicity and transparent transient-conflict retries come from the driver's
// session transactions.
type MongoStore struct {
	mongoClient *mongo.Client
}

func NewMongoStore(mongoClient *mongo.Client) *MongoStore {
	return &MongoStore{
		mongoClient: mongoClient,
	}
}

func (s *MongoStore) database() *mongo.Database {
	return s.mongoClient.Database(os.Getenv("MONGODB_DATABASE_NAME"))
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, out interface{}) error {
	err := s.database().Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	return err
}

func (s *MongoStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	session, err := s.mongoClient.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoTx{sessCtx: sessCtx, database: s.database()})
	}, opts)

	if err != nil && hasTransientLabel(err) {
		return errors.Join(ErrTooManyConflicts, err)
	}

	return err
}

// hasTransientLabel reports whether the driver gave up while the error was
// still marked retryable, i.e. the retry budget ran out rather than the
// transaction logic failing.
func hasTransientLabel(err error) bool {
	var labeled mongo.ServerError
	if !errors.As(err, &labeled) {
		return false
	}

	return labeled.HasErrorLabel("TransientTransactionError") ||
		labeled.HasErrorLabel("UnknownTransactionCommitResult")
}

type mongoTx struct {
	sessCtx  mongo.SessionContext
	database *mongo.Database
}

func (tx *mongoTx) Get(collection, id string, out interface{}) error {
	err := tx.database.Collection(collection).FindOne(tx.sessCtx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}

	return err
}

func (tx *mongoTx) Set(collection, id string, doc interface{}) error {
	upsert := true
	_, err := tx.database.Collection(collection).ReplaceOne(
		tx.sessCtx,
		bson.M{"_id": id},
		doc,
		&options.ReplaceOptions{Upsert: &upsert},
	)

	return err
}

func (tx *mongoTx) Merge(collection, id string, fields map[string]interface{}) error {
	upsert := true
	_, err := tx.database.Collection(collection).UpdateOne(
		tx.sessCtx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M(fields)},
		&options.UpdateOptions{Upsert: &upsert},
	)

	return err
}

func (tx *mongoTx) Unset(collection, id string, fields ...string) error {
	unset := bson.M{}
	for _, field := range fields {
		unset[field] = ""
	}

	_, err := tx.database.Collection(collection).UpdateOne(
		tx.sessCtx,
		bson.M{"_id": id},
		bson.M{"$unset": unset},
	)

	return err
}

func (tx *mongoTx) Delete(collection, id string) error {
	_, err := tx.database.Collection(collection).DeleteOne(tx.sessCtx, bson.M{"_id": id})
	return err
}
