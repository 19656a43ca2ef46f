// Grants the superadmin role to a user, bypassing the API's authorization.
// This is the only way to mint the first superadmin of a deployment.
//
//	MONGODB_URI=... MONGODB_DATABASE_NAME=... go run ./cmd/grant_superadmin -uid <uid>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/eventostec/eventostec/entity"
	"github.com/eventostec/eventostec/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/exp/slices"
)

func main() {
	uid := flag.String("uid", "", "uid of the user to promote")
	flag.Parse()

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "usage: grant_superadmin -uid <uid>")
		os.Exit(2)
	}

	mongoClient, err := mongo.NewClient(options.Client().ApplyURI(os.Getenv("MONGODB_URI")))
	if err != nil {
		panic(fmt.Sprintf("invalid mongo configuration: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mongoClient.Connect(ctx); err != nil {
		panic(fmt.Sprintf("failed to connect mongo: %v", err))
	}
	defer mongoClient.Disconnect(ctx)

	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		panic(fmt.Sprintf("failed to ping mongo: %v", err))
	}

	documentStore := store.NewMongoStore(mongoClient)

	err = documentStore.RunTransaction(ctx, func(tx store.Tx) error {
		var user entity.User
		if err := tx.Get(store.Users, *uid, &user); err != nil {
			return err
		}

		if slices.Contains(user.Roles, entity.RoleSuperadmin) {
			return nil
		}

		return tx.Merge(store.Users, *uid, map[string]interface{}{
			"roles": append(user.Roles, entity.RoleSuperadmin),
		})
	})
	if err != nil {
		panic(fmt.Sprintf("failed to promote %s: %v", *uid, err))
	}

	fmt.Printf("%s is now a superadmin\n", *uid)
}
