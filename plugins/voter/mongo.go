package voter

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iotaledger/fpc/packages/audit/mongosink"
)

// dialMongo connects to uri and returns the events collection the audit
// sink writes to, in database dbName.
func dialMongo(uri, dbName string) (*mongo.Collection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "voter: connecting to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "voter: pinging mongo")
	}

	return client.Database(dbName).Collection(mongosink.CollectionName()), nil
}
