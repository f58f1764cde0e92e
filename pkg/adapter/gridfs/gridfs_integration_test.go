//go:build integration
// +build integration

package gridfs

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marmos91/strata/pkg/storage"
	"github.com/marmos91/strata/pkg/storage/storagetest"
)

// TestGridFSAdapter_Integration runs the complete adapter test suite against
// a real MongoDB server.
//
// Prerequisites:
//   - MongoDB running on localhost:27017
//   - Run with: go test -tags=integration ./pkg/adapter/gridfs/...
//
// To start MongoDB:
//
//	docker run --rm -p 27017:27017 mongo:7
func TestGridFSAdapter_Integration(t *testing.T) {
	ctx := context.Background()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil), "MongoDB is not reachable at %s", uri)

	database := "strata_test_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		_ = client.Database(database).Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	suite := &storagetest.AdapterTestSuite{
		NewAdapter: func(t *testing.T) storage.Adapter {
			a, err := New(ctx, Config{
				Client:   client,
				Database: database,
				Bucket:   "b" + uuid.NewString()[:8],
			})
			require.NoError(t, err)
			return a
		},
	}

	suite.Run(t)
}
