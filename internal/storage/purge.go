package storage

import (
	"context"

	"github.com/tgvault/tgvault/internal/blobstore"
	"golang.org/x/sync/errgroup"
)

// purgeConcurrency bounds parallel remote deletions during a folder purge.
const purgeConcurrency = 4

func deleteRemoteObjects(ctx context.Context, store blobstore.Store, objectIDs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeConcurrency)
	for _, id := range objectIDs {
		g.Go(func() error {
			return store.DeleteByID(ctx, id)
		})
	}
	return g.Wait()
}
