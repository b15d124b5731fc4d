package matching

import (
	"context"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// DefaultLoaderBatchSize bounds how many ids go into one GetMany call.
const DefaultLoaderBatchSize = 50

// PreferenceLoader batches candidate preference lookups for one ranking call.
type PreferenceLoader = dataloader.Loader[string, *MatchingPreferences]

// NewPreferenceLoader returns a request scoped loader over store. Each batch
// is one GetMany bounded by timeout; ids without a stored record resolve to
// defaults.
func NewPreferenceLoader(store PreferenceStore, timeout time.Duration, batchSize int) *PreferenceLoader {
	if batchSize <= 0 {
		batchSize = DefaultLoaderBatchSize
	}
	return dataloader.NewBatchedLoader(
		preferenceBatchFn(store, timeout),
		dataloader.WithBatchCapacity[string, *MatchingPreferences](batchSize),
		dataloader.WithWait[string, *MatchingPreferences](time.Millisecond),
		dataloader.WithCache[string, *MatchingPreferences](&dataloader.NoCache[string, *MatchingPreferences]{}),
	)
}

func preferenceBatchFn(store PreferenceStore, timeout time.Duration) dataloader.BatchFunc[string, *MatchingPreferences] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*MatchingPreferences] {
		results := make([]*dataloader.Result[*MatchingPreferences], len(keys))

		var found map[string]*MatchingPreferences
		err := CallStore(ctx, timeout, "load candidate preferences", "", func(ctx context.Context) error {
			var loadErr error
			found, loadErr = store.GetMany(ctx, keys)
			return loadErr
		})

		for i, key := range keys {
			switch {
			case err != nil:
				results[i] = &dataloader.Result[*MatchingPreferences]{Error: err}
			case found[key] != nil:
				results[i] = &dataloader.Result[*MatchingPreferences]{Data: found[key]}
			default:
				results[i] = &dataloader.Result[*MatchingPreferences]{Data: DefaultPreferences(key)}
			}
		}
		return results
	}
}
