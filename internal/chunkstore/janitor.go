package chunkstore

import (
	"context"
	"log"
	"time"
)

const (
	janitorInterval = 1 * time.Minute
	// staleAfter is how long an uncommitted upload may sit idle before
	// its chunks are reclaimed
	staleAfter = 1 * time.Hour
)

// RunJanitor periodically purges chunks left behind by uploads that
// never committed (crashed process, lost client). Runs until ctx is
// cancelled.
func (s *Store) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.purgeStale(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) purgeStale(ctx context.Context) {
	cutoff := time.Now().Add(-staleAfter)
	objectIDs, err := s.meta.StaleUncommittedObjects(ctx, cutoff)
	if err != nil {
		log.Printf("janitor: failed to list stale uploads: %v", err)
		return
	}
	for _, objectID := range objectIDs {
		// Skip uploads still open in this process
		s.mu.Lock()
		_, open := s.pending[objectID]
		s.mu.Unlock()
		if open {
			continue
		}
		if err := s.removeChunks(ctx, objectID); err != nil {
			log.Printf("janitor: failed to purge object %s: %v", objectID, err)
			continue
		}
		log.Printf("janitor: purged stale uncommitted object %s", objectID)
	}
}
