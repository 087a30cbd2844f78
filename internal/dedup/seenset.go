// Package dedup tracks which listing identifiers a recurring search has
// already reported, so polling only alerts on genuinely new items.
package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/griguv/pricewatch/internal/extract"
	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/services/cache"
)

// Store owns the per-search seen sets for one process. Sets grow
// monotonically and never shrink; identifiers are short, so unbounded
// growth within a process lifetime is acceptable. An optional cache
// checkpoint carries sets across restarts so a restart does not re-alert
// on everything currently listed.
type Store struct {
	mu            sync.Mutex
	sets          map[string]map[string]struct{}
	cache         cache.CacheService
	checkpointTTL time.Duration
	log           *logger.Logger
}

// NewStore creates a seen-set store. cacheSvc may be nil to disable
// checkpointing.
func NewStore(cacheSvc cache.CacheService, checkpointTTL time.Duration) *Store {
	if checkpointTTL <= 0 {
		checkpointTTL = 72 * time.Hour
	}
	return &Store{
		sets:          make(map[string]map[string]struct{}),
		cache:         cacheSvc,
		checkpointTTL: checkpointTTL,
		log:           logger.ForCache(),
	}
}

// Diff returns the items not yet seen for the search key, preserving the
// order of items. The first call for a key seeds the set silently: seeded
// is true and no items are reported as new.
func (s *Store) Diff(key string, items []extract.ListingRecord) (newItems []extract.ListingRecord, seeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = s.loadCheckpoint(key)
		if set == nil {
			// First sight of this search: capture silently, report nothing.
			set = make(map[string]struct{}, len(items))
			for _, it := range items {
				set[it.ID] = struct{}{}
			}
			s.sets[key] = set
			s.persist(key, set)
			return nil, true
		}
		s.sets[key] = set
	}

	for _, it := range items {
		if _, seen := set[it.ID]; !seen {
			newItems = append(newItems, it)
		}
	}
	return newItems, false
}

// MarkSeen adds the items' identifiers to the search key's set
func (s *Store) MarkSeen(key string, items []extract.ListingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(items))
		s.sets[key] = set
	}
	changed := false
	for _, it := range items {
		if _, seen := set[it.ID]; !seen {
			set[it.ID] = struct{}{}
			changed = true
		}
	}
	if changed {
		s.persist(key, set)
	}
}

// Size returns the number of identifiers tracked for a search key
func (s *Store) Size(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[key])
}

// checkpointKey hashes the search key into a cache-safe fixed-length key
func checkpointKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return "seen:" + hex.EncodeToString(sum[:])
}

// loadCheckpoint restores a set from the cache, or nil when absent
func (s *Store) loadCheckpoint(key string) map[string]struct{} {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(checkpointKey(key))
	if err != nil || len(raw) == 0 {
		return nil
	}
	ids := strings.Split(string(raw), "\n")
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	s.log.Debug().Int("ids", len(set)).Msg("Restored seen set from checkpoint")
	return set
}

// persist checkpoints a set into the cache, best effort
func (s *Store) persist(key string, set map[string]struct{}) {
	if s.cache == nil {
		return
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	payload := []byte(strings.Join(ids, "\n"))
	if err := s.cache.Set(checkpointKey(key), payload, s.checkpointTTL); err != nil {
		s.log.Warn().Err(err).Msg("Failed to checkpoint seen set")
	}
}
