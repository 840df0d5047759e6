package session

import (
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/samsmithyeah/flock-sub002/pkg/cache"
	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store"
)

const profileCacheType = "profile"

// profileFetcher resolves user profiles in batches. Ids are deduped,
// cache hits dropped, and the remainder chunked to the store's batch
// limit, so N cold ids cost ceil(N/limit) queries. Identical in-flight
// chunks collapse via singleflight. One fetcher is shared by every
// session; the cache underneath it too.
type profileFetcher struct {
	source  ProfileSource
	cache   *cache.Cache
	limit   int
	sf      singleflight.Group
	queries atomic.Int64
}

// ProfileSource is the store call the fetcher chunks over.
type ProfileSource func(ids []string) (map[string]*models.Profile, error)

func newProfileFetcher(source ProfileSource, c *cache.Cache, limit int) *profileFetcher {
	if limit <= 0 {
		limit = store.ProfileBatchLimit
	}
	return &profileFetcher{source: source, cache: c, limit: limit}
}

// Queries reports cumulative chunk queries issued (cache hits cost none).
func (f *profileFetcher) Queries() int64 { return f.queries.Load() }

// FetchBatch resolves ids to profiles. Unknown ids are absent from the
// result, not errors. Every resolved profile is written to the cache
// before return.
func (f *profileFetcher) FetchBatch(ids []string) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// dedupe, then split cached from cold
	seen := make(map[string]struct{}, len(ids))
	resolved := make(map[string]*models.Profile, len(ids))
	var cold []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if v, ok := f.cache.Get(cache.Key(profileCacheType, id)); ok {
			if p, ok := v.(*models.Profile); ok {
				resolved[id] = p
				continue
			}
		}
		cold = append(cold, id)
	}
	sort.Strings(cold)

	for start := 0; start < len(cold); start += f.limit {
		end := start + f.limit
		if end > len(cold) {
			end = len(cold)
		}
		chunk := cold[start:end]
		key := strings.Join(chunk, ",")
		v, err, shared := f.sf.Do(key, func() (interface{}, error) {
			f.queries.Add(1)
			return f.source(chunk)
		})
		if err != nil {
			logger.Warn("profile_chunk_failed", "ids", len(chunk), "error", err)
			return nil, err
		}
		if shared {
			logger.Debug("profile_chunk_collapsed", "ids", len(chunk))
		}
		for id, p := range v.(map[string]*models.Profile) {
			resolved[id] = p
			f.cache.Set(cache.Key(profileCacheType, id), p)
		}
	}

	// preserve caller order, minus unknowns
	out := make([]*models.Profile, 0, len(resolved))
	emitted := make(map[string]struct{}, len(resolved))
	for _, id := range ids {
		if _, done := emitted[id]; done {
			continue
		}
		if p, ok := resolved[id]; ok {
			out = append(out, p)
			emitted[id] = struct{}{}
		}
	}
	return out, nil
}
