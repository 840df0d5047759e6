package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsmithyeah/flock-sub002/pkg/cache"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
)

// profileSourceStub records every chunk the fetcher issues.
type profileSourceStub struct {
	mu     sync.Mutex
	known  map[string]*models.Profile
	chunks [][]string
	err    error
}

func newProfileSourceStub(ids ...string) *profileSourceStub {
	known := make(map[string]*models.Profile, len(ids))
	for _, id := range ids {
		known[id] = &models.Profile{ID: id, DisplayName: "user " + id}
	}
	return &profileSourceStub{known: known}
}

func (s *profileSourceStub) fetch(ids []string) (map[string]*models.Profile, error) {
	s.mu.Lock()
	s.chunks = append(s.chunks, append([]string(nil), ids...))
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.Profile)
	for _, id := range ids {
		if p, ok := s.known[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *profileSourceStub) chunkSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = len(c)
	}
	return out
}

func manyIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%02d", i)
	}
	return ids
}

func TestFetchBatchChunksToLimit(t *testing.T) {
	src := newProfileSourceStub(manyIDs(15)...)
	f := newProfileFetcher(src.fetch, cache.New(time.Minute), 10)

	got, err := f.FetchBatch(manyIDs(15))
	require.NoError(t, err)
	require.Len(t, got, 15)
	require.Equal(t, int64(2), f.Queries())
	require.Equal(t, []int{10, 5}, src.chunkSizes())
}

func TestFetchBatchCacheHitsCostNothing(t *testing.T) {
	src := newProfileSourceStub("a", "b", "c")
	f := newProfileFetcher(src.fetch, cache.New(time.Minute), 10)

	_, err := f.FetchBatch([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, int64(1), f.Queries())

	got, err := f.FetchBatch([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, int64(1), f.Queries(), "warm fetch must not query the store")

	// one cold id among cached ones costs one single-id chunk
	src.known["d"] = &models.Profile{ID: "d"}
	_, err = f.FetchBatch([]string{"a", "d", "b"})
	require.NoError(t, err)
	require.Equal(t, int64(2), f.Queries())
	require.Equal(t, []int{3, 1}, src.chunkSizes())
}

func TestFetchBatchDedupesAndKeepsCallerOrder(t *testing.T) {
	src := newProfileSourceStub("zeta", "alpha")
	f := newProfileFetcher(src.fetch, cache.New(time.Minute), 10)

	got, err := f.FetchBatch([]string{"zeta", "alpha", "zeta", "", "alpha"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "zeta", got[0].ID)
	require.Equal(t, "alpha", got[1].ID)
	require.Equal(t, int64(1), f.Queries())
}

func TestFetchBatchUnknownIDsAbsent(t *testing.T) {
	src := newProfileSourceStub("a")
	f := newProfileFetcher(src.fetch, cache.New(time.Minute), 10)

	got, err := f.FetchBatch([]string{"a", "ghost"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)
}

func TestFetchBatchPropagatesSourceError(t *testing.T) {
	src := newProfileSourceStub("a")
	src.err = fmt.Errorf("store offline")
	f := newProfileFetcher(src.fetch, cache.New(time.Minute), 10)

	_, err := f.FetchBatch([]string{"a"})
	require.Error(t, err)
}

func TestFetchBatchEmptyInput(t *testing.T) {
	src := newProfileSourceStub()
	f := newProfileFetcher(src.fetch, cache.New(time.Minute), 10)

	got, err := f.FetchBatch(nil)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Zero(t, f.Queries())
}

func TestSessionsShareProfileCache(t *testing.T) {
	src := newProfileSourceStub("a", "b")
	fb := &fakeBackend{profiles: src.known}
	hub := newTestHub(t)
	m := NewManager(fb, &fakeSender{}, hub, testConfig())
	t.Cleanup(m.CloseAll)

	s1 := m.Open("alice")
	s2 := m.Open("bob")

	_, err := s1.FetchProfiles([]string{"a", "b"})
	require.NoError(t, err)
	got, err := s2.FetchProfiles([]string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	fb.mu.Lock()
	calls := fb.profileCalls
	fb.mu.Unlock()
	require.Equal(t, 1, calls, "second session must hit the shared cache")
}
