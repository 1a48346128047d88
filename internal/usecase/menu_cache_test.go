package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves menus from memory.
type fakeSource struct {
	mu      sync.Mutex
	lists   []domain.PriceList
	listErr error
	menus   map[domain.ID]*domain.Menu
	fail    map[domain.ID]bool
	release chan struct{}

	listCalls  atomic.Int32
	fetchCalls atomic.Int32
}

func newFakeSource(menus ...*domain.Menu) *fakeSource {
	f := &fakeSource{menus: make(map[domain.ID]*domain.Menu), fail: make(map[domain.ID]bool)}
	for _, m := range menus {
		f.lists = append(f.lists, domain.PriceList{ID: m.ID, Name: m.Name})
		f.menus[m.ID] = m
	}
	return f
}

func (f *fakeSource) ListPriceLists(ctx context.Context) ([]domain.PriceList, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.PriceList(nil), f.lists...), nil
}

func (f *fakeSource) FetchMenu(ctx context.Context, list domain.PriceList, knownIDs []domain.ID) (*domain.Menu, error) {
	f.fetchCalls.Add(1)
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[list.ID] {
		return nil, fmt.Errorf("%w: menu %s", domain.ErrSourceUnavailable, list.ID)
	}
	m, ok := f.menus[list.ID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown menu %s", domain.ErrSourceUnavailable, list.ID)
	}
	return m, nil
}

func (f *fakeSource) setMenu(m *domain.Menu) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus[m.ID] = m
}

func (f *fakeSource) setFail(id domain.ID, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = fail
}

// memStore is an in-memory SnapshotStore.
type memStore struct {
	mu        sync.Mutex
	snapshots map[domain.SnapshotKind]*domain.Snapshot
	saveErr   error
	removeErr error
	saves     int
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[domain.SnapshotKind]*domain.Snapshot)}
}

func (s *memStore) Load(kind domain.SnapshotKind) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[kind]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *memStore) Save(kind domain.SnapshotKind, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.snapshots[kind] = snap
	return nil
}

func (s *memStore) Remove(kind domain.SnapshotKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.snapshots, kind)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(source domain.CatalogSource, store domain.SnapshotStore, config MenuCacheConfig) (*MenuCache, *testClock) {
	clock := &testClock{now: fixtureTime}
	c := NewMenuCache(source, store, config)
	c.now = clock.Now
	runs := 0
	var mu sync.Mutex
	c.newRunID = func() string {
		mu.Lock()
		defer mu.Unlock()
		runs++
		return fmt.Sprintf("run-%d", runs)
	}
	return c, clock
}

func threeMenus() []*domain.Menu {
	return []*domain.Menu{
		testMenu("1", "Основное", testCategory("10", "Супы", testItem("1", "Борщ", "", 300))),
		testMenu("2", "Завтраки", testCategory("20", "Каши", testItem("2", "Овсянка", "", 200))),
		testMenu("3", "Бар", testCategory("30", "Коктейли", testItem("3", "Мохито", "", 500))),
	}
}

func TestMenuCache_InitialState(t *testing.T) {
	c, _ := newTestCache(newFakeSource(), nil, MenuCacheConfig{})

	assert.Equal(t, StateEmpty, c.State(domain.SnapshotDelivery))
	assert.Equal(t, StateEmpty, c.State(domain.SnapshotFull))
	assert.Nil(t, c.Read(domain.SnapshotFull))
	assert.Equal(t, uint64(0), c.Generation())
	assert.Equal(t, time.Hour, c.config.FullTTL)
}

func TestMenuCache_LoadFull(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	store := newMemStore()
	c, _ := newTestCache(source, store, MenuCacheConfig{PointID: 7})

	snap, report, err := c.Load(context.Background(), domain.SnapshotFull, false)

	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Len(t, snap.Menus, 3)
	assert.Equal(t, 7, snap.PointID)
	assert.Equal(t, fixtureTime, snap.Timestamp.Time)
	assert.Equal(t, []domain.ID{"1", "2", "3"}, report.Fetched)
	assert.Empty(t, report.Failed)
	assert.True(t, report.FirstLoad)
	assert.True(t, report.Replaced)
	assert.Equal(t, "run-1", report.RunID)
	assert.Len(t, report.Diff.Added, 3)

	assert.Equal(t, StateFresh, c.State(domain.SnapshotFull))
	assert.Equal(t, uint64(1), c.Generation())
	assert.Same(t, snap, c.Read(domain.SnapshotFull))
	assert.Equal(t, 1, store.saves)
}

func TestMenuCache_FreshLoadSkipsSource(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	c, clock := newTestCache(source, nil, MenuCacheConfig{})

	_, _, err := c.Load(context.Background(), domain.SnapshotFull, false)
	require.NoError(t, err)

	_, report, err := c.Load(context.Background(), domain.SnapshotFull, false)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, int32(1), source.listCalls.Load())

	_, report, err = c.Load(context.Background(), domain.SnapshotFull, true)
	require.NoError(t, err)
	assert.NotNil(t, report)
	assert.False(t, report.FirstLoad)
	assert.Equal(t, int32(2), source.listCalls.Load())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, StateStale, c.State(domain.SnapshotFull))
}

func TestMenuCache_DeliveryAllowList(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	c, _ := newTestCache(source, nil, MenuCacheConfig{DeliveryMenuIDs: []domain.ID{"1", "2"}})

	snap, _, err := c.Load(context.Background(), domain.SnapshotDelivery, false)

	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"1", "2"}, snap.MenuIDs())
	assert.Nil(t, c.Read(domain.SnapshotFull))
}

func TestMenuCache_PartialFailureKeepsPreviousMenu(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	c, _ := newTestCache(source, nil, MenuCacheConfig{})

	_, _, err := c.Load(context.Background(), domain.SnapshotFull, false)
	require.NoError(t, err)

	source.setFail("2", true)
	source.setMenu(testMenu("1", "Основное", testCategory("10", "Супы", testItem("1", "Борщ", "", 350))))

	snap, report, err := c.Load(context.Background(), domain.SnapshotFull, true)

	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"2"}, report.Failed)
	assert.Equal(t, []domain.ID{"1", "3"}, report.Fetched)
	require.Contains(t, snap.Menus, domain.ID("2"))
	assert.Equal(t, "Овсянка", snap.Menus["2"].CategoryItems("20")[0].Name)
	assert.Equal(t, 350.0, snap.Menus["1"].CategoryItems("10")[0].Price)
	require.Len(t, report.Diff.Changed, 1)
	assert.Equal(t, []string{"price"}, report.Diff.Changed[0].Fields)
}

func TestMenuCache_TotalFailureKeepsSnapshot(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	c, clock := newTestCache(source, nil, MenuCacheConfig{})

	first, _, err := c.Load(context.Background(), domain.SnapshotFull, false)
	require.NoError(t, err)
	gen := c.Generation()

	for _, id := range []domain.ID{"1", "2", "3"} {
		source.setFail(id, true)
	}
	clock.Advance(2 * time.Hour)

	snap, report, err := c.Load(context.Background(), domain.SnapshotFull, true)

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Same(t, first, snap)
	assert.False(t, report.Replaced)
	assert.Len(t, report.Failed, 3)
	assert.Equal(t, gen, c.Generation())
	assert.Equal(t, StateStale, c.State(domain.SnapshotFull))
}

func TestMenuCache_FailureWithoutSnapshot(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	source.setFail("1", true)
	source.setFail("2", true)
	source.setFail("3", true)
	c, _ := newTestCache(source, nil, MenuCacheConfig{})

	snap, _, err := c.Load(context.Background(), domain.SnapshotFull, false)

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Nil(t, snap)
	assert.Equal(t, StateEmpty, c.State(domain.SnapshotFull))
}

func TestMenuCache_EnumerationFallback(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	source.listErr = errors.New("boom")
	c, _ := newTestCache(source, nil, MenuCacheConfig{
		FallbackPriceLists: []domain.PriceList{{ID: "1", Name: "Основное"}, {ID: "3", Name: "Бар"}},
	})

	snap, report, err := c.Load(context.Background(), domain.SnapshotFull, false)

	require.NoError(t, err)
	assert.Equal(t, []domain.ID{"1", "3"}, snap.MenuIDs())
	assert.Equal(t, []domain.ID{"1", "3"}, report.Fetched)
}

func TestMenuCache_NoMenusToFetch(t *testing.T) {
	source := newFakeSource()
	source.listErr = errors.New("boom")
	c, _ := newTestCache(source, nil, MenuCacheConfig{})

	_, _, err := c.Load(context.Background(), domain.SnapshotFull, false)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestMenuCache_ConcurrentLoadsShareOneRefresh(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	source.release = make(chan struct{})
	c, _ := newTestCache(source, nil, MenuCacheConfig{})

	var wg sync.WaitGroup
	results := make([]*domain.Snapshot, 5)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, _ = c.Load(context.Background(), domain.SnapshotFull, true)
		}()
	}

	require.Eventually(t, func() bool { return source.fetchCalls.Load() > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, StateLoading, c.State(domain.SnapshotFull))
	time.Sleep(20 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, int32(1), source.listCalls.Load())
	for _, snap := range results {
		assert.Same(t, results[0], snap)
	}
}

func TestMenuCache_PersistenceFailureKeepsMemory(t *testing.T) {
	store := newMemStore()
	store.saveErr = fmt.Errorf("%w: disk full", domain.ErrPersistenceFailure)
	c, _ := newTestCache(newFakeSource(threeMenus()...), store, MenuCacheConfig{})

	snap, _, err := c.Load(context.Background(), domain.SnapshotFull, false)

	require.NoError(t, err)
	assert.Same(t, snap, c.Read(domain.SnapshotFull))
	assert.Equal(t, StateFresh, c.State(domain.SnapshotFull))
}

func TestMenuCache_RestoreAndBackgroundRefresh(t *testing.T) {
	store := newMemStore()
	old := testSnapshot(fixtureTime.Add(-3*time.Hour), testMenu("1", "Основное",
		testCategory("10", "Супы", testItem("1", "Борщ", "", 280))))
	store.snapshots[domain.SnapshotFull] = old

	source := newFakeSource(threeMenus()...)
	c, _ := newTestCache(source, store, MenuCacheConfig{})

	require.Equal(t, 1, c.Restore())
	assert.Equal(t, StateStale, c.State(domain.SnapshotFull))
	assert.Equal(t, StateEmpty, c.State(domain.SnapshotDelivery))

	got := c.Get(context.Background(), domain.SnapshotFull)
	assert.Same(t, old, got, "stale snapshot is served while refreshing")

	c.Wait()
	assert.Equal(t, StateFresh, c.State(domain.SnapshotFull))
	assert.Len(t, c.Read(domain.SnapshotFull).Menus, 3)
}

func TestMenuCache_GetLoadsEmptySynchronously(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	c, _ := newTestCache(source, nil, MenuCacheConfig{})

	snap := c.Get(context.Background(), domain.SnapshotFull)

	require.NotNil(t, snap)
	assert.Len(t, snap.Menus, 3)
}

func TestMenuCache_GetThrottlesFailedLoads(t *testing.T) {
	source := newFakeSource()
	source.listErr = errors.New("boom")
	c, clock := newTestCache(source, nil, MenuCacheConfig{RetryAfter: time.Minute})

	assert.Nil(t, c.Get(context.Background(), domain.SnapshotFull))
	assert.Nil(t, c.Get(context.Background(), domain.SnapshotFull))
	assert.Equal(t, int32(1), source.listCalls.Load())

	clock.Advance(2 * time.Minute)
	c.Get(context.Background(), domain.SnapshotFull)
	assert.Equal(t, int32(2), source.listCalls.Load())
}

func TestMenuCache_Clear(t *testing.T) {
	store := newMemStore()
	c, _ := newTestCache(newFakeSource(threeMenus()...), store, MenuCacheConfig{})

	_, _, err := c.Load(context.Background(), domain.SnapshotDelivery, false)
	require.NoError(t, err)
	_, _, err = c.Load(context.Background(), domain.SnapshotFull, false)
	require.NoError(t, err)
	gen := c.Generation()

	assert.True(t, c.Clear())
	assert.Nil(t, c.Read(domain.SnapshotDelivery))
	assert.NotNil(t, c.Read(domain.SnapshotFull), "full snapshot is untouched")
	assert.Equal(t, StateEmpty, c.State(domain.SnapshotDelivery))
	assert.Greater(t, c.Generation(), gen)

	_, err = store.Load(domain.SnapshotDelivery)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	store.removeErr = errors.New("read-only")
	assert.False(t, c.Clear())
}

type recordingRecorder struct {
	mu       sync.Mutex
	outcomes []string
	items    map[string]int
}

func (r *recordingRecorder) RecordRefresh(kind, outcome string, took time.Duration, failed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, kind+":"+outcome)
}

func (r *recordingRecorder) RecordSnapshot(kind string, items int, takenAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items == nil {
		r.items = make(map[string]int)
	}
	r.items[kind] = items
}

func TestMenuCache_Recorder(t *testing.T) {
	source := newFakeSource(threeMenus()...)
	c, _ := newTestCache(source, nil, MenuCacheConfig{})
	rec := &recordingRecorder{}
	c.SetRecorder(rec)

	_, _, _ = c.Load(context.Background(), domain.SnapshotFull, false)
	source.setFail("1", true)
	_, _, _ = c.Load(context.Background(), domain.SnapshotFull, true)

	assert.Equal(t, []string{"full:success", "full:partial"}, rec.outcomes)
	assert.Equal(t, 3, rec.items["full"])
}
