package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// CacheState is the lifecycle state of one snapshot.
type CacheState int

const (
	StateEmpty CacheState = iota
	StateLoading
	StateFresh
	StateStale
)

func (s CacheState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "empty"
	}
}

// RefreshRecorder receives refresh measurements. *metrics.Collector implements it.
type RefreshRecorder interface {
	RecordRefresh(kind, outcome string, took time.Duration, failedMenus []string)
	RecordSnapshot(kind string, items int, takenAt time.Time)
}

type noopRecorder struct{}

func (noopRecorder) RecordRefresh(string, string, time.Duration, []string) {}
func (noopRecorder) RecordSnapshot(string, int, time.Time)                  {}

// MenuCacheConfig holds configuration for the menu cache
type MenuCacheConfig struct {
	PointID int
	// DeliveryMenuIDs is the allow-list fetched into the delivery snapshot.
	DeliveryMenuIDs []domain.ID
	// FallbackPriceLists is used when the source cannot enumerate menus.
	FallbackPriceLists []domain.PriceList
	DeliveryTTL        time.Duration
	FullTTL            time.Duration
	FetchConcurrency   int
	// RefreshTimeout bounds background refreshes started by Get.
	RefreshTimeout time.Duration
	// RetryAfter throttles background refreshes after a failed attempt.
	RetryAfter time.Duration
}

// snapshotSlot holds the current snapshot of one kind.
type snapshotSlot struct {
	kind        domain.SnapshotKind
	ttl         time.Duration
	current     atomic.Pointer[domain.Snapshot]
	loading     atomic.Bool
	pending     atomic.Bool
	lastAttempt atomic.Int64
}

// MenuCache keeps the delivery and full snapshots in memory. Readers get an
// immutable snapshot without I/O; refreshes build a new snapshot off to the
// side and swap it in atomically. Concurrent refreshes of one kind share a
// single run.
type MenuCache struct {
	source   domain.CatalogSource
	store    domain.SnapshotStore
	config   MenuCacheConfig
	recorder RefreshRecorder

	slots      map[domain.SnapshotKind]*snapshotSlot
	group      singleflight.Group
	generation atomic.Uint64
	background sync.WaitGroup

	now      func() time.Time
	newRunID func() string
}

// NewMenuCache creates a cache over a catalog source. store may be nil to
// disable persistence.
func NewMenuCache(source domain.CatalogSource, store domain.SnapshotStore, config MenuCacheConfig) *MenuCache {
	if config.DeliveryTTL <= 0 {
		config.DeliveryTTL = time.Hour
	}
	if config.FullTTL <= 0 {
		config.FullTTL = time.Hour
	}
	if config.FetchConcurrency <= 0 {
		config.FetchConcurrency = 2
	}
	if config.RefreshTimeout <= 0 {
		config.RefreshTimeout = 2 * time.Minute
	}
	if config.RetryAfter <= 0 {
		config.RetryAfter = time.Minute
	}

	return &MenuCache{
		source:   source,
		store:    store,
		config:   config,
		recorder: noopRecorder{},
		slots: map[domain.SnapshotKind]*snapshotSlot{
			domain.SnapshotDelivery: {kind: domain.SnapshotDelivery, ttl: config.DeliveryTTL},
			domain.SnapshotFull:     {kind: domain.SnapshotFull, ttl: config.FullTTL},
		},
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// SetRecorder installs a metrics recorder
func (c *MenuCache) SetRecorder(r RefreshRecorder) {
	if r == nil {
		r = noopRecorder{}
	}
	c.recorder = r
}

func (c *MenuCache) slot(kind domain.SnapshotKind) *snapshotSlot {
	if s, ok := c.slots[kind]; ok {
		return s
	}
	return c.slots[domain.SnapshotFull]
}

// Restore loads persisted snapshots into memory. Restored snapshots keep
// their original timestamp, so an old file comes back as stale but usable.
// It returns the number of snapshots restored.
func (c *MenuCache) Restore() int {
	if c.store == nil {
		return 0
	}

	restored := 0
	for _, kind := range []domain.SnapshotKind{domain.SnapshotDelivery, domain.SnapshotFull} {
		snap, err := c.store.Load(kind)
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			continue
		}
		if err != nil {
			log.Printf("[CACHE] Cannot restore %s snapshot: %v", kind, err)
			continue
		}

		c.slot(kind).current.Store(snap)
		c.generation.Add(1)
		c.recorder.RecordSnapshot(string(kind), snap.ItemCount(), snap.Timestamp.Time)
		log.Printf("[CACHE] Restored %s snapshot: %d menus, %d items, taken %s",
			kind, len(snap.Menus), snap.ItemCount(), snap.Timestamp.Format(time.RFC3339))
		restored++
	}
	return restored
}

// Read returns the current snapshot without any I/O. It may be nil.
func (c *MenuCache) Read(kind domain.SnapshotKind) *domain.Snapshot {
	return c.slot(kind).current.Load()
}

// State reports the lifecycle state of a snapshot.
func (c *MenuCache) State(kind domain.SnapshotKind) CacheState {
	s := c.slot(kind)
	if s.loading.Load() {
		return StateLoading
	}
	snap := s.current.Load()
	if snap.IsEmpty() {
		return StateEmpty
	}
	if snap.Age(c.now()) < s.ttl {
		return StateFresh
	}
	return StateStale
}

// Generation increases every time a snapshot is swapped or cleared.
func (c *MenuCache) Generation() uint64 {
	return c.generation.Load()
}

// Get returns a usable snapshot. An empty cache is loaded synchronously,
// at most once per retry interval; a stale one is returned as is while a
// refresh runs in the background.
func (c *MenuCache) Get(ctx context.Context, kind domain.SnapshotKind) *domain.Snapshot {
	switch c.State(kind) {
	case StateFresh:
	case StateStale:
		snap := c.Read(kind)
		c.refreshAsync(kind)
		return snap
	default:
		if snap := c.Read(kind); !snap.IsEmpty() {
			return snap
		}
		if c.recentlyAttempted(kind) && !c.slot(kind).loading.Load() {
			return c.Read(kind)
		}
		snap, _, err := c.Load(ctx, kind, false)
		if err != nil {
			log.Printf("[CACHE] Loading empty %s snapshot: %v", kind, err)
		}
		return snap
	}
	return c.Read(kind)
}

func (c *MenuCache) recentlyAttempted(kind domain.SnapshotKind) bool {
	last := c.slot(kind).lastAttempt.Load()
	return last != 0 && time.Duration(c.now().UnixNano()-last) < c.config.RetryAfter
}

// Wait blocks until background refreshes started by Get have finished.
func (c *MenuCache) Wait() {
	c.background.Wait()
}

func (c *MenuCache) refreshAsync(kind domain.SnapshotKind) {
	s := c.slot(kind)
	if c.recentlyAttempted(kind) {
		return
	}
	if !s.pending.CompareAndSwap(false, true) {
		return
	}

	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer s.pending.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), c.config.RefreshTimeout)
		defer cancel()
		if _, _, err := c.Load(ctx, kind, true); err != nil {
			log.Printf("[CACHE] Background refresh of %s snapshot: %v", kind, err)
		}
	}()
}

type loadResult struct {
	snapshot *domain.Snapshot
	report   *domain.RefreshReport
}

// Load refreshes a snapshot from the source unless it is fresh and force is
// false. Concurrent callers for one kind share a single refresh. When every
// menu fails the previous snapshot is kept and returned together with an
// error wrapping domain.ErrSourceUnavailable.
func (c *MenuCache) Load(ctx context.Context, kind domain.SnapshotKind, force bool) (*domain.Snapshot, *domain.RefreshReport, error) {
	if !force && c.State(kind) == StateFresh {
		return c.Read(kind), nil, nil
	}

	v, err, _ := c.group.Do(string(kind), func() (interface{}, error) {
		snap, report, err := c.refresh(ctx, kind)
		return loadResult{snapshot: snap, report: report}, err
	})
	res, _ := v.(loadResult)
	return res.snapshot, res.report, err
}

// Clear drops the delivery snapshot from memory and disk. It reports whether
// the persisted file is gone.
func (c *MenuCache) Clear() bool {
	s := c.slot(domain.SnapshotDelivery)
	s.current.Store(nil)
	c.generation.Add(1)
	log.Printf("[CACHE] Cleared delivery snapshot")

	if c.store == nil {
		return true
	}
	if err := c.store.Remove(domain.SnapshotDelivery); err != nil {
		log.Printf("[CACHE] Cannot remove delivery snapshot file: %v", err)
		return false
	}
	return true
}

func (c *MenuCache) refresh(ctx context.Context, kind domain.SnapshotKind) (*domain.Snapshot, *domain.RefreshReport, error) {
	s := c.slot(kind)
	s.loading.Store(true)
	defer s.loading.Store(false)

	started := c.now()
	s.lastAttempt.Store(started.UnixNano())
	old := s.current.Load()
	report := &domain.RefreshReport{
		RunID:     c.newRunID(),
		Kind:      kind,
		StartedAt: started,
		FirstLoad: old.IsEmpty(),
	}

	lists := c.priceLists(ctx, kind)
	if len(lists) == 0 {
		report.Duration = c.now().Sub(started)
		c.recorder.RecordRefresh(string(kind), "failed", report.Duration, nil)
		return old, report, fmt.Errorf("%w: no menus to fetch for %s", domain.ErrSourceUnavailable, kind)
	}

	knownIDs := make([]domain.ID, len(lists))
	for i, l := range lists {
		knownIDs[i] = l.ID
	}

	var (
		mu    sync.Mutex
		menus = make(map[domain.ID]*domain.Menu, len(lists))
	)
	var g errgroup.Group
	g.SetLimit(c.config.FetchConcurrency)
	for _, list := range lists {
		list := list
		g.Go(func() error {
			menu, err := c.source.FetchMenu(ctx, list, knownIDs)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || menu == nil {
				log.Printf("[CACHE] Menu %s failed during %s refresh: %v", list.ID, kind, err)
				report.Failed = append(report.Failed, list.ID)
				return nil
			}
			menus[list.ID] = menu
			report.Fetched = append(report.Fetched, list.ID)
			return nil
		})
	}
	_ = g.Wait()

	sortIDs(report.Fetched)
	sortIDs(report.Failed)
	failedNames := make([]string, len(report.Failed))
	for i, id := range report.Failed {
		failedNames[i] = id.String()
	}

	if len(menus) == 0 {
		report.Duration = c.now().Sub(started)
		c.recorder.RecordRefresh(string(kind), "failed", report.Duration, failedNames)
		log.Printf("[CACHE] %s refresh %s: all %d menus failed, keeping previous snapshot", kind, report.RunID, len(lists))
		return old, report, fmt.Errorf("%w: all %d menus failed for %s", domain.ErrSourceUnavailable, len(lists), kind)
	}

	next := domain.NewSnapshot(c.config.PointID, c.now())
	for id, m := range menus {
		next.Menus[id] = m
	}
	for _, id := range report.Failed {
		if m, ok := old.Menu(id); ok {
			next.Menus[id] = m
			log.Printf("[CACHE] Keeping previous content of menu %s", id)
		}
	}

	report.Diff = CompareSnapshots(old, next)
	s.current.Store(next)
	c.generation.Add(1)
	report.Replaced = true

	if c.store != nil {
		if err := c.store.Save(kind, next); err != nil {
			log.Printf("[CACHE] Snapshot %s kept in memory only: %v", kind, err)
		}
	}

	report.Duration = c.now().Sub(started)
	outcome := "success"
	if len(report.Failed) > 0 {
		outcome = "partial"
	}
	c.recorder.RecordRefresh(string(kind), outcome, report.Duration, failedNames)
	c.recorder.RecordSnapshot(string(kind), next.ItemCount(), next.Timestamp.Time)

	log.Printf("[CACHE] %s refresh %s: %d menus, %d items, %d failed, %d changes in %s",
		kind, report.RunID, len(next.Menus), next.ItemCount(), len(report.Failed),
		report.Diff.TotalChanges(), report.Duration.Round(time.Millisecond))
	return next, report, nil
}

// priceLists decides which menus a refresh fetches. Enumeration failures fall
// back to the configured table.
func (c *MenuCache) priceLists(ctx context.Context, kind domain.SnapshotKind) []domain.PriceList {
	lists, err := c.source.ListPriceLists(ctx)
	if err != nil {
		log.Printf("[CACHE] Menu enumeration failed, using %d configured menus: %v", len(c.config.FallbackPriceLists), err)
		lists = c.config.FallbackPriceLists
	}

	names := make(map[domain.ID]string)
	for _, l := range c.config.FallbackPriceLists {
		names[l.ID] = l.Name
	}
	for _, l := range lists {
		if l.Name != "" {
			names[l.ID] = l.Name
		}
	}

	if kind == domain.SnapshotDelivery && len(c.config.DeliveryMenuIDs) > 0 {
		out := make([]domain.PriceList, 0, len(c.config.DeliveryMenuIDs))
		for _, id := range c.config.DeliveryMenuIDs {
			out = append(out, domain.PriceList{ID: id, Name: names[id]})
		}
		return out
	}

	seen := make(map[domain.ID]bool, len(lists))
	out := make([]domain.PriceList, 0, len(lists))
	for _, l := range lists {
		if l.ID == "" || seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		out = append(out, domain.PriceList{ID: l.ID, Name: names[l.ID]})
	}
	return out
}

func sortIDs(ids []domain.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
