package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// ResolveRecorder receives resolver outcomes. *metrics.Collector implements it.
type ResolveRecorder interface {
	RecordResolve(kind string)
	RecordDishSearch(matched bool)
}

// MenuServiceConfig holds configuration for the menu service
type MenuServiceConfig struct {
	// AIAllowedIDs restricts the menus exported to the language model.
	AIAllowedIDs    []domain.ID
	BreakfastMenuID domain.ID
	// BreakfastCutoffHour hides the breakfast menu from this local hour on.
	// Zero keeps it visible all day.
	BreakfastCutoffHour int
	ResultTTL           time.Duration
	DishLimit           int
}

// MenuService answers menu questions from the cached snapshots.
// Flow: snapshots from cache -> breakfast gate -> memo lookup -> resolve -> memo store
type MenuService struct {
	cache      *MenuCache
	scheduler  *RefreshScheduler
	memo       domain.CacheRepository
	norm       *QueryNormalizer
	categories *CategoryResolver
	dishes     *DishResolver
	recorder   ResolveRecorder
	config     MenuServiceConfig
	now        func() time.Time
}

// NewMenuService creates a menu service. scheduler and memo may be nil.
func NewMenuService(
	menuCache *MenuCache,
	scheduler *RefreshScheduler,
	memo domain.CacheRepository,
	matching MatchConfig,
	config MenuServiceConfig,
) *MenuService {
	if config.ResultTTL <= 0 {
		config.ResultTTL = 10 * time.Minute
	}
	if config.DishLimit <= 0 {
		config.DishLimit = DefaultDishLimit
	}
	if matching.BreakfastMenuID == "" {
		matching.BreakfastMenuID = config.BreakfastMenuID
	}

	dishes := NewDishResolver(matching)
	return &MenuService{
		cache:      menuCache,
		scheduler:  scheduler,
		memo:       memo,
		norm:       NewQueryNormalizer(matching.withDefaults().Vocabulary),
		categories: NewCategoryResolver(matching, dishes),
		dishes:     dishes,
		config:     config,
		now:        time.Now,
	}
}

// SetRecorder installs a metrics recorder
func (s *MenuService) SetRecorder(r ResolveRecorder) {
	s.recorder = r
}

// DishLimit returns the configured display cap for dish lists
func (s *MenuService) DishLimit() int {
	return s.config.DishLimit
}

// BreakfastOpen reports whether the breakfast menu is currently offered.
func (s *MenuService) BreakfastOpen() bool {
	if s.config.BreakfastCutoffHour <= 0 || s.config.BreakfastMenuID == "" {
		return true
	}
	return s.now().Hour() < s.config.BreakfastCutoffHour
}

// snapshots returns the delivery and full snapshots as resolvers should see
// them, with the breakfast menu hidden after the cutoff.
func (s *MenuService) snapshots(ctx context.Context) []*domain.Snapshot {
	delivery := s.cache.Get(ctx, domain.SnapshotDelivery)
	full := s.cache.Get(ctx, domain.SnapshotFull)
	if s.BreakfastOpen() {
		return []*domain.Snapshot{delivery, full}
	}
	return []*domain.Snapshot{
		withoutMenu(delivery, s.config.BreakfastMenuID),
		withoutMenu(full, s.config.BreakfastMenuID),
	}
}

func withoutMenu(snap *domain.Snapshot, id domain.ID) *domain.Snapshot {
	if _, ok := snap.Menu(id); !ok {
		return snap
	}
	out := snap.Restrict(nil)
	delete(out.Menus, id)
	return out
}

func (s *MenuService) memoKey(kind, query string) string {
	return fmt.Sprintf("%s:%d:%t:%s", kind, s.cache.Generation(), s.BreakfastOpen(), s.norm.Fold(query))
}

// ResolveCategory maps free text to a category.
func (s *MenuService) ResolveCategory(ctx context.Context, query string) (*domain.MatchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidRequest
	}

	// Keyed by the generation seen before the snapshots are read.
	key := s.memoKey("category", query)
	snaps := s.snapshots(ctx)
	if cached, ok := s.fromMemo(ctx, key).(*domain.MatchResult); ok {
		return cached, nil
	}

	result := s.categories.Resolve(query, snaps...)
	s.toMemo(ctx, key, result)
	if s.recorder != nil {
		s.recorder.RecordResolve(result.Kind.String())
	}
	return result, nil
}

// SearchDishes returns at most limit matching items and the total match
// count. A non-positive limit uses the configured cap.
func (s *MenuService) SearchDishes(ctx context.Context, query string, limit int) ([]domain.Item, int, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, domain.ErrInvalidRequest
	}
	if limit <= 0 {
		limit = s.config.DishLimit
	}

	key := s.memoKey("dishes", query)
	snaps := s.snapshots(ctx)
	items, ok := s.fromMemo(ctx, key).([]domain.Item)
	if !ok {
		items = s.dishes.Search(query, snaps...)
		s.toMemo(ctx, key, items)
		if s.recorder != nil {
			s.recorder.RecordDishSearch(len(items) > 0)
		}
	}

	total := len(items)
	if total > limit {
		items = items[:limit]
	}
	return items, total, nil
}

// CategorySummary describes one category for listings.
type CategorySummary struct {
	MenuID      domain.ID  `json:"menuId"`
	MenuName    string     `json:"menuName"`
	ID          domain.ID  `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"displayName,omitempty"`
	ParentID    *domain.ID `json:"parentId,omitempty"`
	ItemCount   int        `json:"itemCount"`
}

// Categories lists every category visible to the resolvers, in scan order.
func (s *MenuService) Categories(ctx context.Context) []CategorySummary {
	var out []CategorySummary
	for _, om := range s.categories.order.arrange(s.snapshots(ctx)) {
		for _, cat := range om.menu.Categories.All() {
			out = append(out, CategorySummary{
				MenuID:      om.menu.ID,
				MenuName:    om.menu.Name,
				ID:          cat.ID,
				Name:        cat.Name,
				DisplayName: cat.DisplayName,
				ParentID:    cat.ParentID,
				ItemCount:   len(om.menu.CategoryItems(cat.ID)),
			})
		}
	}
	return out
}

// AIContext renders the full snapshot, restricted to the allowed menus, for
// the language model.
func (s *MenuService) AIContext(ctx context.Context) string {
	full := s.cache.Get(ctx, domain.SnapshotFull)
	restricted := full.Restrict(s.config.AIAllowedIDs)
	if !s.BreakfastOpen() {
		restricted = withoutMenu(restricted, s.config.BreakfastMenuID)
	}
	return RenderMenuContext(restricted)
}

// Refresh reloads both snapshots. With a scheduler, significant changes are
// also reported to its notifier.
func (s *MenuService) Refresh(ctx context.Context, force bool) ([]*domain.RefreshReport, error) {
	if s.scheduler != nil {
		return s.scheduler.RunOnce(ctx, force)
	}

	var reports []*domain.RefreshReport
	var firstErr error
	for _, kind := range []domain.SnapshotKind{domain.SnapshotDelivery, domain.SnapshotFull} {
		_, report, err := s.cache.Load(ctx, kind, force)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if report != nil {
			reports = append(reports, report)
		}
	}
	return reports, firstErr
}

// Clear drops the delivery snapshot. Memoized answers expire with the
// generation change.
func (s *MenuService) Clear() bool {
	return s.cache.Clear()
}

// SnapshotStatus describes one cached snapshot.
type SnapshotStatus struct {
	Kind       domain.SnapshotKind `json:"kind"`
	State      string              `json:"state"`
	Timestamp  *time.Time          `json:"timestamp,omitempty"`
	AgeSeconds float64             `json:"ageSeconds,omitempty"`
	Menus      int                 `json:"menus"`
	Items      int                 `json:"items"`
}

// Status reports the state of both snapshots without triggering a refresh.
func (s *MenuService) Status() []SnapshotStatus {
	now := s.now()
	var out []SnapshotStatus
	for _, kind := range []domain.SnapshotKind{domain.SnapshotDelivery, domain.SnapshotFull} {
		snap := s.cache.Read(kind)
		st := SnapshotStatus{
			Kind:  kind,
			State: s.cache.State(kind).String(),
			Items: snap.ItemCount(),
		}
		if snap != nil {
			st.Menus = len(snap.Menus)
			if !snap.Timestamp.IsZero() {
				ts := snap.Timestamp.Time
				st.Timestamp = &ts
				st.AgeSeconds = now.Sub(ts).Seconds()
			}
		}
		out = append(out, st)
	}
	return out
}

// Generation exposes the cache generation
func (s *MenuService) Generation() uint64 {
	return s.cache.Generation()
}

func (s *MenuService) fromMemo(ctx context.Context, key string) interface{} {
	if s.memo == nil {
		return nil
	}
	value, err := s.memo.Get(ctx, key)
	if err != nil {
		return nil
	}
	return value
}

func (s *MenuService) toMemo(ctx context.Context, key string, value interface{}) {
	if s.memo == nil {
		return
	}
	_ = s.memo.Set(ctx, key, value, s.config.ResultTTL)
}
