package cli

import (
	"log"
	"sort"

	"github.com/strdr1/telegram-bot-api-sub001/config"
	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"github.com/strdr1/telegram-bot-api-sub001/internal/infrastructure/cache"
	"github.com/strdr1/telegram-bot-api-sub001/internal/infrastructure/catalog"
	"github.com/strdr1/telegram-bot-api-sub001/internal/infrastructure/metrics"
	"github.com/strdr1/telegram-bot-api-sub001/internal/infrastructure/store"
	"github.com/strdr1/telegram-bot-api-sub001/internal/usecase"
)

// app wires the infrastructure and usecase layers for one command run
type app struct {
	cfg       *config.Config
	source    domain.CatalogSource
	cache     *usecase.MenuCache
	scheduler *usecase.RefreshScheduler
	service   *usecase.MenuService
	memo      *cache.MemoryCache
	collector *metrics.Collector
}

// newApp builds the application. A nil source uses the catalog HTTP client.
func newApp(cfg *config.Config, source domain.CatalogSource) *app {
	if source == nil {
		client := catalog.NewClient(catalog.ClientConfig{
			BaseURL:       cfg.Source.BaseURL,
			APIKey:        cfg.Source.APIKey,
			PointID:       cfg.Source.PointID,
			Timeout:       cfg.Source.Timeout,
			RatePerSecond: cfg.Source.RatePerSecond,
			Burst:         cfg.Source.Burst,
			MaxRetries:    cfg.Source.MaxRetries,
			PageSize:      cfg.Source.PageSize,
		})
		client.SetDebug(cfg.Matching.Debug)
		if cfg.Images.Enabled {
			client.SetImageFetcher(catalog.NewImageFetcher(cfg.Images.Dir, cfg.Images.Concurrency, cfg.Source.Timeout))
			log.Printf("[IMAGES] Downloading item images into %s", cfg.Images.Dir)
		}
		source = client
	}

	collector := metrics.NewCollector()
	fileStore := store.NewFileStore(cfg.Cache.Dir, cfg.Cache.DeliveryFile, cfg.Cache.FullFile)

	menuCache := usecase.NewMenuCache(source, fileStore, usecase.MenuCacheConfig{
		PointID:            cfg.Source.PointID,
		DeliveryMenuIDs:    toIDs(cfg.Menus.DeliveryIDs),
		FallbackPriceLists: fallbackLists(cfg.Menus.Fallback),
		DeliveryTTL:        cfg.Cache.DeliveryTTL,
		FullTTL:            cfg.Cache.FullTTL,
		FetchConcurrency:   cfg.Cache.FetchConcurrency,
		RetryAfter:         cfg.Cache.RetryAfter,
	})
	menuCache.SetRecorder(collector)

	scheduler := usecase.NewRefreshScheduler(menuCache, usecase.LogNotifier{MaxItems: 10}, usecase.RefreshSchedulerConfig{
		Interval:              cfg.Refresh.Interval,
		SignificanceThreshold: cfg.Refresh.SignificanceThreshold,
	})
	scheduler.SetRecorder(collector)

	memo := cache.NewMemoryCache(cfg.Cache.ResultTTL)
	service := usecase.NewMenuService(menuCache, scheduler, memo, matchConfig(cfg), usecase.MenuServiceConfig{
		AIAllowedIDs:        toIDs(cfg.Menus.AIAllowedIDs),
		BreakfastMenuID:     domain.NewID(cfg.Menus.BreakfastID),
		BreakfastCutoffHour: cfg.Menus.BreakfastCutoffHour,
		ResultTTL:           cfg.Cache.ResultTTL,
		DishLimit:           cfg.Matching.DishLimit,
	})
	service.SetRecorder(collector)

	return &app{
		cfg:       cfg,
		source:    source,
		cache:     menuCache,
		scheduler: scheduler,
		service:   service,
		memo:      memo,
		collector: collector,
	}
}

// close stops background workers
func (a *app) close() {
	a.memo.Close()
}

func matchConfig(cfg *config.Config) usecase.MatchConfig {
	m := cfg.Matching
	return usecase.MatchConfig{
		FuzzyThreshold:      m.FuzzyThreshold,
		SuggestionThreshold: m.SuggestionThreshold,
		MaxSuggestions:      m.MaxSuggestions,
		NotFoundSample:      m.NotFoundSample,
		MinSubstringLength:  m.MinSubstringLength,
		MenuPriority:        toIDs(cfg.Menus.Priority),
		BarMenuIDs:          toIDs(cfg.Menus.BarIDs),
		BreakfastMenuID:     domain.NewID(cfg.Menus.BreakfastID),
		EnableDebugLogging:  m.Debug,
		Vocabulary: usecase.Vocabulary{
			Synonyms:         m.Synonyms,
			RootClusters:     m.RootClusters,
			AlcoholTerms:     m.AlcoholTerms,
			BarNameRoots:     m.BarNameRoots,
			VegetarianTerms:  m.VegetarianTerms,
			MeatRoots:        m.MeatRoots,
			PluralSuffixes:   m.PluralSuffixes,
			BreakfastPhrases: m.BreakfastPhrases,
			BreakfastRoots:   m.BreakfastRoots,
		},
	}
}

func toIDs(raw []string) []domain.ID {
	ids := make([]domain.ID, 0, len(raw))
	for _, s := range raw {
		if id := domain.NewID(s); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// fallbackLists turns the configured id -> name table into price lists in id order
func fallbackLists(table map[string]string) []domain.PriceList {
	lists := make([]domain.PriceList, 0, len(table))
	for id, name := range table {
		lists = append(lists, domain.PriceList{ID: domain.NewID(id), Name: name})
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].ID.Less(lists[j].ID) })
	return lists
}
