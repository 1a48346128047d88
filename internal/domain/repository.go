package domain

import (
	"context"
	"time"
)

// CatalogSource fetches menus from the remote POS catalog.
type CatalogSource interface {
	ListPriceLists(ctx context.Context) ([]PriceList, error)
	FetchMenu(ctx context.Context, list PriceList, knownIDs []ID) (*Menu, error)
}

// SnapshotStore persists snapshots between process restarts.
type SnapshotStore interface {
	Load(kind SnapshotKind) (*Snapshot, error)
	Save(kind SnapshotKind, snapshot *Snapshot) error
	Remove(kind SnapshotKind) error
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ChangeNotifier is told about significant menu updates.
type ChangeNotifier interface {
	MenuChanged(ctx context.Context, report RefreshReport) error
}
