package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// ChangeRecorder receives the change percentage of every full refresh.
type ChangeRecorder interface {
	RecordChangePercent(percent float64)
}

// RefreshSchedulerConfig holds configuration for periodic refreshes
type RefreshSchedulerConfig struct {
	Interval time.Duration
	// SignificanceThreshold is the change percentage that triggers a
	// notification. Zero notifies on every refresh; negative means 15.
	SignificanceThreshold float64
}

// RefreshScheduler refreshes both snapshots on an interval, decides whether
// the full snapshot changed significantly and tells the notifier.
type RefreshScheduler struct {
	cache     *MenuCache
	notifier  domain.ChangeNotifier
	recorder  ChangeRecorder
	interval  time.Duration
	threshold float64
}

// NewRefreshScheduler creates a scheduler. notifier may be nil.
func NewRefreshScheduler(cache *MenuCache, notifier domain.ChangeNotifier, config RefreshSchedulerConfig) *RefreshScheduler {
	interval := config.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	threshold := config.SignificanceThreshold
	if threshold < 0 {
		threshold = 15
	}
	return &RefreshScheduler{
		cache:     cache,
		notifier:  notifier,
		interval:  interval,
		threshold: threshold,
	}
}

// SetRecorder installs a metrics recorder
func (s *RefreshScheduler) SetRecorder(r ChangeRecorder) {
	s.recorder = r
}

// RunOnce refreshes the delivery and full snapshots. Without force, fresh
// snapshots are left alone and produce no report.
func (s *RefreshScheduler) RunOnce(ctx context.Context, force bool) ([]*domain.RefreshReport, error) {
	var (
		reports []*domain.RefreshReport
		errs    []error
	)

	for _, kind := range []domain.SnapshotKind{domain.SnapshotDelivery, domain.SnapshotFull} {
		_, report, err := s.cache.Load(ctx, kind, force)
		if err != nil {
			errs = append(errs, err)
		}
		if report == nil {
			continue
		}

		if report.Replaced {
			report.Significant = IsSignificant(report.Diff, s.threshold, report.FirstLoad)
		}
		if kind == domain.SnapshotFull && report.Replaced {
			if s.recorder != nil && report.Diff != nil {
				s.recorder.RecordChangePercent(report.Diff.ChangePercent)
			}
			if report.Significant && s.notifier != nil {
				if err := s.notifier.MenuChanged(ctx, *report); err != nil {
					log.Printf("[REFRESH] Notifier failed for run %s: %v", report.RunID, err)
				}
			}
		}
		reports = append(reports, report)
	}

	return reports, errors.Join(errs...)
}

// Run refreshes stale snapshots right away and then every interval until the
// context ends.
func (s *RefreshScheduler) Run(ctx context.Context) error {
	log.Printf("[REFRESH] Scheduler started, interval %s, threshold %.1f%%", s.interval, s.threshold)
	if _, err := s.RunOnce(ctx, false); err != nil {
		log.Printf("[REFRESH] Initial refresh: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[REFRESH] Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx, true); err != nil {
				log.Printf("[REFRESH] Scheduled refresh: %v", err)
			}
		}
	}
}

// LogNotifier writes significant changes to the log.
type LogNotifier struct {
	// MaxItems limits how many item names are listed per change kind.
	MaxItems int
}

// MenuChanged implements domain.ChangeNotifier
func (n LogNotifier) MenuChanged(ctx context.Context, report domain.RefreshReport) error {
	diff := report.Diff
	if diff == nil {
		diff = &domain.DiffResult{}
	}
	log.Printf("[REFRESH] Significant %s menu change (run %s, first load %v): %.2f%%, +%d -%d ~%d",
		report.Kind, report.RunID, report.FirstLoad, diff.ChangePercent,
		len(diff.Added), len(diff.Removed), len(diff.Changed))

	limit := n.MaxItems
	if limit <= 0 {
		limit = 10
	}
	if names := recordNames(diff.Added, limit); names != "" {
		log.Printf("[REFRESH] Added: %s", names)
	}
	if names := recordNames(diff.Removed, limit); names != "" {
		log.Printf("[REFRESH] Removed: %s", names)
	}
	for i, change := range diff.Changed {
		if i == limit {
			log.Printf("[REFRESH] ... and %d more changes", len(diff.Changed)-limit)
			break
		}
		log.Printf("[REFRESH] Changed %s (%s): %s", change.Name, change.ID, strings.Join(change.Fields, ", "))
	}
	return nil
}

func recordNames(records []domain.ItemRecord, limit int) string {
	if len(records) == 0 {
		return ""
	}
	names := make([]string, 0, min(len(records), limit))
	for i, r := range records {
		if i == limit {
			names = append(names, "...")
			break
		}
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
