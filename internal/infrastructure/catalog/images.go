package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"golang.org/x/sync/errgroup"
)

// maxImageBytes caps a single download.
const maxImageBytes = 10 << 20

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ImageFetcher downloads item photos into a local directory with bounded concurrency.
// Files are named by menu, item and photo URL, so a new URL is downloaded
// again. Failures are logged and leave the item without a local copy.
type ImageFetcher struct {
	httpClient  *http.Client
	dir         string
	concurrency int
}

// NewImageFetcher creates a fetcher writing into dir
func NewImageFetcher(dir string, concurrency int, timeout time.Duration) *ImageFetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ImageFetcher{
		httpClient:  &http.Client{Timeout: timeout},
		dir:         dir,
		concurrency: concurrency,
	}
}

// Download fetches every distinct item image of the menu and records the local
// path on the items. It returns the number of items that have a local image.
func (f *ImageFetcher) Download(ctx context.Context, menu *domain.Menu) int {
	if menu == nil {
		return 0
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		log.Printf("[IMAGES] Cannot create %s: %v", f.dir, err)
		return 0
	}

	wanted := make(map[domain.ID]string)
	for _, cat := range menu.Categories.All() {
		for _, item := range cat.Items {
			if item.ImageURL != "" {
				if _, seen := wanted[item.ID]; !seen {
					wanted[item.ID] = item.ImageURL
				}
			}
		}
	}

	var (
		mu    sync.Mutex
		local = make(map[domain.ID]string, len(wanted))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for id, imageURL := range wanted {
		id, imageURL := id, imageURL
		g.Go(func() error {
			p, err := f.fetch(gctx, imageFileName(menu.ID, id, imageURL), imageURL)
			if err != nil {
				log.Printf("[IMAGES] Menu %s item %s: %v", menu.ID, id, err)
				return nil
			}
			mu.Lock()
			local[id] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, cat := range menu.Categories.All() {
		for i := range cat.Items {
			if p, ok := local[cat.Items[i].ID]; ok {
				cat.Items[i].LocalImage = p
			}
		}
	}
	return len(local)
}

func (f *ImageFetcher) fetch(ctx context.Context, name, imageURL string) (string, error) {
	target := filepath.Join(f.dir, name)
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		return target, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.dir, ".img-*")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if n > maxImageBytes {
		return "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if n == 0 {
		return "", fmt.Errorf("empty image")
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return target, nil
}

// imageFileName builds "<menu>_<item>_<url hash><ext>".
func imageFileName(menuID, itemID domain.ID, imageURL string) string {
	ext := ".jpg"
	if u, err := url.Parse(imageURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e == ".png" || e == ".jpeg" || e == ".jpg" || e == ".webp" || e == ".gif" {
			ext = e
		}
	}
	return fmt.Sprintf("%s_%s_%016x%s", safeFilePart(menuID, "menu"), safeFilePart(itemID, "item"), xxhash.Sum64String(imageURL), ext)
}

func safeFilePart(id domain.ID, fallback string) string {
	if name := unsafeFileChars.ReplaceAllString(id.String(), "_"); name != "" {
		return name
	}
	return fallback
}
