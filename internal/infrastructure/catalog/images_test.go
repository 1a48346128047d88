package catalog

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFetcher_Download(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/broken.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("fake-image-bytes"))
	}))
	defer server.Close()

	menu := domain.NewMenu("1", "Main")
	menu.Categories.Add(&domain.Category{ID: "10", Name: "Салаты", Items: []domain.Item{
		{ID: "a", Name: "Цезарь", ImageURL: server.URL + "/a.png"},
		{ID: "b", Name: "Греческий", ImageURL: server.URL + "/broken.jpg"},
		{ID: "c", Name: "Без фото"},
	}})
	menu.Categories.Add(&domain.Category{ID: "11", Name: "Хиты", Items: []domain.Item{
		{ID: "a", Name: "Цезарь", ImageURL: server.URL + "/a.png"},
	}})

	dir := t.TempDir()
	fetcher := NewImageFetcher(dir, 2, time.Second)

	count := fetcher.Download(context.Background(), menu)
	assert.Equal(t, 1, count)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "duplicate item ids are downloaded once")

	salads, _ := menu.Categories.Get("10")
	require.NotEmpty(t, salads.Items[0].LocalImage)
	assert.Empty(t, salads.Items[1].LocalImage)
	assert.Empty(t, salads.Items[2].LocalImage)

	hits2, _ := menu.Categories.Get("11")
	assert.Equal(t, salads.Items[0].LocalImage, hits2.Items[0].LocalImage)

	data, err := os.ReadFile(salads.Items[0].LocalImage)
	require.NoError(t, err)
	assert.Equal(t, "fake-image-bytes", string(data))

	t.Run("existing files are reused", func(t *testing.T) {
		before := atomic.LoadInt32(&hits)
		fetcher.Download(context.Background(), menu)
		assert.Equal(t, before+1, atomic.LoadInt32(&hits), "only the broken image is retried")
	})
}

func TestImageFetcher_NilMenu(t *testing.T) {
	assert.Equal(t, 0, NewImageFetcher(t.TempDir(), 0, 0).Download(context.Background(), nil))
}

func TestImageFetcher_SameItemIDAcrossMenus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	dir := t.TempDir()
	fetcher := NewImageFetcher(dir, 2, time.Second)

	breakfast := domain.NewMenu("97", "Завтраки")
	breakfast.Categories.Add(&domain.Category{ID: "1", Name: "Каши", Items: []domain.Item{
		{ID: "5", Name: "Каша", ImageURL: server.URL + "/kasha.jpg"},
	}})
	bar := domain.NewMenu("95", "Бар")
	bar.Categories.Add(&domain.Category{ID: "2", Name: "Коктейли", Items: []domain.Item{
		{ID: "5", Name: "Мохито", ImageURL: server.URL + "/mojito.jpg"},
	}})

	require.Equal(t, 1, fetcher.Download(context.Background(), breakfast))
	require.Equal(t, 1, fetcher.Download(context.Background(), bar))

	cocktails, _ := bar.Categories.Get("2")
	data, err := os.ReadFile(cocktails.Items[0].LocalImage)
	require.NoError(t, err)
	assert.Equal(t, "/mojito.jpg", string(data))

	t.Run("changed url is downloaded again", func(t *testing.T) {
		cocktails.Items[0].ImageURL = server.URL + "/mojito-v2.jpg"
		require.Equal(t, 1, fetcher.Download(context.Background(), bar))

		data, err := os.ReadFile(cocktails.Items[0].LocalImage)
		require.NoError(t, err)
		assert.Equal(t, "/mojito-v2.jpg", string(data))
	})
}

func TestImageFetcher_RejectsOversizedImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), maxImageBytes+1))
	}))
	defer server.Close()

	dir := t.TempDir()
	menu := domain.NewMenu("1", "Main")
	menu.Categories.Add(&domain.Category{ID: "10", Name: "Пицца", Items: []domain.Item{
		{ID: "a", Name: "Маргарита", ImageURL: server.URL + "/big.jpg"},
	}})

	assert.Equal(t, 0, NewImageFetcher(dir, 1, 5*time.Second).Download(context.Background(), menu))

	pizza, _ := menu.Categories.Get("10")
	assert.Empty(t, pizza.Items[0].LocalImage)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial file is kept")
}

func TestImageFileName(t *testing.T) {
	name := imageFileName("90", "42", "https://x/y/z.PNG?size=1")
	assert.True(t, strings.HasPrefix(name, "90_42_"))
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Equal(t, name, imageFileName("90", "42", "https://x/y/z.PNG?size=1"))

	assert.NotEqual(t, name, imageFileName("95", "42", "https://x/y/z.PNG?size=1"))
	assert.NotEqual(t, name, imageFileName("90", "42", "https://x/y/z.PNG?size=2"))
	assert.True(t, strings.HasPrefix(imageFileName("", "a/b", "https://x/noext"), "menu_a_b_"))
}
