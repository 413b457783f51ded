package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/product"
	"prodfetch/pkg/storage"
)

func newTestDownloader(t *testing.T, baseURL string) (*Downloader, string, *logger.TestLogger) {
	t.Helper()

	root := t.TempDir()
	store, err := storage.NewLocalStore(root)
	require.NoError(t, err)

	log := logger.NewTestLogger()
	d, err := New(Options{BaseURL: baseURL, Store: store, Logger: log})
	require.NoError(t, err)
	return d, root, log
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "X1_001.jpg", FileName("X1", 1, ".jpg"))
	assert.Equal(t, "AB_12_012.png", FileName("AB/12", 12, ".png"))
}

func TestNewRejectsRelativeBase(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = New(Options{BaseURL: "images/", Store: store})
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	d, _, _ := newTestDownloader(t, "https://img.example.com/media/")

	tests := []struct {
		in   string
		want string
	}{
		{"p/1.jpg", "https://img.example.com/media/p/1.jpg"},
		{"/abs/2.jpg", "https://img.example.com/abs/2.jpg"},
		{"https://cdn.example.net/3.jpg", "https://cdn.example.net/3.jpg"},
	}
	for _, tt := range tests {
		got, err := d.ResolveURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := d.ResolveURL("  ")
	assert.Error(t, err)
}

func TestDownloadStoresImagesInOrder(t *testing.T) {
	var gotAuth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		w.Write([]byte("data:" + r.URL.Path))
	}))
	defer server.Close()

	d, root, _ := newTestDownloader(t, server.URL+"/")
	headers := http.Header{"Authorization": []string{"Basic abc"}}

	refs := d.Download(context.Background(), "AB/12", []product.Image{
		{URL: "a.jpg", Filename: "a.jpg"},
		{URL: "b", Filename: "b.png"},
		{URL: "c", Filename: ""},
	}, headers)

	assert.Equal(t, []storage.ArtifactRef{
		"/AB_12/AB_12_001.jpg",
		"/AB_12/AB_12_002.png",
		"/AB_12/AB_12_003.jpg",
	}, refs)
	assert.Equal(t, []string{"Basic abc", "Basic abc", "Basic abc"}, gotAuth)

	content, err := os.ReadFile(filepath.Join(root, "AB_12", "AB_12_002.png"))
	require.NoError(t, err)
	assert.Equal(t, "data:/b", string(content))
}

func TestDownloadSkipsFailedImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	d, _, log := newTestDownloader(t, server.URL)

	refs := d.Download(context.Background(), "C3", []product.Image{
		{URL: "/missing.jpg", Filename: "missing.jpg"},
		{URL: "/present.jpg", Filename: "present.jpg"},
	}, nil)

	// Numbering follows the position in the image list, not the success count
	assert.Equal(t, []storage.ArtifactRef{"/C3/C3_002.jpg"}, refs)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}

func TestDownloadAllFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	d, _, _ := newTestDownloader(t, server.URL)

	refs := d.Download(context.Background(), "D4", []product.Image{{URL: "/x.jpg"}}, nil)
	assert.Empty(t, refs)
}

func TestDownloadStopsOnCancel(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	d, _, _ := newTestDownloader(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	refs := d.Download(ctx, "E5", []product.Image{{URL: "/1.jpg"}, {URL: "/2.jpg"}}, nil)
	assert.Empty(t, refs)
	assert.Equal(t, 0, calls)
}
