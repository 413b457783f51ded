package batch

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prodfetch/internal/downloader"
	"prodfetch/pkg/auth"
	"prodfetch/pkg/checkpoint"
	"prodfetch/pkg/items"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/product"
	"prodfetch/pkg/storage"
	"prodfetch/pkg/transport"
)

// productAPI serves two images for A1 and no products for anything else
type productAPI struct {
	mu      sync.Mutex
	lookups map[string]int
}

func (p *productAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api" {
		code := r.URL.Query().Get("code")
		p.mu.Lock()
		p.lookups[code]++
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if code == "A1" {
			w.Write([]byte(`{"count":1,"products":[{"images":[{"url":"/img/a.jpg","filename":"a.jpg"},{"url":"/img/b.png","filename":"b.png"}]}]}`))
			return
		}
		w.Write([]byte(`{"count":0,"products":[]}`))
		return
	}
	w.Write([]byte("image " + r.URL.Path))
}

func (p *productAPI) count(code string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookups[code]
}

func buildDriver(t *testing.T, serverURL, dir string) *Driver {
	t.Helper()
	log := logger.NewNopLogger()

	client := transport.New(transport.Options{MaxRetries: 1, Logger: log})
	fetcher := product.NewFetcher(client, product.Options{Attempts: 3, Logger: log})

	store, err := storage.NewLocalStore(filepath.Join(dir, "images"))
	require.NoError(t, err)
	dl, err := downloader.New(downloader.Options{BaseURL: serverURL, Client: client, Store: store, Logger: log})
	require.NoError(t, err)

	d, err := NewDriver(Options{
		Endpoints: []product.Endpoint{
			{Name: "primary", URL: serverURL + "/api", Headers: auth.Headers("user", "secret")},
			{Name: "fallback", URL: serverURL + "/fallback", Headers: auth.Headers("", "")},
		},
		Fetcher:    fetcher,
		Downloader: dl,
		Checkpoint: checkpoint.NewStore(filepath.Join(dir, "checkpoint.csv"), "Saved Image Path", "", log),
		Items:      items.Source{Path: filepath.Join(dir, "input.csv")},
		Logger:     log,
	})
	require.NoError(t, err)
	return d
}

func readCheckpoint(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestScenarioFreshRunAndResume(t *testing.T) {
	api := &productAPI{lookups: make(map[string]int)}
	server := httptest.NewServer(api)
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.csv"), []byte("Item Code\nA1\nA2\n"), 0644))

	summary, err := buildDriver(t, server.URL, dir).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.WorkDone)

	assert.Equal(t, [][]string{
		{"Item Code", "Saved Image Path"},
		{"A1", "/A1/A1_001.jpg"},
		{"A1", "/A1/A1_002.png"},
		{"A2", ""},
	}, readCheckpoint(t, filepath.Join(dir, "checkpoint.csv")))
	assert.Equal(t, 1, api.count("A1"))
	assert.Equal(t, 3, api.count("A2"), "empty results are retried three times")

	content, err := os.ReadFile(filepath.Join(dir, "images", "A1", "A1_002.png"))
	require.NoError(t, err)
	assert.Equal(t, "image /img/b.png", string(content))

	// A second run finds everything in the checkpoint
	summary, err = buildDriver(t, server.URL, dir).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.WorkDone)
	assert.Equal(t, 1, api.count("A1"))
	assert.Len(t, readCheckpoint(t, filepath.Join(dir, "checkpoint.csv")), 4)
}

func TestScenarioPartialCheckpoint(t *testing.T) {
	api := &productAPI{lookups: make(map[string]int)}
	server := httptest.NewServer(api)
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "input.csv"), []byte("Item Code\nA1\nA2\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "checkpoint.csv"), []byte("Item Code,Saved Image Path\nA1,/A1/A1_001.jpg\n"), 0644))

	_, err := buildDriver(t, server.URL, dir).Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, api.count("A1"))
	assert.Equal(t, 3, api.count("A2"))
}
