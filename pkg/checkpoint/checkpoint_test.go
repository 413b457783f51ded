package checkpoint

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/storage"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "checkpoint.csv")
	store := NewStore(path, "Saved Image Path", "", logger.NewNopLogger())

	require.NoError(t, store.Append("A1", []storage.ArtifactRef{"/A1/A1_001.jpg", "/A1/A1_002.jpg"}))
	require.NoError(t, store.Append("A2", nil))

	assert.Equal(t, [][]string{
		{"Item Code", "Saved Image Path"},
		{"A1", "/A1/A1_001.jpg"},
		{"A1", "/A1/A1_002.jpg"},
		{"A2", ""},
	}, readRows(t, path))
}

func TestAppendDriveMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.csv")
	store := NewStore(path, "Google Drive File ID", "NO_IMAGES_FOUND", logger.NewNopLogger())

	require.NoError(t, store.Append("B1", []storage.ArtifactRef{}))

	assert.Equal(t, [][]string{
		{"Item Code", "Google Drive File ID"},
		{"B1", "NO_IMAGES_FOUND"},
	}, readRows(t, path))
}

func TestAppendToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.csv")
	require.NoError(t, os.WriteFile(path, []byte("Item Code,Saved Image Path\nA1,/A1/A1_001.jpg\n"), 0644))

	store := NewStore(path, "Saved Image Path", "", logger.NewNopLogger())
	require.NoError(t, store.Append("A2", []storage.ArtifactRef{"/A2/A2_001.png"}))

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"A2", "/A2/A2_001.png"}, rows[2])
}

func TestLoadProcessed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.csv")
	content := "Item Code,Saved Image Path\nA1,/A1/A1_001.jpg\nA1,/A1/A1_002.jpg\nA2,\n,stray\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store := NewStore(path, "Saved Image Path", "", logger.NewNopLogger())
	processed := store.LoadProcessed()

	assert.Equal(t, map[string]bool{"A1": true, "A2": true}, processed)
}

func TestLoadProcessedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.csv")
	store := NewStore(path, "Saved Image Path", "", logger.NewNopLogger())

	require.NoError(t, store.Append(`code,"quoted"`, nil))
	assert.True(t, store.LoadProcessed()[`code,"quoted"`])
}

func TestLoadProcessedMissingFile(t *testing.T) {
	log := logger.NewTestLogger()
	store := NewStore(filepath.Join(t.TempDir(), "none.csv"), "Saved Image Path", "", log)

	processed := store.LoadProcessed()
	assert.Empty(t, processed)
	assert.True(t, log.HasMessage("Checkpoint file not found, starting fresh"))
}

func TestLoadProcessedMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"wrong header", "Code,Path\nA1,x\n"},
		{"broken quoting", "Item Code,Saved Image Path\n\"A1,x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "checkpoint.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			log := logger.NewTestLogger()
			store := NewStore(path, "Saved Image Path", "", log)

			assert.Empty(t, store.LoadProcessed())
			assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
		})
	}
}

func TestLoadProcessedEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.csv")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	store := NewStore(path, "Saved Image Path", "", logger.NewNopLogger())
	assert.Empty(t, store.LoadProcessed())

	require.NoError(t, store.Append("A1", nil))
	assert.Equal(t, "Item Code", readRows(t, path)[0][0])
}

func TestAppendAfterUnterminatedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.csv")
	require.NoError(t, os.WriteFile(path, []byte("Item Code,Saved Image Path\nA1,/A1/A1_001.jpg"), 0644))

	store := NewStore(path, "Saved Image Path", "", logger.NewNopLogger())
	require.NoError(t, store.Append("A2", []storage.ArtifactRef{"/A2/A2_001.jpg"}))

	assert.Equal(t, [][]string{
		{"Item Code", "Saved Image Path"},
		{"A1", "/A1/A1_001.jpg"},
		{"A2", "/A2/A2_001.jpg"},
	}, readRows(t, path))
	assert.Equal(t, map[string]bool{"A1": true, "A2": true}, store.LoadProcessed())
}
