package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 3, config.Fetch.Attempts)
	assert.Equal(t, 5*time.Second, config.Fetch.EmptyBackoff)
	assert.Equal(t, 30*time.Second, config.HTTP.Timeout)
	assert.Equal(t, 5, config.HTTP.MaxRetries)
	assert.Equal(t, []int{500, 502, 503, 504, 522}, config.HTTP.RetryStatusCodes)
	assert.Equal(t, 30*time.Minute, config.Git.SyncInterval)
	assert.Equal(t, StorageLocal, config.Storage.Backend)
	assert.Equal(t, ImageAuthPrimary, config.API.ImageAuth)
	assert.NoError(t, config.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com/products.json")
	t.Setenv("API_USERNAME", "user")
	t.Setenv("API_PASSWORD", "secret")
	t.Setenv("FALLBACK_API_URL", "https://fallback.example.com/products.json")
	t.Setenv("PRODFETCH_ITEM_DELAY", "2s")
	t.Setenv("PRODFETCH_GIT_SYNC", "true")
	t.Setenv("GITHUB_TOKEN", "token")
	t.Setenv("PRODFETCH_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnv())

	assert.Equal(t, "https://api.example.com/products.json", config.API.Primary.URL)
	assert.Equal(t, "user", config.API.Primary.Username)
	assert.Equal(t, "secret", config.API.Primary.Password)
	assert.Equal(t, "https://fallback.example.com/products.json", config.API.Fallback.URL)
	assert.Equal(t, 2*time.Second, config.Batch.ItemDelay)
	assert.True(t, config.Git.Enabled)
	assert.Equal(t, "token", config.Git.Token)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvInvalidDelay(t *testing.T) {
	t.Setenv("PRODFETCH_ITEM_DELAY", "soon")

	config := DefaultConfig()
	assert.Error(t, config.LoadFromEnv())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  primary:
    url: https://primary.example.com/p.json
  fallback:
    url: https://fallback.example.com/p.json
    username: fb
batch:
  input_file: items.csv
  item_delay: 1s
storage:
  backend: local
  output_directory: out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))

	assert.Equal(t, "https://primary.example.com/p.json", config.API.Primary.URL)
	assert.Equal(t, "fb", config.API.Fallback.Username)
	assert.Equal(t, "items.csv", config.Batch.InputFile)
	assert.Equal(t, time.Second, config.Batch.ItemDelay)
	assert.Equal(t, "out", config.Storage.OutputDirectory)
	// untouched defaults survive
	assert.Equal(t, 3, config.Fetch.Attempts)
}

func TestEndpointsOrder(t *testing.T) {
	config := DefaultConfig()
	assert.Len(t, config.API.Endpoints(), 1)

	config.API.Fallback.URL = "https://fallback.example.com"
	endpoints := config.API.Endpoints()
	require.Len(t, endpoints, 2)
	assert.Equal(t, "primary", endpoints[0].Name)
	assert.Equal(t, "fallback", endpoints[1].Name)
}

func TestEmptyMarkerAndColumn(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, "", config.EmptyMarker())
	assert.Equal(t, "Saved Image Path", config.CheckpointColumn())

	config.Storage.Backend = StorageDrive
	assert.Equal(t, DriveEmptyMarker, config.EmptyMarker())
	assert.Equal(t, "Google Drive File ID", config.CheckpointColumn())

	config.Storage.EmptyMarker = "NONE"
	assert.Equal(t, "NONE", config.EmptyMarker())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing primary url", func(c *Config) { c.API.Primary.URL = "" }, true},
		{"bad image auth", func(c *Config) { c.API.ImageAuth = "both" }, true},
		{"zero attempts", func(c *Config) { c.Fetch.Attempts = 0 }, true},
		{"negative delay", func(c *Config) { c.Batch.ItemDelay = -time.Second }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, true},
		{"drive without credentials", func(c *Config) {
			c.Storage.Backend = StorageDrive
			c.Drive.ParentFolderID = "parent"
		}, true},
		{"drive with credentials", func(c *Config) {
			c.Storage.Backend = StorageDrive
			c.Drive.CredentialsJSON = "{}"
			c.Drive.ParentFolderID = "parent"
		}, false},
		{"missing credentials are not an error", func(c *Config) {
			c.API.Primary.Username = ""
			c.API.Primary.Password = ""
		}, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"input":      "in.csv",
		"checkpoint": "cp.csv",
		"item-delay": 3 * time.Second,
		"dry-run":    true,
		"image-auth": ImageAuthSource,
	})

	assert.Equal(t, "in.csv", config.Batch.InputFile)
	assert.Equal(t, "cp.csv", config.Batch.CheckpointFile)
	assert.Equal(t, 3*time.Second, config.Batch.ItemDelay)
	assert.True(t, config.Batch.DryRun)
	assert.Equal(t, ImageAuthSource, config.API.ImageAuth)
}
