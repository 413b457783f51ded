package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// StorageLocal stores images under Storage.OutputDirectory
	StorageLocal = "local"
	// StorageDrive uploads images to a Google Drive folder per item code
	StorageDrive = "drive"

	// ImageAuthPrimary downloads images with the primary endpoint's credentials
	ImageAuthPrimary = "primary"
	// ImageAuthSource downloads images with the credentials of the endpoint that returned the product
	ImageAuthSource = "source"

	// DriveEmptyMarker is written to the checkpoint when no images were found and Drive storage is used
	DriveEmptyMarker = "NO_IMAGES_FOUND"
)

// Config holds all configuration options for a product image run
type Config struct {
	// Product API endpoints and credentials
	API APIConfig `yaml:"api" json:"api"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Product lookup retry settings
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Input, checkpoint and pacing settings
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Where downloaded images end up
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Google Drive settings, used when Storage.Backend is "drive"
	Drive DriveConfig `yaml:"drive" json:"drive"`

	// Checkpoint sync to a git remote
	Git GitConfig `yaml:"git" json:"git"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// EndpointConfig describes one product API endpoint
type EndpointConfig struct {
	Name     string `yaml:"name" json:"name"`
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Enabled reports whether the endpoint has a URL configured
func (e EndpointConfig) Enabled() bool {
	return strings.TrimSpace(e.URL) != ""
}

// APIConfig holds the product API configuration
type APIConfig struct {
	Primary      EndpointConfig `yaml:"primary" json:"primary"`
	Fallback     EndpointConfig `yaml:"fallback" json:"fallback"`
	BaseImageURL string         `yaml:"base_image_url" json:"base_image_url"`
	ImageAuth    string         `yaml:"image_auth" json:"image_auth"`
}

// Endpoints returns the configured endpoints in priority order
func (a APIConfig) Endpoints() []EndpointConfig {
	var endpoints []EndpointConfig
	if a.Primary.Enabled() {
		endpoints = append(endpoints, a.Primary)
	}
	if a.Fallback.Enabled() {
		endpoints = append(endpoints, a.Fallback)
	}
	return endpoints
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries       int           `yaml:"max_retries" json:"max_retries"`
	BackoffFactor    float64       `yaml:"backoff_factor" json:"backoff_factor"`
	RetryStatusCodes []int         `yaml:"retry_status_codes" json:"retry_status_codes"`
	UserAgent        string        `yaml:"user_agent" json:"user_agent"`
}

// FetchConfig holds the empty-result retry policy of the product lookup
type FetchConfig struct {
	Attempts     int           `yaml:"attempts" json:"attempts"`
	EmptyBackoff time.Duration `yaml:"empty_backoff" json:"empty_backoff"`
}

// BatchConfig holds input, checkpoint and pacing settings
type BatchConfig struct {
	InputFile      string        `yaml:"input_file" json:"input_file"`
	CheckpointFile string        `yaml:"checkpoint_file" json:"checkpoint_file"`
	ItemDelay      time.Duration `yaml:"item_delay" json:"item_delay"`
	DryRun         bool          `yaml:"dry_run" json:"dry_run"`
}

// StorageConfig holds image storage settings
type StorageConfig struct {
	Backend         string `yaml:"backend" json:"backend"`
	OutputDirectory string `yaml:"output_directory" json:"output_directory"`
	EmptyMarker     string `yaml:"empty_marker" json:"empty_marker"`
}

// DriveConfig holds Google Drive settings
type DriveConfig struct {
	CredentialsJSON string `yaml:"credentials_json" json:"-"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	ParentFolderID  string `yaml:"parent_folder_id" json:"parent_folder_id"`
}

// GitConfig holds checkpoint sync settings
type GitConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	RepoPath     string        `yaml:"repo_path" json:"repo_path"`
	Remote       string        `yaml:"remote" json:"remote"`
	Repository   string        `yaml:"repository" json:"repository"`
	Branch       string        `yaml:"branch" json:"branch"`
	Token        string        `yaml:"token" json:"-"`
	AuthorName   string        `yaml:"author_name" json:"author_name"`
	AuthorEmail  string        `yaml:"author_email" json:"author_email"`
	SyncInterval time.Duration `yaml:"sync_interval" json:"sync_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format is auto, console or json; auto picks console on a terminal
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Primary: EndpointConfig{
				Name: "primary",
				URL:  "https://sales.tasco.net.au/userapi/json/product/v4_tasco.json",
			},
			Fallback: EndpointConfig{
				Name: "fallback",
			},
			BaseImageURL: "https://sales.tasco.net.au",
			ImageAuth:    ImageAuthPrimary,
		},
		HTTP: HTTPConfig{
			Timeout:          30 * time.Second,
			MaxRetries:       5,
			BackoffFactor:    1,
			RetryStatusCodes: []int{500, 502, 503, 504, 522},
			UserAgent:        "prodfetch/1.0",
		},
		Fetch: FetchConfig{
			Attempts:     3,
			EmptyBackoff: 5 * time.Second,
		},
		Batch: BatchConfig{
			InputFile:      "zt-image-fetch/product-scrape-list.csv",
			CheckpointFile: "zt-image-fetch/downloaded-images.csv",
			ItemDelay:      5 * time.Second,
		},
		Storage: StorageConfig{
			Backend:         StorageLocal,
			OutputDirectory: "zt-image-fetch/tsa-images",
		},
		Git: GitConfig{
			RepoPath:     ".",
			Remote:       "origin",
			AuthorName:   "prodfetch",
			AuthorEmail:  "prodfetch@users.noreply.github.com",
			SyncInterval: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	// Endpoints
	setString(&c.API.Primary.URL, "API_URL")
	setString(&c.API.Primary.Username, "API_USERNAME")
	setString(&c.API.Primary.Password, "API_PASSWORD")
	setString(&c.API.Fallback.URL, "FALLBACK_API_URL")
	setString(&c.API.Fallback.Username, "FALLBACK_API_USERNAME")
	setString(&c.API.Fallback.Password, "FALLBACK_API_PASSWORD")
	setString(&c.API.BaseImageURL, "BASE_IMAGE_URL")
	setString(&c.API.ImageAuth, "PRODFETCH_IMAGE_AUTH")

	// Files
	setString(&c.Batch.InputFile, "PRODFETCH_INPUT")
	setString(&c.Batch.CheckpointFile, "PRODFETCH_CHECKPOINT")
	setString(&c.Storage.OutputDirectory, "PRODFETCH_OUTPUT_DIR")
	setString(&c.Storage.Backend, "PRODFETCH_STORAGE")

	if delay := os.Getenv("PRODFETCH_ITEM_DELAY"); delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid PRODFETCH_ITEM_DELAY: %w", err)
		}
		c.Batch.ItemDelay = d
	}

	// Drive
	setString(&c.Drive.CredentialsJSON, "GDRIVE_CREDENTIALS")
	setString(&c.Drive.CredentialsFile, "GDRIVE_CREDENTIALS_FILE")
	setString(&c.Drive.ParentFolderID, "GDRIVE_PARENT_FOLDER_ID")

	// Git sync
	setString(&c.Git.Token, "GITHUB_TOKEN")
	setString(&c.Git.Repository, "GITHUB_REPOSITORY")
	setString(&c.Git.Branch, "GITHUB_REF_NAME")
	if sync := os.Getenv("PRODFETCH_GIT_SYNC"); sync != "" {
		enabled, err := strconv.ParseBool(sync)
		if err != nil {
			return fmt.Errorf("invalid PRODFETCH_GIT_SYNC: %w", err)
		}
		c.Git.Enabled = enabled
	}

	setString(&c.Logging.Level, "PRODFETCH_LOG_LEVEL")
	setString(&c.Logging.Format, "PRODFETCH_LOG_FORMAT")

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".prodfetch.yaml",
		".prodfetch.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "prodfetch", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "prodfetch", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// EmptyMarker returns the checkpoint value written for items without images
func (c *Config) EmptyMarker() string {
	if c.Storage.EmptyMarker != "" {
		return c.Storage.EmptyMarker
	}
	if c.Storage.Backend == StorageDrive {
		return DriveEmptyMarker
	}
	return ""
}

// CheckpointColumn returns the value column header of the checkpoint CSV
func (c *Config) CheckpointColumn() string {
	if c.Storage.Backend == StorageDrive {
		return "Google Drive File ID"
	}
	return "Saved Image Path"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !c.API.Primary.Enabled() {
		errs = append(errs, errors.New("primary API URL is required"))
	}
	if c.API.BaseImageURL == "" {
		errs = append(errs, errors.New("base image URL is required"))
	}
	switch c.API.ImageAuth {
	case ImageAuthPrimary, ImageAuthSource:
	default:
		errs = append(errs, fmt.Errorf("invalid image auth mode %q", c.API.ImageAuth))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("HTTP timeout must be positive"))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, errors.New("HTTP max retries cannot be negative"))
	}
	if c.HTTP.BackoffFactor < 0 {
		errs = append(errs, errors.New("HTTP backoff factor cannot be negative"))
	}

	if c.Fetch.Attempts <= 0 {
		errs = append(errs, errors.New("fetch attempts must be positive"))
	}
	if c.Fetch.EmptyBackoff < 0 {
		errs = append(errs, errors.New("empty-result backoff cannot be negative"))
	}

	if c.Batch.InputFile == "" {
		errs = append(errs, errors.New("input file is required"))
	}
	if c.Batch.CheckpointFile == "" {
		errs = append(errs, errors.New("checkpoint file is required"))
	}
	if c.Batch.ItemDelay < 0 {
		errs = append(errs, errors.New("item delay cannot be negative"))
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.OutputDirectory == "" {
			errs = append(errs, errors.New("output directory is required"))
		}
	case StorageDrive:
		if c.Drive.CredentialsJSON == "" && c.Drive.CredentialsFile == "" {
			errs = append(errs, errors.New("drive storage requires GDRIVE_CREDENTIALS"))
		}
		if c.Drive.ParentFolderID == "" {
			errs = append(errs, errors.New("drive storage requires a parent folder id"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage backend %q", c.Storage.Backend))
	}

	if c.Git.Enabled && c.Git.SyncInterval <= 0 {
		errs = append(errs, errors.New("git sync interval must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if input, ok := flags["input"].(string); ok && input != "" {
		c.Batch.InputFile = input
	}
	if checkpoint, ok := flags["checkpoint"].(string); ok && checkpoint != "" {
		c.Batch.CheckpointFile = checkpoint
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Storage.OutputDirectory = output
	}
	if backend, ok := flags["storage"].(string); ok && backend != "" {
		c.Storage.Backend = backend
	}
	if delay, ok := flags["item-delay"].(time.Duration); ok && delay >= 0 {
		c.Batch.ItemDelay = delay
	}
	if dryRun, ok := flags["dry-run"].(bool); ok {
		c.Batch.DryRun = dryRun
	}
	if gitSync, ok := flags["git-sync"].(bool); ok {
		c.Git.Enabled = gitSync
	}
	if imageAuth, ok := flags["image-auth"].(string); ok && imageAuth != "" {
		c.API.ImageAuth = imageAuth
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".prodfetch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if config.Drive.CredentialsJSON == "" && config.Drive.CredentialsFile != "" {
		data, err := os.ReadFile(config.Drive.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read drive credentials: %w", err)
		}
		config.Drive.CredentialsJSON = string(data)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
