package batch

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"prodfetch/pkg/config"
	"prodfetch/pkg/items"
	"prodfetch/pkg/logger"
	"prodfetch/pkg/product"
	"prodfetch/pkg/ratelimit"
)

const defaultSyncInterval = 30 * time.Minute

// State is the driver's position in a run
type State int

const (
	StateIdle State = iota
	StateLoading
	StateFiltering
	StateProcessing
	StateDone
	StateFatalAbort
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateFiltering:
		return "filtering"
	case StateProcessing:
		return "processing"
	case StateDone:
		return "done"
	case StateFatalAbort:
		return "fatal_abort"
	default:
		return "unknown"
	}
}

// Summary reports the outcome of a run
type Summary struct {
	// Total is the number of input rows
	Total int
	// AlreadyProcessed counts input rows whose code was in the checkpoint
	AlreadyProcessed int
	// Pending is the number of rows left after filtering
	Pending   int
	Processed int
	Failed    int
	// Skipped counts rows without an item code
	Skipped     int
	ImagesSaved int
	// Pauses and PauseTime report inter-item pacing when the limiter
	// keeps statistics
	Pauses    int
	PauseTime time.Duration
	// Interrupted is set when the context ended the run early
	Interrupted bool
	// PendingCodes is filled by dry runs
	PendingCodes []string
	// WorkDone is false when there was nothing to process
	WorkDone bool
	Duration time.Duration
}

// Options wires the driver's collaborators
type Options struct {
	Endpoints []product.Endpoint
	// ImageAuth selects whose headers are sent with image requests
	// (config.ImageAuthPrimary or config.ImageAuthSource)
	ImageAuth  string
	Fetcher    ProductFetcher
	Downloader ImageDownloader
	Checkpoint CheckpointStore
	Items      ItemSource
	// Syncer is optional
	Syncer       Syncer
	SyncInterval time.Duration
	Limiter      ratelimit.Limiter
	// DryRun lists pending items without processing them
	DryRun bool
	Now    func() time.Time
	Logger logger.Logger
}

// pacingStats is implemented by limiters that count their pauses
type pacingStats interface {
	Stats() (int, time.Duration)
}

// Driver runs a batch
type Driver struct {
	opts   Options
	logger logger.Logger

	mu    sync.Mutex
	state State
}

// NewDriver validates the required collaborators and fills in defaults
func NewDriver(opts Options) (*Driver, error) {
	if opts.Fetcher == nil || opts.Downloader == nil || opts.Checkpoint == nil || opts.Items == nil {
		return nil, fmt.Errorf("batch driver requires a fetcher, downloader, checkpoint and item source")
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if opts.ImageAuth == "" {
		opts.ImageAuth = config.ImageAuthPrimary
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	return &Driver{
		opts:   opts,
		logger: opts.Logger,
	}, nil
}

// State returns the current state
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	d.logger.DebugWithFields("Batch state changed", map[string]interface{}{
		"state": s.String(),
	})
}

// Run executes one pass. It returns an error only when the input list
// cannot be loaded or ctx is cancelled; per-item failures are counted.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	start := d.opts.Now()
	summary := &Summary{}

	d.setState(StateLoading)
	processed := d.opts.Checkpoint.LoadProcessed()
	rows, err := d.opts.Items.Load()
	if err != nil {
		d.setState(StateFatalAbort)
		return nil, fmt.Errorf("failed to load input list: %w", err)
	}
	summary.Total = len(rows)

	d.setState(StateFiltering)
	f := filterPending(rows, processed)
	pending := f.pending
	summary.AlreadyProcessed = f.already
	summary.Pending = len(pending)
	summary.Skipped = len(f.blank)
	for _, row := range f.blank {
		d.logger.WarnWithFields("Skipping row with missing item code", map[string]interface{}{
			"line": row.Line,
		})
	}

	d.logger.InfoWithFields("Input loaded", map[string]interface{}{
		"total":             summary.Total,
		"already_processed": summary.AlreadyProcessed,
		"pending":           summary.Pending,
		"skipped":           summary.Skipped,
	})

	if len(pending) == 0 {
		d.logger.Info("No work remaining")
		if d.opts.Syncer != nil && !d.opts.DryRun {
			d.sync(context.WithoutCancel(ctx))
		}
		d.setState(StateDone)
		summary.Duration = d.opts.Now().Sub(start)
		return summary, nil
	}

	if d.opts.DryRun {
		for _, row := range pending {
			d.logger.InfoWithFields("Would process item", map[string]interface{}{
				"item_code": row.Code,
				"line":      row.Line,
			})
			summary.PendingCodes = append(summary.PendingCodes, row.Code)
		}
		d.setState(StateDone)
		summary.Duration = d.opts.Now().Sub(start)
		return summary, nil
	}

	summary.WorkDone = true
	d.setState(StateProcessing)
	runErr := d.process(ctx, pending, summary)
	summary.Interrupted = runErr != nil
	if stats, ok := d.opts.Limiter.(pacingStats); ok {
		summary.Pauses, summary.PauseTime = stats.Stats()
	}

	if d.opts.Syncer != nil {
		// Final sync still runs when the batch was interrupted
		d.sync(context.WithoutCancel(ctx))
	}

	d.setState(StateDone)
	summary.Duration = d.opts.Now().Sub(start)
	d.logger.InfoWithFields("Batch complete", map[string]interface{}{
		"processed":    summary.Processed,
		"failed":       summary.Failed,
		"skipped":      summary.Skipped,
		"images_saved": summary.ImagesSaved,
		"interrupted":  summary.Interrupted,
		"duration":     summary.Duration.String(),
	})

	return summary, runErr
}

func (d *Driver) process(ctx context.Context, pending []items.Row, summary *Summary) error {
	lastSync := d.opts.Now()

	for i, row := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.LogBatchProgress(d.logger, row.Code, i+1, len(pending))

		saved, err := d.processItem(ctx, row.Code)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.ErrorWithFields("Failed to process item", map[string]interface{}{
				"item_code": row.Code,
				"error":     err.Error(),
			})
			summary.Failed++
		} else {
			summary.Processed++
			summary.ImagesSaved += saved
		}

		if d.opts.Syncer != nil && d.opts.Now().Sub(lastSync) >= d.opts.SyncInterval {
			d.sync(ctx)
			lastSync = d.opts.Now()
		}

		if i < len(pending)-1 {
			if err := d.opts.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

// processItem handles one item and returns the number of stored images.
// Panics are recovered into errors so one bad item cannot end the batch.
func (d *Driver) processItem(ctx context.Context, code string) (saved int, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.DebugWithFields("Recovered panic", map[string]interface{}{
				"item_code": code,
				"stack":     string(debug.Stack()),
			})
			err = fmt.Errorf("panic while processing %s: %v", code, r)
		}
	}()

	result, err := d.opts.Fetcher.Fetch(ctx, code, d.opts.Endpoints)
	if err != nil {
		return 0, fmt.Errorf("fetch failed: %w", err)
	}

	var images []product.Image
	var headers http.Header
	if result != nil {
		images = result.Product.Images
		headers = d.imageHeaders(result)
	}
	if result != nil && len(images) == 0 {
		d.logger.InfoWithFields("Product has no images", map[string]interface{}{
			"item_code": code,
			"endpoint":  result.Endpoint.Name,
		})
	}

	refs := d.opts.Downloader.Download(ctx, code, images, headers)
	if err := ctx.Err(); err != nil {
		// Leave the item out of the checkpoint so the next run retries it
		return 0, err
	}

	if err := d.opts.Checkpoint.Append(code, refs); err != nil {
		return 0, fmt.Errorf("checkpoint append failed: %w", err)
	}
	return len(refs), nil
}

// imageHeaders picks the auth headers for image requests
func (d *Driver) imageHeaders(result *product.Result) http.Header {
	if d.opts.ImageAuth == config.ImageAuthSource {
		return result.Endpoint.Headers
	}
	if len(d.opts.Endpoints) == 0 {
		return nil
	}
	return d.opts.Endpoints[0].Headers
}

func (d *Driver) sync(ctx context.Context) {
	path := d.opts.Checkpoint.Path()
	if err := d.opts.Syncer.Sync(ctx, path); err != nil {
		d.logger.ErrorWithFields("Checkpoint sync failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	d.logger.InfoWithFields("Checkpoint synced", map[string]interface{}{
		"path": path,
	})
}
