package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driven"
	"github.com/archivista/lore-ingest/internal/core/ports/driving"
	"github.com/archivista/lore-ingest/internal/metrics"
)

// WatcherConfig is the folder watcher policy surface.
type WatcherConfig struct {
	Inbox      string
	SuccessDir string
	FailDir    string

	// AllowedExtensions is the admission allow-list, lower-case with dot.
	AllowedExtensions []string

	// MaxFileBytes rejects larger files at admission. Zero means no limit.
	MaxFileBytes int64

	Workers       int
	QueueCapacity int

	// StabilityWindow is how long a file's size must hold steady before it
	// is eligible for enqueue.
	StabilityWindow time.Duration

	// PollInterval is the directory scan period. Filesystem notifications
	// wake the scanner early; polling is the correctness backstop.
	PollInterval time.Duration

	// MaxAttempts is the per-file ingest attempt ceiling.
	MaxAttempts int

	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration

	Recursive bool

	Profile     string
	WindowChars int
	StrideChars int
}

func (c *WatcherConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 64
	}
	if c.StabilityWindow <= 0 {
		c.StabilityWindow = 2 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{".txt", ".md", ".pdf", ".docx"}
	}
}

// Watch item states.
type itemState int

const (
	stateDiscovered itemState = iota
	stateStabilizing
	stateQueued
	stateProcessing
)

// watchItem tracks one inbox file. Attempt count and next-eligible time live
// here so recovery after a crash needs no state beyond the filesystem itself.
type watchItem struct {
	path         string
	firstSeen    time.Time
	lastSize     int64
	stableSince  time.Time
	attempts     int
	nextEligible time.Time
	state        itemState
}

// Watcher discovers files in an inbox directory, holds them until their size
// is stable, and feeds them through a bounded queue to a fixed worker pool
// that calls the ingest coordinator. Terminal outcomes move the file out of
// the inbox, so the directory layout is the durable record.
type Watcher struct {
	cfg      WatcherConfig
	ingestor driving.Ingestor
	events   driven.EventSink // optional
	clock    driven.Clock
	logger   *zap.Logger
	metrics  *metrics.Watcher // optional

	queue chan *watchItem
	pool  *ants.Pool
	wg    sync.WaitGroup

	mu    sync.Mutex
	items map[string]*watchItem

	allowed map[string]struct{}
}

// NewWatcher creates a folder watcher. events and collectors may be nil;
// clock defaults to the system clock.
func NewWatcher(
	cfg WatcherConfig,
	ingestor driving.Ingestor,
	events driven.EventSink,
	clock driven.Clock,
	logger *zap.Logger,
	collectors *metrics.Watcher,
) (*Watcher, error) {
	cfg.applyDefaults()
	if cfg.Inbox == "" || cfg.SuccessDir == "" || cfg.FailDir == "" {
		return nil, fmt.Errorf("%w: watcher requires inbox, success and fail directories", domain.ErrInvalidInput)
	}
	if clock == nil {
		clock = driven.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return &Watcher{
		cfg:      cfg,
		ingestor: ingestor,
		events:   events,
		clock:    clock,
		logger:   logger,
		metrics:  collectors,
		queue:    make(chan *watchItem, cfg.QueueCapacity),
		items:    make(map[string]*watchItem),
		allowed:  allowed,
	}, nil
}

// Run blocks until ctx is cancelled. On shutdown, discovery stops first,
// then in-flight workers drain before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.cfg.Inbox, w.cfg.SuccessDir, w.cfg.FailDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating watch directory: %w", err)
		}
	}

	pool, err := ants.NewPool(w.cfg.Workers)
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	w.pool = pool
	defer w.pool.Release()

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	go w.dispatch(dispatchCtx)

	wake := w.notifications(ctx)

	w.logger.Info("watcher started",
		zap.String("inbox", w.cfg.Inbox),
		zap.Int("workers", w.cfg.Workers),
		zap.Int("queue_capacity", w.cfg.QueueCapacity))

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.Scan(ctx)
	for {
		select {
		case <-ctx.Done():
			// Stop discovery, let in-flight items finish, then exit.
			cancelDispatch()
			w.wg.Wait()
			w.logger.Info("watcher stopped")
			return ctx.Err()
		case <-wake:
			w.Scan(ctx)
		case <-ticker.C:
			w.Scan(ctx)
		}
	}
}

// notifications starts a best-effort fsnotify subscription on the inbox.
// A nil or failed subscription degrades to pure polling.
func (w *Watcher) notifications(ctx context.Context) <-chan struct{} {
	wake := make(chan struct{}, 1)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("filesystem notifications unavailable, polling only", zap.Error(err))
		return wake
	}
	if err := fsw.Add(w.cfg.Inbox); err != nil {
		w.logger.Warn("cannot watch inbox, polling only", zap.Error(err))
		fsw.Close()
		return wake
	}

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-fsw.Events:
				if !ok {
					return
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("filesystem notification error", zap.Error(err))
			}
		}
	}()
	return wake
}

// Scan performs one discovery pass: track new files, advance stability, and
// enqueue admitted items. Exported so tests can drive the watcher with an
// injected clock instead of waiting on the poll ticker.
func (w *Watcher) Scan(ctx context.Context) {
	paths, err := w.listInbox()
	if err != nil {
		w.logger.Warn("inbox scan failed", zap.Error(err))
		return
	}

	now := w.clock.Now()
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		w.observe(ctx, path, now)
	}
	w.forgetMissing(paths)
}

func (w *Watcher) listInbox() ([]string, error) {
	var paths []string
	if w.cfg.Recursive {
		err := filepath.WalkDir(w.cfg.Inbox, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != w.cfg.Inbox && ignoredName(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !ignoredName(d.Name()) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking inbox: %w", err)
		}
	} else {
		entries, err := os.ReadDir(w.cfg.Inbox)
		if err != nil {
			return nil, fmt.Errorf("reading inbox: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || ignoredName(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(w.cfg.Inbox, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ignoredName permanently skips hidden files, partial downloads and locks.
func ignoredName(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".part", ".partial", ".crdownload", ".download", ".tmp", ".swp", ".lock":
		return true
	}
	return false
}

// observe advances one file through the Discovered and Stabilizing states
// and enqueues it once stable, admitted and retry-eligible.
func (w *Watcher) observe(ctx context.Context, path string, now time.Time) {
	info, err := os.Stat(path)
	if err != nil {
		// Gone between listing and stat; the next scan settles it.
		return
	}

	w.mu.Lock()
	item, known := w.items[path]
	if !known {
		item = &watchItem{
			path:      path,
			firstSeen: now,
			lastSize:  info.Size(),
			state:     stateStabilizing,
		}
		item.stableSince = now
		w.items[path] = item
		w.mu.Unlock()
		return
	}

	if item.state == stateQueued || item.state == stateProcessing {
		w.mu.Unlock()
		return
	}

	if info.Size() != item.lastSize {
		// Still being written; restart the stability window.
		item.lastSize = info.Size()
		item.stableSince = now
		item.state = stateStabilizing
		w.mu.Unlock()
		return
	}

	if now.Sub(item.stableSince) < w.cfg.StabilityWindow || now.Before(item.nextEligible) {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	// Admission policy: terminal rejections never enter the queue.
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := w.allowed[ext]; !ok {
		w.routeFailure(ctx, item, domain.AtStage(domain.StageAdmission,
			fmt.Errorf("%w: %s", domain.ErrUnsupportedType, ext)))
		return
	}
	if w.cfg.MaxFileBytes > 0 && info.Size() > w.cfg.MaxFileBytes {
		w.routeFailure(ctx, item, domain.AtStage(domain.StageAdmission,
			fmt.Errorf("%w: %d bytes exceeds limit %d", domain.ErrFileTooLarge, info.Size(), w.cfg.MaxFileBytes)))
		return
	}

	// Bounded queue is the backpressure mechanism: when full, the item is
	// held back and re-offered on the next scan rather than dropped.
	w.mu.Lock()
	select {
	case w.queue <- item:
		item.state = stateQueued
		if w.metrics != nil {
			w.metrics.QueueDepth.Inc()
		}
	default:
	}
	w.mu.Unlock()
}

// forgetMissing drops tracking state for files no longer present, unless
// they are queued or in flight.
func (w *Watcher) forgetMissing(present []string) {
	seen := make(map[string]struct{}, len(present))
	for _, p := range present {
		seen[p] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for path, item := range w.items {
		if _, ok := seen[path]; ok {
			continue
		}
		if item.state == stateQueued || item.state == stateProcessing {
			continue
		}
		delete(w.items, path)
	}
}

// dispatch feeds queued items to the worker pool. Submit blocks when all
// workers are busy, so pool capacity bounds concurrency.
func (w *Watcher) dispatch(ctx context.Context) {
	// Workers run on a context detached from dispatch shutdown: a drain
	// must let in-flight attempts finish, not abort them into the terminal
	// failure path.
	workCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-w.queue:
			if w.metrics != nil {
				w.metrics.QueueDepth.Dec()
			}
			w.wg.Add(1)
			submitted := item
			if err := w.pool.Submit(func() {
				defer w.wg.Done()
				w.process(workCtx, submitted)
			}); err != nil {
				w.wg.Done()
				w.logger.Warn("pool submit failed", zap.String("path", submitted.path), zap.Error(err))
			}
		}
	}
}

// process runs one ingest attempt for a queued item. No two attempts for the
// same item ever run concurrently: the item re-enters the scan cycle only
// after this method has routed or rescheduled it.
func (w *Watcher) process(ctx context.Context, item *watchItem) {
	w.mu.Lock()
	item.state = stateProcessing
	item.attempts++
	attempt := item.attempts
	w.mu.Unlock()

	result, err := w.ingestor.Ingest(ctx, driving.IngestRequest{
		Path:        item.path,
		Profile:     w.cfg.Profile,
		WindowChars: w.cfg.WindowChars,
		StrideChars: w.cfg.StrideChars,
		Ingestor:    "watcher",
	})
	if err == nil {
		w.routeSuccess(item, result)
		return
	}

	if domain.IsCancellation(err) {
		w.handBack(item, err)
		return
	}
	if domain.IsTransient(err) && attempt < w.cfg.MaxAttempts {
		w.reschedule(item, attempt, err)
		return
	}
	w.routeFailure(ctx, item, err)
}

// handBack returns a cancelled attempt to the scan cycle without charging
// the attempt budget. The file stays in the inbox and is picked up again
// immediately, or after a restart.
func (w *Watcher) handBack(item *watchItem, cause error) {
	w.mu.Lock()
	item.state = stateDiscovered
	item.attempts--
	item.nextEligible = w.clock.Now()
	w.mu.Unlock()

	w.logger.Info("ingest attempt interrupted, file stays in inbox",
		zap.String("path", item.path),
		zap.Error(cause))
}

// reschedule returns a transiently failed item to the scan cycle with an
// exponential backoff delay.
func (w *Watcher) reschedule(item *watchItem, attempt int, cause error) {
	delay := w.cfg.BackoffBase << (attempt - 1)

	w.mu.Lock()
	item.state = stateDiscovered
	item.nextEligible = w.clock.Now().Add(delay)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.RetriesTotal.Inc()
	}
	w.logger.Warn("ingest attempt failed, will retry",
		zap.String("path", item.path),
		zap.Int("attempt", attempt),
		zap.Duration("backoff", delay),
		zap.Error(cause))
}

// routeSuccess moves the file into the success area, renamed to embed the
// work id. A duplicate fingerprint hit counts as success.
func (w *Watcher) routeSuccess(item *watchItem, result *driving.IngestResult) {
	dst := filepath.Join(w.cfg.SuccessDir, result.WorkID+"__"+filepath.Base(item.path))
	if err := os.Rename(item.path, dst); err != nil {
		w.logger.Error("moving processed file failed", zap.String("path", item.path), zap.Error(err))
	}

	w.mu.Lock()
	delete(w.items, item.path)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.FilesSucceeded.Inc()
	}
	w.logger.Info("file processed",
		zap.String("path", item.path),
		zap.String("work_id", result.WorkID),
		zap.Bool("duplicate", result.Duplicate))
}

// failRecord is the structured error written next to a failed file.
type failRecord struct {
	Message   string `json:"message"`
	Stage     string `json:"stage"`
	Profile   string `json:"profile,omitempty"`
	CreatedAt string `json:"created_at"`
}

// routeFailure is the single terminal failure path for both admission
// rejections and exhausted retries: move the file to the fail area with a
// timestamp prefix, write the sibling error record, emit the failure event.
func (w *Watcher) routeFailure(ctx context.Context, item *watchItem, cause error) {
	now := w.clock.Now().UTC()
	name := filepath.Base(item.path)
	dst := filepath.Join(w.cfg.FailDir, now.Format("20060102T150405Z")+"__"+name)

	if err := os.Rename(item.path, dst); err != nil {
		w.logger.Error("moving failed file failed", zap.String("path", item.path), zap.Error(err))
	}

	record := failRecord{
		Message:   cause.Error(),
		Stage:     domain.StageOf(cause),
		Profile:   w.cfg.Profile,
		CreatedAt: now.Format(time.RFC3339),
	}
	if data, err := json.MarshalIndent(record, "", "  "); err == nil {
		if err := os.WriteFile(dst+".err.json", data, 0o644); err != nil {
			w.logger.Error("writing error record failed", zap.String("path", dst), zap.Error(err))
		}
	}

	w.mu.Lock()
	delete(w.items, item.path)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.FilesFailed.Inc()
	}
	w.emitFailure(ctx, item.path, record)
	w.logger.Warn("file routed to failures",
		zap.String("path", item.path),
		zap.String("stage", record.Stage),
		zap.Error(cause))
}

func (w *Watcher) emitFailure(ctx context.Context, path string, record failRecord) {
	if w.events == nil {
		return
	}
	event := domain.Event{
		Type:      domain.EventDocumentFailed,
		Path:      path,
		Reason:    record.Message,
		Stage:     record.Stage,
		Profile:   w.cfg.Profile,
		CreatedAt: w.clock.Now(),
	}
	if err := w.events.Emit(ctx, event); err != nil {
		w.logger.Warn("event emit failed", zap.String("type", event.Type), zap.Error(err))
	}
}
