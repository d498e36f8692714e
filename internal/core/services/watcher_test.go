package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driving"
)

// mockIngestor implements driving.Ingestor with scripted outcomes.
type mockIngestor struct {
	mu      sync.Mutex
	result  *driving.IngestResult
	errs    []error // consumed one per call; nil entry means success
	calls   int
	lastReq driving.IngestRequest
}

func (m *mockIngestor) Ingest(_ context.Context, req driving.IngestRequest) (*driving.IngestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if m.result != nil {
		return m.result, nil
	}
	return &driving.IngestResult{WorkID: "work-1", Fingerprint: strings.Repeat("a", 40)}, nil
}

func (m *mockIngestor) Resegment(context.Context, string, string, int, int) (*driving.ResegmentResult, error) {
	return nil, domain.ErrNotFound
}

func (m *mockIngestor) Slice(context.Context, string, int, int) (string, error) {
	return "", domain.ErrNotFound
}

type watcherFixture struct {
	watcher  *Watcher
	ingestor *mockIngestor
	sink     *mockSink
	clock    *fakeClock
	inbox    string
	success  string
	fail     string
}

func newWatcherFixture(t *testing.T, mutate func(*WatcherConfig)) *watcherFixture {
	t.Helper()
	root := t.TempDir()
	cfg := WatcherConfig{
		Inbox:           filepath.Join(root, "inbox"),
		SuccessDir:      filepath.Join(root, "success"),
		FailDir:         filepath.Join(root, "fail"),
		StabilityWindow: 2 * time.Second,
		MaxAttempts:     3,
		BackoffBase:     time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	for _, dir := range []string{cfg.Inbox, cfg.SuccessDir, cfg.FailDir} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
	}

	ingestor := &mockIngestor{}
	sink := &mockSink{}
	clock := newFakeClock()
	w, err := NewWatcher(cfg, ingestor, sink, clock, nil, nil)
	require.NoError(t, err)
	return &watcherFixture{
		watcher:  w,
		ingestor: ingestor,
		sink:     sink,
		clock:    clock,
		inbox:    cfg.Inbox,
		success:  cfg.SuccessDir,
		fail:     cfg.FailDir,
	}
}

func (f *watcherFixture) drop(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.inbox, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// stabilize runs the discovery scans needed to take a fresh file past the
// stability window.
func (f *watcherFixture) stabilize(ctx context.Context) {
	f.watcher.Scan(ctx)
	f.clock.Advance(f.watcher.cfg.StabilityWindow + time.Second)
	f.watcher.Scan(ctx)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestWatcher_RequiresDirectories(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{}, &mockIngestor{}, nil, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWatcher_IgnoredNames(t *testing.T) {
	cases := []struct {
		name    string
		ignored bool
	}{
		{"story.txt", false},
		{"notes.md", false},
		{".hidden", true},
		{"draft.txt~", true},
		{"download.part", true},
		{"download.crdownload", true},
		{"scratch.tmp", true},
		{"held.lock", true},
		{"vim.swp", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ignored, ignoredName(tc.name))
		})
	}
}

func TestWatcher_StabilityWindowHoldsGrowingFile(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	path := f.drop(t, "grow.txt", "partial")

	f.watcher.Scan(ctx)
	f.clock.Advance(f.watcher.cfg.StabilityWindow + time.Second)

	// The file grew during the window: stability restarts.
	require.NoError(t, os.WriteFile(path, []byte("partial plus more"), 0o644))
	f.watcher.Scan(ctx)
	assert.Empty(t, f.watcher.queue, "resized file must not be enqueued")

	// Unchanged through a full window: now eligible.
	f.clock.Advance(f.watcher.cfg.StabilityWindow + time.Second)
	f.watcher.Scan(ctx)
	assert.Len(t, f.watcher.queue, 1)
}

func TestWatcher_AdmissionRejectsUnsupportedExtension(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	f.drop(t, "picture.png", "binary-ish")

	f.stabilize(ctx)

	assert.Empty(t, listDir(t, f.inbox))
	failed := listDir(t, f.fail)
	require.Len(t, failed, 2, "moved file plus error record")

	var record failRecord
	for _, name := range failed {
		if strings.HasSuffix(name, ".err.json") {
			data, err := os.ReadFile(filepath.Join(f.fail, name))
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &record))
		} else {
			assert.True(t, strings.HasSuffix(name, "__picture.png"))
		}
	}
	assert.Equal(t, domain.StageAdmission, record.Stage)
	assert.Contains(t, record.Message, "unsupported file type")

	events := f.sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDocumentFailed, events[0].Type)
	assert.Equal(t, domain.StageAdmission, events[0].Stage)
	assert.Zero(t, f.ingestor.calls, "rejected files never reach the coordinator")
}

func TestWatcher_AdmissionRejectsOversizedFile(t *testing.T) {
	f := newWatcherFixture(t, func(cfg *WatcherConfig) {
		cfg.MaxFileBytes = 8
	})
	ctx := context.Background()
	f.drop(t, "big.txt", "this exceeds eight bytes")

	f.stabilize(ctx)

	assert.Empty(t, listDir(t, f.inbox))
	require.Len(t, listDir(t, f.fail), 2)
	events := f.sink.recorded()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Reason, "file too large")
}

func TestWatcher_QueueBackpressureReoffers(t *testing.T) {
	f := newWatcherFixture(t, func(cfg *WatcherConfig) {
		cfg.QueueCapacity = 1
	})
	ctx := context.Background()
	f.drop(t, "a.txt", "first")
	f.drop(t, "b.txt", "second")

	f.stabilize(ctx)
	assert.Len(t, f.watcher.queue, 1, "queue admits exactly its capacity")
	assert.Len(t, listDir(t, f.inbox), 2, "held-back file is not dropped")

	// Drain one slot; the next scan re-offers the held-back file.
	item := <-f.watcher.queue
	f.watcher.mu.Lock()
	item.state = stateProcessing
	f.watcher.mu.Unlock()

	f.watcher.Scan(ctx)
	assert.Len(t, f.watcher.queue, 1)
}

func TestWatcher_ProcessSuccessMovesFile(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	path := f.drop(t, "story.txt", "a tale\n")
	f.ingestor.result = &driving.IngestResult{WorkID: "w-42", Fingerprint: strings.Repeat("b", 40)}

	f.watcher.process(ctx, &watchItem{path: path})

	assert.Empty(t, listDir(t, f.inbox))
	names := listDir(t, f.success)
	require.Len(t, names, 1)
	assert.Equal(t, "w-42__story.txt", names[0])
	assert.Equal(t, "watcher", f.ingestor.lastReq.Ingestor)
}

func TestWatcher_DuplicateOutcomeIsSuccess(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	path := f.drop(t, "again.txt", "same content\n")
	f.ingestor.result = &driving.IngestResult{WorkID: "w-1", Duplicate: true}

	f.watcher.process(ctx, &watchItem{path: path})

	require.Len(t, listDir(t, f.success), 1)
	assert.Empty(t, listDir(t, f.fail))
}

func TestWatcher_TransientFailureBacksOff(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	path := f.drop(t, "flaky.txt", "content\n")
	f.ingestor.errs = []error{domain.ErrStoreUnavailable}

	item := &watchItem{path: path}
	start := f.clock.Now()
	f.watcher.process(ctx, item)

	// Still in the inbox, rescheduled with the base backoff.
	assert.Len(t, listDir(t, f.inbox), 1)
	assert.Equal(t, 1, item.attempts)
	assert.Equal(t, start.Add(f.watcher.cfg.BackoffBase), item.nextEligible)

	// Backoff doubles on the next failure.
	f.ingestor.errs = []error{domain.ErrStoreUnavailable}
	f.watcher.process(ctx, item)
	assert.Equal(t, 2, item.attempts)
	assert.Equal(t, f.clock.Now().Add(2*f.watcher.cfg.BackoffBase), item.nextEligible)
}

func TestWatcher_ExhaustedRetriesAreTerminal(t *testing.T) {
	f := newWatcherFixture(t, func(cfg *WatcherConfig) {
		cfg.MaxAttempts = 2
	})
	ctx := context.Background()
	path := f.drop(t, "doomed.txt", "content\n")
	f.ingestor.errs = []error{domain.ErrStoreUnavailable, domain.ErrStoreUnavailable}

	item := &watchItem{path: path}
	f.watcher.process(ctx, item)
	require.Len(t, listDir(t, f.inbox), 1, "first failure retries")

	f.watcher.process(ctx, item)
	assert.Empty(t, listDir(t, f.inbox))
	assert.Len(t, listDir(t, f.fail), 2)

	events := f.sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDocumentFailed, events[0].Type)
	assert.Equal(t, domain.StagePersist, events[0].Stage)
}

func TestWatcher_TerminalErrorFailsImmediately(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	path := f.drop(t, "garbled.txt", "content\n")
	f.ingestor.errs = []error{domain.AtStage(domain.StageNormalise, domain.ErrEncoding)}

	f.watcher.process(ctx, &watchItem{path: path})

	assert.Empty(t, listDir(t, f.inbox))
	assert.Len(t, listDir(t, f.fail), 2)
	assert.Equal(t, 1, f.ingestor.calls, "input errors are never retried")

	events := f.sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, domain.StageNormalise, events[0].Stage)
}

func TestWatcher_CancelledAttemptDoesNotChargeBudget(t *testing.T) {
	f := newWatcherFixture(t, func(cfg *WatcherConfig) {
		cfg.MaxAttempts = 1
	})
	ctx := context.Background()
	path := f.drop(t, "fine.txt", "content\n")
	f.ingestor.errs = []error{context.Canceled}

	item := &watchItem{path: path}
	f.watcher.process(ctx, item)

	// Even on the last allowed attempt, an interrupted ingest is not a
	// failure: the file stays in the inbox with its budget intact.
	assert.Len(t, listDir(t, f.inbox), 1)
	assert.Empty(t, listDir(t, f.fail))
	assert.Zero(t, item.attempts)
	assert.Equal(t, stateDiscovered, item.state)
	assert.Empty(t, f.sink.recorded())
}

func TestWatcher_DeterministicExtractionFailureIsTerminal(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	path := f.drop(t, "mangled.docx", "not a zip\n")
	f.ingestor.errs = []error{domain.AtStage(domain.StageExtract,
		fmt.Errorf("%w: opening docx archive: zip: not a valid zip file", domain.ErrExtraction))}

	f.watcher.process(ctx, &watchItem{path: path})

	// A parse failure repeats on every attempt, so it fails immediately.
	assert.Empty(t, listDir(t, f.inbox))
	assert.Len(t, listDir(t, f.fail), 2)
	assert.Equal(t, 1, f.ingestor.calls)
}

// blockingIngestor holds every attempt until released, so tests can cancel
// the watcher while an ingest is in flight.
type blockingIngestor struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingIngestor) Ingest(ctx context.Context, _ driving.IngestRequest) (*driving.IngestResult, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return &driving.IngestResult{WorkID: "w-drain", Fingerprint: strings.Repeat("c", 40)}, nil
	}
}

func (b *blockingIngestor) Resegment(context.Context, string, string, int, int) (*driving.ResegmentResult, error) {
	return nil, domain.ErrNotFound
}

func (b *blockingIngestor) Slice(context.Context, string, int, int) (string, error) {
	return "", domain.ErrNotFound
}

func TestWatcher_ShutdownDrainsInFlightAttempt(t *testing.T) {
	root := t.TempDir()
	cfg := WatcherConfig{
		Inbox:           filepath.Join(root, "inbox"),
		SuccessDir:      filepath.Join(root, "success"),
		FailDir:         filepath.Join(root, "fail"),
		Workers:         1,
		MaxAttempts:     1,
		StabilityWindow: time.Millisecond,
		PollInterval:    10 * time.Millisecond,
	}
	require.NoError(t, os.MkdirAll(cfg.Inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Inbox, "fine.txt"), []byte("healthy content\n"), 0o644))

	ing := &blockingIngestor{started: make(chan struct{}), release: make(chan struct{})}
	w, err := NewWatcher(cfg, ing, nil, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-ing.started:
	case <-time.After(5 * time.Second):
		t.Fatal("ingest attempt never started")
	}

	// Cancel mid-attempt. Run must block on the drain, and the blocked
	// attempt must not see the cancellation.
	cancel()
	select {
	case <-done:
		t.Fatal("Run returned while an attempt was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(ing.release)
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the attempt finished")
	}

	// The drained attempt completed normally: success move, no failure.
	names := listDir(t, cfg.SuccessDir)
	require.Len(t, names, 1)
	assert.Equal(t, "w-drain__fine.txt", names[0])
	assert.Empty(t, listDir(t, cfg.FailDir))
}

func TestWatcher_RetryEligibilityGatesEnqueue(t *testing.T) {
	f := newWatcherFixture(t, nil)
	ctx := context.Background()
	f.drop(t, "waiting.txt", "content\n")

	f.stabilize(ctx)
	require.Len(t, f.watcher.queue, 1)
	item := <-f.watcher.queue

	// Simulate a transient failure: the item waits out its backoff.
	f.ingestor.errs = []error{domain.ErrStoreUnavailable}
	f.watcher.process(ctx, item)

	f.watcher.Scan(ctx)
	assert.Empty(t, f.watcher.queue, "not eligible until the backoff elapses")

	f.clock.Advance(f.watcher.cfg.BackoffBase + time.Second)
	f.watcher.Scan(ctx)
	assert.Len(t, f.watcher.queue, 1)
}
