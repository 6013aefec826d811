package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/statuspulse/statuspulse/internal/domain"
	"github.com/statuspulse/statuspulse/internal/probe"
	"github.com/statuspulse/statuspulse/internal/queue"
	"github.com/statuspulse/statuspulse/internal/repo"
	"github.com/statuspulse/statuspulse/internal/repo/memory"
)

// --- fakes ---

type fakeChecker struct {
	mu      sync.Mutex
	calls   int
	outcome probe.Outcome
}

func (f *fakeChecker) Check(ctx context.Context, url string) probe.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.outcome
}

func (f *fakeChecker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func upChecker() *fakeChecker {
	return &fakeChecker{outcome: probe.Outcome{
		Status: domain.StatusUp, StatusCode: 200, ResponseTimeMS: 12.3, Reason: "200 OK",
	}}
}

type failingStore struct {
	*memory.Store
	fails int
	tried int
}

func (f *failingStore) AppendBatch(ctx context.Context, events []domain.UptimeEvent) error {
	f.tried++
	if f.tried <= f.fails {
		return errors.New("store unavailable")
	}
	return f.Store.AppendBatch(ctx, events)
}

var _ repo.EventStore = (*failingStore)(nil)

func testConfig() Config {
	return Config{
		Consumer:         "w1",
		Region:           "eu-central",
		ClaimBatch:       10,
		ClaimBlock:       50 * time.Millisecond,
		ProbeTimeout:     time.Second,
		ProbeConcurrency: 4,
		ReclaimMinIdle:   120 * time.Second,
		ReclaimMaxBatch:  10,
		ReclaimMaxTotal:  100,
		CriticalIdle:     10 * time.Minute,
		WriteStall:       5 * time.Minute,
		LogCooldown:      5 * time.Minute,
	}
}

func claimBatch(t *testing.T, q *queue.MemoryQueue, n int) []queue.Delivery {
	t.Helper()
	got, err := q.Claim(context.Background(), "w1", n, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	return got
}

// --- tests ---

func TestProcess_PersistsEventAndAcks(t *testing.T) {
	store := memory.New()
	store.Put(domain.Target{ID: "T1", URL: "https://t1.example", IsActive: true})
	q := queue.NewMemory()
	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})

	chk := upChecker()
	w := New(zap.NewNop(), q, store, store, chk, testConfig())
	w.Process(context.Background(), claimBatch(t, q, 10))

	evs := store.Events()
	if len(evs) != 1 {
		t.Fatalf("want 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.Status != domain.StatusUp || e.Region != "eu-central" {
		t.Fatalf("event wrong: %+v", e)
	}
	if e.HTTPStatus == nil || *e.HTTPStatus != 200 {
		t.Fatalf("want http status 200, got %+v", e.HTTPStatus)
	}
	if e.ResponseTimeMS == nil || *e.ResponseTimeMS <= 0 {
		t.Fatalf("want response time captured, got %+v", e.ResponseTimeMS)
	}
	if e.CheckedAt.IsZero() || e.IngestedAt.IsZero() {
		t.Fatalf("timestamps missing: %+v", e)
	}

	info, _ := q.PendingInfo(context.Background())
	if info.Count != 0 {
		t.Fatalf("delivery not acknowledged: %+v", info)
	}
}

func TestProcess_StaleTargetSkippedWithoutProbe(t *testing.T) {
	store := memory.New()
	store.Put(domain.Target{ID: "T1", URL: "https://t1.example", IsActive: false})
	q := queue.NewMemory()
	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})
	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T2", URL: "https://t2.example"}) // deleted

	chk := upChecker()
	w := New(zap.NewNop(), q, store, store, chk, testConfig())
	w.Process(context.Background(), claimBatch(t, q, 10))

	if chk.callCount() != 0 {
		t.Fatalf("stale targets must not be probed, got %d probes", chk.callCount())
	}
	if len(store.Events()) != 0 {
		t.Fatalf("stale targets must not produce events")
	}
	info, _ := q.PendingInfo(context.Background())
	if info.Count != 0 {
		t.Fatalf("stale deliveries must still be acknowledged: %+v", info)
	}
}

func TestProcess_StoreFailureStillAcks(t *testing.T) {
	store := &failingStore{Store: memory.New(), fails: 1}
	store.Put(domain.Target{ID: "T1", URL: "https://t1.example", IsActive: true})
	q := queue.NewMemory()
	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})

	w := New(zap.NewNop(), q, store, store, upChecker(), testConfig())
	w.Process(context.Background(), claimBatch(t, q, 10))

	if len(store.Events()) != 0 {
		t.Fatalf("write should have failed")
	}
	// A write failure never grows the pending list; the publisher's next
	// cycle is the retry mechanism.
	info, _ := q.PendingInfo(context.Background())
	if info.Count != 0 {
		t.Fatalf("delivery must be acknowledged despite write failure: %+v", info)
	}
}

func TestProcess_DownClassificationProducesEvent(t *testing.T) {
	store := memory.New()
	store.Put(domain.Target{ID: "T1", URL: "https://t1.example", IsActive: true})
	q := queue.NewMemory()
	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})

	chk := &fakeChecker{outcome: probe.Outcome{Status: domain.StatusDown, Reason: "dial tcp: timeout"}}
	w := New(zap.NewNop(), q, store, store, chk, testConfig())
	w.Process(context.Background(), claimBatch(t, q, 10))

	evs := store.Events()
	if len(evs) != 1 || evs[0].Status != domain.StatusDown {
		t.Fatalf("want one DOWN event, got %+v", evs)
	}
	if evs[0].HTTPStatus != nil {
		t.Fatalf("transport failure must not carry an http status")
	}
	info, _ := q.PendingInfo(context.Background())
	if info.Count != 0 {
		t.Fatalf("DOWN result must still be acknowledged")
	}
}

func TestAutoHeal_ReclaimedDeliveryIsReprocessed(t *testing.T) {
	store := memory.New()
	store.Put(domain.Target{ID: "T1", URL: "https://t1.example", IsActive: true})

	q := queue.NewMemory()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	now := base
	q.Now = func() time.Time { return now }

	// A "crashed" consumer claims and never acknowledges.
	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})
	if got, _ := q.Claim(context.Background(), "crashed", 1, 0); len(got) != 1 {
		t.Fatalf("setup claim failed")
	}

	cfg := testConfig()
	w := New(zap.NewNop(), q, store, store, upChecker(), cfg)

	// Too fresh: nothing to heal.
	re, err := q.ReclaimStale(context.Background(), cfg.Consumer, cfg.ReclaimMinIdle, cfg.ReclaimMaxBatch, cfg.ReclaimMaxTotal)
	if err != nil || len(re) != 0 {
		t.Fatalf("fresh delivery was reclaimed: %v %v", re, err)
	}

	// Past the idle threshold the surviving worker takes over.
	now = base.Add(cfg.ReclaimMinIdle)
	re, err = q.ReclaimStale(context.Background(), cfg.Consumer, cfg.ReclaimMinIdle, cfg.ReclaimMaxBatch, cfg.ReclaimMaxTotal)
	if err != nil || len(re) != 1 {
		t.Fatalf("want 1 reclaimed delivery, got %v %v", re, err)
	}
	w.Process(context.Background(), re)

	if len(store.Events()) != 1 {
		t.Fatalf("reclaimed delivery did not produce an event")
	}
	info, _ := q.PendingInfo(context.Background())
	if info.Count != 0 {
		t.Fatalf("reclaimed delivery not acknowledged: %+v", info)
	}
}

func TestRun_ConsumesEnqueuedTask(t *testing.T) {
	store := memory.New()
	store.Put(domain.Target{ID: "T1", URL: "https://t1.example", IsActive: true})
	q := queue.NewMemory()

	cfg := testConfig()
	cfg.AutoHealInterval = 0 // consumption loop only
	cfg.WatchdogInterval = 0
	w := New(zap.NewNop(), q, store, store, upChecker(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})

	deadline := time.After(2 * time.Second)
	for len(store.Events()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("worker never persisted the event")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestWatchdog_BacklogCriticalIsRateLimited(t *testing.T) {
	store := memory.New()
	q := queue.NewMemory()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	now := base
	q.Now = func() time.Time { return now }

	// One delivery stuck past the critical threshold.
	_ = q.Enqueue(context.Background(), domain.CheckTask{TargetID: "T1", URL: "https://t1.example"})
	_, _ = q.Claim(context.Background(), "crashed", 1, 0)
	now = base.Add(11 * time.Minute)

	core, logs := observer.New(zap.ErrorLevel)
	cfg := testConfig()
	cfg.WriteStall = 0 // isolate the backlog watchdog
	w := New(zap.New(core), q, store, store, upChecker(), cfg)

	w.watchdogPass(context.Background())
	w.watchdogPass(context.Background()) // inside the log cooldown

	got := logs.FilterMessage("worker_backlog_critical").Len()
	if got != 1 {
		t.Fatalf("want exactly 1 rate-limited critical log, got %d", got)
	}
}

func TestWatchdog_WriteStall(t *testing.T) {
	store := memory.New()
	q := queue.NewMemory()

	core, logs := observer.New(zap.ErrorLevel)
	cfg := testConfig()
	cfg.WriteStall = time.Nanosecond // any silence counts as a stall
	w := New(zap.New(core), q, store, store, upChecker(), cfg)

	time.Sleep(time.Millisecond)
	w.watchdogPass(context.Background())

	if logs.FilterMessage("worker_write_stall").Len() != 1 {
		t.Fatalf("want a write-stall critical log")
	}
}
