package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"basisd/internal/application/port"
	"basisd/internal/application/service"
	"basisd/internal/application/store"
	"basisd/internal/domain/model"
)

type stubMarketData struct {
	spot    float64
	futures float64
	funding float64
}

func (m *stubMarketData) SpotPrice(ctx context.Context, symbol string) (float64, error) {
	return m.spot, nil
}

func (m *stubMarketData) FuturesPrice(ctx context.Context, symbol string) (float64, error) {
	return m.futures, nil
}

func (m *stubMarketData) FundingRate(ctx context.Context, symbol string) (float64, error) {
	return m.funding, nil
}

type countingExecutor struct {
	mu    sync.Mutex
	calls int
}

func (c *countingExecutor) SubmitMarketOrder(ctx context.Context, market port.Market, symbol string, side port.Side, quantity float64) (*port.OrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &port.OrderResult{OrderID: "1", Status: "FILLED"}, nil
}

func (c *countingExecutor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestService(t *testing.T, exec port.OrderExecutor, simulate bool, duration time.Duration) (*Service, *store.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "opportunities.json")
	st := store.New()
	market := &stubMarketData{spot: 50000, futures: 50300, funding: 0.0001} // premium 0.6, profitable
	repo := NewNoopRepo()

	svc := NewService(ServiceDeps{
		Detector:     service.NewDetector(market, st, repo, 0.5),
		Dispatcher:   service.NewDispatcher(exec, 0.01),
		Store:        st,
		Repo:         repo,
		Symbols:      []string{"BTC"},
		Interval:     5 * time.Millisecond,
		Duration:     duration,
		Simulate:     simulate,
		SnapshotPath: path,
	})
	return svc, st, path
}

func readSnapshot(t *testing.T, path string) []model.Opportunity {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var history []model.Opportunity
	if err := json.Unmarshal(b, &history); err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	return history
}

func TestRunBoundedDuration(t *testing.T) {
	svc, st, path := newTestService(t, &countingExecutor{}, true, 20*time.Millisecond)

	if svc.State() != StateIdle {
		t.Errorf("expected idle before run, got %s", svc.State())
	}

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if svc.State() != StateStopped {
		t.Errorf("expected stopped after run, got %s", svc.State())
	}

	history := readSnapshot(t, path)
	if len(history) == 0 {
		t.Fatal("final snapshot must not be empty")
	}
	if len(history) != st.Len() {
		t.Errorf("final snapshot must hold the full history: %d vs %d", len(history), st.Len())
	}
}

func TestRunInterruptionSnapshotsEverything(t *testing.T) {
	svc, st, path := newTestService(t, &countingExecutor{}, true, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// let a few cycles accumulate, fewer than the periodic snapshot cadence
	deadline := time.After(2 * time.Second)
	for st.Len() < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for cycles")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("interrupted run must not error: %v", err)
	}
	if svc.State() != StateStopped {
		t.Errorf("expected stopped, got %s", svc.State())
	}

	history := readSnapshot(t, path)
	if len(history) != st.Len() {
		t.Errorf("crash-safety broken: snapshot has %d records, history has %d", len(history), st.Len())
	}
}

func TestRunSimulateIssuesNoOrders(t *testing.T) {
	exec := &countingExecutor{}
	svc, st, _ := newTestService(t, exec, true, 20*time.Millisecond)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if st.Len() == 0 {
		t.Fatal("expected profitable opportunities to be detected")
	}
	if exec.count() != 0 {
		t.Errorf("simulate run must issue zero orders, got %d", exec.count())
	}
}

func TestRunLiveDispatchesBothLegs(t *testing.T) {
	exec := &countingExecutor{}
	svc, st, _ := newTestService(t, exec, false, 20*time.Millisecond)

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got, want := exec.count(), st.Len()*2; got != want {
		t.Errorf("expected two legs per profitable opportunity (%d), got %d", want, got)
	}
}

func TestRunRestoresPriorSnapshot(t *testing.T) {
	svc, st, path := newTestService(t, &countingExecutor{}, true, 20*time.Millisecond)
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	prior := st.Len()

	svc2, st2, _ := newTestService(t, &countingExecutor{}, true, 20*time.Millisecond)
	svc2.deps.SnapshotPath = path
	if err := svc2.Run(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if st2.Len() <= prior {
		t.Errorf("second run must extend the restored history: %d after restore of %d", st2.Len(), prior)
	}
}

func TestRunRejectsEmptySymbols(t *testing.T) {
	svc := NewService(ServiceDeps{Interval: time.Second})
	if err := svc.Run(context.Background()); err == nil {
		t.Error("expected error for empty symbol list")
	}
}
