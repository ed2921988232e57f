package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/funnel"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/dbctx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/services"
)

type recordedUpdate struct {
	id             uuid.UUID
	requiredStatus string
	fields         map[string]interface{}
}

type fakeRunRepo struct {
	mu         sync.Mutex
	queue      []*domain.OptimizationRun
	updates    []recordedUpdate
	heartbeats int
	updateOK   bool
}

func newFakeRunRepo(runs ...*domain.OptimizationRun) *fakeRunRepo {
	return &fakeRunRepo{queue: runs, updateOK: true}
}

func (f *fakeRunRepo) Create(_ dbctx.Context, run *domain.OptimizationRun) (*domain.OptimizationRun, error) {
	return run, nil
}

func (f *fakeRunRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.OptimizationRun, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRunRepo) ClaimNextRunnable(_ dbctx.Context, _ int, _, _ time.Duration) (*domain.OptimizationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, nil
	}
	run := f.queue[0]
	f.queue = f.queue[1:]
	run.Status = domain.RunStatusRunning
	run.Attempts++
	return run, nil
}

func (f *fakeRunRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{id: id, fields: updates})
	return nil
}

func (f *fakeRunRepo) UpdateFieldsWhereStatus(_ dbctx.Context, id uuid.UUID, requiredStatus string, updates map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{id: id, requiredStatus: requiredStatus, fields: updates})
	return f.updateOK, nil
}

func (f *fakeRunRepo) Heartbeat(_ dbctx.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeRunRepo) recorded() []recordedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedUpdate, len(f.updates))
	copy(out, f.updates)
	return out
}

type fakeFunnel struct {
	out   *funnel.OptimizeResult
	err   error
	panic bool
}

func (f *fakeFunnel) Simulate(_ context.Context, _ services.SimulateInput) (*funnel.SimulationResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeFunnel) Backsolve(_ context.Context, _ services.BacksolveInput) (*services.BacksolveOutput, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeFunnel) Optimize(ctx context.Context, _ services.OptimizeInput) (*funnel.OptimizeResult, error) {
	if f.panic {
		panic("boom")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func testWorker(t *testing.T, repo *fakeRunRepo, svc services.FunnelService) *Worker {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewWorker(log, repo, svc, nil)
}

func queuedRun(t *testing.T) *domain.OptimizationRun {
	t.Helper()
	req, err := json.Marshal(services.OptimizeInput{
		Steps: []funnel.Step{
			{Questions: []funnel.Question{{InputType: funnel.InputShortText, Invasiveness: 1, Difficulty: 1}}, ObservedCR: 0.8},
			{Questions: []funnel.Question{{InputType: funnel.InputShortText, Invasiveness: 2, Difficulty: 2}}, ObservedCR: 0.6},
		},
		Parameters: funnel.GlobalParameters{
			E: 3, NImportance: 3, Source: funnel.SourceOrganicSearch,
			C1: 1, C2: 1, C3: 1, WC: 0.7, WF: 0.3, WE: 0.5, WN: 0.5,
			K: 0.3, GammaExit: 0.8,
		},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return &domain.OptimizationRun{
		ID:       uuid.New(),
		Status:   domain.RunStatusRunning,
		Attempts: 1,
		Request:  datatypes.JSON(req),
	}
}

func TestWorkerExecuteSuccess(t *testing.T) {
	repo := newFakeRunRepo()
	svc := &fakeFunnel{out: &funnel.OptimizeResult{
		BestOrder:   []int{1, 0},
		BestCRTotal: 0.51,
		Algorithm:   funnel.AlgorithmExhaustive,
		Evaluations: 2,
	}}
	w := testWorker(t, repo, svc)
	run := queuedRun(t)

	w.execute(context.Background(), 1, run)

	ups := repo.recorded()
	if len(ups) != 1 {
		t.Fatalf("updates: want=1 got=%d", len(ups))
	}
	up := ups[0]
	if up.id != run.ID || up.requiredStatus != domain.RunStatusRunning {
		t.Fatalf("update guard: %+v", up)
	}
	if up.fields["status"] != domain.RunStatusSucceeded {
		t.Fatalf("status: %v", up.fields["status"])
	}
	if up.fields["error"] != "" {
		t.Fatalf("error should be cleared: %v", up.fields["error"])
	}
	var res funnel.OptimizeResult
	if err := json.Unmarshal(up.fields["result"].(datatypes.JSON), &res); err != nil {
		t.Fatalf("result payload: %v", err)
	}
	if len(res.BestOrder) != 2 || res.BestOrder[0] != 1 {
		t.Fatalf("result order: %v", res.BestOrder)
	}
}

func TestWorkerExecuteFailure(t *testing.T) {
	repo := newFakeRunRepo()
	svc := &fakeFunnel{err: errors.New("no permutation beat the baseline")}
	w := testWorker(t, repo, svc)
	run := queuedRun(t)

	w.execute(context.Background(), 1, run)

	ups := repo.recorded()
	if len(ups) != 1 {
		t.Fatalf("updates: want=1 got=%d", len(ups))
	}
	up := ups[0]
	if up.fields["status"] != domain.RunStatusFailed {
		t.Fatalf("status: %v", up.fields["status"])
	}
	if up.fields["error"] != "no permutation beat the baseline" {
		t.Fatalf("error text: %v", up.fields["error"])
	}
	if _, ok := up.fields["last_error_at"]; !ok {
		t.Fatalf("last_error_at missing: %v", up.fields)
	}
}

func TestWorkerExecuteBadRequest(t *testing.T) {
	repo := newFakeRunRepo()
	w := testWorker(t, repo, &fakeFunnel{})
	run := queuedRun(t)
	run.Request = datatypes.JSON(`{"steps": "not an array"}`)

	w.execute(context.Background(), 1, run)

	ups := repo.recorded()
	if len(ups) != 1 || ups[0].fields["status"] != domain.RunStatusFailed {
		t.Fatalf("bad request must fail the run: %+v", ups)
	}
}

func TestWorkerExecuteRecoversPanic(t *testing.T) {
	repo := newFakeRunRepo()
	w := testWorker(t, repo, &fakeFunnel{panic: true})
	run := queuedRun(t)

	w.execute(context.Background(), 1, run)

	ups := repo.recorded()
	if len(ups) != 1 || ups[0].fields["status"] != domain.RunStatusFailed {
		t.Fatalf("panic must fail the run: %+v", ups)
	}
}

func TestWorkerShutdownLeavesRunClaimed(t *testing.T) {
	repo := newFakeRunRepo()
	w := testWorker(t, repo, &fakeFunnel{})
	run := queuedRun(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.execute(ctx, 1, run)

	if ups := repo.recorded(); len(ups) != 0 {
		t.Fatalf("shutdown must not write a terminal status: %+v", ups)
	}
}

func TestWorkerLoopClaimsAndFinishes(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "1")
	run := queuedRun(t)
	repo := newFakeRunRepo(run)
	svc := &fakeFunnel{out: &funnel.OptimizeResult{BestOrder: []int{0, 1}, Algorithm: funnel.AlgorithmExhaustive}}
	w := testWorker(t, repo, svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	deadline := time.After(5 * time.Second)
	for {
		if ups := repo.recorded(); len(ups) == 1 {
			if ups[0].fields["status"] != domain.RunStatusSucceeded {
				t.Fatalf("status: %v", ups[0].fields["status"])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("worker never finished the queued run")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
