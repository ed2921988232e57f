package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/data/repos"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/domain"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/observability"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/dbctx"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/envutil"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/platform/logger"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/services"
)

const (
	maxAttempts       = 5
	retryDelay        = 30 * time.Second
	staleRunning      = 30 * time.Minute
	heartbeatInterval = 10 * time.Second
)

// Worker drains the optimization run queue. Each loop claims one runnable
// row, executes the optimization, and writes the outcome back through a
// status-guarded update so a stale claimant cannot overwrite a newer state.
type Worker struct {
	log        *logger.Logger
	runs       repos.OptimizationRunRepo
	funnel     services.FunnelService
	metrics    *observability.Metrics
	runTimeout time.Duration
}

func NewWorker(baseLog *logger.Logger, runs repos.OptimizationRunRepo, funnelSvc services.FunnelService, m *observability.Metrics) *Worker {
	return &Worker{
		log:        baseLog.With("component", "RunWorker"),
		runs:       runs,
		funnel:     funnelSvc,
		metrics:    m,
		runTimeout: envutil.Duration("RUN_TIMEOUT", 10*time.Minute),
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting optimization worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			run, err := w.runs.ClaimNextRunnable(dbctx.New(ctx, nil), maxAttempts, retryDelay, staleRunning)
			if err != nil {
				w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				continue
			}
			if run == nil {
				continue
			}
			w.metrics.IncWorkerClaim()
			w.execute(ctx, workerID, run)
		}
	}
}

func (w *Worker) execute(ctx context.Context, workerID int, run *domain.OptimizationRun) {
	start := time.Now()
	log := w.log.With("worker_id", workerID, "run_id", run.ID, "attempt", run.Attempts)

	stopHeartbeat := w.keepAlive(run.ID)
	defer stopHeartbeat()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Optimization panicked", "panic", r)
			w.metrics.IncWorkerPanic()
			w.fail(log, run.ID, fmt.Errorf("panic: %v", r))
			w.metrics.ObserveWorkerRun(domain.RunStatusFailed, time.Since(start))
		}
	}()

	var in services.OptimizeInput
	if err := json.Unmarshal(run.Request, &in); err != nil {
		log.Error("Run request is not a valid optimize payload", "error", err)
		w.fail(log, run.ID, fmt.Errorf("decode request: %w", err))
		w.metrics.ObserveWorkerRun(domain.RunStatusFailed, time.Since(start))
		return
	}

	runCtx := ctx
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	res, err := w.funnel.Optimize(runCtx, in)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-run. Leave the row running; once the heartbeat
			// goes stale another worker reclaims it without burning an
			// extra attempt on a failure record.
			log.Warn("Optimization interrupted by shutdown")
			w.metrics.ObserveWorkerRun("interrupted", time.Since(start))
			return
		}
		log.Warn("Optimization failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		w.fail(log, run.ID, err)
		w.metrics.ObserveWorkerRun(domain.RunStatusFailed, time.Since(start))
		return
	}

	payload, err := json.Marshal(res)
	if err != nil {
		w.fail(log, run.ID, fmt.Errorf("encode result: %w", err))
		w.metrics.ObserveWorkerRun(domain.RunStatusFailed, time.Since(start))
		return
	}

	ok, uErr := w.runs.UpdateFieldsWhereStatus(dbctx.Background(), run.ID, domain.RunStatusRunning, map[string]interface{}{
		"status": domain.RunStatusSucceeded,
		"result": datatypes.JSON(payload),
		"error":  "",
	})
	if uErr != nil {
		log.Error("Failed to record run result", "error", uErr)
		w.metrics.ObserveWorkerRun(domain.RunStatusFailed, time.Since(start))
		return
	}
	if !ok {
		// The stale-heartbeat path handed this run to another worker while
		// we were finishing; their outcome wins.
		log.Warn("Run was reclaimed before the result landed")
		w.metrics.ObserveWorkerRun("stale", time.Since(start))
		return
	}

	w.metrics.ObserveWorkerRun(domain.RunStatusSucceeded, time.Since(start))
	log.Info("Optimization run finished",
		"algorithm", res.Algorithm,
		"evaluations", res.Evaluations,
		"best_cr_total", res.BestCRTotal,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) fail(log *logger.Logger, id uuid.UUID, cause error) {
	now := time.Now()
	ok, err := w.runs.UpdateFieldsWhereStatus(dbctx.Background(), id, domain.RunStatusRunning, map[string]interface{}{
		"status":        domain.RunStatusFailed,
		"error":         cause.Error(),
		"last_error_at": now,
	})
	if err != nil {
		log.Error("Failed to record run failure", "error", err)
		return
	}
	if !ok {
		log.Warn("Run changed state before the failure could be recorded")
	}
}

// keepAlive refreshes the run's heartbeat until the returned stop func is
// called, so long optimizations are not mistaken for a dead worker.
func (w *Worker) keepAlive(id uuid.UUID) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := w.runs.Heartbeat(dbctx.Background(), id); err != nil {
					w.log.Warn("Heartbeat failed", "run_id", id, "error", err)
				}
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}
