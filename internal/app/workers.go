// internal/app/workers.go
package app

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Worker - фоновая задача, работающая до отмены ctx.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc allows using a function as a Worker
type WorkerFunc func(ctx context.Context) error

func (f WorkerFunc) Run(ctx context.Context) error { return f(ctx) }

// Workers запускает фоновые задачи в одной errgroup: ошибка любой из них
// отменяет остальные.
type Workers struct {
	mu      sync.Mutex
	named   []namedWorker
	cancel  context.CancelFunc
	group   *errgroup.Group
	logger  *zap.Logger
	started bool
}

type namedWorker struct {
	name   string
	worker Worker
}

func NewWorkers(logger *zap.Logger) *Workers {
	return &Workers{logger: logger.Named("workers")}
}

// Add регистрирует задачу; после Start новые задачи не принимаются.
func (w *Workers) Add(name string, worker Worker) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		w.logger.Warn("Worker added after start, ignoring", zap.String("worker", name))
		return
	}
	w.named = append(w.named, namedWorker{name: name, worker: worker})
}

// Start запускает задачи. Контекст задач не зависит от ctx вызова:
// они живут до Stop.
func (w *Workers) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := errgroup.WithContext(runCtx)
	w.cancel = cancel
	w.group = group

	for _, nw := range w.named {
		group.Go(func() error {
			w.logger.Info("Worker started", zap.String("worker", nw.name))
			err := nw.worker.Run(groupCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("Worker failed", zap.String("worker", nw.name), zap.Error(err))
				return err
			}
			w.logger.Info("Worker stopped", zap.String("worker", nw.name))
			return nil
		})
	}
}

// Stop отменяет задачи и ждёт их завершения или истечения ctx.
func (w *Workers) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, group := w.cancel, w.group
	w.mu.Unlock()
	if group == nil {
		return nil
	}

	cancel()
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
