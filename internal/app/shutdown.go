// internal/app/shutdown.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultShutdownTimeout = 30 * time.Second

// CloseFunc закрывает компонент в пределах ctx.
type CloseFunc func(ctx context.Context) error

// CloserFunc allows using a function as an io.Closer
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

type namedCloser struct {
	name  string
	close CloseFunc
}

// ShutdownHandler закрывает зарегистрированные компоненты в обратном порядке
// регистрации: сначала HTTP-сервер и воркеры, в конце хранилище.
type ShutdownHandler struct {
	mu      sync.Mutex
	closers []namedCloser
	timeout time.Duration
	logger  *zap.Logger
	done    bool
}

// NewShutdownHandler creates a new shutdown handler
func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownHandler{
		timeout: timeout,
		logger:  logger.Named("shutdown"),
	}
}

// Add registers a component for shutdown
func (sh *ShutdownHandler) Add(name string, fn CloseFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.closers = append(sh.closers, namedCloser{name: name, close: fn})
	sh.logger.Debug("Registered for shutdown", zap.String("component", name))
}

// AddCloser регистрирует компонент с методом Close() error.
func (sh *ShutdownHandler) AddCloser(name string, closer interface{ Close() error }) {
	sh.Add(name, func(context.Context) error { return closer.Close() })
}

// Shutdown закрывает компоненты LIFO. Каждый получает остаток общего таймаута;
// компонент, не уложившийся в срок, считается ошибкой, остальные всё равно закрываются.
// Повторный вызов ничего не делает.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	if sh.done {
		sh.mu.Unlock()
		return nil
	}
	sh.done = true
	closers := make([]namedCloser, len(sh.closers))
	copy(closers, sh.closers)
	sh.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sh.timeout)
	defer cancel()

	sh.logger.Info("Starting graceful shutdown", zap.Int("components", len(closers)))

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := sh.closeOne(ctx, c); err != nil {
			sh.logger.Error("Failed to shut down component", zap.String("component", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		sh.logger.Info("Component shut down", zap.String("component", c.name))
	}

	if len(errs) > 0 {
		sh.logger.Error("Shutdown completed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}
	sh.logger.Info("Graceful shutdown completed successfully")
	return nil
}

func (sh *ShutdownHandler) closeOne(ctx context.Context, c namedCloser) error {
	done := make(chan error, 1)
	go func() { done <- c.close(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}
