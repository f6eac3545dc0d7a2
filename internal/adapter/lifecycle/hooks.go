// Package lifecycle runs registered shutdown hooks in a fixed order.
package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jamalishaq/wayx/internal/usecase"
)

// Hooks is an ordered list of resources released on shutdown.
// The zero value is ready to use.
type Hooks struct {
	mu      sync.Mutex
	entries []hook
	ran     bool
}

type hook struct {
	name   string
	closer io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Register appends a closer. Closers registered after Run are closed immediately.
func (h *Hooks) Register(name string, closer io.Closer) error {
	if closer == nil {
		return nil
	}

	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		if err := closer.Close(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
	h.entries = append(h.entries, hook{name: name, closer: closer})
	h.mu.Unlock()
	return nil
}

// RegisterFunc appends a release function.
func (h *Hooks) RegisterFunc(name string, fn func() error) error {
	if fn == nil {
		return nil
	}
	return h.Register(name, closerFunc(fn))
}

// Len reports the number of pending hooks.
func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Run closes every hook in registration order. Every hook runs even when an
// earlier one fails; failures are logged and joined. Run is idempotent.
func (h *Hooks) Run(logger usecase.Logger) error {
	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return nil
	}
	h.ran = true
	entries := h.entries
	h.entries = nil
	h.mu.Unlock()

	var errs []error
	for _, entry := range entries {
		if err := entry.closer.Close(); err != nil {
			if logger != nil {
				logger.Error("shutdown hook failed", "hook", entry.name, "error", err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
			continue
		}
		if logger != nil {
			logger.Debug("shutdown hook done", "hook", entry.name)
		}
	}
	return errors.Join(errs...)
}
