package swe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/ephemeris/pkg/observability"
	"github.com/sirupsen/logrus"
)

// State describes where the bridge is in its load lifecycle.
type State string

const (
	// StateIdle means Load has not been called
	StateIdle State = "idle"
	// StateLoading means the library is being loaded
	StateLoading State = "loading"
	// StateReady means the library is loaded and calls are accepted
	StateReady State = "ready"
	// StateFailed means loading failed; calls are rejected
	StateFailed State = "failed"
	// StateClosed means the library has been released
	StateClosed State = "closed"
)

//nolint:gochecknoglobals // label set for the state gauge
var allStates = []string{
	string(StateIdle), string(StateLoading), string(StateReady), string(StateFailed), string(StateClosed),
}

// Loader produces a loaded library.
type Loader func(ctx context.Context) (Library, error)

// Bridge gates access to a single engine library. The library is loaded
// asynchronously; until it is ready every call fails with
// ErrEngineUninitialized instead of waiting.
//
// The engine keeps its search path in process-global state, so the bridge
// serialises access and binds the search path to each session.
type Bridge struct {
	log logrus.FieldLogger

	mu      sync.Mutex // guards every call into lib
	stateMu sync.RWMutex
	state   State
	lib     Library
	loadErr error

	loadOnce sync.Once
	done     chan struct{}
}

// NewBridge creates an unloaded bridge.
func NewBridge(log logrus.FieldLogger) *Bridge {
	return &Bridge{
		log:   log.WithField("component", "swe-bridge"),
		state: StateIdle,
		done:  make(chan struct{}),
	}
}

// Load starts loading the library in the background. Only the first call has
// any effect.
func (b *Bridge) Load(ctx context.Context, loader Loader) {
	b.loadOnce.Do(func() {
		b.setState(StateLoading, nil, nil)

		go func() {
			defer close(b.done)

			start := time.Now()

			lib, err := loader(ctx)
			if err != nil {
				b.log.WithError(err).Error("Failed to load ephemeris engine")
				b.setState(StateFailed, nil, err)

				return
			}

			if !b.finishLoad(lib) {
				b.log.Warn("Bridge closed while loading, releasing engine")
				_ = lib.Close()

				return
			}

			b.log.WithField("duration", time.Since(start)).Info("Ephemeris engine loaded")
		}()
	})
}

// Wait blocks until loading finished or ctx is done.
func (b *Bridge) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return b.Check()
	}
}

// State returns the current load state.
func (b *Bridge) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	return b.state
}

// Check returns nil when calls are accepted.
func (b *Bridge) Check() error {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	switch b.state {
	case StateReady:
		return nil
	case StateFailed:
		return fmt.Errorf("%w: load failed: %v", ErrEngineUninitialized, b.loadErr)
	default:
		return fmt.Errorf("%w: engine is %s", ErrEngineUninitialized, b.state)
	}
}

// Session runs fn with exclusive access to the engine after pointing its
// search path at searchPath. The search path is part of the session rather
// than ambient state: concurrent sessions never observe each other's path.
func (b *Bridge) Session(searchPath string, fn func(Engine) error) error {
	if err := b.Check(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	lib := b.library()
	if lib == nil {
		return fmt.Errorf("%w: engine is %s", ErrEngineUninitialized, b.State())
	}

	lib.SetSearchPath(searchPath)

	return fn(lib)
}

// Close releases the library. Calls made afterwards are rejected.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	lib := b.library()
	b.setState(StateClosed, nil, nil)

	if lib == nil {
		return nil
	}

	return lib.Close()
}

func (b *Bridge) library() Library {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()

	return b.lib
}

// finishLoad installs lib unless the bridge was closed in the meantime.
func (b *Bridge) finishLoad(lib Library) bool {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if b.state == StateClosed {
		return false
	}

	b.state = StateReady
	b.lib = lib

	observability.RecordEngineState(string(StateReady), allStates)

	return true
}

func (b *Bridge) setState(state State, lib Library, err error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	b.state = state
	b.lib = lib
	b.loadErr = err

	observability.RecordEngineState(string(state), allStates)
}
