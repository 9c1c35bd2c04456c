package engine

import (
	"context"
	"sync"
)

// Registry holds the active engine and swaps it atomically when
// configuration changes, so in-flight jobs keep the engine they
// started with.
type Registry struct {
	mu      sync.RWMutex
	current Engine
}

// NewRegistry creates a registry with no engine configured.
func NewRegistry() *Registry {
	return &Registry{}
}

// Reload replaces the active engine with one built from opts. A missing
// API key leaves the registry unconfigured without error, so servers
// can start before credentials arrive.
func (r *Registry) Reload(opts Options) error {
	eng, err := NewOpenAI(opts)
	if err != nil {
		if err == ErrNotConfigured {
			r.swap(nil)
			return nil
		}
		return err
	}
	r.swap(eng)
	return nil
}

func (r *Registry) swap(eng Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = eng
}

// Current returns the active engine, or nil if unconfigured.
func (r *Registry) Current() Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Ready reports whether an engine is configured.
func (r *Registry) Ready() bool {
	return r.Current() != nil
}

// Verify delegates to the active engine.
func (r *Registry) Verify(ctx context.Context, document string) (*Verification, error) {
	eng := r.Current()
	if eng == nil {
		return nil, ErrNotConfigured
	}
	return eng.Verify(ctx, document)
}

// Analyze delegates to the active engine.
func (r *Registry) Analyze(ctx context.Context, query, document string) (*Analysis, error) {
	eng := r.Current()
	if eng == nil {
		return nil, ErrNotConfigured
	}
	return eng.Analyze(ctx, query, document)
}
