package reconcile

import (
	"context"
	"sync"
)

// ActiveSource answers whether a class currently has an in-flight analysis
// job, typically by calling the job status endpoint.
type ActiveSource interface {
	HasActiveJob(ctx context.Context, classID string) (bool, error)
}

// ActiveSourceFunc adapts a function to the ActiveSource interface.
type ActiveSourceFunc func(ctx context.Context, classID string) (bool, error)

func (f ActiveSourceFunc) HasActiveJob(ctx context.Context, classID string) (bool, error) {
	return f(ctx, classID)
}

// TriggerGuard debounces analysis triggers on the client side. A trigger is
// suppressed while a previous trigger for the same class is still in flight
// locally, or while the server reports an active job. The server-side class
// slot remains the authority; the guard only avoids pointless requests.
type TriggerGuard struct {
	source ActiveSource

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewTriggerGuard creates a guard backed by the given status source.
func NewTriggerGuard(source ActiveSource) *TriggerGuard {
	return &TriggerGuard{source: source, inflight: make(map[string]struct{})}
}

// TryBegin reports whether a trigger for the class should be sent now. On
// true the class is marked in flight and the caller must call Finish once a
// terminal job status is observed. On false the trigger is suppressed.
func (g *TriggerGuard) TryBegin(ctx context.Context, classID string) (bool, error) {
	g.mu.Lock()
	if _, busy := g.inflight[classID]; busy {
		g.mu.Unlock()
		return false, nil
	}
	g.mu.Unlock()

	active, err := g.source.HasActiveJob(ctx, classID)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[classID]; busy {
		return false, nil
	}
	g.inflight[classID] = struct{}{}
	return true, nil
}

// Finish clears the in-flight mark for the class. Safe to call when no
// trigger is in flight.
func (g *TriggerGuard) Finish(classID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, classID)
}
