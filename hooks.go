package catalogsync

import (
	"sync"

	"github.com/agentstation/catalogsync/pkg/reconciler"
)

// OutcomeHook is called with the outcome of a reconciled revision.
type OutcomeHook func(outcome reconciler.Outcome)

// hooks manages event callbacks for catalog changes
type hooks struct {
	mu        sync.RWMutex
	onCreated []OutcomeHook
	onChanged []OutcomeHook
	onFailed  []OutcomeHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnEntityCreated registers a callback for created entities
func (cs *catalogSync) OnEntityCreated(fn OutcomeHook) {
	cs.hooks.mu.Lock()
	defer cs.hooks.mu.Unlock()
	cs.hooks.onCreated = append(cs.hooks.onCreated, fn)
}

// OnEntityChanged registers a callback for updated, superseded and back-filled entities
func (cs *catalogSync) OnEntityChanged(fn OutcomeHook) {
	cs.hooks.mu.Lock()
	defer cs.hooks.mu.Unlock()
	cs.hooks.onChanged = append(cs.hooks.onChanged, fn)
}

// OnEntityFailed registers a callback for revisions that failed
func (cs *catalogSync) OnEntityFailed(fn OutcomeHook) {
	cs.hooks.mu.Lock()
	defer cs.hooks.mu.Unlock()
	cs.hooks.onFailed = append(cs.hooks.onFailed, fn)
}

// trigger dispatches every outcome of result to the registered hooks.
func (h *hooks) trigger(result *reconciler.Result) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, o := range result.Outcomes {
		var fns []OutcomeHook
		switch {
		case o.Failed():
			fns = h.onFailed
		case o.Action == reconciler.ActionCreate:
			fns = h.onCreated
		case o.Action == reconciler.ActionUpdate,
			o.Action == reconciler.ActionSupersede,
			o.Action == reconciler.ActionArchiveWrite:
			fns = h.onChanged
		}
		for _, fn := range fns {
			fn(o)
		}
	}
}
