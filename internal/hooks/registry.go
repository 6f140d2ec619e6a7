package hooks

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/beigebox/beigebox/internal/berrors"
)

// Registry holds every registered hook, grouped by stage, dispatched in
// priority order.
type Registry struct {
	mu       sync.RWMutex
	byStage  map[Stage][]*Registration
	byID     map[string]*Registration
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byStage: make(map[Stage][]*Registration),
		byID:    make(map[string]*Registration),
		logger:  logger.With("component", "hooks"),
	}
}

// Register adds handler to stage, returning an id usable with Unregister.
func (r *Registry) Register(stage Stage, name string, handler HookFunc, opts ...RegisterOption) string {
	reg := &Registration{
		ID:       uuid.NewString(),
		Stage:    stage,
		Name:     name,
		Priority: PriorityNormal,
		Handler:  handler,
	}
	for _, opt := range opts {
		opt(reg)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byStage[stage] = append(r.byStage[stage], reg)
	r.byID[reg.ID] = reg
	sort.SliceStable(r.byStage[stage], func(i, j int) bool {
		return r.byStage[stage][i].Priority < r.byStage[stage][j].Priority
	})

	r.logger.Debug("registered hook", "id", reg.ID, "stage", stage, "name", name, "priority", reg.Priority)
	return reg.ID
}

// Unregister removes a hook by id.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	handlers := r.byStage[reg.Stage]
	for i, h := range handlers {
		if h.ID == id {
			r.byStage[reg.Stage] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
	return true
}

// Run executes every registered hook for stage, in priority order,
// against rc. Each hook's error or panic is logged and isolated — it
// never prevents a sibling hook from running. Execution stops early only
// if a hook calls rc.Block, since nothing downstream should still touch
// a request that's already been rejected.
func (r *Registry) Run(stage Stage, rc *RequestContext) []error {
	r.mu.RLock()
	handlers := make([]*Registration, len(r.byStage[stage]))
	copy(handlers, r.byStage[stage])
	r.mu.RUnlock()

	var errs []error
	for _, reg := range handlers {
		if err := r.runOne(reg, rc); err != nil {
			errs = append(errs, err)
			r.logger.Warn("hook error", "stage", stage, "hook", reg.Name, "error", err)
		}
		if _, blocked := rc.Blocked(); blocked {
			break
		}
	}
	return errs
}

func (r *Registry) runOne(reg *Registration, rc *RequestContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &berrors.HookError{HookName: reg.Name, Stage: string(reg.Stage), Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if execErr := reg.Handler(rc); execErr != nil {
		return &berrors.HookError{HookName: reg.Name, Stage: string(reg.Stage), Err: execErr}
	}
	return nil
}

// Count returns the number of hooks registered for stage.
func (r *Registry) Count(stage Stage) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byStage[stage])
}
