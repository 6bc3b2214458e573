package sim

import "sync"

// HookPos names the place in a component where hooks run, such as the entry
// of the fault handler or the eviction of a page.
type HookPos struct {
	Name string
}

// HookCtx is what a hook sees when it runs.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Now    Tick

	// Item is the object the event happens to, for example a process.
	Item any

	// Detail is specific to the position.
	Detail any
}

// Hookable is a component that lets hooks observe it.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
}

// A Hook observes the events of a Hookable. Hooks must not change the state
// of the component they observe.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase keeps the hooks of a component. Embed it to implement
// Hookable.
type HookableBase struct {
	lock  sync.RWMutex
	hooks []Hook
}

// NewHookableBase creates a HookableBase with no hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// AcceptHook adds a hook. Hooks run in the order they are added.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.hooks = append(h.hooks, hook)
}

// NumHooks returns the number of hooks. Components check it before building
// an expensive HookCtx.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hooks)
}

// InvokeHook runs every hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hooks
	h.lock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}
