package repositories

import (
	"context"
	"sync"
)

type txHooksKey struct{}

// txHooks queues callbacks registered during a transaction for execution
// after the outermost commit.
type txHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

func (h *txHooks) add(fn func(context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

func (h *txHooks) run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// CollectCommitHooks returns a derived context that queues AfterCommit
// callbacks, and the flush function a UnitOfWork calls once the outermost
// transaction has committed. Hooks registered in a rolled-back transaction
// are discarded with it.
func CollectCommitHooks(ctx context.Context) (context.Context, func(context.Context)) {
	hooks := &txHooks{}
	return context.WithValue(ctx, txHooksKey{}, hooks), hooks.run
}

// AfterCommit defers fn until the enclosing transaction commits. Outside a
// transaction fn runs immediately, so callers never need to know whether a
// transactional scope is active.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if fn == nil {
		return
	}
	if hooks, ok := ctx.Value(txHooksKey{}).(*txHooks); ok {
		hooks.add(fn)
		return
	}
	fn(ctx)
}
