package llm

import "context"

// Pool caps concurrent in-flight model calls with a semaphore. Waiting
// for a slot respects the caller's context, so a request cancelled
// while queued never reaches the provider.
type Pool struct {
	inner Client
	slots chan struct{}
}

// NewPool wraps a client with at most workers concurrent calls. A
// non-positive workers falls back to 1.
func NewPool(inner Client, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		inner: inner,
		slots: make(chan struct{}, workers),
	}
}

func (p *Pool) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return "", &CallFailure{Err: ctx.Err()}
	}
	return p.inner.Complete(ctx, req)
}
