package query

import (
	"context"
)

// Phase is the lifecycle of a mutation.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// TopicMutation carries Lifecycle events. The notification layer subscribes
// here instead of knowing endpoint internals.
const TopicMutation = "mutation.lifecycle"

// Lifecycle is the payload published on TopicMutation.
type Lifecycle struct {
	Endpoint string
	Phase    Phase
	Payload  any
	Err      error
}

// Mutation declares one write endpoint: its name and the cache tags that
// become stale once it settles.
type Mutation struct {
	Endpoint    string
	Invalidates []Tag
}

// Run executes a mutation. It publishes pending/fulfilled/rejected lifecycle
// events around run, and on success invalidates the declared tags so
// dependent queries refetch. A failing run settles as a rejected lifecycle
// and a returned error, never an unhandled escape.
func (c *Cache) Run(ctx context.Context, m Mutation, run func(ctx context.Context) (any, error)) (any, error) {
	c.publishLifecycle(ctx, Lifecycle{Endpoint: m.Endpoint, Phase: PhasePending})

	payload, err := run(ctx)
	if err != nil {
		c.publishLifecycle(ctx, Lifecycle{Endpoint: m.Endpoint, Phase: PhaseRejected, Err: err})
		return nil, err
	}

	c.publishLifecycle(ctx, Lifecycle{Endpoint: m.Endpoint, Phase: PhaseFulfilled, Payload: payload})
	c.Invalidate(m.Invalidates...)
	return payload, nil
}

func (c *Cache) publishLifecycle(ctx context.Context, l Lifecycle) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, TopicMutation, l.Endpoint, l); err != nil {
		c.log.WithError(err).Debug("publish mutation lifecycle")
	}
}

// RunAs is the typed wrapper around Cache.Run.
func RunAs[T any](ctx context.Context, c *Cache, m Mutation, run func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	payload, err := c.Run(ctx, m, func(ctx context.Context) (any, error) {
		return run(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, _ := payload.(T)
	return out, nil
}
