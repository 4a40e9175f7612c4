// Package query implements the declarative endpoint registry and its
// cache/invalidation layer. Endpoints declare a key, the tags their result
// carries, and a fetch function; mutations declare the tags they invalidate.
// The cache deduplicates identical in-flight queries, keeps the latest
// success for new subscribers, and refetches tagged queries after a mutation
// settles.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/FahimFBA/crowdcredit/internal/events"
	"github.com/FahimFBA/crowdcredit/internal/logging"
)

// Tag labels a query result so mutations can mark it stale.
type Tag string

// Cache tags used by the endpoint groups.
const (
	TagCrowdFunding Tag = "CrowdFunding"
	TagLoanPost     Tag = "LoanPost"
	TagUser         Tag = "User"
)

// State is the lifecycle of one cached query.
type State int

const (
	Uninitialized State = iota
	Loading
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc performs the backend call for one query key.
type FetchFunc func(ctx context.Context) (any, error)

// Key builds a cache key from an endpoint name and its arguments. Identical
// endpoint+arguments always produce the same key.
func Key(endpoint string, args any) string {
	if args == nil {
		return endpoint
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%s(%v)", endpoint, args)
	}
	return endpoint + string(data)
}

type entry struct {
	key   string
	tags  []Tag
	fetch FetchFunc

	state State
	data  any
	err   error
	// done is closed when the current flight settles; nil when idle.
	done chan struct{}
}

func (e *entry) hasTag(tags []Tag) bool {
	for _, t := range tags {
		for _, mine := range e.tags {
			if t == mine {
				return true
			}
		}
	}
	return false
}

// Cache memoizes queries keyed by endpoint+arguments.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	bus     *events.Bus
	log     *logging.Logger
}

// NewCache creates a cache publishing lifecycle events on bus.
func NewCache(bus *events.Bus, log *logging.Logger) *Cache {
	if log == nil {
		log = logging.New("query")
	}
	return &Cache{
		entries: make(map[string]*entry),
		bus:     bus,
		log:     log,
	}
}

// Fetch returns the value for key, calling fetch at most once however many
// callers arrive concurrently. A settled error stays cached until a tag
// invalidation or Reset. Abandoning callers (ctx done) do not cancel the
// in-flight backend call.
func (c *Cache) Fetch(ctx context.Context, key string, tags []Tag, fetch FetchFunc) (any, error) {
	for {
		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok {
			e = &entry{key: key, tags: tags, fetch: fetch}
			c.entries[key] = e
		}
		// Keep the fetch function current so invalidation refetches
		// with the latest closure.
		e.fetch = fetch
		e.tags = tags

		switch e.state {
		case Success:
			data := e.data
			c.mu.Unlock()
			return data, nil
		case Error:
			err := e.err
			c.mu.Unlock()
			return nil, err
		case Loading:
			done := e.done
			c.mu.Unlock()
			select {
			case <-done:
				continue // re-read the settled result
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		default:
			// First caller runs the flight.
			e.state = Loading
			e.done = make(chan struct{})
			flight := e.fetch
			c.mu.Unlock()
			c.runFlight(ctx, e, flight)
		}
	}
}

// runFlight executes the fetch and settles the entry. The backend call is
// detached from the caller's cancellation: dropping interest never cancels
// an in-flight request. fetch is captured under the cache mutex by the
// caller; the entry's own fetch field may be rewritten concurrently.
func (c *Cache) runFlight(ctx context.Context, e *entry, fetch FetchFunc) {
	data, err := fetch(context.WithoutCancel(ctx))

	c.mu.Lock()
	if err != nil {
		e.state = Error
		e.err = err
		e.data = nil
	} else {
		e.state = Success
		e.data = data
		e.err = nil
	}
	state := e.state
	done := e.done
	e.done = nil
	c.mu.Unlock()

	if done != nil {
		close(done)
	}
	c.publishState(e.key, state)
}

// State reports the lifecycle state for a key.
func (c *Cache) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.state
	}
	return Uninitialized
}

// Peek returns the settled value and error for a key without fetching.
func (c *Cache) Peek(key string) (any, error, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.data, e.err, e.state
	}
	return nil, nil, Uninitialized
}

// Invalidate forces every settled query carrying any of the tags back to
// loading and refetches it in the background.
func (c *Cache) Invalidate(tags ...Tag) {
	if len(tags) == 0 {
		return
	}

	type flight struct {
		e     *entry
		fetch FetchFunc
	}

	c.mu.Lock()
	var stale []flight
	for _, e := range c.entries {
		if !e.hasTag(tags) {
			continue
		}
		if e.state != Success && e.state != Error {
			continue // in-flight queries settle on their own
		}
		e.state = Loading
		e.done = make(chan struct{})
		stale = append(stale, flight{e: e, fetch: e.fetch})
	}
	c.mu.Unlock()

	for _, f := range stale {
		c.publishState(f.e.key, Loading)
		go c.runFlight(context.Background(), f.e, f.fetch)
	}
}

// Reset drops a single key back to uninitialized; the next Fetch re-runs it.
func (c *Cache) Reset(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.state != Loading {
		delete(c.entries, key)
	}
}

func (c *Cache) publishState(key string, state State) {
	if c.bus == nil {
		return
	}
	err := c.bus.Publish(context.Background(), TopicQueryState, "query", QueryUpdate{
		Key:   key,
		State: state,
	})
	if err != nil {
		c.log.WithError(err).Debug("publish query state")
	}
}

// TopicQueryState carries QueryUpdate events for query state transitions.
const TopicQueryState = "query.state"

// QueryUpdate is the payload published on TopicQueryState.
type QueryUpdate struct {
	Key   string
	State State
}

// FetchAs is the typed wrapper around Cache.Fetch.
func FetchAs[T any](ctx context.Context, c *Cache, key string, tags []Tag, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.Fetch(ctx, key, tags, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %s holds %T", key, data)
	}
	return out, nil
}
