package backend

import "sync"

// ResultCache holds the last-known-good value of one fetch operation and
// coalesces concurrent refreshes into a single in-flight fetch. Consumers
// requesting the value while it is invalid are queued and all released
// together, in registration order, when the fetch completes. A failed
// fetch leaves queued consumers waiting for the next successful refresh;
// failures are reported only through the onResult notification.
type ResultCache[T any] struct {
	mu        sync.Mutex
	value     T
	valid     bool
	fetching  bool
	consumers []func(T)

	fetch    func() (T, error)
	onResult func(error) // optional; invoked after every fetch attempt
	persist  func(T)     // optional; invoked with each new valid value
}

func NewResultCache[T any](fetch func() (T, error)) *ResultCache[T] {
	return &ResultCache[T]{fetch: fetch}
}

// OnResult registers the notification invoked after each fetch completes,
// with nil on success.
func (c *ResultCache[T]) OnResult(cb func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onResult = cb
}

// OnNewValue registers the snapshot-persistence hook.
func (c *ResultCache[T]) OnNewValue(cb func(T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persist = cb
}

// Get delivers the cached value to consumer, synchronously if the cache is
// valid, otherwise once the triggered (or already in-flight) fetch succeeds.
func (c *ResultCache[T]) Get(consumer func(T)) {
	c.mu.Lock()
	if c.valid {
		v := c.value
		c.mu.Unlock()
		consumer(v)
		return
	}
	c.consumers = append(c.consumers, consumer)
	c.startFetchLocked()
}

// Refresh starts a fetch unless one is already in flight.
func (c *ResultCache[T]) Refresh() {
	c.mu.Lock()
	c.startFetchLocked()
}

// Peek returns the current value without triggering a fetch.
func (c *ResultCache[T]) Peek() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.valid
}

// Invalidate drops the current value. Queued consumers are unaffected.
func (c *ResultCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.valid = false
}

// Prime seeds the cache with a previously persisted snapshot without
// invoking the persistence hook or notifications.
func (c *ResultCache[T]) Prime(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid || c.fetching {
		return
	}
	c.value = value
	c.valid = true
}

// startFetchLocked is called with c.mu held and releases it.
func (c *ResultCache[T]) startFetchLocked() {
	if c.fetching {
		c.mu.Unlock()
		return
	}
	c.fetching = true
	c.mu.Unlock()

	go func() {
		value, err := c.fetch()

		c.mu.Lock()
		c.fetching = false
		var waiting []func(T)
		if err == nil {
			c.value = value
			c.valid = true
			waiting = c.consumers
			c.consumers = nil
		}
		persist := c.persist
		notify := c.onResult
		c.mu.Unlock()

		if err == nil {
			if persist != nil {
				persist(value)
			}
			for _, consumer := range waiting {
				consumer(value)
			}
		}
		if notify != nil {
			notify(err)
		}
	}()
}
