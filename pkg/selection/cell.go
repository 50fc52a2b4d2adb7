package selection

import "sync"

// Cell holds the currently chosen key (a table name) and notifies listeners
// whenever it changes. The last write wins. Cell is safe for concurrent use.
type Cell struct {
	mu        sync.Mutex
	key       string
	listeners []func(string)
}

// NewCell returns a cell holding initial.
func NewCell(initial string) *Cell {
	return &Cell{key: initial}
}

// Get returns the current key.
func (c *Cell) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// Set stores key and notifies listeners if it differs from the current one.
// Listeners are called synchronously, in registration order, while no lock is
// held.
func (c *Cell) Set(key string) {
	c.mu.Lock()
	if key == c.key {
		c.mu.Unlock()
		return
	}
	c.key = key
	listeners := make([]func(string), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(key)
	}
}

// OnChange registers fn to be called with each new key.
func (c *Cell) OnChange(fn func(string)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}
