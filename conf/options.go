package conf

import (
	"sync"
)

// Options gives goroutine-safe access to AppConfig, shared by the job
// runner and the web UI.
type Options struct {
	options AppConfig
	lock    sync.RWMutex
}

// NewOptions creates an empty set of options.
func NewOptions() *Options {
	return &Options{}
}

// Get returns a copy.
func (o *Options) Get() *AppConfig {
	o.lock.RLock()
	defer o.lock.RUnlock()
	opt := o.options // clone
	return &opt
}

// Set stores a copy.
func (o *Options) Set(c *AppConfig) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.options = *c // clone
}
