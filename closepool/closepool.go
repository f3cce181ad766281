// SPDX-License-Identifier: GPL-3.0-or-later

// Package closepool tracks [io.Closer] instances that must be
// closed together, such as the components of a simulation.
package closepool

import (
	"errors"
	"io"
	"slices"
	"sync"
)

// Pool tracks [io.Closer] instances in registration order.
//
// The zero value is ready to use.
type Pool struct {
	// closers contains the registered closers.
	closers []io.Closer

	// mu provides mutual exclusion.
	mu sync.Mutex
}

// Add registers an [io.Closer] with the pool.
func (p *Pool) Add(c io.Closer) {
	p.mu.Lock()
	p.closers = append(p.closers, c)
	p.mu.Unlock()
}

// Len returns the number of registered closers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.closers)
}

// Close closes and forgets the registered closers, starting from the
// most recently added one, so that a component is closed before the
// components it depends on. The returned error joins all the errors.
func (p *Pool) Close() error {
	p.mu.Lock()
	closers := p.closers
	p.closers = nil
	p.mu.Unlock()

	var errv []error
	for _, c := range slices.Backward(closers) {
		if err := c.Close(); err != nil {
			errv = append(errv, err)
		}
	}
	return errors.Join(errv...)
}
