////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error message.
const closeMultiErr = "MultiStopper %q failed to close %d/%d stoppers"

// Multi holds a set of Stoppables that are all closed together, such as every
// subscription owned by a messaging session.
type Multi struct {
	name     string
	children map[string]Stoppable
	closed   bool
	mux      sync.Mutex
	once     sync.Once
}

// NewMulti returns a new Multi Stoppable.
func NewMulti(name string) *Multi {
	return &Multi{
		name:     name,
		children: make(map[string]Stoppable),
	}
}

// Name returns the name of the Multi Stoppable and the names of its children.
func (m *Multi) Name() string {
	m.mux.Lock()
	defer m.mux.Unlock()

	names := make([]string, 0, len(m.children))
	for name := range m.children {
		names = append(names, name)
	}

	return m.name + ": {" + strings.Join(names, ", ") + "}"
}

// Add adds the Stoppable to the Multi. If the Multi is already closed, the
// Stoppable is closed immediately instead. A child added under the name of an
// existing child replaces it.
func (m *Multi) Add(s Stoppable) {
	m.mux.Lock()
	if m.closed {
		m.mux.Unlock()
		if err := s.Close(); err != nil {
			jww.WARN.Printf("Failed to close %q added to closed multi "+
				"stoppable %q: %+v", s.Name(), m.name, err)
		}
		return
	}
	m.children[s.Name()] = s
	m.mux.Unlock()
}

// Remove drops the named child without closing it.
func (m *Multi) Remove(name string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.children, name)
}

// Len returns the number of children.
func (m *Multi) Len() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.children)
}

// IsRunning returns true until the Multi has been closed.
func (m *Multi) IsRunning() bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	return !m.closed
}

// Close closes every child. A child that fails to close does not prevent the
// others from being closed; the failures are combined into the returned error.
func (m *Multi) Close() error {
	var err error

	m.once.Do(func() {
		m.mux.Lock()
		m.closed = true
		children := make([]Stoppable, 0, len(m.children))
		for _, s := range m.children {
			children = append(children, s)
		}
		m.children = make(map[string]Stoppable)
		m.mux.Unlock()

		var failed []string
		for _, s := range children {
			if closeErr := s.Close(); closeErr != nil {
				jww.WARN.Printf("Child %q of multi stoppable %q failed to "+
					"close: %+v", s.Name(), m.name, closeErr)
				failed = append(failed, s.Name())
			}
		}

		if len(failed) > 0 {
			err = errors.Errorf(closeMultiErr, m.name, len(failed),
				len(children))
		}
	})

	return err
}
