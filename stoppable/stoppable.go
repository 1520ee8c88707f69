////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable provides cancellation handles for the goroutines that
// consume message streams.
package stoppable

import "strconv"

// Stoppable is a handle for stopping a goroutine. Close must be safe to call
// more than once; only the first call does any work.
type Stoppable interface {
	Close() error
	IsRunning() bool
	Name() string
}

// Status holds the current status of a Stoppable.
type Status uint32

const (
	// Running is the status of a Stoppable that has not been closed.
	Running Status = iota

	// Stopping is the status of a Stoppable that has been closed but whose
	// goroutine has not yet exited.
	Stopping

	// Stopped is the status of a Stoppable whose goroutine has exited.
	Stopped
)

// String returns a human-readable name for the Status. This function adheres
// to the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "INVALID STATUS: " + strconv.FormatUint(uint64(s), 10)
	}
}
