////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error messages.
const (
	notRunningErr = "single stoppable %q cannot close from status %s"
	waitErr       = "single stoppable %q did not stop within %s"
)

// Single is the handle of one goroutine. Closing it cancels its context; the
// goroutine calls ToStopped once it has exited.
type Single struct {
	name    string
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	status  uint32
	once    sync.Once
}

// NewSingle returns a running Single.
func NewSingle(name string) *Single {
	ctx, cancel := context.WithCancel(context.Background())
	return &Single{
		name:    name,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		status:  uint32(Running),
	}
}

// Name returns the name of the Single.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the status of the Single.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32(&s.status))
}

// IsRunning returns true until the Single is closed.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// IsStopping returns true between Close and ToStopped.
func (s *Single) IsStopping() bool {
	return s.GetStatus() == Stopping
}

// IsStopped returns true once the goroutine has reported its exit.
func (s *Single) IsStopped() bool {
	return s.GetStatus() == Stopped
}

// Quit is closed when the Single is closed.
func (s *Single) Quit() <-chan struct{} {
	return s.ctx.Done()
}

// Context is cancelled when the Single is closed. Calls made by the goroutine
// should use it so that closing interrupts them.
func (s *Single) Context() context.Context {
	return s.ctx
}

// Done is closed once the goroutine has called ToStopped.
func (s *Single) Done() <-chan struct{} {
	return s.stopped
}

// Close cancels the Single's context. Only the first call does anything; it
// fails if the Single was no longer running.
func (s *Single) Close() error {
	var err error
	s.once.Do(func() {
		if !atomic.CompareAndSwapUint32(&s.status, uint32(Running),
			uint32(Stopping)) {
			err = errors.Errorf(notRunningErr, s.name, s.GetStatus())
			jww.ERROR.Print(err.Error())
			return
		}
		s.cancel()
		jww.TRACE.Printf("Closed single stoppable %q", s.name)
	})
	return err
}

// ToStopped marks the goroutine as exited. It is a no-op unless the Single is
// stopping.
func (s *Single) ToStopped() {
	if atomic.CompareAndSwapUint32(&s.status, uint32(Stopping), uint32(Stopped)) {
		close(s.stopped)
		jww.TRACE.Printf("Single stoppable %q stopped", s.name)
		return
	}
	jww.WARN.Printf("Single stoppable %q reported stopped while %s",
		s.name, s.GetStatus())
}

// WaitForStopped blocks until the goroutine has exited or the timeout passes.
func (s *Single) WaitForStopped(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.stopped:
		return nil
	case <-timer.C:
		return errors.Errorf(waitErr, s.name, timeout)
	}
}
