////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/chatsync/network"
)

const signTimeoutErr = "wallet did not sign within %s"

// authSigner bounds wallet signing by a timeout and remembers the first
// failure so it can be reported as ErrAuthFailed.
type authSigner struct {
	inner   network.Signer
	timeout time.Duration

	err error
	mux sync.Mutex
}

func (s *authSigner) Identifier() network.Identifier {
	return s.inner.Identifier()
}

func (s *authSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	signCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		sig []byte
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		sig, err := s.inner.SignMessage(signCtx, msg)
		resultCh <- result{sig, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			s.fail(r.err)
			return nil, r.err
		}
		return r.sig, nil
	case <-signCtx.Done():
		err := errors.Errorf(signTimeoutErr, s.timeout)
		if ctx.Err() != nil {
			// The connection ended first; not the wallet's fault
			return nil, ctx.Err()
		}
		s.fail(err)
		return nil, err
	}
}

func (s *authSigner) fail(err error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *authSigner) failure() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.err
}
