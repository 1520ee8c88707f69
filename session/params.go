////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package session

import (
	"encoding/json"
	"time"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultSignTimeout    = 30 * time.Second
)

// Params contains the parameters of the session Manager.
type Params struct {
	// ConnectTimeout bounds how long provisioning a client may take before
	// Connect fails with ErrNetworkUnavailable.
	ConnectTimeout time.Duration

	// SignTimeout bounds how long the wallet may take to sign before Connect
	// fails with ErrAuthFailed.
	SignTimeout time.Duration
}

// GetDefaultParams returns a Params object filled with the default values.
func GetDefaultParams() Params {
	return Params{
		ConnectTimeout: defaultConnectTimeout,
		SignTimeout:    defaultSignTimeout,
	}
}

// GetParameters returns the default Params, or override with given
// parameters, if set.
func GetParameters(params string) (Params, error) {
	p := GetDefaultParams()
	if len(params) > 0 {
		err := json.Unmarshal([]byte(params), &p)
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}
