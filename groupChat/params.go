////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package groupChat

import (
	"encoding/json"
	"time"
)

const (
	defaultLookupRate    = 10
	defaultPrefilter     = true
	defaultCreateTimeout = 30 * time.Second
)

// Params contains the parameters of the group chat Manager.
type Params struct {
	// LookupRate is the maximum number of inbox lookups per second made while
	// reconciling membership.
	LookupRate int

	// Prefilter asks the network in one batch which roster wallets can be
	// messaged before resolving them one by one.
	Prefilter bool

	// CreateTimeout bounds a shared group creation. It runs apart from the
	// contexts of the callers waiting on it.
	CreateTimeout time.Duration
}

// GetDefaultParams returns a Params object filled with the default values.
func GetDefaultParams() Params {
	return Params{
		LookupRate:    defaultLookupRate,
		Prefilter:     defaultPrefilter,
		CreateTimeout: defaultCreateTimeout,
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
