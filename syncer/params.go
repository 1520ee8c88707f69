////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package syncer

import (
	"encoding/json"
	"time"
)

const (
	defaultSchedule    = "*/5 * * * *"
	defaultPassTimeout = 2 * time.Minute
	defaultRunOnStart  = true
	retryDelay         = 30 * time.Second
)

// Params contains the parameters of the Syncer.
type Params struct {
	// Schedule is the cron expression on which passes run.
	Schedule string

	// PassTimeout bounds a single pass.
	PassTimeout time.Duration

	// RunOnStart runs a pass as soon as the Syncer starts.
	RunOnStart bool
}

// GetDefaultParams returns a Params object filled with the default values.
func GetDefaultParams() Params {
	return Params{
		Schedule:    defaultSchedule,
		PassTimeout: defaultPassTimeout,
		RunOnStart:  defaultRunOnStart,
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
