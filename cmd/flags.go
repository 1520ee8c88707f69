////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// This is a comprehensive list of CLI flag name constants, organized by
// subcommand with root level flags at the top. Pulling flags using Viper
// should use the constants defined here.
const (
	//////////////// Root flags ///////////////////////////////////////////////

	// Log flags
	logLevelFlag = "logLevel"
	logFlag      = "log"

	// Misc
	configFlag     = "config"
	profileCpuFlag = "profile-cpu"

	//////////////// Shared flags /////////////////////////////////////////////

	// Backing store
	backendFlag = "backend"
	dbFlag      = "db"
	seedFlag    = "seed"

	// Identity and engine state
	keyFlag      = "key"
	sessionFlag  = "session"
	passwordFlag = "password"

	///////////////// Backend subcommand flags ////////////////////////////////
	addrFlag = "addr"

	///////////////// Sync subcommand flags ///////////////////////////////////
	scheduleFlag   = "schedule"
	lookupRateFlag = "lookupRate"

	///////////////// Demo subcommand flags ///////////////////////////////////
	messageFlag     = "message"
	waitTimeoutFlag = "waitTimeout"
)

// envPrefix prefixes every environment variable read by Viper.
const envPrefix = "CHATSYNC"
