////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// profiler is the running CPU profile, if one was requested.
var profiler interface{ Stop() }

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatsync",
	Short: "Mirrors servers and channels onto group conversations",
	Long: "chatsync binds every channel of a server to a group conversation " +
		"on the messaging network, keeps group membership in line with the " +
		"server roster and streams conversation messages into a local store.",
	Args: cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))
		jww.INFO.Printf(Version())

		if dir := viper.GetString(profileCpuFlag); dir != "" {
			profiler = profile.Start(profile.CPUProfile,
				profile.ProfilePath(dir), profile.NoShutdownHook)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

// initConfig reads the .env file, the environment and the config file, if
// one is given, into Viper.
func initConfig() {
	if err := godotenv.Load(".env"); err == nil {
		jww.DEBUG.Printf("Loaded environment from .env")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPath := viper.GetString(configFlag)
	if configPath == "" {
		return
	}
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		jww.FATAL.Panicf("Failed to read config file %s: %+v", configPath, err)
	}
}

// initLog sets the log output and threshold: 0 is INFO, 1 is DEBUG and
// anything higher is TRACE. A log path of "-" or "" writes to stdout.
func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable declarations
	// here, and ensure all the Flags are of the *P variety.
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	viper.BindPFlag(logLevelFlag, rootCmd.PersistentFlags().Lookup(logLevelFlag))

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	viper.BindPFlag(logFlag, rootCmd.PersistentFlags().Lookup(logFlag))

	rootCmd.PersistentFlags().StringP(configFlag, "c", "",
		"Path to a YAML config file")
	viper.BindPFlag(configFlag, rootCmd.PersistentFlags().Lookup(configFlag))

	rootCmd.PersistentFlags().StringP(profileCpuFlag, "", "",
		"Directory to write a CPU profile to")
	viper.BindPFlag(profileCpuFlag, rootCmd.PersistentFlags().Lookup(profileCpuFlag))

	rootCmd.PersistentFlags().StringP(backendFlag, "b", "",
		"URL of a remote backing store; a local database is used if unset")
	viper.BindPFlag(backendFlag, rootCmd.PersistentFlags().Lookup(backendFlag))

	rootCmd.PersistentFlags().StringP(dbFlag, "", "",
		"Path to the local sqlite database (temporary if unset)")
	viper.BindPFlag(dbFlag, rootCmd.PersistentFlags().Lookup(dbFlag))

	rootCmd.PersistentFlags().StringP(seedFlag, "", "",
		"YAML file of servers, channels and members to load into the "+
			"local database")
	viper.BindPFlag(seedFlag, rootCmd.PersistentFlags().Lookup(seedFlag))

	rootCmd.PersistentFlags().StringP(keyFlag, "k", "",
		"File holding the hex private key of the wallet (generated if unset)")
	viper.BindPFlag(keyFlag, rootCmd.PersistentFlags().Lookup(keyFlag))

	rootCmd.PersistentFlags().StringP(sessionFlag, "s", "",
		"Directory of the engine's encrypted state")
	viper.BindPFlag(sessionFlag, rootCmd.PersistentFlags().Lookup(sessionFlag))

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password to the engine's state")
	viper.BindPFlag(passwordFlag, rootCmd.PersistentFlags().Lookup(passwordFlag))

	rootCmd.PersistentFlags().IntP(lookupRateFlag, "", 0,
		"Maximum inbox lookups per second (default from group parameters)")
	viper.BindPFlag(lookupRateFlag, rootCmd.PersistentFlags().Lookup(lookupRateFlag))

	rootCmd.PersistentFlags().StringP(scheduleFlag, "", "",
		"Cron schedule of reconciliation passes")
	viper.BindPFlag(scheduleFlag, rootCmd.PersistentFlags().Lookup(scheduleFlag))
}
