////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// syncCmd runs reconciliation passes for a wallet until interrupted.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Keeps the groups of the wallet's channels in line with their rosters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		b, db, err := openBackend(ctx)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		if db != nil {
			defer db.Close()
		}

		w, err := loadWallet(viper.GetString(keyFlag))
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}

		kv, err := openKV()
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}

		e, err := newEngine(ctx, b, w, kv)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		defer e.close()

		if err = e.provisionMembers(ctx, b); err != nil {
			jww.WARN.Printf("Failed to provision server members: %+v", err)
		}

		e.syncer.Start(e.sess)
		<-ctx.Done()

		if report, ok := e.syncer.LastReport(); ok {
			fmt.Printf("Last pass: %d servers, %d channels, %d members "+
				"added, %d failed\n", report.Servers, report.Channels,
				report.Added, report.Failed)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
