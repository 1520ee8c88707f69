////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/chatsync/backend/server"
	"gitlab.com/elixxir/chatsync/backend/sqlstore"
)

const shutdownTimeout = 5 * time.Second

// backendCmd serves the local database over HTTP.
var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Serves the backing store of servers, channels and members",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := sqlstore.NewStore(viper.GetString(dbFlag))
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				jww.WARN.Printf("Failed to close database: %+v", err)
			}
		}()

		if seedPath := viper.GetString(seedFlag); seedPath != "" {
			seed, err := sqlstore.LoadSeed(seedPath)
			if err != nil {
				jww.FATAL.Panicf("%+v", err)
			}
			if err = db.Apply(ctx, seed); err != nil {
				jww.FATAL.Panicf("%+v", err)
			}
		}

		router := server.NewRouter(db)
		router.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              viper.GetString(addrFlag),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			jww.INFO.Printf("Serving backing store on %s", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err = <-errCh:
			if err != nil && err != http.ErrServerClosed {
				jww.FATAL.Panicf("%+v", err)
			}
		case <-ctx.Done():
			jww.INFO.Printf("Shutting down backing store")
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), shutdownTimeout)
			defer cancel()
			if err = srv.Shutdown(shutdownCtx); err != nil {
				jww.WARN.Printf("Failed to shut down cleanly: %+v", err)
			}
		}
	},
}

func init() {
	backendCmd.Flags().StringP(addrFlag, "a", ":8080",
		"Address to listen on")
	viper.BindPFlag(addrFlag, backendCmd.Flags().Lookup(addrFlag))

	rootCmd.AddCommand(backendCmd)
}
