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
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/chatsync/backend/sqlstore"
	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/stream"
	"gitlab.com/elixxir/chatsync/wallet"
)

const peerGreeting = "welcome aboard"

// demoCmd runs the engine end to end against an in-memory network.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Syncs a server, opens its first channel and exchanges messages",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDemo(context.Background(), os.Stdout); err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
	},
}

func init() {
	demoCmd.Flags().StringP(messageFlag, "m", "gm",
		"Message to send to the first channel")
	viper.BindPFlag(messageFlag, demoCmd.Flags().Lookup(messageFlag))

	demoCmd.Flags().DurationP(waitTimeoutFlag, "", 2*time.Second,
		"How long to wait for the peer's message")
	viper.BindPFlag(waitTimeoutFlag, demoCmd.Flags().Lookup(waitTimeoutFlag))

	rootCmd.AddCommand(demoCmd)
}

// runDemo syncs the wallet's servers, opens the group of the first channel,
// sends a message, injects a reply from another member and prints the
// conversation.
func runDemo(ctx context.Context, out io.Writer) error {
	b, db, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	w, err := loadWallet(viper.GetString(keyFlag))
	if err != nil {
		return err
	}

	if db != nil && viper.GetString(seedFlag) == "" {
		if err = seedDemo(ctx, db, w.Address()); err != nil {
			return err
		}
	}

	kv, err := openKV()
	if err != nil {
		return err
	}

	e, err := newEngine(ctx, b, w, kv)
	if err != nil {
		return err
	}
	defer e.close()

	if err = e.provisionMembers(ctx, b); err != nil {
		return err
	}

	report, err := e.syncer.Pass(ctx, e.sess)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Synced %d servers and %d channels, added %d members, "+
		"%d failed\n", report.Servers, report.Channels, report.Added,
		report.Failed)

	ch, err := firstChannel(e)
	if err != nil {
		return err
	}

	inbox := stream.NewInbox(e.sess, e.store)
	if err = inbox.Start(ctx); err != nil {
		return err
	}
	defer inbox.Stop()

	controller := stream.NewController(e.sess, e.store)
	defer controller.Close()
	if err = controller.Open(ctx, ch.GroupID); err != nil {
		return err
	}

	sender := stream.NewSender(e.sess, e.store)
	sent, err := sender.SendText(ctx, ch.GroupID, viper.GetString(messageFlag))
	if err != nil {
		return err
	}

	peer, err := firstPeer(e, ch.GroupID)
	if err != nil {
		return err
	}
	e.net.Inject(ch.GroupID, peer, netTime.Now(), network.ContentTypeText,
		peerGreeting, peerGreeting)
	if _, err = sender.SendReaction(ctx, ch.GroupID, sent.ID, "🎉",
		network.ReactionAdded); err != nil {
		return err
	}

	deadline := time.Now().Add(viper.GetDuration(waitTimeoutFlag))
	for len(e.store.Messages(ch.GroupID)) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Fprintf(out, "#%s (%s)\n", ch.Name, ch.GroupID)
	for _, m := range e.store.Messages(ch.GroupID) {
		fmt.Fprintf(out, "  [%s] %s: %s", m.SentAt.Format(time.Kitchen),
			m.SenderInboxID, stream.Preview(m))
		for _, r := range message.FoldReactions(m.Reactions) {
			fmt.Fprintf(out, " %s×%d", r.Emoji, r.Count)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// seedDemo creates a server owned by the wallet with two channels and two
// other members.
func seedDemo(ctx context.Context, db *sqlstore.Store, owner wallet.Address) error {
	var members []models.ServerMember
	for i := 0; i < 2; i++ {
		peer, err := wallet.NewLocal()
		if err != nil {
			return err
		}
		members = append(members, models.ServerMember{Wallet: peer.Address(),
			Role: models.Member, Nickname: fmt.Sprintf("peer-%d", i+1)})
	}

	return db.Apply(ctx, &sqlstore.Seed{Servers: []sqlstore.SeedServer{{
		Server: models.Server{Name: "Demo", Owner: owner,
			Description: "A server to try chatsync with",
			CreatedAt:   netTime.Now()},
		Channels: []models.Channel{
			{Name: "general", Description: "General chat", IsDefault: true},
			{Name: "announcements", Description: "News"},
		},
		Members: members,
	}}})
}

func firstChannel(e *engine) (models.Channel, error) {
	for _, srv := range e.store.Servers() {
		for _, ch := range e.store.Channels(srv.ID) {
			if ch.HasGroup() {
				return ch, nil
			}
		}
	}
	return models.Channel{}, errors.New("no channel is bound to a group")
}

// firstPeer returns a group member other than the session's inbox.
func firstPeer(e *engine, groupID string) (network.InboxID, error) {
	for _, inbox := range e.net.GroupMembers(groupID) {
		if inbox != e.sess.InboxID() {
			return inbox, nil
		}
	}
	return "", errors.Errorf("group %s has no other members", groupID)
}
