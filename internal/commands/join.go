package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/infinitybuddha29/caller/internal/cliconfig"
	"github.com/infinitybuddha29/caller/internal/client"
	"github.com/infinitybuddha29/caller/internal/peer"
	"github.com/infinitybuddha29/caller/internal/ui"
)

var (
	flagSTUN      string
	flagTURN      string
	flagTURNUser  string
	flagTURNPass  string
	flagRelay     bool
	flagPublicDNS bool
	flagPlain     bool
)

var joinCmd = &cobra.Command{
	Use:   "join [room-id|link]",
	Short: "Join a room and chat with the other participant",
	Long: `Join a room on the signaling server and wait for a second participant.

Once both are present a direct WebRTC connection is negotiated and a text
chat runs over it. Without a room ID a fresh one is generated; share it with
the other side.`,
	Example: `  caller join
  caller join brisk-heron-lantern
  caller join https://call.example.com/r/brisk-heron-lantern
  caller join brisk-heron-lantern --server wss://signal.example.com/ws --codec msgpack`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJoin,
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cliconfig.Options{
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
		PublicDNS:  flagPublicDNS,
	})
	if err != nil {
		return err
	}

	var roomID string
	if len(args) == 1 {
		if roomID, err = parseRoomInput(args[0]); err != nil {
			return err
		}
	} else {
		if roomID, err = newRoomID(ctx, cfg.HTTPBaseURL()); err != nil {
			return err
		}
	}

	if cfg.ForceRelay && len(cfg.TURNServers()) == 0 {
		ui.PrintWarning("--relay has no effect without a TURN server")
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to signaling server...")
	sig, err := client.Dial(ctx, client.Options{
		URL:         cfg.ServerURL,
		Subprotocol: cfg.Subprotocol(),
		Resolver:    &client.Resolver{PublicFallback: cfg.PublicDNS},
		Logger:      slog.Default(),
	})
	stopSpinner()
	if err != nil {
		return err
	}
	defer sig.Close()

	handler := client.NewHandler(sig)
	go handler.Start()

	if err := sig.Join(roomID); err != nil {
		return err
	}

	fmt.Fprintln(ui.Output, ui.RoomBanner(roomID, cfg.ServerURL))
	ui.PrintInfo("Share the room ID with the other participant")

	turnUser, turnPass := cfg.TURNCredentials()
	c := &call{
		roomID:  roomID,
		sig:     sig,
		handler: handler,
		peerCfg: peer.Config{
			STUNServers:     cfg.STUNServers(),
			TURNServers:     cfg.TURNServers(),
			TURNUser:        turnUser,
			TURNPass:        turnPass,
			ForceRelay:      cfg.ForceRelay,
			DetectRelay:     true,
			IncludeLoopback: true,
			Logger:          slog.Default(),
		},
		log:        slog.Default().With("room", roomID),
		newSession: newPeerSession,
	}

	return runCall(ctx, c)
}

// runCall attaches a chat view to c and runs it.
func runCall(ctx context.Context, c *call) error {
	if flagPlain {
		view := newPlainChat(os.Stdin, ui.Output, c.sendText)
		c.view = view
		view.Start()
		defer view.Stop()
		return c.run(ctx)
	}

	view := ui.NewChatUI(c.roomID, c.sendText)
	c.view = view
	view.Start()
	defer view.Stop()
	return c.run(ctx)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL (default "+cliconfig.DefaultSTUN+")")
	joinCmd.Flags().StringVar(&flagTURN, "turn", "", "TURN server host or URL")
	joinCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	joinCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	joinCmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force traffic through the TURN server")
	joinCmd.Flags().BoolVar(&flagPublicDNS, "public-dns", false, "Fall back to public DNS resolvers when the system resolver fails")
	joinCmd.Flags().BoolVarP(&flagPlain, "plain", "p", false, "Line-based chat instead of the interactive UI")
}
