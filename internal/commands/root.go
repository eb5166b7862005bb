// Package commands implements the caller command line client.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/infinitybuddha29/caller/internal/cliconfig"
	"github.com/infinitybuddha29/caller/internal/client"
	"github.com/infinitybuddha29/caller/internal/ui"
	"github.com/infinitybuddha29/caller/internal/version"
)

var (
	flagServer string
	flagCodec  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "caller",
	Short: "Two-party WebRTC calls through a caller signaling server",
	Long: `caller joins a room on a caller signaling server, waits for a second
participant and sets up a direct WebRTC connection carrying a text chat.`,
	Version: version.String(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Signaling server URL (default "+cliconfig.DefaultServerURL+")")
	rootCmd.PersistentFlags().StringVar(&flagCodec, "codec", "", "Wire codec: json or msgpack")
}

// loadConfig merges the persistent flags with opts.
func loadConfig(opts cliconfig.Options) (*cliconfig.Config, error) {
	opts.ServerURL = flagServer
	opts.Codec = flagCodec
	cfg, err := cliconfig.Load(opts)
	if err != nil {
		return nil, client.NewError("load config", err)
	}
	return cfg, nil
}
