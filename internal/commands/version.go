package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/infinitybuddha29/caller/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the caller version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "caller %s %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
