// Package commands implements the CLI commands for the nfswire daemon.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nfswired",
	Short: "nfswired - userspace NFSv3 server toolkit",
	Long: `nfswired serves the NFSv3 and MOUNT protocols over TCP from a pluggable
filesystem backend, entirely in userspace. The daemon ships with an
in-memory backend and can optionally capture its traffic into a pcap file
readable by Wireshark.

Use "nfswired [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/nfswire/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nfswired %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}
