package commands

import (
	"fmt"

	"github.com/marmos91/nfswire/pkg/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a commented sample configuration file to the default location
($XDG_CONFIG_HOME/nfswire/config.yaml) or to the path given with --config.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}

	if err := config.WriteSample(path, forceInit); err != nil {
		return err
	}
	fmt.Printf("Wrote sample configuration to %s\n", path)
	return nil
}
