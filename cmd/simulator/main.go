// Command simulator runs a constellation universe loaded from a scenario
// file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath   string
	scenarioPath string
	manifestPath string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "simulator",
		Short:         "Constellation connectivity simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVarP(&flags.scenarioPath, "scenario", "s", "", "path to a scenario file (yaml or json)")
	root.PersistentFlags().StringVarP(&flags.manifestPath, "manifest", "m", "", "manual connection manifest, overrides manual.manifest")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newConsoleCmd(flags))
	root.AddCommand(newManifestCmd(flags))
	return root
}
