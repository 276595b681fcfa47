package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jiri/constellation/infra"
)

func newManifestCmd(root *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the manual connections after loading",
		Long: `Manifest builds the scenario, applies the manual manifest and prints the
resulting manual connections. Links that referenced missing ports are
reported as errors rather than dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := openSession(cmd.Context(), root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close(context.Background())

			var codec infra.Codec = infra.JSONCodec{}
			if format == "yaml" {
				codec = infra.YAMLCodec{}
			}
			return codec.Encode(cmd.OutOrStdout(), s.world.Manual.Links())
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}
