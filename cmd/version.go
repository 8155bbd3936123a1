package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/smazurov/zoomrelay/internal/version"
	"github.com/spf13/cobra"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "zoomrelay %s\n", info.Version)
			fmt.Fprintf(out, "  commit:   %s\n", info.GitCommit)
			fmt.Fprintf(out, "  built:    %s (%s)\n", info.BuildDate, info.BuildID)
			fmt.Fprintf(out, "  go:       %s %s %s\n", info.GoVersion, info.Compiler, info.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
