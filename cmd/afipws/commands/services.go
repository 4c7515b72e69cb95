package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/afipws/internal/config"
	"github.com/systmms/afipws/pkg/afip"
)

func NewServicesCommand(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "services",
		Short: "List the services known for the configured environment",
		Long: `List the catalog services with their endpoints and SOAPAction bases.

Endpoint overrides and extra services from afipws.yaml are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			def := cfg.Definition
			env := def.AFIPEnvironment()

			entries := append(afip.Catalog(env), def.Services...)
			for i, sc := range entries {
				if ep, ok := def.Endpoints[sc.Name]; ok && ep != "" {
					entries[i].Endpoint = ep
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"environment": env.String(),
					"services":    entries,
				})
			}

			fmt.Fprintf(out, "Environment: %s\n\n", env)
			tw := newTable(out)
			fmt.Fprintln(tw, "SERVICE\tENDPOINT\tSOAPACTION")
			for _, sc := range entries {
				action := sc.SOAPActionBase
				if action == "" {
					action = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", sc.Name, sc.Endpoint, action)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
