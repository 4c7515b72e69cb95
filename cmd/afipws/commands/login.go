package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/afipws/internal/config"
)

func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput  bool
		showSecrets bool
	)

	cmd := &cobra.Command{
		Use:   "login <service>",
		Short: "Obtain an access ticket for a service",
		Long: `Authenticate against WSAA for the given service and print the access ticket.

A ticket still valid in the credentials store is reused. Token and sign are
redacted unless --show-secrets is given.

Examples:
  afipws login wsfe
  afipws login ws_sr_padron_a4 --json
  afipws login wsfe --show-secrets`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, err := loadServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			creds, err := svc.Auth.Authenticate(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"service_name": creds.ServiceName,
					"token":        secretValue(creds.Token, showSecrets),
					"sign":         secretValue(creds.Sign, showSecrets),
					"cuit":         creds.CUIT,
					"source":       creds.Source,
					"destination":  creds.Destination,
					"issued_at":    creds.IssuedAt,
					"expires_at":   creds.ExpiresAt,
				})
			}

			tw := newTable(out)
			fmt.Fprintf(tw, "Service:\t%s\n", creds.ServiceName)
			fmt.Fprintf(tw, "CUIT:\t%d\n", creds.CUIT)
			fmt.Fprintf(tw, "Source:\t%s\n", creds.Source)
			fmt.Fprintf(tw, "Destination:\t%s\n", creds.Destination)
			fmt.Fprintf(tw, "Issued:\t%s\n", formatMillis(creds.IssuedAt))
			fmt.Fprintf(tw, "Expires:\t%s (%s)\n", formatMillis(creds.ExpiresAt),
				formatRemaining(time.Until(creds.ExpiresAtTime())))
			fmt.Fprintf(tw, "Token:\t%v\n", secretValue(creds.Token, showSecrets))
			fmt.Fprintf(tw, "Sign:\t%v\n", secretValue(creds.Sign, showSecrets))
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print token and sign in clear text")

	return cmd
}
