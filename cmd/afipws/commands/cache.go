package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/afipws/internal/config"
	aerrors "github.com/systmms/afipws/internal/errors"
	"github.com/systmms/afipws/pkg/auth"
)

func NewCacheCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect stored access tickets",
	}
	cmd.AddCommand(newCacheShowCommand(cfg))
	return cmd
}

func newCacheShowCommand(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput  bool
		showSecrets bool
	)

	cmd := &cobra.Command{
		Use:   "show <service>",
		Short: "Print the stored ticket for a service without logging in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := cfg.Load(); err != nil {
				return err
			}
			st, err := cfg.OpenStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			cache := auth.NewCredentialsCache(st, auth.WithLogger(cfg.Logger))
			creds, ok, err := cache.Peek(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return aerrors.UserError{
					Message:    fmt.Sprintf("No stored ticket for %s", args[0]),
					Suggestion: fmt.Sprintf("Run 'afipws login %s' first", args[0]),
				}
			}

			now := time.Now()
			expired := creds.Expired(now)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"service_name": creds.ServiceName,
					"token":        secretValue(creds.Token, showSecrets),
					"sign":         secretValue(creds.Sign, showSecrets),
					"cuit":         creds.CUIT,
					"issued_at":    creds.IssuedAt,
					"expires_at":   creds.ExpiresAt,
					"expired":      expired,
				})
			}

			tw := newTable(out)
			fmt.Fprintf(tw, "Service:\t%s\n", creds.ServiceName)
			fmt.Fprintf(tw, "CUIT:\t%d\n", creds.CUIT)
			fmt.Fprintf(tw, "Issued:\t%s\n", formatMillis(creds.IssuedAt))
			fmt.Fprintf(tw, "Expires:\t%s\n", formatMillis(creds.ExpiresAt))
			fmt.Fprintf(tw, "Status:\t%s\n", formatRemaining(creds.ExpiresAtTime().Sub(now)))
			fmt.Fprintf(tw, "Token:\t%v\n", secretValue(creds.Token, showSecrets))
			fmt.Fprintf(tw, "Sign:\t%v\n", secretValue(creds.Sign, showSecrets))
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print token and sign in clear text")

	return cmd
}
