package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/afipws/internal/config"
	aerrors "github.com/systmms/afipws/internal/errors"
	"github.com/systmms/afipws/pkg/soap"
)

func NewCallCommand(cfg *config.Config) *cobra.Command {
	var (
		service      string
		operation    string
		envelopePath string
		noFail       bool
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send a raw SOAP envelope to a service",
		Long: `Send the envelope in a file (or stdin with "-") to a registered service.
Every {{auth}} in the envelope is replaced with the ar:Auth block of a valid
access ticket. The response document is printed.

Example:
  afipws call --service wsfe --operation FECompUltimoAutorizado --envelope last.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			envelope, err := readEnvelope(cmd.InOrStdin(), envelopePath)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := loadServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			doc, err := svc.Client.Call(ctx,
				soap.NewRawRequest(service, operation, envelope),
				soap.FailOnError(!noFail))
			if err != nil {
				if errors.Is(err, soap.ErrUnregisteredService) {
					return aerrors.UserError{
						Message:    fmt.Sprintf("Unknown service %q", service),
						Suggestion: "Run 'afipws services' to list the registered services",
						Err:        err,
					}
				}
				return err
			}

			out := cmd.OutOrStdout()
			xml, err := doc.XML()
			if err != nil {
				return err
			}
			fmt.Fprint(out, xml)
			if records := doc.Errors(); len(records) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr())
				for _, rec := range records {
					fmt.Fprintf(cmd.ErrOrStderr(), "service error %s\n", rec)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "Service name, as listed by 'afipws services'")
	cmd.Flags().StringVar(&operation, "operation", "", "Operation name, used for the SOAPAction")
	cmd.Flags().StringVar(&envelopePath, "envelope", "", `Envelope file, or "-" for stdin`)
	cmd.Flags().BoolVar(&noFail, "no-fail-on-error", false, "Print service error records instead of failing")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("operation")
	_ = cmd.MarkFlagRequired("envelope")

	return cmd
}

func readEnvelope(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", aerrors.UserError{Message: "Failed to read envelope", Details: err.Error(), Err: err}
	}
	if len(data) == 0 {
		return "", aerrors.UserError{Message: "Envelope is empty"}
	}
	return string(data), nil
}
