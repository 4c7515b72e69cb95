package commands

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/afipws/internal/config"
	aerrors "github.com/systmms/afipws/internal/errors"
	"github.com/systmms/afipws/pkg/auth"
	"github.com/systmms/afipws/pkg/secrets"
	"github.com/systmms/afipws/pkg/store"
)

func NewKeystoreCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Inspect and import the PKCS#12 key store",
	}

	cmd.AddCommand(
		newKeystoreInspectCommand(cfg),
		newKeystoreImportCommand(cfg),
	)

	return cmd
}

func newKeystoreInspectCommand(cfg *config.Config) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the configured certificate",
		Long: `Open the configured key store and print the selected certificate.

With --verify a sample login ticket is signed with the private key and the
CMS signature is verified, proving certificate and key belong together.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := cfg.Load(); err != nil {
				return err
			}

			st, err := openStoreFor(ctx, cfg)
			if err != nil {
				return err
			}
			if st != nil {
				defer func() { _ = st.Close() }()
			}

			provider, err := cfg.OpenSecrets(ctx, st)
			if err != nil {
				return err
			}
			defer func() { _ = provider.Close() }()

			ks, err := provider.KeyStore(ctx)
			if err != nil {
				return aerrors.SourceError(cfg.Definition.Secrets.Type, "inspect", err)
			}
			material, err := provider.Material(ctx)
			if err != nil {
				return err
			}
			cert := material.Certificate

			out := cmd.OutOrStdout()
			tw := newTable(out)
			fmt.Fprintf(tw, "Source:\t%s\n", provider.Describe())
			fmt.Fprintf(tw, "Entries:\t%d certificates, %d keys\n", len(ks.Certificates), len(ks.Keys))
			if aliases := ks.Aliases(); len(aliases) > 0 {
				fmt.Fprintf(tw, "Aliases:\t%s\n", strings.Join(aliases, ", "))
			}
			fmt.Fprintf(tw, "Subject:\t%s\n", cert.Subject)
			fmt.Fprintf(tw, "Issuer:\t%s\n", cert.Issuer)
			fmt.Fprintf(tw, "Serial:\t%s\n", cert.SerialNumber)
			fmt.Fprintf(tw, "Not before:\t%s\n", cert.NotBefore.Format(time.RFC3339))
			fmt.Fprintf(tw, "Not after:\t%s (%s)\n", cert.NotAfter.Format(time.RFC3339),
				formatRemaining(time.Until(cert.NotAfter)))
			fmt.Fprintf(tw, "Key:\t%s\n", describeKey(cert))
			if err := tw.Flush(); err != nil {
				return err
			}

			if !verify {
				return nil
			}

			def := cfg.Definition
			dn := def.AFIPEnvironment().Resolve(auth.TestDN, auth.ProductionDN)
			ticket := auth.NewLoginTicket(cert.Subject.String(), dn, "wsfe", time.Now())
			payload, err := ticket.Marshal()
			if err != nil {
				return err
			}
			signed, err := auth.SignTicket(payload, cert, material.PrivateKey)
			if err != nil {
				return err
			}
			signer, _, err := auth.VerifyTicket(signed)
			if err != nil {
				return aerrors.UserError{
					Message:    "Sample signature does not verify",
					Details:    err.Error(),
					Suggestion: "Check that secrets.alias and secrets.private_key_alias select a matching pair",
					Err:        err,
				}
			}
			fmt.Fprintf(out, "\nSignature: OK (CMS SHA-256, signer %s)\n", signer.Subject)
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Sign and verify a sample login ticket")

	return cmd
}

func newKeystoreImportCommand(cfg *config.Config) *cobra.Command {
	var (
		name       string
		useKeyring bool
	)

	cmd := &cobra.Command{
		Use:   "import <file.p12>",
		Short: "Copy a key store into the credentials store or the OS keyring",
		Long: `Validate a PKCS#12 file with the configured password and save it where the
"store" or "keyring" secrets sources read it from.

Examples:
  afipws keystore import cert.p12 --name afip-keystore
  afipws keystore import cert.p12 --keyring --name 20304050603`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if err := cfg.Load(); err != nil {
				return err
			}
			def := cfg.Definition
			if name == "" {
				name = def.Secrets.Name
			}
			if name == "" {
				return aerrors.UserError{
					Message:    "Key store name is required",
					Suggestion: "Use --name or set secrets.name in afipws.yaml",
				}
			}

			blob, err := os.ReadFile(args[0])
			if err != nil {
				return aerrors.UserError{Message: "Failed to read key store file", Details: err.Error(), Err: err}
			}
			ks, err := secrets.DecodeKeyStore(blob, def.Secrets.Password)
			if err != nil {
				return aerrors.SourceError("file", "import", err)
			}

			var target string
			if useKeyring {
				service := def.Secrets.KeyringService
				if service == "" {
					service = "afipws"
				}
				src, err := secrets.NewKeyringSource(service, name)
				if err != nil {
					return err
				}
				if err := src.Store(blob); err != nil {
					return aerrors.SourceError("keyring", "import", err)
				}
				target = src.Describe()
			} else {
				st, err := cfg.OpenStore(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				if err := secrets.SaveKeyStore(ctx, st, name, blob); err != nil {
					return err
				}
				target = "store:" + name
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d certificates and %d keys into %s\n",
				len(ks.Certificates), len(ks.Keys), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Item name or keyring user (default: secrets.name)")
	cmd.Flags().BoolVar(&useKeyring, "keyring", false, "Save into the OS keyring instead of the credentials store")

	return cmd
}

// openStoreFor opens the credentials store only when the key store lives in it
func openStoreFor(ctx context.Context, cfg *config.Config) (store.ObjectStore, error) {
	if cfg.Definition.Secrets.Type != "store" {
		return nil, nil
	}
	return cfg.OpenStore(ctx)
}

func describeKey(cert *x509.Certificate) string {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA %d bits", pub.N.BitLen())
	case *ecdsa.PublicKey:
		return fmt.Sprintf("ECDSA %s", pub.Curve.Params().Name)
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return cert.PublicKeyAlgorithm.String()
	}
}
