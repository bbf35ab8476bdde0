package cli

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vitalvas/ingsig/keygen"
)

func newGenkeysCmd(_ *app) *cobra.Command {
	var (
		dir      string
		password string
		days     int
		sets     []string
		hosts    []string
	)

	cmd := &cobra.Command{
		Use:   "genkeys",
		Short: "Generate signing and TLS key pairs with self-signed certificates",
		Long: `genkeys writes key-<set>.pem, cert-<set>.pem and keystore-<set>.p12 for
each set. The defaults produce a "sign" set for request signatures and a
"tls" set for the mutual TLS client identity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := keygen.Options{Days: days}

			for _, h := range hosts {
				if ip := net.ParseIP(h); ip != nil {
					opts.IPAddresses = append(opts.IPAddresses, ip)
				} else {
					opts.DNSNames = append(opts.DNSNames, h)
				}
			}

			out := cmd.OutOrStdout()

			for _, name := range sets {
				_, files, err := keygen.WriteSet(dir, name, password, opts)
				if err != nil {
					return fmt.Errorf("generate %s: %w", name, err)
				}

				for _, path := range []string{files.Key, files.Certificate, files.Keystore} {
					abs, err := filepath.Abs(path)
					if err != nil {
						abs = path
					}

					fmt.Fprintf(out, "Created %s\n", abs)
				}
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&dir, "dir", ".", "output directory")
	flags.StringVar(&password, "password", "changeme", "keystore password")
	flags.IntVar(&days, "days", keygen.DefaultDays, "certificate validity in days")
	flags.StringSliceVar(&sets, "sets", keygen.SetNames, "key sets to generate")
	flags.StringSliceVar(&hosts, "host", nil, "DNS names or IP addresses added to the certificates")

	return cmd
}
