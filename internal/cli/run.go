package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/ingapi"
	"github.com/vitalvas/ingsig/mtls"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Request a token, call the resource and verify the response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}

			creds, err := ingapi.LoadCredentials(cfg.ClientID, cfg.SigningKey)
			if err != nil {
				return err
			}

			tlsCfg, err := mtls.ClientConfig(cfg.MTLSOptions())
			if err != nil {
				return err
			}

			client, err := ingapi.NewClient(creds, ingapi.Options{
				BaseURL:            cfg.BaseURL,
				Scope:              cfg.Scope,
				HTTPClient:         mtls.NewHTTPClient(tlsCfg, cfg.HTTP.Timeout),
				Logger:             a.logger,
				StrictVerification: cfg.StrictVerification,
			})
			if err != nil {
				return err
			}

			flow, err := client.Run(cmd.Context(), cfg.ResourcePath)
			if err != nil {
				a.logger.Error("flow failed", zap.Stringer("state", flow.State()), zap.Error(err))
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(flow.Result.Body))

			return nil
		},
	}

	cmd.Flags().String("path", "", "resource path to call (default /greetings/single)")
	a.bind("resource_path", cmd.Flags().Lookup("path"))

	return cmd
}
