// Package cli implements the ingsig command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/internal/config"
	"github.com/vitalvas/ingsig/internal/logging"
)

// app carries state shared between commands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// New returns the root command.
func New() *cobra.Command {
	a := &app{v: config.New()}

	cmd := &cobra.Command{
		Use:   "ingsig",
		Short: "Client and sandbox for signed ING API calls",
		Long: `ingsig requests an OAuth2 token over mutual TLS with an HTTP signature,
calls a resource with the bearer token and a signed request, and verifies
the signature of the response.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to the YAML configuration file (default ./ingsig.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", logging.FormatConsole, "log format: console or json")

	a.bind("log.level", flags.Lookup("log-level"))
	a.bind("log.format", flags.Lookup("log-format"))

	cmd.AddCommand(
		newRunCmd(a),
		newGenkeysCmd(a),
		newSandboxCmd(a),
		newConfigCmd(a),
	)

	return cmd
}

func (a *app) bind(key string, flag *pflag.Flag) {
	if err := a.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func (a *app) setup(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger

	return nil
}
