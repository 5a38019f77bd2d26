package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arloliu/adpayload/internal/logging"
)

type globalFlags struct {
	verbose bool
	noColor bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "adpayloadctl",
		Short: "Pack and inspect buyer input request frames",
		Long: `adpayloadctl is a debugging tool for the adpayload pipeline.

  pack     build a request frame from a TOML buyer data fixture
  inspect  decode a frame and print its header and buyer inputs`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "disable colored log output")

	root.AddCommand(newPackCommand(flags))
	root.AddCommand(newInspectCommand())

	return root
}

func (f *globalFlags) logger(cmd *cobra.Command) zerolog.Logger {
	cfg := logging.FromEnv()
	if f.verbose {
		cfg.Level = zerolog.DebugLevel
	}
	if f.noColor {
		cfg.NoColor = true
	}

	return logging.New(cmd.ErrOrStderr(), "adpayloadctl", cfg)
}
