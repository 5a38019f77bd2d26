package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/adpayload"
	"github.com/arloliu/adpayload/config"
)

type packFlags struct {
	configPath string
	output     string
	hex        bool
}

func newPackCommand(global *globalFlags) *cobra.Command {
	flags := &packFlags{}

	cmd := &cobra.Command{
		Use:   "pack <fixture.toml>",
		Short: "Build a request frame from a buyer data fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd, global, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "pipeline config file (default settings when empty)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the frame to this file instead of stdout")
	cmd.Flags().BoolVar(&flags.hex, "hex", false, "hex encode the frame")

	return cmd
}

func runPack(cmd *cobra.Command, global *globalFlags, flags *packFlags, fixturePath string) error {
	cfg := config.Default()
	if flags.configPath != "" {
		var err error
		if cfg, err = config.Load(flags.configPath); err != nil {
			return err
		}
	}

	fx, err := loadFixture(fixturePath)
	if err != nil {
		return err
	}
	src, err := fx.source()
	if err != nil {
		return err
	}

	logger := global.logger(cmd)
	b, err := adpayload.New(src, adpayload.WithConfig(cfg), adpayload.WithLogger(logger))
	if err != nil {
		return err
	}

	res, err := b.Build(cmd.Context(), adpayload.Request{
		Seller:               fx.Seller,
		PublisherName:        fx.PublisherName,
		EnableDebugReporting: fx.EnableDebugReporting,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("generation_id", res.GenerationID).
		Str("creator", res.CreatorVersion.String()).
		Str("outcome", res.Outcome.String()).
		Strs("buyers", res.Buyers).
		Int("frame_bytes", len(res.Frame)).
		Msg("packed")

	out := res.Frame
	if flags.hex {
		out = []byte(hex.EncodeToString(res.Frame) + "\n")
	}

	if flags.output == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(flags.output, out, 0o600); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}
