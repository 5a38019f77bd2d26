package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/arloliu/adpayload"
	"github.com/arloliu/adpayload/internal/hash"
)

func newInspectCommand() *cobra.Command {
	var hexInput bool

	cmd := &cobra.Command{
		Use:   "inspect <frame-file>",
		Short: "Decode a request frame",
		Long:  "Decode a plaintext request frame and print its header, padding and buyer inputs. Use - to read stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			framed, err := readFrame(cmd, args[0], hexInput)
			if err != nil {
				return err
			}

			return printFrame(cmd.OutOrStdout(), framed)
		},
	}

	cmd.Flags().BoolVar(&hexInput, "hex", false, "the frame file is hex encoded")

	return cmd
}

func readFrame(cmd *cobra.Command, path string, hexInput bool) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	if !hexInput {
		return raw, nil
	}

	framed, err := hex.DecodeString(string(bytes.TrimSpace(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode hex frame: %w", err)
	}

	return framed, nil
}

func printFrame(w io.Writer, framed []byte) error {
	opened, err := adpayload.Open(framed)
	if err != nil {
		return err
	}

	insp := opened.Inspection
	fmt.Fprintf(w, "frame:      %d bytes (digest %s)\n", insp.FrameSize, hash.DigestString(framed))
	fmt.Fprintf(w, "formatter:  %s\n", insp.Header.FormatterVersion)
	fmt.Fprintf(w, "compressor: %s\n", insp.Header.CompressorVersion)
	fmt.Fprintf(w, "payload:    %d bytes\n", insp.Header.Length)
	fmt.Fprintf(w, "padding:    %d bytes (clean=%t)\n", insp.PaddingBytes, insp.PaddingClean)
	fmt.Fprintf(w, "generation: %s\n", opened.Auction.GenerationID)
	fmt.Fprintf(w, "publisher:  %s\n", opened.Auction.PublisherName)

	buyers := make([]string, 0, len(opened.BuyerInputs))
	for buyer := range opened.BuyerInputs {
		buyers = append(buyers, buyer)
	}
	slices.Sort(buyers)

	for _, buyer := range buyers {
		in := opened.BuyerInputs[buyer]
		signals := 0
		if in.ProtectedAppSignals != nil {
			signals = len(in.ProtectedAppSignals.Payload)
		}
		fmt.Fprintf(w, "buyer %s: %d custom audiences, %d compressed bytes, %d signal bytes\n",
			buyer, len(in.CustomAudiences), len(opened.Auction.BuyerInputs[buyer]), signals)
	}

	return nil
}
