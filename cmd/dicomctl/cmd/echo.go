package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/jpfielding/dicomgo/pkg/dicom/transfer"
	"github.com/jpfielding/dicomgo/pkg/dimse"
	"github.com/spf13/cobra"
)

// NewEchoSCUCmd dials a remote AE, negotiates an association offering the Verification SOP
// Class, issues a single C-ECHO-RQ, and prints the returned status.
func NewEchoSCUCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo-scu",
		Short: "send a single C-ECHO to a remote AE",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			callingAE, _ := cmd.Flags().GetString("calling-ae")
			calledAE, _ := cmd.Flags().GetString("called-ae")

			cfg := dimse.ClientConfig{
				CallingAETitle: callingAE,
				CalledAETitle:  calledAE,
				PresentationContexts: []dimse.PresentationContext{{
					ID:               1,
					AbstractSyntax:   dimse.VerificationSOPClassUID,
					TransferSyntaxes: []string{string(transfer.ImplicitVRLittleEndian)},
				}},
			}
			client, err := dimse.NewClient(cfg, slog.Default())
			if err != nil {
				return err
			}

			assoc, err := client.Dial(ctx, addr)
			if err != nil {
				return fmt.Errorf("associating with %s: %w", addr, err)
			}
			defer assoc.Close()

			status, err := client.Echo(ctx, assoc)
			if err != nil {
				return fmt.Errorf("C-ECHO: %w", err)
			}
			fmt.Printf("status=0x%04x\n", status)

			return assoc.Release(ctx)
		},
	}
	pf := cmd.Flags()
	pf.String("addr", "localhost:11112", "remote AE host:port")
	pf.String("calling-ae", "DICOMCTL", "calling AE title")
	pf.String("called-ae", "ANY-SCP", "called AE title")
	return cmd
}

// NewEchoSCPCmd listens for associations and answers C-ECHO-RQ with StatusSuccess.
func NewEchoSCPCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echo-scp",
		Short: "listen and answer C-ECHO requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			aeTitle, _ := cmd.Flags().GetString("ae-title")

			cfg := dimse.ServerConfig{
				AETitle: aeTitle,
				SupportedContexts: map[string][]string{
					dimse.VerificationSOPClassUID: {string(transfer.ImplicitVRLittleEndian)},
				},
			}
			server, err := dimse.NewServer(cfg, slog.Default())
			if err != nil {
				return err
			}

			l, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}
			defer l.Close()
			slog.InfoContext(ctx, "listening for associations", "addr", addr, "ae-title", aeTitle)
			return server.Serve(ctx, l)
		},
	}
	pf := cmd.Flags()
	pf.String("addr", ":11112", "address to listen on")
	pf.String("ae-title", "ANY-SCP", "this server's AE title")
	return cmd
}
