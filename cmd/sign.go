package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jmehdipour/hookrelay/internal/receiver"
	"github.com/spf13/cobra"
)

func newSignCmd() *cobra.Command {
	var secretValue string
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Print the X-Hub-Signature header for a body (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secretValue == "" {
				secretValue = os.Getenv("HOOKRELAY_WEBHOOK_SECRET")
			}
			if secretValue == "" {
				return fmt.Errorf("no secret: pass --secret or set HOOKRELAY_WEBHOOK_SECRET")
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			body, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", receiver.SignatureHeader, receiver.Sign(secretValue, body))
			return err
		},
	}
	cmd.Flags().StringVar(&secretValue, "secret", "", "webhook shared secret")
	return cmd
}
