package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cipherlink/internal/domain"
)

// send <contact> <message>: encrypt a message into an envelope.
func sendCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "send <contact> <message>",
		Short: "Encrypt a message into a JSON envelope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			env, err := appCtx.Messages.Seal(cmd.Context(), me, domain.AccountID(args[0]), []byte(args[1]))
			if err != nil {
				return err
			}
			if out == "" {
				return writeJSON(cmd.OutOrStdout(), env)
			}
			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			if err := writeJSON(f, env); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the envelope here instead of stdout")
	return cmd
}

// recv [file]: decrypt an envelope read from file or stdin.
func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv [file]",
		Short: "Decrypt a JSON envelope from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var env domain.Envelope
			if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&env); err != nil {
				return fmt.Errorf("decode envelope: %w", err)
			}
			pt, err := appCtx.Messages.Open(cmd.Context(), me, env)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", env.From, pt)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
