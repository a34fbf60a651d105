package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherlink/internal/domain"
)

// startSessionCmd performs the handshake against a contact's bundle and
// prints the header. Envelopes from send carry the same header until the
// contact replies, so it never has to be delivered separately.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <contact>",
		Short: "Establish a secure session with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			contact := domain.ContactID(args[0])

			header, err := appCtx.Sessions.Initiate(cmd.Context(), me, contact)
			if err != nil {
				return fmt.Errorf("starting session with %q: %w", contact, err)
			}
			return writeJSON(cmd.OutOrStdout(), header)
		},
	}
}
