package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherlink/internal/crypto"
)

func registerCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Generate keys for --account and publish the bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("one-time-prekeys") {
				count = appCtx.Config.OneTimePreKeys
			}
			bundle, err := appCtx.Accounts.Register(cmd.Context(), me, count)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s with %d one-time pre-keys.\nFingerprint: %s\n",
				me, len(bundle.OneTimePreKeys), crypto.Fingerprint(bundle.IdentityKey))
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "one-time-prekeys", 0, "number of one-time pre-keys (default from config)")
	return cmd
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Re-upload the stored public bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			if err := appCtx.Accounts.Publish(cmd.Context(), me); err != nil {
				return err
			}
			fmt.Println("Bundle published")
			return nil
		},
	}
}

func replenishCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "replenish",
		Short: "Add one-time pre-keys and publish the bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			if err := appCtx.Accounts.Replenish(cmd.Context(), me, count); err != nil {
				return err
			}
			fmt.Printf("Added %d one-time pre-keys\n", count)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "one-time pre-keys to add")
	return cmd
}

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			fp, err := appCtx.Accounts.Fingerprint(me)
			if err != nil {
				return err
			}
			fmt.Printf("Fingerprint: %s\n", fp)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete every local key and session for --account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := requireAccount()
			if err != nil {
				return err
			}
			if err := appCtx.Accounts.Logout(me); err != nil {
				return err
			}
			fmt.Println("Local state removed")
			return nil
		},
	}
}
