package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"cipherlink/internal/app"
	"cipherlink/internal/domain"
)

var (
	configPath   string
	home         string
	directoryURL string
	storeKind    string
	passphrase   string
	logLevel     string
	account      string

	appCtx *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:           "cipherlink",
		Short:         "End-to-end encrypted messaging keys and sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("home") {
				cfg.Home = home
			}
			if flags.Changed("directory") {
				cfg.DirectoryURL = directoryURL
			}
			if flags.Changed("store") {
				cfg.Store = storeKind
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if passphrase == "" {
				passphrase = os.Getenv("CIPHERLINK_PASSPHRASE")
			}
			cfg.Passphrase = passphrase

			if cfg.Home != "" {
				if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
					return err
				}
			}
			logger, err := app.NewLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			appCtx, err = app.NewWire(cfg, logger)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&home, "home", "", "state dir (default ~/.cipherlink)")
	pf.StringVar(&directoryURL, "directory", "", "key directory base URL (e.g. http://127.0.0.1:8080)")
	pf.StringVar(&storeKind, "store", "", "session store: file, badger or memory")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase sealing the file store (or $CIPHERLINK_PASSPHRASE)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVarP(&account, "account", "a", "", "local account id")

	root.AddCommand(
		registerCmd(),
		publishCmd(),
		replenishCmd(),
		fingerprintCmd(),
		startSessionCmd(),
		sendCmd(),
		recvCmd(),
		logoutCmd(),
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func requireAccount() (domain.AccountID, error) {
	if account == "" {
		return "", errors.New("--account required")
	}
	return domain.AccountID(account), nil
}
