package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"leadboard-engine/internal/config"
	"leadboard-engine/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage the sheet OAuth credentials in the OS keychain",
}

var secretsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the OAuth client secret and refresh token",
	Long: `Store the OAuth client secret and refresh token in the OS keychain.

Values are read from $` + secrets.EnvClientSecret + ` and $` + secrets.EnvRefreshToken + `
when set, otherwise from stdin, one per line.`,
	Args: cobra.NoArgs,
	RunE: runSecretsSet,
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored OAuth credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		account, err := keyringAccount()
		if err != nil {
			return err
		}
		if err := secrets.DeleteOAuth(account); err != nil {
			return err
		}
		cmd.Printf("deleted credentials for %s\n", account)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(secretsCmd)
	secretsCmd.AddCommand(secretsSetCmd, secretsDeleteCmd)
}

func runSecretsSet(cmd *cobra.Command, _ []string) error {
	account, err := keyringAccount()
	if err != nil {
		return err
	}
	o := secrets.OAuth{
		ClientSecret: strings.TrimSpace(os.Getenv(secrets.EnvClientSecret)),
		RefreshToken: strings.TrimSpace(os.Getenv(secrets.EnvRefreshToken)),
	}
	if o.ClientSecret == "" || o.RefreshToken == "" {
		sc := bufio.NewScanner(cmd.InOrStdin())
		cmd.PrintErr("client secret: ")
		if sc.Scan() {
			o.ClientSecret = strings.TrimSpace(sc.Text())
		}
		cmd.PrintErr("refresh token: ")
		if sc.Scan() {
			o.RefreshToken = strings.TrimSpace(sc.Text())
		}
		if err := sc.Err(); err != nil {
			return err
		}
	}
	if err := secrets.SetOAuth(account, o); err != nil {
		return err
	}
	cmd.Printf("stored credentials for %s\n", account)
	return nil
}

// keyringAccount reads the account name from the config without taking the
// data dir lock, so secrets can be set while the engine runs.
func keyringAccount() (string, error) {
	path, err := config.EnsureUserConfig(resolveDataDir())
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if strings.TrimSpace(cfg.OAuth.KeyringAccount) == "" {
		return "", errors.New("oauth.keyring_account is empty")
	}
	return cfg.OAuth.KeyringAccount, nil
}
