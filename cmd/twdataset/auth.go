package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"twdataset/pkg/auth"
	"twdataset/pkg/ui"
)

var credentialName string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the X API bearer token",
	Long: `Manage the stored X API bearer token.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

The environment (TWITTER_BEARER_TOKEN) and the YAML keys file are read but
never written.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a bearer token securely",
	Example: `  # Interactive login
  twdataset auth login

  # Store under another credential name
  twdataset auth login --name research`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the bearer token would be read from",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored bearer token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(logoutCmd)

	authCmd.PersistentFlags().StringVarP(&credentialName, "name", "n", "", "credential name (default from twitter.keys_file_key)")
}

// credentials opens the credential manager for the configured keys file and
// returns it with the credential name to use
func credentials() (*auth.Manager, string, string, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, "", "", err
	}

	name := credentialName
	if name == "" {
		name = cfg.Twitter.KeysFileKey
	}
	if name == "" {
		name = auth.DefaultProfile
	}

	manager, err := auth.NewManager(cfg.Twitter.KeysFile)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	return manager, name, cfg.Twitter.BearerToken, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, name, _, err := credentials()
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowTokenGuide(os.Stdout)
	fmt.Println()

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("⚠️  A token named '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("🔐 Bearer token (hidden): ")
	token, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token = strings.TrimSpace(token)
	if len(token) < 20 {
		return fmt.Errorf("that does not look like a bearer token")
	}

	cred := &auth.Credential{Name: name, BearerToken: token}
	if err := manager.Store(cred); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Token '%s' stored (%s)", name, auth.MaskToken(token)))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, name, configured, err := credentials()
	if err != nil {
		return err
	}

	ui.PrintInfo("Credential name", name)
	for _, store := range manager.Stores() {
		state := ui.Dim("not set")
		if cred, err := store.Retrieve(name); err == nil && cred.BearerToken != "" {
			state = ui.Green(auth.MaskToken(cred.BearerToken))
		}
		fmt.Printf("  %-40s %s\n", store.Name(), state)
	}

	token, source, err := manager.BearerToken(configured, name)
	if err != nil {
		ui.PrintWarning("No bearer token available", "run 'twdataset auth login'")
		return nil
	}
	ui.PrintInfo("Active token", fmt.Sprintf("%s from %s", auth.MaskToken(token), source))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, name, _, err := credentials()
	if err != nil {
		return err
	}

	if err := manager.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Token '%s' removed", name))

	if os.Getenv(auth.BearerTokenEnv) != "" {
		ui.PrintWarning(auth.BearerTokenEnv + " is still set in the environment")
	}
	return nil
}

// readSecret reads a line from stdin without echoing when it is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(secret), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return input, nil
}
