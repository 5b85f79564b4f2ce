package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/trackscore/pkg/auth"
	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	tokenFileName  = "github_token"
	tokenEnvVar    = "GITHUB_TOKEN"
	keyringService = "trackscore"
	keyringUser    = "github_token"
)

var (
	errNoToken    = errors.New("no github token, run: trackscore auth --token <token>")
	errAuthSource = errors.New("either --token or --client-id is required")

	tokenFlag = &cli.StringFlag{
		Name:    "token",
		Aliases: []string{"t"},
		Usage:   "GitHub token with read access to the repository holding the hypotheses",
	}

	clientIDFlag = &cli.StringFlag{
		Name:  "client-id",
		Usage: "GitHub OAuth app client ID, runs the device flow instead of taking --token",
	}

	authCmd = &cli.Command{
		Name:            "auth",
		HideHelpCommand: true,
		Usage:           "Store a GitHub token used for github:// hypotheses locations",
		Flags: []cli.Flag{
			tokenFlag,
			clientIDFlag,
		},
		Action: cmdAuth,
	}
)

func cmdAuth(ctx context.Context, cmd *cli.Command) error {
	token := strings.TrimSpace(cmd.String(tokenFlag.Name))
	clientID := strings.TrimSpace(cmd.String(clientIDFlag.Name))

	switch {
	case token != "":
	case clientID != "":
		t, err := deviceFlow(ctx, clientID)
		if err != nil {
			return err
		}
		token = t
	default:
		return errAuthSource
	}

	if err := saveGitHubToken(getConfig(cmd).Dir, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Fprintln(out, "Token saved")
	return nil
}

func deviceFlow(ctx context.Context, clientID string) (string, error) {
	code, err := auth.GetDeviceCode(ctx, clientID, auth.DefaultScope)
	if err != nil {
		return "", fmt.Errorf("getting device code: %w", err)
	}

	fmt.Fprintf(out, "1). Copy this code: %s\n", code.UserCode)
	fmt.Fprintf(out, "2). Navigate to this URL in your browser to authenticate: %s\n", code.VerificationURI)
	fmt.Fprintln(out, "3). Waiting for approval...")

	token, err := auth.GetToken(ctx, clientID, code, auth.DefaultScope)
	if err != nil {
		return "", fmt.Errorf("getting token: %w", err)
	}
	return token, nil
}

func saveGitHubToken(dir, token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return saveGitHubTokenFile(dir, token)
	}

	// Clean up legacy file if it exists
	os.Remove(filepath.Join(dir, tokenFileName))

	return nil
}

// getGitHubToken returns the token from the environment, the OS keychain or
// the token file, in that order.
func getGitHubToken(dir string) (string, error) {
	if token := strings.TrimSpace(os.Getenv(tokenEnvVar)); token != "" {
		return token, nil
	}

	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	// Fall back to file
	token, err = getGitHubTokenFile(dir)
	if err != nil {
		return "", err
	}

	// Migrate to keychain
	if migrateErr := keyring.Set(keyringService, keyringUser, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain")
		os.Remove(filepath.Join(dir, tokenFileName))
	}

	return token, nil
}

func saveGitHubTokenFile(dir, token string) error {
	return os.WriteFile(filepath.Join(dir, tokenFileName), []byte(token), 0600)
}

func getGitHubTokenFile(dir string) (string, error) {
	tokenPath := filepath.Join(dir, tokenFileName)
	b, err := os.ReadFile(tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", errNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token file %s: %w", tokenPath, err)
	}
	return strings.TrimSpace(string(b)), nil
}
