package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mchmarny/trackscore/pkg/store"
	"github.com/urfave/cli/v3"
)

var (
	in io.Reader = os.Stdin

	errResetPostgres = errors.New("reset only deletes local sqlite stores, use: hypotheses reset")

	resetCmd = &cli.Command{
		Name:            "reset",
		Usage:           "Delete the local weight store and start fresh",
		HideHelpCommand: true,
		Action:          cmdReset,
	}
)

func cmdReset(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	if store.IsPostgres(cfg.DBPath) {
		return errResetPostgres
	}

	fmt.Fprintf(out, "This will permanently delete all weight overrides in %s\n", cfg.DBPath)
	fmt.Fprint(out, "Are you sure? [y/N]: ")

	reader := bufio.NewReader(in)
	answer, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}

	if strings.ToLower(strings.TrimSpace(answer)) != "y" {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	// close the DB before deleting the file
	if cfg.Weights != nil {
		cfg.Weights.Close()
		cfg.Weights = nil
	}

	if err := os.Remove(cfg.DBPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting weight store: %w", err)
	}

	slog.Info("weight store deleted", "path", cfg.DBPath)

	// re-initialize empty store
	if _, err := cfg.openWeights(ctx); err != nil {
		return fmt.Errorf("re-initializing weight store: %w", err)
	}

	slog.Info("weight store re-initialized", "path", cfg.DBPath)
	fmt.Fprintln(out, "Reset complete.")
	return nil
}
