package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mchmarny/trackscore/pkg/app"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/urfave/cli/v3"
)

var (
	errWeightFormat = errors.New("expected index=value")

	fileFlag = &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Survey export to score (CSV, delimiter detected)",
		Required: true,
	}

	weightFlag = &cli.StringSliceFlag{
		Name:    "weight",
		Aliases: []string{"w"},
		Usage:   "One-off weight override as index=value, not persisted (repeatable)",
	}

	scoreCmd = &cli.Command{
		Name:            "score",
		HideHelpCommand: true,
		Usage:           "Score every student of a survey export",
		Flags: []cli.Flag{
			fileFlag,
			weightFlag,
		},
		Action: cmdScore,
	}
)

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	overrides, err := parseWeights(cmd.StringSlice(weightFlag.Name))
	if err != nil {
		return err
	}

	reg, err := cfg.loadRegistry(ctx)
	if err != nil {
		return err
	}

	w, err := cfg.openWeights(ctx)
	if err != nil {
		return err
	}

	persisted, err := w.GetWeights(ctx, cfg.Profile)
	if err != nil {
		return fmt.Errorf("loading weight overrides: %w", err)
	}
	if _, err := app.ApplyWeights(reg, persisted); err != nil {
		return err
	}

	for i, v := range overrides {
		if err := reg.SetWeight(i, v); err != nil {
			return fmt.Errorf("applying --%s: %w", weightFlag.Name, err)
		}
	}

	s, err := app.NewSession(ctx, reg, app.Options{IDColumn: cfg.IDColumn})
	if err != nil {
		return err
	}

	path := cmd.String(fileFlag.Name)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := s.ImportCSV(f, filepath.Base(path)); err != nil {
		return err
	}

	if err := encode(s.View()); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}

// parseWeights parses index=value pairs.
func parseWeights(vals []string) (map[int]float64, error) {
	list := make(map[int]float64, len(vals))
	for _, v := range vals {
		k, val, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("parsing weight %q: %w", v, errWeightFormat)
		}

		i, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("parsing weight index %q: %w", k, err)
		}

		w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing weight value %q: %w", val, err)
		}
		list[i] = hypothesis.ClampWeight(w)
	}
	return list, nil
}
