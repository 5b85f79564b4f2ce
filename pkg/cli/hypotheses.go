package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/urfave/cli/v3"
)

var (
	indexFlag = &cli.IntFlag{
		Name:     "index",
		Aliases:  []string{"i"},
		Usage:    "Zero-based position of the hypothesis (see: hypotheses list)",
		Required: true,
	}

	valueFlag = &cli.FloatFlag{
		Name:     "value",
		Aliases:  []string{"v"},
		Usage:    "New weight, clamped to [0, 1]",
		Required: true,
	}

	hypothesesCmd = &cli.Command{
		Name:            "hypotheses",
		Aliases:         []string{"hyp"},
		HideHelpCommand: true,
		Usage:           "List and tune the scoring hypotheses",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List hypotheses with their effective weights",
				Action: cmdListHypotheses,
			},
			{
				Name:  "set-weight",
				Usage: "Set and persist the weight of one hypothesis",
				Flags: []cli.Flag{
					indexFlag,
					valueFlag,
				},
				Action: cmdSetWeight,
			},
			{
				Name:   "reset",
				Usage:  "Clear the persisted weight overrides of the profile",
				Action: cmdResetWeights,
			},
		},
	}
)

func cmdListHypotheses(ctx context.Context, cmd *cli.Command) error {
	s, err := getConfig(cmd).newSession(ctx)
	if err != nil {
		return err
	}

	if err := encode(s.Hypotheses()); err != nil {
		return fmt.Errorf("encoding hypotheses: %w", err)
	}
	return nil
}

func cmdSetWeight(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	s, err := cfg.newSession(ctx)
	if err != nil {
		return err
	}

	h, err := s.SetWeight(ctx, cmd.Int(indexFlag.Name), cmd.Float(valueFlag.Name))
	if err != nil {
		return err
	}
	slog.Info("weight saved", "profile", cfg.Profile, "hypothesis", h.Key(), "weight", h.Weight)

	if err := encode(indexedHypothesis{Index: cmd.Int(indexFlag.Name), Hypothesis: h}); err != nil {
		return fmt.Errorf("encoding hypothesis: %w", err)
	}
	return nil
}

func cmdResetWeights(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	w, err := cfg.openWeights(ctx)
	if err != nil {
		return err
	}

	n, err := w.ClearWeights(ctx, cfg.Profile)
	if err != nil {
		return err
	}
	slog.Info("weight overrides cleared", "profile", cfg.Profile, "count", n)
	return nil
}

// indexedHypothesis is one hypothesis with its registry position.
type indexedHypothesis struct {
	Index                 int `json:"index" yaml:"index"`
	hypothesis.Hypothesis `yaml:",inline"`
}

func writeHypotheses(w io.Writer, list []hypothesis.Hypothesis) error {
	rows := make([]indexedHypothesis, len(list))
	for i, h := range list {
		rows[i] = indexedHypothesis{Index: i, Hypothesis: h}
	}
	return writeHypothesisRows(w, rows)
}

func writeHypothesisRows(w io.Writer, rows []indexedHypothesis) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTRACK\tWEIGHT\tLABEL\tQUESTION")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\n", r.Index, r.Track, r.Weight, r.Label, r.Question)
	}
	return tw.Flush()
}
