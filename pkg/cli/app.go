package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/trackscore/pkg/app"
	"github.com/mchmarny/trackscore/pkg/config"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/logging"
	"github.com/mchmarny/trackscore/pkg/report"
	"github.com/mchmarny/trackscore/pkg/source"
	"github.com/mchmarny/trackscore/pkg/store"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "trackscore"
	appConfigKey = "app-config"

	formatJSON  = "json"
	formatYAML  = "yaml"
	formatTable = "table"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	outputFormat           = formatJSON
	out          io.Writer = os.Stdout

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	dbFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "Weight store: sqlite file path or postgres:// DSN (default: $HOME/.trackscore/weights.db)",
	}

	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml, table]",
		Value: formatJSON,
	}

	hypothesesFlag = &cli.StringFlag{
		Name:    "hypotheses",
		Aliases: []string{"c"},
		Usage:   "Hypotheses location: file path, http(s) URL or github://owner/repo/path[@ref]",
	}

	idColumnFlag = &cli.StringFlag{
		Name:  "id-column",
		Usage: "Header of the student identifier column",
	}

	profileFlag = &cli.StringFlag{
		Name:  "profile",
		Usage: "Weight profile name",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(false)

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Dir        string
	Debug      bool
	DBPath     string
	Hypotheses string
	IDColumn   string
	Profile    string
	Port       int
	Weights    *store.Store
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Predicts the IPS or ASTRE track of students from their survey answers",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			debugFlag,
			dbFlag,
			formatFlag,
			hypothesesFlag,
			idColumnFlag,
			profileFlag,
		},
		Commands: []*cli.Command{
			scoreCmd,
			hypothesesCmd,
			serverCmd,
			authCmd,
			resetCmd,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			dir, _, err := config.GetOrCreateHomeDir(appName)
			if err != nil {
				return ctx, fmt.Errorf("getting home dir: %w", err)
			}

			c, err := config.ReadOrCreate(dir)
			if err != nil {
				return ctx, fmt.Errorf("reading config: %w", err)
			}

			debug := cmd.Bool(debugFlag.Name)
			if debug {
				initLogging(true)
			} else {
				logging.SetDefaultCLILogger(c.LogLevel)
			}

			switch f := strings.ToLower(cmd.String(formatFlag.Name)); f {
			case formatYAML, "yml":
				outputFormat = formatYAML
			case formatTable:
				outputFormat = formatTable
			default:
				outputFormat = formatJSON
			}

			cfg := &appConfig{
				Dir:        dir,
				Debug:      debug,
				DBPath:     firstSet(cmd.String(dbFlag.Name), c.DB, filepath.Join(dir, store.DataFileName)),
				Hypotheses: firstSet(cmd.String(hypothesesFlag.Name), c.Hypotheses),
				IDColumn:   firstSet(cmd.String(idColumnFlag.Name), c.IDColumn, report.DefaultIDColumn),
				Profile:    firstSet(cmd.String(profileFlag.Name), c.Profile, store.DefaultProfile),
				Port:       c.Port,
			}
			cmd.Metadata[appConfigKey] = cfg
			slog.Debug("config", "dir", dir, "hypotheses", cfg.Hypotheses, "profile", cfg.Profile)
			return ctx, nil
		},
		After: func(_ context.Context, cmd *cli.Command) error {
			if cfg, ok := cmd.Metadata[appConfigKey].(*appConfig); ok && cfg.Weights != nil {
				cfg.Weights.Close()
			}
			return nil
		},
	}
}

// openWeights opens the weight store once per run.
func (c *appConfig) openWeights(ctx context.Context) (*store.Store, error) {
	if c.Weights != nil {
		return c.Weights, nil
	}

	w, err := store.Open(ctx, c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening weight store: %w", err)
	}
	c.Weights = w
	return w, nil
}

// loadRegistry fetches and parses the configured hypotheses.
func (c *appConfig) loadRegistry(ctx context.Context) (*hypothesis.Registry, error) {
	token, err := getGitHubToken(c.Dir)
	if err != nil {
		slog.Debug("no github token", "error", err)
	}

	reg, err := source.NewLoader(ctx, token).Load(ctx, c.Hypotheses)
	if err != nil {
		return nil, err
	}
	slog.Debug("hypotheses loaded", "location", c.Hypotheses, "count", reg.Len())
	return reg, nil
}

// newSession loads the hypotheses and applies the persisted overrides of
// the active profile.
func (c *appConfig) newSession(ctx context.Context) (*app.Session, error) {
	reg, err := c.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}

	w, err := c.openWeights(ctx)
	if err != nil {
		return nil, err
	}

	return app.NewSession(ctx, reg, app.Options{
		IDColumn: c.IDColumn,
		Weights:  w,
		Profile:  c.Profile,
	})
}

func initLogging(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func encode(v any) error {
	switch outputFormat {
	case formatYAML:
		e := yaml.NewEncoder(out)
		defer e.Close()
		return e.Encode(v)
	case formatTable:
		switch t := v.(type) {
		case *report.View:
			return report.WriteTable(out, t.Table)
		case []hypothesis.Hypothesis:
			return writeHypotheses(out, t)
		case indexedHypothesis:
			return writeHypothesisRows(out, []indexedHypothesis{t})
		}
	}
	e := json.NewEncoder(out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
