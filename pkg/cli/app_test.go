package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/trackscore/pkg/app"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/report"
	"github.com/mchmarny/trackscore/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const (
	testHypotheses = `hypotheses:
  - label: prog
    question: Q1
    track: IPS
    acceptedAnswers: [A]
    weight: 0.5
  - label: elec
    question: Q2
    track: ASTRE
    acceptedAnswers: [B]
    weight: 0.5
`
	testCSV = "id;Q1;Q2\ne1;A;B\ne2;A;X\ne3;X;B\n"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	initLogging(false)
	os.Exit(m.Run())
}

type testEnv struct {
	dir        string
	hypotheses string
	csv        string
	db         string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("TRACKSCORE_HYPOTHESES", "")
	t.Setenv("TRACKSCORE_DB", "")
	t.Setenv(tokenEnvVar, "")

	e := &testEnv{
		dir:        dir,
		hypotheses: filepath.Join(dir, "hypotheses.yaml"),
		csv:        filepath.Join(dir, "responses.csv"),
		db:         filepath.Join(dir, store.DataFileName),
	}
	require.NoError(t, os.WriteFile(e.hypotheses, []byte(testHypotheses), 0600))
	require.NoError(t, os.WriteFile(e.csv, []byte(testCSV), 0600))
	return e
}

// run executes the CLI with every global flag set so values do not leak
// between runs.
func (e *testEnv) run(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	defer func() { out = prev }()

	base := []string{appName,
		"--" + hypothesesFlag.Name, e.hypotheses,
		"--" + dbFlag.Name, e.db,
		"--" + formatFlag.Name, format,
		"--" + idColumnFlag.Name, "id",
		"--" + profileFlag.Name, store.DefaultProfile,
	}
	err := newApp().Run(context.Background(), append(base, args...))
	return buf.String(), err
}

func setupTestSession(t *testing.T) *app.Session {
	t.Helper()
	w, err := store.Open(context.Background(), filepath.Join(t.TempDir(), store.DataFileName))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	reg, err := hypothesis.Load([]byte(testHypotheses))
	require.NoError(t, err)

	s, err := app.NewSession(context.Background(), reg, app.Options{IDColumn: "id", Weights: w})
	require.NoError(t, err)
	return s
}

func TestScoreCommand(t *testing.T) {
	e := setupTestEnv(t)

	o, err := e.run(t, formatTable, scoreCmd.Name, "--"+fileFlag.Name, e.csv)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(o), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "PREDICTED")
	assert.Contains(t, lines[1], "e1")
	assert.Contains(t, lines[1], "ASTRE")
	assert.Contains(t, lines[2], "IPS")
}

func TestHypothesesCommands(t *testing.T) {
	e := setupTestEnv(t)

	o, err := e.run(t, formatJSON, hypothesesCmd.Name, "set-weight", "--index", "0", "--value", "0.8")
	require.NoError(t, err)
	assert.Contains(t, o, `"weight": 0.8`)
	assert.Contains(t, o, `"index": 0`)

	o, err = e.run(t, formatTable, hypothesesCmd.Name, "list")
	require.NoError(t, err)
	assert.Contains(t, o, "0.80")
	assert.Contains(t, o, "prog")

	o, err = e.run(t, formatTable, hypothesesCmd.Name, "set-weight", "--index", "1", "--value", "0.3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(o), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "INDEX"))
	assert.True(t, strings.HasPrefix(lines[1], "1 "))
	assert.Contains(t, lines[1], "0.30")

	_, err = e.run(t, formatJSON, hypothesesCmd.Name, "set-weight", "--index", "7", "--value", "0.1")
	assert.ErrorIs(t, err, hypothesis.ErrIndex)

	_, err = e.run(t, formatJSON, hypothesesCmd.Name, "reset")
	require.NoError(t, err)

	o, err = e.run(t, formatYAML, hypothesesCmd.Name, "list")
	require.NoError(t, err)
	assert.NotContains(t, o, "0.8")
}

func TestScoreCommand_MissingHypotheses(t *testing.T) {
	e := setupTestEnv(t)
	e.hypotheses = filepath.Join(e.dir, "missing.yaml")

	_, err := e.run(t, formatJSON, scoreCmd.Name, "--"+fileFlag.Name, e.csv)
	assert.ErrorIs(t, err, hypothesis.ErrConfig)
}

func TestParseWeights(t *testing.T) {
	list, err := parseWeights([]string{"0=0.3", " 2 = 5 "})
	require.NoError(t, err)
	assert.InDelta(t, 0.3, list[0], 1e-9)
	assert.InDelta(t, hypothesis.MaxWeight, list[2], 1e-9)

	for _, bad := range []string{"0", "x=0.1", "1=abc"} {
		_, err := parseWeights([]string{bad})
		assert.Error(t, err, bad)
	}
	_, err = parseWeights([]string{"0"})
	assert.ErrorIs(t, err, errWeightFormat)
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevFormat := out, outputFormat
	out = &buf
	defer func() { out, outputFormat = prevOut, prevFormat }()

	v := &report.View{Table: []report.Row{{ID: "e1", IPS: "0.50", ASTRE: "0.00", Predicted: hypothesis.TrackIPS}}}

	outputFormat = formatJSON
	require.NoError(t, encode(v))
	assert.Contains(t, buf.String(), `"id": "e1"`)

	buf.Reset()
	outputFormat = formatYAML
	require.NoError(t, encode(v))
	assert.Contains(t, buf.String(), "id: e1")

	buf.Reset()
	outputFormat = formatTable
	require.NoError(t, encode(v))
	assert.Contains(t, buf.String(), "STUDENT")

	buf.Reset()
	require.NoError(t, encode(map[string]int{"n": 1}))
	assert.Contains(t, buf.String(), `"n": 1`)
}

func TestFirstSet(t *testing.T) {
	assert.Equal(t, "b", firstSet("", " ", "b", "c"))
	assert.Empty(t, firstSet("", ""))
}

func TestResetCommand(t *testing.T) {
	e := setupTestEnv(t)
	_, err := e.run(t, formatJSON, hypothesesCmd.Name, "set-weight", "--index", "1", "--value", "0.1")
	require.NoError(t, err)

	prev := in
	defer func() { in = prev }()

	in = strings.NewReader("n\n")
	o, err := e.run(t, formatJSON, resetCmd.Name)
	require.NoError(t, err)
	assert.Contains(t, o, "Aborted.")

	in = strings.NewReader("y\n")
	o, err = e.run(t, formatJSON, resetCmd.Name)
	require.NoError(t, err)
	assert.Contains(t, o, "Reset complete.")

	w, err := store.Open(context.Background(), e.db)
	require.NoError(t, err)
	defer w.Close()
	list, err := w.GetWeights(context.Background(), store.DefaultProfile)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestResetCommand_Postgres(t *testing.T) {
	e := setupTestEnv(t)
	e.db = "postgres://localhost/trackscore"
	_, err := e.run(t, formatJSON, resetCmd.Name)
	assert.ErrorIs(t, err, errResetPostgres)
}
