package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/scoring"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	// MaxImportBytes caps the size of an imported file.
	MaxImportBytes = 32 << 20
)

var (
	// ErrImport is matched by every import failure.
	ErrImport = errors.New("import failed")

	errNoHeader  = errors.New("missing header row")
	errTooLarge  = fmt.Errorf("file exceeds %d bytes", MaxImportBytes)
	errNilReader = errors.New("no file provided")

	delimiters = []rune{',', ';', '\t', '|'}
)

// ImportError describes why a tabular file was rejected.
type ImportError struct {
	Line int
	Err  error
}

func (e *ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", ErrImport, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrImport, e.Err)
}

func (e *ImportError) Unwrap() []error {
	return []error{ErrImport, e.Err}
}

// ParseCSV reads a delimited file with a header row and returns one Answers
// map per data row, keyed by header name. A leading byte order mark selects
// the encoding (UTF-8 or UTF-16); without one the input is read as UTF-8.
// The delimiter is detected from the header line.
func ParseCSV(r io.Reader) ([]scoring.Answers, error) {
	if r == nil {
		return nil, &ImportError{Err: errNilReader}
	}

	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	b, err := io.ReadAll(io.LimitReader(dec, MaxImportBytes+1))
	if err != nil {
		return nil, &ImportError{Err: fmt.Errorf("reading file: %w", err)}
	}
	if len(b) > MaxImportBytes {
		return nil, &ImportError{Err: errTooLarge}
	}

	delim := detectDelimiter(b)
	slog.Debug("parsing tabular file", "bytes", len(b), "delimiter", string(delim))

	cr := csv.NewReader(bytes.NewReader(b))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ImportError{Err: errNoHeader}
	}
	if err != nil {
		return nil, csvError(err)
	}

	columns := headerColumns(header)
	if len(columns) == 0 {
		return nil, &ImportError{Line: 1, Err: errNoHeader}
	}

	rows := make([]scoring.Answers, 0)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}

		row := make(scoring.Answers, len(columns))
		for i, name := range header {
			if i >= len(rec) {
				break
			}
			if _, ok := columns[i]; !ok {
				continue
			}
			row[hypothesis.NormalizeText(name)] = hypothesis.NormalizeText(rec[i])
		}
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// headerColumns returns the set of column positions to keep. Empty and
// duplicate header names are skipped; the first occurrence of a name wins.
func headerColumns(header []string) map[int]struct{} {
	seen := make(map[string]bool, len(header))
	cols := make(map[int]struct{}, len(header))
	for i, h := range header {
		name := hypothesis.NormalizeText(h)
		if name == "" {
			continue
		}
		if seen[name] {
			slog.Warn("duplicate column ignored", "column", name, "position", i+1)
			continue
		}
		seen[name] = true
		cols[i] = struct{}{}
	}
	return cols
}

// detectDelimiter picks the candidate delimiter that occurs most often in
// the first line outside quoted sections. Comma wins ties.
func detectDelimiter(b []byte) rune {
	line := b
	if i := bytes.IndexAny(b, "\r\n"); i >= 0 {
		line = b[:i]
	}

	counts := make(map[rune]int, len(delimiters))
	quoted := false
	for _, c := range string(line) {
		if c == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[c]++
		}
	}

	best := delimiters[0]
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ImportError{Line: pe.Line, Err: pe.Err}
	}
	return &ImportError{Err: err}
}

// isBlank reports whether every answer in the row is empty, as in the
// delimiter-only trailing lines some spreadsheets export.
func isBlank(a scoring.Answers) bool {
	for _, v := range a {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
