package dataset

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/scoring"
)

// Record is one imported student with its current scores.
type Record struct {
	Answers scoring.Answers `json:"answers" yaml:"answers"`
	scoring.Result `json:",inline" yaml:",inline"`
}

// Predicted returns the record's predicted track (ties go to ASTRE).
func (r Record) Predicted() hypothesis.Track {
	return scoring.Predict(r.Result)
}

// ID returns the value of the identifier column and whether it was present.
func (r Record) ID(column string) (string, bool) {
	return r.Answers.Lookup(column)
}

// ImportInfo describes the last successful import.
type ImportInfo struct {
	ID      string    `json:"id" yaml:"id"`
	Source  string    `json:"source,omitempty" yaml:"source,omitempty"`
	Records int       `json:"records" yaml:"records"`
	At      time.Time `json:"at" yaml:"at"`
}

// Store holds the imported records in import order.
//
// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	records []Record
	info    *ImportInfo
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Import replaces the stored records with rows, scoring each one against
// hypotheses. An empty rows slice leaves the store empty.
func (s *Store) Import(rows []scoring.Answers, hypotheses []hypothesis.Hypothesis) {
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = Record{
			Answers: row,
			Result:  scoring.Score(row, hypotheses),
		}
	}
	s.records = records
	s.info = &ImportInfo{
		ID:      uuid.NewString(),
		Records: len(records),
		At:      time.Now().UTC(),
	}
	slog.Debug("records imported", "import", s.info.ID, "records", len(records))
}

// ImportCSV parses r completely and only then replaces the stored records.
// On error the store is left untouched.
func (s *Store) ImportCSV(r io.Reader, source string, hypotheses []hypothesis.Hypothesis) (*ImportInfo, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", source, err)
	}

	s.Import(rows, hypotheses)
	s.info.Source = source
	info := *s.info
	return &info, nil
}

// RecomputeAll rescores every record in place. Order and answers are kept.
func (s *Store) RecomputeAll(hypotheses []hypothesis.Hypothesis) {
	for i := range s.records {
		s.records[i].Result = scoring.Score(s.records[i].Answers, hypotheses)
	}
}

// All returns a snapshot of the records in import order. Answers are copied,
// so changes to the snapshot never reach the store.
func (s *Store) All() []Record {
	list := make([]Record, len(s.records))
	for i, r := range s.records {
		r.Answers = maps.Clone(r.Answers)
		list[i] = r
	}
	return list
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.records)
}

// Info returns metadata about the last successful import, or nil.
func (s *Store) Info() *ImportInfo {
	if s.info == nil {
		return nil
	}
	info := *s.info
	return &info
}
