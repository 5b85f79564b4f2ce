// Package app ties the hypothesis registry, the record store and the
// persisted weight overrides into one session shared by the CLI and the
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mchmarny/trackscore/pkg/dataset"
	"github.com/mchmarny/trackscore/pkg/hypothesis"
	"github.com/mchmarny/trackscore/pkg/report"
	"github.com/mchmarny/trackscore/pkg/store"
)

// Options configures a session.
type Options struct {
	// IDColumn is the survey column holding the student identifier.
	IDColumn string
	// Weights persists weight overrides. Nil keeps overrides in memory only.
	Weights *store.Store
	// Profile names the override set in Weights.
	Profile string
}

// Session serializes every read and write against the registry and the
// record store. A weight edit and its rescoring are one step for readers.
type Session struct {
	mu       sync.Mutex
	registry *hypothesis.Registry
	records  *dataset.Store
	defaults []float64
	idColumn string
	weights  *store.Store
	profile  string
}

// NewSession creates a session over reg. Persisted overrides of the
// profile are applied before the first scoring.
func NewSession(ctx context.Context, reg *hypothesis.Registry, opts Options) (*Session, error) {
	if reg == nil {
		return nil, hypothesis.NewConfigError(errors.New("registry not loaded"))
	}

	if opts.IDColumn == "" {
		opts.IDColumn = report.DefaultIDColumn
	}
	if opts.Profile == "" {
		opts.Profile = store.DefaultProfile
	}

	s := &Session{
		registry: reg,
		records:  dataset.NewStore(),
		idColumn: opts.IDColumn,
		weights:  opts.Weights,
		profile:  opts.Profile,
	}

	for _, h := range reg.All() {
		s.defaults = append(s.defaults, h.Weight)
	}

	if err := s.applyOverrides(ctx); err != nil {
		return nil, err
	}

	reg.Subscribe(func(c hypothesis.Change) {
		s.records.RecomputeAll(s.registry.All())
		slog.Debug("records rescored", "hypothesis", c.Key, "old", c.Old, "new", c.New,
			"records", s.records.Len())
	})

	return s, nil
}

func (s *Session) applyOverrides(ctx context.Context) error {
	if s.weights == nil {
		return nil
	}

	list, err := s.weights.GetWeights(ctx, s.profile)
	if err != nil {
		return fmt.Errorf("loading weight overrides: %w", err)
	}

	n, err := ApplyWeights(s.registry, list)
	if err != nil {
		return err
	}
	slog.Debug("weight overrides applied", "profile", s.profile, "count", n)
	return nil
}

// ApplyWeights sets the weight of every hypothesis whose registry key is in
// weights and returns how many were applied. Unknown keys are ignored.
func ApplyWeights(reg *hypothesis.Registry, weights map[string]float64) (int, error) {
	var n int
	for i, key := range reg.Keys() {
		w, ok := weights[key]
		if !ok {
			continue
		}
		if err := reg.SetWeight(i, w); err != nil {
			return n, fmt.Errorf("applying override %s: %w", key, err)
		}
		n++
	}
	return n, nil
}

// IDColumn returns the identifier column used to label records.
func (s *Session) IDColumn() string {
	return s.idColumn
}

// Hypotheses returns the hypotheses with their current weights.
func (s *Session) Hypotheses() []hypothesis.Hypothesis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.All()
}

// SetWeight clamps and sets the weight at index, rescores every record and
// persists the override when a weight store is configured. The override is
// saved first; when saving fails the weight is left unchanged.
func (s *Session) SetWeight(ctx context.Context, index int, value float64) (hypothesis.Hypothesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.registry.Get(index); err != nil {
		return hypothesis.Hypothesis{}, fmt.Errorf("setting weight: %w", err)
	}

	if s.weights != nil {
		key := s.registry.Keys()[index]
		if err := s.weights.SaveWeight(ctx, s.profile, key, hypothesis.ClampWeight(value)); err != nil {
			return hypothesis.Hypothesis{}, fmt.Errorf("persisting weight: %w", err)
		}
	}

	if err := s.registry.SetWeight(index, value); err != nil {
		return hypothesis.Hypothesis{}, fmt.Errorf("setting weight: %w", err)
	}

	h, err := s.registry.Get(index)
	if err != nil {
		return hypothesis.Hypothesis{}, fmt.Errorf("getting hypothesis: %w", err)
	}
	return h, nil
}

// ResetWeights restores the configured weights and clears the persisted
// overrides of the profile.
func (s *Session) ResetWeights(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.defaults {
		if err := s.registry.SetWeight(i, w); err != nil {
			return fmt.Errorf("restoring weight %d: %w", i, err)
		}
	}

	if s.weights == nil {
		return nil
	}

	n, err := s.weights.ClearWeights(ctx, s.profile)
	if err != nil {
		return fmt.Errorf("clearing overrides: %w", err)
	}
	slog.Debug("weight overrides cleared", "profile", s.profile, "count", n)
	return nil
}

// ImportCSV replaces the records with the content of r. On failure the
// previous records are kept.
func (s *Session) ImportCSV(r io.Reader, source string) (*dataset.ImportInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.ImportCSV(r, source, s.registry.All())
}

// Records returns a snapshot of the scored records.
func (s *Session) Records() []dataset.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.All()
}

// View renders the current records.
func (s *Session) View() *report.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := report.Build(s.records.All(), s.idColumn)
	v.Import = s.records.Info()
	return v
}
