package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	upsertWeightSQL = `INSERT INTO weight (profile, hypothesis_key, weight, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile, hypothesis_key) DO UPDATE SET weight = excluded.weight, updated_at = excluded.updated_at
	`

	selectWeightsSQL = `SELECT hypothesis_key, weight
		FROM weight
		WHERE profile = ?
		ORDER BY hypothesis_key
	`

	deleteWeightsSQL = `DELETE FROM weight WHERE profile = ?`

	DefaultProfile = "default"
)

// SaveWeight stores the weight override of one hypothesis in profile.
func (s *Store) SaveWeight(ctx context.Context, profile, key string, weight float64) error {
	if s == nil || s.db == nil {
		return errDBNotInitialized
	}

	if profile == "" || key == "" {
		return errors.New("profile and hypothesis key are required")
	}

	now := time.Now().UTC().Format(timeFormat)
	if _, err := s.db.ExecContext(ctx, s.rebind(upsertWeightSQL), profile, key, weight, now); err != nil {
		return fmt.Errorf("saving weight %s/%s: %w", profile, key, err)
	}
	return nil
}

// GetWeights returns the weight overrides of profile keyed by hypothesis key.
func (s *Store) GetWeights(ctx context.Context, profile string) (map[string]float64, error) {
	if s == nil || s.db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(selectWeightsSQL), profile)
	if err != nil {
		return nil, fmt.Errorf("querying weights of %s: %w", profile, err)
	}
	defer rows.Close()

	list := make(map[string]float64)
	for rows.Next() {
		var key string
		var w float64
		if err := rows.Scan(&key, &w); err != nil {
			return nil, fmt.Errorf("scanning weight row: %w", err)
		}
		list[key] = w
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating weight rows: %w", err)
	}

	return list, nil
}

// ClearWeights deletes every override of profile and returns how many were removed.
func (s *Store) ClearWeights(ctx context.Context, profile string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errDBNotInitialized
	}

	res, err := s.db.ExecContext(ctx, s.rebind(deleteWeightsSQL), profile)
	if err != nil {
		return 0, fmt.Errorf("clearing weights of %s: %w", profile, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}
