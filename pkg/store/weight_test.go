package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), DataFileName))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Migrates(t *testing.T) {
	s := setupTestDB(t)
	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DataFileName)

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SaveWeight(ctx, DefaultProfile, "IPS/Q1/l", 0.3))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), v)

	list, err := s.GetWeights(ctx, DefaultProfile)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, list["IPS/Q1/l"], 1e-9)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestSaveWeight_Upsert(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	require.NoError(t, s.SaveWeight(ctx, DefaultProfile, "k1", 0.2))
	require.NoError(t, s.SaveWeight(ctx, DefaultProfile, "k1", 0.7))
	require.NoError(t, s.SaveWeight(ctx, DefaultProfile, "k2", 1))
	require.NoError(t, s.SaveWeight(ctx, "other", "k1", 0.1))

	list, err := s.GetWeights(ctx, DefaultProfile)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.InDelta(t, 0.7, list["k1"], 1e-9)
	assert.InDelta(t, 1.0, list["k2"], 1e-9)

	assert.Error(t, s.SaveWeight(ctx, "", "k1", 0.1))
	assert.Error(t, s.SaveWeight(ctx, DefaultProfile, "", 0.1))
}

func TestClearWeights(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	require.NoError(t, s.SaveWeight(ctx, DefaultProfile, "k1", 0.2))
	require.NoError(t, s.SaveWeight(ctx, DefaultProfile, "k2", 0.4))
	require.NoError(t, s.SaveWeight(ctx, "other", "k1", 0.1))

	n, err := s.ClearWeights(ctx, DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := s.GetWeights(ctx, DefaultProfile)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = s.GetWeights(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNilStore(t *testing.T) {
	ctx := context.Background()
	var s *Store

	assert.ErrorIs(t, s.SaveWeight(ctx, DefaultProfile, "k", 1), errDBNotInitialized)
	_, err := s.GetWeights(ctx, DefaultProfile)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = s.ClearWeights(ctx, DefaultProfile)
	assert.ErrorIs(t, err, errDBNotInitialized)
	assert.NoError(t, s.Close())
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: driverPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	lite := &Store{driver: driverSQLite}
	assert.Equal(t, "a = ? AND b = ?", lite.rebind("a = ? AND b = ?"))
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgres("postgresql://localhost/db"))
	assert.False(t, IsPostgres("/tmp/weights.db"))
	assert.False(t, IsPostgres("file:weights.db"))
}
