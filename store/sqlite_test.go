package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aacamara/capmatch/core"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Seed(context.Background(), testCatalog()))
	return s
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}

func TestSQLiteStoreListEnabledCapabilities(t *testing.T) {
	s := newTestSQLiteStore(t)

	capabilities, err := s.ListEnabledCapabilities(context.Background())
	require.NoError(t, err)
	require.Len(t, capabilities, 2)
	// Catalog insertion order.
	assert.Equal(t, "qbr_deck", capabilities[0].ID)
	assert.Equal(t, "churn_analysis", capabilities[1].ID)
}

func TestSQLiteStoreKeywordSearch(t *testing.T) {
	s := newTestSQLiteStore(t)

	t.Run("ranked by overlap", func(t *testing.T) {
		hits, err := s.KeywordSearch(context.Background(), []string{"churn", "risk", "review"})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "churn_analysis", hits[0].CapabilityID)
		assert.Equal(t, float64(3), hits[0].Score)
		assert.Equal(t, "qbr_deck", hits[1].CapabilityID)
		assert.Equal(t, float64(1), hits[1].Score)
	})

	t.Run("ties broken by insertion order", func(t *testing.T) {
		hits, err := s.KeywordSearch(context.Background(), []string{"review"})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "qbr_deck", hits[0].CapabilityID)
	})

	t.Run("disabled capabilities never surface", func(t *testing.T) {
		hits, err := s.KeywordSearch(context.Background(), []string{"export"})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("duplicate tokens count once", func(t *testing.T) {
		hits, err := s.KeywordSearch(context.Background(), []string{"qbr", "QBR"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, float64(1), hits[0].Score)
	})

	t.Run("empty tokens", func(t *testing.T) {
		hits, err := s.KeywordSearch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSQLiteStoreMethodologyFor(t *testing.T) {
	s := newTestSQLiteStore(t)

	m, err := s.MethodologyFor(context.Background(), "qbr_deck")
	require.NoError(t, err)
	assert.Equal(t, "qbr_prep", m.ID)

	m, err = s.MethodologyFor(context.Background(), "churn_analysis")
	require.NoError(t, err)
	assert.Equal(t, "qbr_prep_v2", m.ID)

	_, err = s.MethodologyFor(context.Background(), "legacy_export")
	assert.ErrorIs(t, err, core.ErrMethodologyNotFound)
}

func TestSQLiteStoreReseedReplacesCatalog(t *testing.T) {
	s := newTestSQLiteStore(t)

	replacement := &Catalog{
		Capabilities: []*core.Capability{
			{ID: "renewal_brief", Name: "Renewal Brief", Keywords: []string{"renewal"}, Enabled: true},
		},
	}
	require.NoError(t, s.Seed(context.Background(), replacement))

	capabilities, err := s.ListEnabledCapabilities(context.Background())
	require.NoError(t, err)
	require.Len(t, capabilities, 1)
	assert.Equal(t, "renewal_brief", capabilities[0].ID)

	hits, err := s.KeywordSearch(context.Background(), []string{"qbr"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = s.MethodologyFor(context.Background(), "qbr_deck")
	assert.ErrorIs(t, err, core.ErrMethodologyNotFound)
}

func TestSQLiteStoreClassifiesOutageErrors(t *testing.T) {
	s := newTestSQLiteStore(t)
	require.NoError(t, s.Close())

	_, err := s.ListEnabledCapabilities(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.True(t, core.IsUnavailable(err))
	var engineErr *core.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "store.ListEnabledCapabilities", engineErr.Op)

	_, err = s.KeywordSearch(context.Background(), []string{"qbr"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Seed(context.Background(), testCatalog()))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	capabilities, err := reopened.ListEnabledCapabilities(context.Background())
	require.NoError(t, err)
	assert.Len(t, capabilities, 2)
}
