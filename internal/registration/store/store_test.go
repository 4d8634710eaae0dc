package store

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/WilliamsPJ19/africa-map-tracker/internal/platform/metrics"
	"github.com/WilliamsPJ19/africa-map-tracker/internal/registration/models"
	"github.com/WilliamsPJ19/africa-map-tracker/pkg/platform/sentinel"
)

type InMemorySuite struct{ ContractSuite }

func TestInMemorySuite(t *testing.T) {
	s := new(InMemorySuite)
	s.newStore = func() Store { return NewInMemory() }
	suite.Run(t, s)
}

type FileStoreSuite struct{ ContractSuite }

func TestFileStoreSuite(t *testing.T) {
	s := new(FileStoreSuite)
	s.newStore = func() Store {
		fs, err := NewFileStore(filepath.Join(s.T().TempDir(), "data", "africa-map-data.json"))
		s.Require().NoError(err)
		return fs
	}
	suite.Run(t, s)
}

type SQLiteStoreSuite struct{ ContractSuite }

func TestSQLiteStoreSuite(t *testing.T) {
	s := new(SQLiteStoreSuite)
	s.newStore = func() Store {
		db, err := OpenSQLite(context.Background(), filepath.Join(s.T().TempDir(), "africa-map.db"), "africaMapData")
		s.Require().NoError(err)
		s.T().Cleanup(func() { _ = db.Close() })
		return db
	}
	suite.Run(t, s)
}

func TestDecodeDocument(t *testing.T) {
	t.Run("empty input is an empty document", func(t *testing.T) {
		doc, err := DecodeDocument(nil)
		require.NoError(t, err)
		assert.NotNil(t, doc.Registrations)
		assert.Empty(t, doc.Registrations)
	})

	t.Run("null registrations become empty", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"registrations":null}`))
		require.NoError(t, err)
		assert.NotNil(t, doc.Registrations)
	})

	t.Run("browser-written document without ids", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"registrations":[{"country":"Nigeria","name":"John","timestamp":"2024-01-15T10:30:00.000Z"}]}`))
		require.NoError(t, err)
		require.Len(t, doc.Registrations, 1)
		assert.Equal(t, int64(0), doc.Registrations[0].ID)
		assert.Equal(t, "Nigeria", doc.Registrations[0].Country)
	})

	t.Run("malformed input wraps ErrMalformed", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"registrations": [`))
		require.ErrorIs(t, err, sentinel.ErrMalformed)
		assert.Empty(t, doc.Registrations)
	})
}

func TestEncodeDocumentNilRegistrations(t *testing.T) {
	raw, err := EncodeDocument(models.Document{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"registrations":[]}`, string(raw))
}

func TestInMemoryMalformedBlobReadsAsEmpty(t *testing.T) {
	var logs bytes.Buffer
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	s := NewInMemoryFromBlob([]byte("not json"),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithMetrics(m))
	ctx := context.Background()

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Registrations)
	assert.Contains(t, logs.String(), "malformed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedDocuments))

	// A malformed document still exists: it is not re-seeded.
	created, err := s.Initialize(ctx, models.Document{Registrations: []models.Registration{{ID: 1, Country: "Ghana"}}})
	require.NoError(t, err)
	assert.False(t, created)

	// Appending replaces it with a valid document.
	require.NoError(t, s.Append(ctx, models.Registration{ID: 2, Country: "Kenya"}))
	regs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "Kenya", regs[0].Country)
	_, err = DecodeDocument(s.Blob())
	assert.NoError(t, err)
}

func TestFileStoreMalformedFileReadsAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "africa-map-data.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	regs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestFileStoreWritesBrowserCompatibleDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "africa-map-data.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.Append(context.Background(), models.Registration{
		ID:        1705314600000,
		Country:   "Ghana",
		Name:      "Sarah",
		Timestamp: time.Date(2024, 1, 15, 10, 35, 0, 0, time.UTC),
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"registrations":[{"id":1705314600000,"country":"Ghana","name":"Sarah","timestamp":"2024-01-15T10:35:00Z"}]}`, string(raw))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".africamap-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStoreWatchSeesExternalWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "africa-map-data.json")
	watched, err := NewFileStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watched.Watch(ctx, func() { changes.Add(1) })
	}()

	// Another process writing the same file.
	other, err := NewFileStore(path)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_ = other.Append(context.Background(), models.Registration{ID: time.Now().UnixMilli(), Country: "Togo"})
		return changes.Load() > 0
	}, 5*time.Second, 300*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "  ", "africaMapData")
	assert.Error(t, err)
}

func TestSQLiteStoresAreScopedByKey(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := OpenSQLite(ctx, path, "kiosk-a")
	require.NoError(t, err)
	require.NoError(t, a.Append(ctx, models.Registration{ID: 1, Country: "Ghana", Timestamp: contractBase}))
	require.NoError(t, a.Close())

	b, err := OpenSQLite(ctx, path, "kiosk-b")
	require.NoError(t, err)
	defer b.Close()
	regs, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestWithMaxRetries(t *testing.T) {
	assert.Equal(t, 2, applyOptions([]Option{WithMaxRetries(2)}).maxRetries)
	assert.Equal(t, defaultOptions().maxRetries, applyOptions([]Option{WithMaxRetries(0)}).maxRetries)
}
