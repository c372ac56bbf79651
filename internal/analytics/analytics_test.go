package analytics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/dustctl/internal/errors"
	"codeberg.org/mutker/dustctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestRecordGradient(t *testing.T) {
	start := time.Unix(1000, 0)
	r := NewRecord(ptr(90), start, ptr(40), start.Add(10*time.Second))

	g, ok := r.Gradient()
	require.True(t, ok)
	assert.InDelta(t, 5.0, g, 1e-9)
	assert.Equal(t, 10*time.Second, r.Duration())

	_, ok = NewRecord(nil, start, ptr(40), start.Add(time.Second)).Gradient()
	assert.False(t, ok)

	_, ok = NewRecord(ptr(90), start, ptr(40), start).Gradient()
	assert.False(t, ok)
}

func TestNewRecordCopiesValues(t *testing.T) {
	v := 12.0
	r := NewRecord(&v, time.Now(), &v, time.Now())
	v = 99

	assert.InDelta(t, 12.0, *r.DustStart, 1e-9)
	assert.NotEqual(t, r.ID.String(), NewRecord(nil, time.Now(), nil, time.Now()).ID.String())
}

func TestRepositoryStoreAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "analytics.db")
	repo, err := NewRepository(Config{DBPath: dbPath, Enabled: true}, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	first := NewRecord(ptr(90), base, ptr(40), base.Add(4*time.Second))
	second := NewRecord(nil, base.Add(time.Minute), ptr(0.1), base.Add(2*time.Minute))

	require.NoError(t, repo.Store(ctx, first))
	require.NoError(t, repo.Store(ctx, second))

	records, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// newest first
	assert.Equal(t, second.ID, records[0].ID)
	assert.Nil(t, records[0].DustStart)
	assert.InDelta(t, 0.1, *records[0].DustEnd, 1e-9)

	assert.Equal(t, first.ID, records[1].ID)
	assert.InDelta(t, 90.0, *records[1].DustStart, 1e-9)
	assert.InDelta(t, 40.0, *records[1].DustEnd, 1e-9)
	assert.True(t, first.DustStartTS.Equal(records[1].DustStartTS))
	assert.True(t, first.DustEndTS.Equal(records[1].DustEndTS))
}

func TestRepositoryMigratesOldSchema(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "analytics.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
		CREATE TABLE dust_cycles (id TEXT PRIMARY KEY);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	repo, err := NewRepository(Config{DBPath: dbPath, Enabled: true}, logger.Nop())
	require.NoError(t, err)
	defer repo.Close()

	entries, err := os.ReadDir(filepath.Join(dir, backupDirName))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	sqliteRepo := repo.(*sqliteRepository)
	version, err := GetSchemaVersion(sqliteRepo.db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestRepositoryRequiresPath(t *testing.T) {
	_, err := NewRepository(Config{Enabled: true}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

type memoryRepository struct {
	records []Record
	closed  bool
}

func (m *memoryRepository) Store(_ context.Context, r *Record) error {
	m.records = append(m.records, *r)
	return nil
}

func (m *memoryRepository) List(_ context.Context, limit int) ([]Record, error) {
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[:limit], nil
}

func (m *memoryRepository) Close() error {
	m.closed = true
	return nil
}

func TestServiceAddRecord(t *testing.T) {
	repo := &memoryRepository{}
	sink := NewServiceWithRepository(repo, logger.Nop())

	now := time.Now()
	require.NoError(t, sink.AddRecord(context.Background(), NewRecord(ptr(1), now, ptr(0.2), now.Add(time.Second))))
	assert.Len(t, repo.records, 1)

	err := sink.AddRecord(context.Background(), nil)
	assert.True(t, errors.HasCode(err, ErrInvalidRecord))

	err = sink.AddRecord(context.Background(), NewRecord(nil, now, nil, now.Add(-time.Second)))
	assert.True(t, errors.HasCode(err, ErrInvalidRecord))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sink.AddRecord(ctx, NewRecord(nil, now, nil, now))
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))

	require.NoError(t, sink.Close())
	assert.True(t, repo.closed)
}

func TestNewServiceDisabled(t *testing.T) {
	sink, err := NewService(Config{Enabled: false}, logger.Nop())
	require.NoError(t, err)
	assert.NoError(t, sink.AddRecord(context.Background(), nil))
	assert.NoError(t, sink.Close())
}
