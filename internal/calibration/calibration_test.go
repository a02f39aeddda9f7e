package calibration

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDerive(t *testing.T) {
	off := Derive(image.Pt(983, 892), image.Pt(990, 880))
	assert.Equal(t, Offset{DX: 7, DY: -12}, off)
	assert.Equal(t, image.Pt(7, -12), off.Point())
	assert.False(t, off.IsZero())
	assert.True(t, Offset{}.IsZero())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file loads nothing", func(t *testing.T) {
		s, err := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)

		rec, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("save then load round trip and overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "calibration.json")
		s, err := NewFileStore(path)
		require.NoError(t, err)

		first := Record{Offset: Offset{DX: 3, DY: 4}, Target: "retry button", ObservedX: 10, ObservedY: 20}
		require.NoError(t, s.Save(ctx, first))
		require.NoError(t, s.Save(ctx, Record{Offset: Offset{DX: -1, DY: 2}}))

		rec, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, Offset{DX: -1, DY: 2}, rec.Offset)
		assert.Empty(t, rec.Target, "save overwrites the whole record")
		assert.False(t, rec.UpdatedAt.IsZero())

		entries, err := os.ReadDir(filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1, "no temporary files left behind")

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"offset_x": -1`)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "calibration.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		s, err := NewFileStore(path)
		require.NoError(t, err)

		_, err = s.Load(ctx)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("home directory expansion", func(t *testing.T) {
		s, err := NewFileStore("~/.config/sightclick/calibration.json")
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(s.Path(), "~"))
		assert.True(t, strings.HasSuffix(s.Path(), filepath.Join(".config", "sightclick", "calibration.json")))
	})
}

// flexibleSQLMatcher creates a regex that is insensitive to whitespace.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateCalibration)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	s, err := NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func TestNewPostgresStore_PingFails(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("existing row", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		updated := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		rows := pgxmock.NewRows([]string{"offset_x", "offset_y", "target", "observed_x", "observed_y", "updated_at"}).
			AddRow(5, -3, "retry button", 100, 200, updated)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectCalibration)).WillReturnRows(rows)

		rec, err := s.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, Offset{DX: 5, DY: -3}, rec.Offset)
		assert.Equal(t, "retry button", rec.Target)
		assert.Equal(t, 100, rec.ObservedX)
		assert.Equal(t, updated, rec.UpdatedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("no row", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectCalibration)).WillReturnError(pgx.ErrNoRows)

		rec, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, rec)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectCalibration)).WillReturnError(errors.New("connection reset"))

		_, err := s.Load(ctx)
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestPostgresStore_Save(t *testing.T) {
	s, mockPool := newMockStore(t)
	rec := Record{Offset: Offset{DX: 7, DY: -12}, Target: "ok", ObservedX: 1, ObservedY: 2}

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertCalibration)).
		WithArgs(7, -12, "ok", 1, 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
