// internal/store/store_test.go
package store

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedis(rdb, time.Hour), mr
}

// runContract exercises the behavior every Store must share.
func runContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Load(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.CompareAndSwap(ctx, "NOPE", 1, []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(ctx, "ABCD", []byte(`{"v":1}`)))
	assert.ErrorIs(t, s.Create(ctx, "ABCD", []byte(`{"v":9}`)), ErrExists)

	got, err := s.Load(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.JSONEq(t, `{"v":1}`, string(got.Data))

	v, err := s.CompareAndSwap(ctx, "ABCD", 1, []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = s.CompareAndSwap(ctx, "ABCD", 1, []byte(`{"v":3}`))
	assert.ErrorIs(t, err, ErrConflict, "stale version must not commit")

	got, err = s.Load(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.JSONEq(t, `{"v":2}`, string(got.Data))

	require.NoError(t, s.Create(ctx, "ZZZZ", []byte(`{}`)))
	codes, err := s.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCD", "ZZZZ"}, codes)

	assert.ErrorIs(t, s.Delete(ctx, "ABCD", 1), ErrConflict, "stale version must not delete")
	require.NoError(t, s.Delete(ctx, "ABCD", 2))
	_, err = s.Load(ctx, "ABCD")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, "ABCD", 2))

	codes, err = s.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZZZ"}, codes)
}

// runRace has many writers race from the same version; exactly one may win.
func runRace(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "RACE", []byte(`{}`)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CompareAndSwap(ctx, "RACE", 1, []byte(`{"w":true}`))
			if err == nil {
				wins.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrConflict)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore(t *testing.T) {
	runContract(t, NewMemory())
	runRace(t, NewMemory())
}

func TestRedisStore(t *testing.T) {
	s, _ := newTestRedis(t)
	runContract(t, s)

	s2, _ := newTestRedis(t)
	runRace(t, s2)
}

// TestRedisStoreRefreshesTTL tests that writes keep the room key alive.
func TestRedisStoreRefreshesTTL(t *testing.T) {
	s, mr := newTestRedis(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "TTL", []byte(`{}`)))
	assert.Equal(t, time.Hour, mr.TTL(DefaultKeyPrefix+"TTL"))

	mr.FastForward(30 * time.Minute)
	_, err := s.CompareAndSwap(ctx, "TTL", 1, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(DefaultKeyPrefix+"TTL"))

	mr.FastForward(2 * time.Hour)
	_, err = s.Load(ctx, "TTL")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPostgresStore tests the version-guarded row update.
func TestPostgresStore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	s := NewPostgres(mock)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("ABCD", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.Create(ctx, "ABCD", []byte(`{}`)))

	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("ABCD", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	assert.ErrorIs(t, s.Create(ctx, "ABCD", []byte(`{}`)), ErrExists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc, version FROM rooms WHERE code = $1")).
		WithArgs("ABCD").
		WillReturnRows(pgxmock.NewRows([]string{"doc", "version"}).AddRow([]byte(`{"v":1}`), int64(4)))
	got, err := s.Load(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Version)
	assert.JSONEq(t, `{"v":1}`, string(got.Data))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc, version FROM rooms WHERE code = $1")).
		WithArgs("GONE").
		WillReturnError(pgx.ErrNoRows)
	_, err = s.Load(ctx, "GONE")
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec("UPDATE rooms").
		WithArgs(pgxmock.AnyArg(), "ABCD", int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	v, err := s.CompareAndSwap(ctx, "ABCD", 4, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	mock.ExpectExec("UPDATE rooms").
		WithArgs(pgxmock.AnyArg(), "ABCD", int64(4)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)")).
		WithArgs("ABCD").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	_, err = s.CompareAndSwap(ctx, "ABCD", 4, []byte(`{}`))
	assert.ErrorIs(t, err, ErrConflict)

	mock.ExpectExec("UPDATE rooms").
		WithArgs(pgxmock.AnyArg(), "GONE", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)")).
		WithArgs("GONE").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	_, err = s.CompareAndSwap(ctx, "GONE", 1, []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec("DELETE FROM rooms").
		WithArgs("ABCD", int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, s.Delete(ctx, "ABCD", 5))

	mock.ExpectExec("DELETE FROM rooms").
		WithArgs("ABCD", int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM rooms WHERE code = $1)")).
		WithArgs("ABCD").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	assert.ErrorIs(t, s.Delete(ctx, "ABCD", 5), ErrConflict)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code FROM rooms ORDER BY code")).
		WillReturnRows(pgxmock.NewRows([]string{"code"}).AddRow("ABCD").AddRow("WXYZ"))
	codes, err := s.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCD", "WXYZ"}, codes)

	assert.NoError(t, mock.ExpectationsWereMet())
}
