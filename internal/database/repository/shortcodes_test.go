package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/cloudanchors/internal/database"
	"github.com/jask/cloudanchors/internal/database/repository"
	"github.com/jask/cloudanchors/internal/shortcode"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestShortCodeAllocatePutLookup(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	db := openTestDB(t)
	repo := repository.NewShortCodeRepo(db, 0)
	require.NoError(t, repo.EnsureCounter(ctx, 142))

	first, err := repo.Allocate(ctx)
	require.NoError(t, err)
	require.Equal(t, shortcode.Code(142), first)

	second, err := repo.Allocate(ctx)
	require.NoError(t, err)
	require.Equal(t, shortcode.Code(143), second)

	require.NoError(t, repo.Put(ctx, first, "ua-anchor-1"))
	got, err := repo.Lookup(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "ua-anchor-1", got)

	err = repo.Put(ctx, first, "ua-anchor-2")
	require.ErrorIs(t, err, shortcode.ErrAlreadyExists)
	got, err = repo.Lookup(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "ua-anchor-1", got, "records are never overwritten")

	recent, err := repo.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, first, recent[0].Code)
}

func TestShortCodeLookupErrors(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	repo := repository.NewShortCodeRepo(openTestDB(t), 0)

	_, err := repo.Lookup(ctx, 9999)
	require.ErrorIs(t, err, shortcode.ErrNotFound)

	_, err = repo.Lookup(ctx, 0)
	require.ErrorIs(t, err, shortcode.ErrInvalidCode)

	err = repo.Put(ctx, -1, "x")
	require.ErrorIs(t, err, shortcode.ErrInvalidCode)
}

func TestShortCodeAllocateSkipsBoundCodes(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	repo := repository.NewShortCodeRepo(openTestDB(t), 0)
	require.NoError(t, repo.EnsureCounter(ctx, 10))
	require.NoError(t, repo.Put(ctx, 10, "a"))
	require.NoError(t, repo.Put(ctx, 11, "b"))

	code, err := repo.Allocate(ctx)
	require.NoError(t, err)
	require.Equal(t, shortcode.Code(12), code)
}

func TestShortCodeAllocateExhausted(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	repo := repository.NewShortCodeRepo(openTestDB(t), 2)
	require.NoError(t, repo.EnsureCounter(ctx, 1))

	for want := shortcode.Code(1); want <= 2; want++ {
		code, err := repo.Allocate(ctx)
		require.NoError(t, err)
		require.Equal(t, want, code)
	}
	_, err := repo.Allocate(ctx)
	require.ErrorIs(t, err, shortcode.ErrExhausted)
	require.ErrorIs(t, err, shortcode.ErrUnavailable)
}

func TestShortCodeAllocateWithoutCounter(t *testing.T) {
	t.Parallel()
	repo := repository.NewShortCodeRepo(openTestDB(t), 0)
	_, err := repo.Allocate(testCtx(t))
	require.ErrorIs(t, err, shortcode.ErrUnavailable)
}

func TestShortCodeAllocateConcurrentUnique(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	repo := repository.NewShortCodeRepo(openTestDB(t), 0)
	require.NoError(t, repo.EnsureCounter(ctx, 142))

	const workers = 8
	codes := make(chan shortcode.Code, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := repo.Allocate(ctx)
			if err == nil {
				codes <- code
			}
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[shortcode.Code]bool{}
	for c := range codes {
		require.False(t, seen[c], "duplicate code %d", c)
		seen[c] = true
	}
	require.Len(t, seen, workers)
}

func TestCloudAnchorRepo(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	repo := repository.NewCloudAnchorRepo(openTestDB(t))

	missing, err := repo.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.Insert(ctx, repository.CloudAnchor{ID: "a1", Pose: []byte{0xa0}}))
	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []byte{0xa0}, got.Pose)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
