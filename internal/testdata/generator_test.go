package testdata

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/cloudanchors/internal/database"
	"github.com/jask/cloudanchors/internal/database/repository"
	"github.com/jask/cloudanchors/internal/provider"
)

func TestSeedBindsCodesToStoredAnchors(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.SeedDefaults(ctx, db, 0))

	repos := Repos{Anchors: repository.NewCloudAnchorRepo(db), Codes: repository.NewShortCodeRepo(db, 0)}
	samples, err := Seed(ctx, repos, 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	require.Equal(t, database.DefaultInitialCode, samples[0].Code)

	for _, s := range samples {
		id, err := repos.Codes.Lookup(ctx, s.Code)
		require.NoError(t, err)
		require.Equal(t, s.AnchorID, id)

		rec, err := repos.Anchors.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		pose, err := provider.DecodePose(rec.Pose)
		require.NoError(t, err)
		require.Equal(t, s.Pose, pose)
		require.Zero(t, pose.Ty)
	}
}
