package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jask/cloudanchors/internal/database/repository"
	"github.com/jask/cloudanchors/internal/provider"
	"github.com/jask/cloudanchors/internal/shortcode"
)

// Repos bundles repos used by Seed.
type Repos struct {
	Anchors *repository.CloudAnchorRepo
	Codes   *repository.ShortCodeRepo
}

// Sample is one seeded anchor and the code that points at it.
type Sample struct {
	Code     shortcode.Code
	AnchorID string
	Pose     provider.Pose
}

// Seed hosts n sample anchors on the floor and binds a fresh short code to
// each, so resolve can be tried without hosting first.
func Seed(ctx context.Context, repos Repos, n int) ([]Sample, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		pose := provider.Translation(rng.Float64()*4-2, 0, -(rng.Float64()*3 + 0.5))
		blob, err := provider.EncodePose(pose)
		if err != nil {
			return samples, err
		}
		id := "ua-" + uuid.NewString()
		if err := repos.Anchors.Insert(ctx, repository.CloudAnchor{ID: id, Pose: blob}); err != nil {
			return samples, fmt.Errorf("insert sample anchor: %w", err)
		}
		code, err := repos.Codes.Allocate(ctx)
		if err != nil {
			return samples, fmt.Errorf("allocate sample code: %w", err)
		}
		if err := repos.Codes.Put(ctx, code, id); err != nil {
			return samples, fmt.Errorf("bind sample code: %w", err)
		}
		samples = append(samples, Sample{Code: code, AnchorID: id, Pose: pose})
	}
	return samples, nil
}
