package database

import (
	"context"
	"database/sql"

	"github.com/jask/cloudanchors/internal/database/repository"
	"github.com/jask/cloudanchors/internal/shortcode"
)

// DefaultInitialCode is where allocation starts on a fresh database.
const DefaultInitialCode shortcode.Code = 142

// SeedDefaults ensures the short-code counter exists for new databases.
// It is idempotent and safe to run on every startup.
func SeedDefaults(ctx context.Context, db *sql.DB, initial shortcode.Code) error {
	if !initial.Valid() {
		initial = DefaultInitialCode
	}
	return repository.NewShortCodeRepo(db, 0).EnsureCounter(ctx, initial)
}
