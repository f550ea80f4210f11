package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/cloudanchors/internal/database"
	"github.com/jask/cloudanchors/internal/shortcode"
)

// MaintenanceService houses destructive/ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB          *sql.DB
	InitialCode shortcode.Code
}

// Reset wipes short codes and hosted anchors. The allocation counter is kept,
// so a code handed out before the reset never points at a different anchor
// afterwards. The counter is only seeded when it is missing.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range []string{"short_codes", "cloud_anchors"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := database.SeedDefaults(ctx, s.DB, s.InitialCode); err != nil {
		return fmt.Errorf("ensure counter: %w", err)
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
