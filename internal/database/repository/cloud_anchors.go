package repository

import (
	"context"
	"database/sql"
)

// CloudAnchorRepo handles hosted anchors of the simulated anchor service.
type CloudAnchorRepo struct {
	db *sql.DB
}

func NewCloudAnchorRepo(db *sql.DB) *CloudAnchorRepo { return &CloudAnchorRepo{db: db} }

func (r *CloudAnchorRepo) Insert(ctx context.Context, a CloudAnchor) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO cloud_anchors(id, pose, hosted_at) VALUES (?, ?, CURRENT_TIMESTAMP)`, a.ID, a.Pose)
	return err
}

func (r *CloudAnchorRepo) Get(ctx context.Context, id string) (*CloudAnchor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, pose, hosted_at FROM cloud_anchors WHERE id = ?`, id)
	var a CloudAnchor
	if err := row.Scan(&a.ID, &a.Pose, &a.HostedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *CloudAnchorRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cloud_anchors`).Scan(&n)
	return n, err
}
