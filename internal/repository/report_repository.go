package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/civic-map/internal/database"
	"github.com/jengzang/civic-map/internal/mapview"
	"github.com/jengzang/civic-map/internal/models"
	"github.com/jengzang/civic-map/internal/spatial"
)

// ErrNoSnapshot is returned before the first snapshot has been stored
var ErrNoSnapshot = errors.New("repository: no report snapshot stored")

// DefaultKeepSnapshots is how many snapshots SaveSnapshot retains
const DefaultKeepSnapshots = 5

// ReportRepository caches report snapshots in SQLite so the map keeps
// working while the upstream API is unavailable.
type ReportRepository struct {
	db   *sql.DB
	keep int
	now  func() time.Time
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db, keep: DefaultKeepSnapshots, now: time.Now}
}

// SaveSnapshot stores reports as the newest snapshot and prunes old ones
func (r *ReportRepository) SaveSnapshot(ctx context.Context, source string, reports []models.Report) (*models.ReportSnapshot, error) {
	snap := &models.ReportSnapshot{Source: source, Count: len(reports), FetchedAt: r.now().UTC()}

	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO report_snapshots (source, report_count, fetched_at) VALUES (?, ?, ?)`,
			snap.Source, snap.Count, snap.FetchedAt)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		if snap.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO reports
			(snapshot_id, position, report_id, category, description, image_url, lat, lng, cell_key, upvote_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare report insert: %w", err)
		}
		defer stmt.Close()

		for i, rep := range reports {
			var lat, lng sql.NullFloat64
			var cell sql.NullString
			if mapview.ValidLocation(rep.Location) {
				lat = sql.NullFloat64{Float64: rep.Location.Lat, Valid: true}
				lng = sql.NullFloat64{Float64: rep.Location.Lng, Valid: true}
				cell = sql.NullString{String: spatial.CellKey(rep.Location.Lat, rep.Location.Lng), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, snap.ID, i, rep.ID, rep.Category, rep.Description,
				rep.ImageURL, lat, lng, cell, rep.UpvoteCount); err != nil {
				return fmt.Errorf("failed to insert report %d: %w", i, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM report_snapshots WHERE id NOT IN (SELECT id FROM report_snapshots ORDER BY id DESC LIMIT ?)`,
			r.keep); err != nil {
			return fmt.Errorf("failed to prune snapshots: %w", err)
		}
		// foreign_keys is per connection, so orphans are removed explicitly
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM reports WHERE snapshot_id NOT IN (SELECT id FROM report_snapshots)`); err != nil {
			return fmt.Errorf("failed to prune reports: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	snap.Reports = reports
	return snap, nil
}

// LatestSnapshot returns the newest snapshot with its reports in the
// order they were fetched.
func (r *ReportRepository) LatestSnapshot(ctx context.Context) (*models.ReportSnapshot, error) {
	snap, err := r.latestMeta(ctx)
	if err != nil {
		return nil, err
	}
	reports, err := r.queryReports(ctx, snap.ID, models.ReportFilter{})
	if err != nil {
		return nil, err
	}
	snap.Reports = reports
	return snap, nil
}

// Query returns reports of the newest snapshot matching filter. A bounding
// box is resolved through the S2 cell index and then checked exactly.
func (r *ReportRepository) Query(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	snap, err := r.latestMeta(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryReports(ctx, snap.ID, filter)
}

// CategoryCounts tallies the newest snapshot by category
func (r *ReportRepository) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	snap, err := r.latestMeta(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM reports
		WHERE snapshot_id = ? GROUP BY category ORDER BY COUNT(*) DESC, category`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	var counts []models.CategoryCount
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *ReportRepository) latestMeta(ctx context.Context) (*models.ReportSnapshot, error) {
	var snap models.ReportSnapshot
	err := r.db.QueryRowContext(ctx,
		`SELECT id, source, report_count, fetched_at FROM report_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&snap.ID, &snap.Source, &snap.Count, &snap.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snap, nil
}

func (r *ReportRepository) queryReports(ctx context.Context, snapshotID int64, filter models.ReportFilter) ([]models.Report, error) {
	query := `SELECT report_id, category, description, image_url, lat, lng, upvote_count FROM reports`
	conditions := []string{"snapshot_id = ?"}
	args := []interface{}{snapshotID}

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}

	box, hasBox := filter.Box()
	if hasBox {
		ranges := spatial.BoxCovering(box.MinLat, box.MinLng, box.MaxLat, box.MaxLng, 16)
		var or []string
		for _, kr := range ranges {
			or = append(or, "(cell_key BETWEEN ? AND ?)")
			args = append(args, kr.Min, kr.Max)
		}
		if len(or) == 0 {
			return []models.Report{}, nil
		}
		conditions = append(conditions, "("+strings.Join(or, " OR ")+")")
	}

	query += " WHERE " + strings.Join(conditions, " AND ") + " ORDER BY position"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		var rep models.Report
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&rep.ID, &rep.Category, &rep.Description, &rep.ImageURL, &lat, &lng, &rep.UpvoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if lat.Valid && lng.Valid {
			rep.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64}
		}
		if hasBox && !spatial.BoxContains(box.MinLat, box.MinLng, box.MaxLat, box.MaxLng, rep.Location.Lat, rep.Location.Lng) {
			continue
		}
		reports = append(reports, rep)
		if filter.Limit > 0 && len(reports) >= filter.Limit {
			break
		}
	}
	return reports, rows.Err()
}
