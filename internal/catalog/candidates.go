package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"imagescout/internal/recommend"
	"imagescout/pkg/models"
)

// Candidates returns catalog rows matching the requested language, one row
// per image joined with a matching detected-language entry. The version
// filter is deliberately loose: exact scoring happens in the engine, the
// query only narrows to plausibly related versions. Results come back
// least-vulnerable and smallest first so downstream ties keep that order.
func (r *SQLiteImageRepository) Candidates(ctx context.Context, language, version string, maxVulnerabilities *int) ([]recommend.Candidate, error) {
	query := `
		SELECT DISTINCT i.name, l.language, l.version, l.major_minor, l.verified,
		       GROUP_CONCAT(DISTINCT c.capability) AS capabilities,
		       i.size_bytes, i.base_os_name,
		       i.total_vulnerabilities, i.critical_vulnerabilities,
		       i.high_vulnerabilities, i.medium_vulnerabilities, i.low_vulnerabilities
		FROM images i
		JOIN languages l ON l.image_id = i.id
		LEFT JOIN capabilities c ON c.image_id = i.id
		WHERE LOWER(l.language) = LOWER(?)`
	args := []any{language}

	if version != "" {
		if mm := majorMinor(version); mm != "" {
			query += ` AND (l.version LIKE ? OR l.major_minor LIKE ? OR l.version LIKE ? OR l.major_minor = ?)`
			args = append(args, version+"%", version+"%", mm+"%", mm)
		} else {
			query += ` AND (l.version LIKE ? OR l.major_minor LIKE ?)`
			args = append(args, version+"%", version+"%")
		}
	}

	if maxVulnerabilities != nil {
		query += ` AND i.total_vulnerabilities <= ?`
		args = append(args, *maxVulnerabilities)
	}

	query += `
		GROUP BY i.id
		ORDER BY i.total_vulnerabilities ASC, i.size_bytes ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates for %q: %w", language, err)
	}
	defer rows.Close()

	var candidates []recommend.Candidate
	for rows.Next() {
		var (
			c    recommend.Candidate
			caps sql.NullString
		)
		if err := rows.Scan(
			&c.ImageName,
			&c.Language.Language, &c.Language.Version, &c.Language.MajorMinor, &c.Language.Verified,
			&caps,
			&c.SizeBytes, &c.BaseOS,
			&c.Vulnerabilities.Total, &c.Vulnerabilities.Critical,
			&c.Vulnerabilities.High, &c.Vulnerabilities.Medium, &c.Vulnerabilities.Low,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if caps.Valid && caps.String != "" {
			c.Capabilities = strings.Split(caps.String, ",")
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// ImageByName assembles the full analysis view for one cataloged image, or
// nil when the image is unknown.
func (r *SQLiteImageRepository) ImageByName(ctx context.Context, name string) (*recommend.Analysis, error) {
	var (
		id        int64
		analysis  recommend.Analysis
		osVersion string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, size_bytes, base_os_name, base_os_version,
		       total_vulnerabilities, critical_vulnerabilities,
		       high_vulnerabilities, medium_vulnerabilities, low_vulnerabilities
		FROM images WHERE name = ?`, name,
	).Scan(
		&id, &analysis.Image, &analysis.SizeBytes, &analysis.BaseOS, &osVersion,
		&analysis.Vulnerabilities.Total, &analysis.Vulnerabilities.Critical,
		&analysis.Vulnerabilities.High, &analysis.Vulnerabilities.Medium,
		&analysis.Vulnerabilities.Low,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis for %q: %w", name, err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT language, version, major_minor, verified FROM languages WHERE image_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("languages for %q: %w", name, err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang models.DetectedLanguage
		if err := rows.Scan(&lang.Language, &lang.Version, &lang.MajorMinor, &lang.Verified); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		analysis.Languages = append(analysis.Languages, lang)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate languages: %w", err)
	}

	analysis.SystemPackages, analysis.PackageManagers, err = r.installedPackagesByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("packages for %q: %w", name, err)
	}

	analysis.Capabilities, err = queryStrings(ctx, r.db,
		`SELECT capability FROM capabilities WHERE image_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("capabilities for %q: %w", name, err)
	}

	return &analysis, nil
}

// InstalledPackages returns the system package names and package manager
// names recorded for one image, in catalog order.
func (r *SQLiteImageRepository) InstalledPackages(ctx context.Context, imageName string) (system, managers []string, err error) {
	var id int64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM images WHERE name = ?`, imageName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve image %q: %w", imageName, err)
	}
	return r.installedPackagesByID(ctx, id)
}

func (r *SQLiteImageRepository) installedPackagesByID(ctx context.Context, imageID int64) (system, managers []string, err error) {
	system, err = queryStrings(ctx, r.db,
		`SELECT name FROM system_packages WHERE image_id = ? ORDER BY id`, imageID)
	if err != nil {
		return nil, nil, fmt.Errorf("system packages: %w", err)
	}
	managers, err = queryStrings(ctx, r.db,
		`SELECT name FROM package_managers WHERE image_id = ? ORDER BY id`, imageID)
	if err != nil {
		return nil, nil, fmt.Errorf("package managers: %w", err)
	}
	return system, managers, nil
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
