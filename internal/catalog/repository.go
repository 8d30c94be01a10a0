// Package catalog stores scanned container images and answers the
// recommendation engine's candidate queries. The schema mirrors what the
// external analyzer reports: one row per image plus detected languages,
// installed packages, package managers, capabilities, and vulnerability
// details.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"imagescout/internal/recommend"
	"imagescout/pkg/models"
)

// Sentinel errors returned by the repository.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// ImageFilter controls which images are returned by List.
type ImageFilter struct {
	Language string // Filter to images with this detected language.
	Search   string // Substring match on image name or repository.
}

// ListOptions controls pagination and sorting for list queries.
type ListOptions struct {
	Limit     int    // Max results per page (default 50, max 1000).
	Offset    int    // Number of results to skip.
	SortBy    string // Column name (validated per query).
	SortOrder string // "asc" or "desc" (default "asc").
}

// ListResult wraps a paginated result set with a total count.
type ListResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// VulnerabilityStats aggregates severity counts across the whole catalog.
type VulnerabilityStats struct {
	Images        int `json:"images"`
	TotalVulns    int `json:"total_vulnerabilities"`
	Critical      int `json:"critical"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	CleanImages   int `json:"clean_images"`
	ScannedImages int `json:"scanned_images"`
}

// LanguageStat summarizes one detected language across the catalog.
type LanguageStat struct {
	Language string `json:"language"`
	Images   int    `json:"images"`
	Verified int    `json:"verified"`
}

// ImageRepository provides read/write access to the image catalog.
type ImageRepository interface {
	recommend.CandidateSource

	// SaveAnalysis upserts an analyzer record: the image row is replaced
	// and all its relations rebuilt.
	SaveAnalysis(ctx context.Context, analysis *models.ImageAnalysis) error

	// GetByName returns a cataloged image by exact name.
	GetByName(ctx context.Context, name string) (*models.Image, error)

	// List returns a filtered, paginated image listing.
	List(ctx context.Context, filter ImageFilter, opts ListOptions) (*ListResult[models.Image], error)

	// Delete removes an image and its relations.
	Delete(ctx context.Context, name string) error

	// Count returns the number of cataloged images.
	Count(ctx context.Context) (int, error)

	// VulnerabilityStats aggregates vulnerability counts over the catalog.
	VulnerabilityStats(ctx context.Context) (*VulnerabilityStats, error)

	// LanguageSummary aggregates detected languages over the catalog.
	LanguageSummary(ctx context.Context) ([]LanguageStat, error)

	// ExportAnalyses reconstructs the analyzer record for every image,
	// suitable for a portable snapshot.
	ExportAnalyses(ctx context.Context) ([]models.ImageAnalysis, error)
}

// Compile-time interface guard.
var _ ImageRepository = (*SQLiteImageRepository)(nil)

// SQLiteImageRepository implements ImageRepository using SQLite.
type SQLiteImageRepository struct {
	db *sql.DB
}

// NewSQLiteImageRepository creates an ImageRepository. The catalog tables
// must already exist (created by this plugin's migrations).
func NewSQLiteImageRepository(db *sql.DB) *SQLiteImageRepository {
	return &SQLiteImageRepository{db: db}
}

// majorMinorPattern extracts the leading major.minor of a version string.
var majorMinorPattern = regexp.MustCompile(`^(\d+)\.(\d+)`)

func majorMinor(version string) string {
	m := majorMinorPattern.FindStringSubmatch(version)
	if m == nil {
		return ""
	}
	return m[1] + "." + m[2]
}

// parseImageName splits an image reference into registry, repository, and
// tag. A leading segment containing a dot or port is treated as a registry;
// otherwise the registry defaults to docker.io and a missing tag to latest.
func parseImageName(name string) (registry, repository, tag string) {
	registry = "docker.io"
	repository = name
	tag = "latest"

	if idx := strings.LastIndex(repository, ":"); idx != -1 && !strings.Contains(repository[idx:], "/") {
		tag = repository[idx+1:]
		repository = repository[:idx]
	}

	if idx := strings.Index(repository, "/"); idx != -1 {
		head := repository[:idx]
		if strings.ContainsAny(head, ".:") || head == "localhost" {
			registry = head
			repository = repository[idx+1:]
		}
	}

	return registry, repository, tag
}

// SaveAnalysis upserts the analyzer's record for one image inside a single
// transaction. Relations are cleared and rebuilt so a rescan fully replaces
// stale data.
func (r *SQLiteImageRepository) SaveAnalysis(ctx context.Context, analysis *models.ImageAnalysis) error {
	if analysis == nil || strings.TrimSpace(analysis.Image) == "" {
		return fmt.Errorf("analysis must name an image")
	}

	registry, repository, tag := parseImageName(analysis.Image)
	scannedAt := analysis.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save analysis: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		INSERT INTO images (
			name, registry, repository, tag, size_bytes, layers,
			base_os_name, base_os_version,
			total_vulnerabilities, critical_vulnerabilities,
			high_vulnerabilities, medium_vulnerabilities, low_vulnerabilities,
			scanner, scanned_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			layers = excluded.layers,
			base_os_name = excluded.base_os_name,
			base_os_version = excluded.base_os_version,
			total_vulnerabilities = excluded.total_vulnerabilities,
			critical_vulnerabilities = excluded.critical_vulnerabilities,
			high_vulnerabilities = excluded.high_vulnerabilities,
			medium_vulnerabilities = excluded.medium_vulnerabilities,
			low_vulnerabilities = excluded.low_vulnerabilities,
			scanner = excluded.scanner,
			scanned_at = excluded.scanned_at`,
		analysis.Image, registry, repository, tag,
		analysis.Manifest.Size, analysis.Manifest.Layers,
		analysis.BaseOS.Name, analysis.BaseOS.Version,
		analysis.Vulnerabilities.Total, analysis.Vulnerabilities.Critical,
		analysis.Vulnerabilities.High, analysis.Vulnerabilities.Medium,
		analysis.Vulnerabilities.Low,
		analysis.Scanner, scannedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert image %q: %w", analysis.Image, err)
	}

	imageID, err := imageIDForUpsert(ctx, tx, res, analysis.Image)
	if err != nil {
		return err
	}

	if err := clearRelations(ctx, tx, imageID); err != nil {
		return err
	}

	for _, lang := range analysis.Languages {
		mm := lang.MajorMinor
		if mm == "" {
			mm = majorMinor(lang.Version)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO languages (image_id, language, version, major_minor, verified) VALUES (?, ?, ?, ?, ?)`,
			imageID, lang.Language, lang.Version, mm, lang.Verified,
		); err != nil {
			return fmt.Errorf("insert language %q: %w", lang.Language, err)
		}
	}

	for _, pkg := range analysis.SystemPackages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO system_packages (image_id, name, version, type) VALUES (?, ?, ?, ?)`,
			imageID, pkg.Name, pkg.Version, pkg.Type,
		); err != nil {
			return fmt.Errorf("insert system package %q: %w", pkg.Name, err)
		}
	}

	for _, pm := range analysis.PackageManagers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO package_managers (image_id, name, version) VALUES (?, ?, ?)`,
			imageID, pm.Name, pm.Version,
		); err != nil {
			return fmt.Errorf("insert package manager %q: %w", pm.Name, err)
		}
	}

	for _, capability := range analysis.Capabilities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO capabilities (image_id, capability) VALUES (?, ?)`,
			imageID, capability,
		); err != nil {
			return fmt.Errorf("insert capability %q: %w", capability, err)
		}
	}

	return tx.Commit()
}

func imageIDForUpsert(ctx context.Context, tx *sql.Tx, res sql.Result, name string) (int64, error) {
	// LastInsertId is unreliable after ON CONFLICT DO UPDATE; resolve by name.
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE id = ? AND name = ?`, id, name).Scan(&exists); err == nil && exists == 1 {
			return id, nil
		}
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM images WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve image id for %q: %w", name, err)
	}
	return id, nil
}

func clearRelations(ctx context.Context, tx *sql.Tx, imageID int64) error {
	for _, table := range []string{"languages", "system_packages", "package_managers", "capabilities", "vulnerabilities"} {
		//nolint:gosec // table names come from the fixed list above
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE image_id = ?", imageID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// imageColumns is the shared column list for image queries.
const imageColumns = `id, name, registry, repository, tag, digest,
	size_bytes, layers, base_os_name, base_os_version,
	total_vulnerabilities, critical_vulnerabilities, high_vulnerabilities,
	medium_vulnerabilities, low_vulnerabilities,
	secrets_found, config_issues, license_issues, scanner, scanned_at`

func (r *SQLiteImageRepository) GetByName(ctx context.Context, name string) (*models.Image, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE name = ?`, name)
	img, err := scanImage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get image %q: %w", name, err)
	}
	return img, nil
}

func (r *SQLiteImageRepository) List(ctx context.Context, filter ImageFilter, opts ListOptions) (*ListResult[models.Image], error) {
	opts = normalizeListOptions(opts)

	sortCol := "name"
	allowedSorts := map[string]string{
		"name":       "name",
		"size":       "size_bytes",
		"vulns":      "total_vulnerabilities",
		"scanned_at": "scanned_at",
	}
	if col, ok := allowedSorts[opts.SortBy]; ok {
		sortCol = col
	}

	where := "1=1"
	var args []any

	if filter.Language != "" {
		where += " AND id IN (SELECT image_id FROM languages WHERE LOWER(language) = LOWER(?))"
		args = append(args, filter.Language)
	}
	if filter.Search != "" {
		where += " AND (name LIKE ? OR repository LIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	//nolint:gosec // where uses parameterized placeholders only
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM images WHERE "+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}

	orderDir := "ASC"
	if opts.SortOrder == "desc" {
		orderDir = "DESC"
	}

	queryArgs := make([]any, 0, len(args)+2)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, opts.Limit, opts.Offset)

	//nolint:gosec // where and sortCol are validated above, not user input
	query := fmt.Sprintf(
		"SELECT %s FROM images WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
		imageColumns, where, sortCol, orderDir,
	)

	rows, err := r.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows.Scan)
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}

	return &ListResult[models.Image]{Items: images, Total: total}, nil
}

func (r *SQLiteImageRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete image %q: %w", name, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteImageRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}

func (r *SQLiteImageRepository) VulnerabilityStats(ctx context.Context) (*VulnerabilityStats, error) {
	var s VulnerabilityStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(total_vulnerabilities), 0),
		       COALESCE(SUM(critical_vulnerabilities), 0),
		       COALESCE(SUM(high_vulnerabilities), 0),
		       COALESCE(SUM(medium_vulnerabilities), 0),
		       COALESCE(SUM(low_vulnerabilities), 0),
		       COALESCE(SUM(CASE WHEN total_vulnerabilities = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN scanner != '' THEN 1 ELSE 0 END), 0)
		FROM images`,
	).Scan(&s.Images, &s.TotalVulns, &s.Critical, &s.High, &s.Medium, &s.Low, &s.CleanImages, &s.ScannedImages)
	if err != nil {
		return nil, fmt.Errorf("vulnerability stats: %w", err)
	}
	return &s, nil
}

func (r *SQLiteImageRepository) LanguageSummary(ctx context.Context) ([]LanguageStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT LOWER(language),
		       COUNT(DISTINCT image_id),
		       COALESCE(SUM(CASE WHEN verified THEN 1 ELSE 0 END), 0)
		FROM languages
		GROUP BY LOWER(language)
		ORDER BY COUNT(DISTINCT image_id) DESC, LOWER(language) ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("language summary: %w", err)
	}
	defer rows.Close()

	stats := []LanguageStat{}
	for rows.Next() {
		var s LanguageStat
		if err := rows.Scan(&s.Language, &s.Images, &s.Verified); err != nil {
			return nil, fmt.Errorf("scan language summary: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate language summary: %w", err)
	}
	return stats, nil
}

// scanImage scans one image row using the given scan function.
func scanImage(scan func(dest ...any) error) (*models.Image, error) {
	var img models.Image
	err := scan(
		&img.ID, &img.Name, &img.Registry, &img.Repository, &img.Tag, &img.Digest,
		&img.SizeBytes, &img.Layers, &img.BaseOSName, &img.BaseOSVersion,
		&img.Vulnerabilities.Total, &img.Vulnerabilities.Critical,
		&img.Vulnerabilities.High, &img.Vulnerabilities.Medium,
		&img.Vulnerabilities.Low,
		&img.SecretsFound, &img.ConfigIssues, &img.LicenseIssues,
		&img.VulnScanner, &img.ScannedAt,
	)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func normalizeListOptions(opts ListOptions) ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.SortOrder != "desc" {
		opts.SortOrder = "asc"
	}
	return opts
}
