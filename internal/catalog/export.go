package catalog

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"imagescout/pkg/models"
)

// snapshotVersion is bumped when the snapshot layout changes incompatibly.
const snapshotVersion = 1

// Snapshot is a portable YAML dump of the catalog. It round-trips through
// analyzer records, so restoring replays each image through the normal
// ingest path.
type Snapshot struct {
	Version    int                    `yaml:"version"`
	ExportedAt time.Time              `yaml:"exported_at"`
	Images     []models.ImageAnalysis `yaml:"images"`
}

// WriteTo encodes the snapshot as YAML.
func (s *Snapshot) WriteTo(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return enc.Close()
}

// ReadSnapshot decodes and validates a YAML snapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d (want %d)", s.Version, snapshotVersion)
	}
	return &s, nil
}

// Export builds a snapshot of every cataloged image.
func Export(ctx context.Context, repo ImageRepository) (*Snapshot, error) {
	analyses, err := repo.ExportAnalyses(ctx)
	if err != nil {
		return nil, fmt.Errorf("export analyses: %w", err)
	}
	return &Snapshot{
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC(),
		Images:     analyses,
	}, nil
}

// Restore replays every image in the snapshot through SaveAnalysis and
// returns the number of images written. Existing rows with the same name
// are overwritten; images not present in the snapshot are left alone.
func Restore(ctx context.Context, repo ImageRepository, s *Snapshot) (int, error) {
	restored := 0
	for i := range s.Images {
		if err := repo.SaveAnalysis(ctx, &s.Images[i]); err != nil {
			return restored, fmt.Errorf("restore %q: %w", s.Images[i].Image, err)
		}
		restored++
	}
	return restored, nil
}

// ExportAnalyses reconstructs the analyzer record for every cataloged image.
func (r *SQLiteImageRepository) ExportAnalyses(ctx context.Context) ([]models.ImageAnalysis, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, size_bytes, layers, base_os_name, base_os_version,
		       total_vulnerabilities, critical_vulnerabilities,
		       high_vulnerabilities, medium_vulnerabilities, low_vulnerabilities,
		       scanner, scanned_at
		FROM images ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id       int64
		analysis models.ImageAnalysis
	}
	var all []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(
			&p.id, &p.analysis.Image,
			&p.analysis.Manifest.Size, &p.analysis.Manifest.Layers,
			&p.analysis.BaseOS.Name, &p.analysis.BaseOS.Version,
			&p.analysis.Vulnerabilities.Total, &p.analysis.Vulnerabilities.Critical,
			&p.analysis.Vulnerabilities.High, &p.analysis.Vulnerabilities.Medium,
			&p.analysis.Vulnerabilities.Low,
			&p.analysis.Scanner, &p.analysis.ScannedAt,
		); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		all = append(all, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}

	analyses := make([]models.ImageAnalysis, 0, len(all))
	for _, p := range all {
		if err := r.fillRelations(ctx, p.id, &p.analysis); err != nil {
			return nil, fmt.Errorf("relations for %q: %w", p.analysis.Image, err)
		}
		analyses = append(analyses, p.analysis)
	}
	return analyses, nil
}

func (r *SQLiteImageRepository) fillRelations(ctx context.Context, imageID int64, analysis *models.ImageAnalysis) error {
	langRows, err := r.db.QueryContext(ctx,
		`SELECT language, version, major_minor, verified FROM languages WHERE image_id = ? ORDER BY id`, imageID)
	if err != nil {
		return err
	}
	defer langRows.Close()
	for langRows.Next() {
		var lang models.DetectedLanguage
		if err := langRows.Scan(&lang.Language, &lang.Version, &lang.MajorMinor, &lang.Verified); err != nil {
			return err
		}
		analysis.Languages = append(analysis.Languages, lang)
	}
	if err := langRows.Err(); err != nil {
		return err
	}

	pkgRows, err := r.db.QueryContext(ctx,
		`SELECT name, version, type FROM system_packages WHERE image_id = ? ORDER BY id`, imageID)
	if err != nil {
		return err
	}
	defer pkgRows.Close()
	for pkgRows.Next() {
		var pkg models.PackageRecord
		if err := pkgRows.Scan(&pkg.Name, &pkg.Version, &pkg.Type); err != nil {
			return err
		}
		analysis.SystemPackages = append(analysis.SystemPackages, pkg)
	}
	if err := pkgRows.Err(); err != nil {
		return err
	}

	pmRows, err := r.db.QueryContext(ctx,
		`SELECT name, version FROM package_managers WHERE image_id = ? ORDER BY id`, imageID)
	if err != nil {
		return err
	}
	defer pmRows.Close()
	for pmRows.Next() {
		var pm models.PackageRecord
		if err := pmRows.Scan(&pm.Name, &pm.Version); err != nil {
			return err
		}
		analysis.PackageManagers = append(analysis.PackageManagers, pm)
	}
	if err := pmRows.Err(); err != nil {
		return err
	}

	analysis.Capabilities, err = queryStrings(ctx, r.db,
		`SELECT capability FROM capabilities WHERE image_id = ? ORDER BY id`, imageID)
	return err
}
