package catalog

import (
	"database/sql"

	"imagescout/internal/plugin"
)

// migrations is the catalog schema. The images table carries the scan
// summary; languages, system_packages, package_managers, capabilities, and
// vulnerabilities hang off it per image.
var migrations = []plugin.Migration{
	{
		Version:     1,
		Description: "create catalog tables",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE images (
					id                       INTEGER PRIMARY KEY AUTOINCREMENT,
					name                     TEXT NOT NULL UNIQUE,
					registry                 TEXT NOT NULL DEFAULT '',
					repository               TEXT NOT NULL DEFAULT '',
					tag                      TEXT NOT NULL DEFAULT '',
					digest                   TEXT NOT NULL DEFAULT '',
					size_bytes               INTEGER NOT NULL DEFAULT 0,
					layers                   INTEGER NOT NULL DEFAULT 0,
					base_os_name             TEXT NOT NULL DEFAULT '',
					base_os_version          TEXT NOT NULL DEFAULT '',
					total_vulnerabilities    INTEGER NOT NULL DEFAULT 0,
					critical_vulnerabilities INTEGER NOT NULL DEFAULT 0,
					high_vulnerabilities     INTEGER NOT NULL DEFAULT 0,
					medium_vulnerabilities   INTEGER NOT NULL DEFAULT 0,
					low_vulnerabilities      INTEGER NOT NULL DEFAULT 0,
					secrets_found            INTEGER NOT NULL DEFAULT 0,
					config_issues            INTEGER NOT NULL DEFAULT 0,
					license_issues           INTEGER NOT NULL DEFAULT 0,
					scanner                  TEXT NOT NULL DEFAULT '',
					scanned_at               DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
					CONSTRAINT unique_image_location UNIQUE (registry, repository, tag)
				)`,
				`CREATE TABLE languages (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					image_id    INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
					language    TEXT NOT NULL,
					version     TEXT NOT NULL DEFAULT '',
					major_minor TEXT NOT NULL DEFAULT '',
					verified    INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE system_packages (
					id       INTEGER PRIMARY KEY AUTOINCREMENT,
					image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
					name     TEXT NOT NULL,
					version  TEXT NOT NULL DEFAULT '',
					type     TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE package_managers (
					id       INTEGER PRIMARY KEY AUTOINCREMENT,
					image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
					name     TEXT NOT NULL,
					version  TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE TABLE capabilities (
					id         INTEGER PRIMARY KEY AUTOINCREMENT,
					image_id   INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
					capability TEXT NOT NULL
				)`,
				`CREATE TABLE vulnerabilities (
					id               INTEGER PRIMARY KEY AUTOINCREMENT,
					image_id         INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
					vulnerability_id TEXT NOT NULL,
					severity         TEXT NOT NULL,
					package_name     TEXT NOT NULL DEFAULT '',
					package_version  TEXT NOT NULL DEFAULT '',
					fixed_version    TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_images_name ON images(name)`,
				`CREATE INDEX idx_images_vulns ON images(total_vulnerabilities, critical_vulnerabilities, high_vulnerabilities)`,
				`CREATE INDEX idx_languages_lang_version ON languages(language, version)`,
				`CREATE INDEX idx_languages_image_id ON languages(image_id)`,
				`CREATE INDEX idx_system_packages_image_id ON system_packages(image_id)`,
				`CREATE INDEX idx_package_managers_image_id ON package_managers(image_id)`,
				`CREATE INDEX idx_capabilities_image_id ON capabilities(image_id)`,
				`CREATE INDEX idx_vulnerabilities_image_id ON vulnerabilities(image_id)`,
			}
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrations exposes the catalog schema for tests and tooling.
func Migrations() []plugin.Migration {
	return migrations
}
