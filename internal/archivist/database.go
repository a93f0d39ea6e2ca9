/*******************************************************************************
*
* Copyright 2024 SAP SE
*
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You should have received a copy of the License along with this
* program. If not, you may obtain a copy of the License at
*
*     http://www.apache.org/licenses/LICENSE-2.0
*
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
*
*******************************************************************************/

package archivist

import (
	"database/sql"

	"github.com/go-gorp/gorp/v3"
	"github.com/sapcc/go-bits/easypg"

	"github.com/sapcc/archivist/internal/models"
)

var sqlMigrations = map[string]string{
	"001_initial.up.sql": `
		CREATE TABLE distributions (
			id           BIGSERIAL NOT NULL PRIMARY KEY,
			name         TEXT      NOT NULL UNIQUE,
			display_name TEXT      NOT NULL DEFAULT ''
		);

		CREATE TABLE archives (
			id                  BIGSERIAL NOT NULL PRIMARY KEY,
			distribution_id     BIGINT    NOT NULL REFERENCES distributions ON DELETE RESTRICT,
			name                TEXT      NOT NULL,
			display_name        TEXT      NOT NULL DEFAULT '',
			owner_name          TEXT      NOT NULL,
			purpose             TEXT      NOT NULL,
			is_private          BOOLEAN   NOT NULL DEFAULT FALSE,
			is_enabled          BOOLEAN   NOT NULL DEFAULT TRUE,
			require_virtualized BOOLEAN   NOT NULL DEFAULT FALSE,
			build_debug_symbols BOOLEAN   NOT NULL DEFAULT FALSE,
			UNIQUE (distribution_id, owner_name, name)
		);

		CREATE TABLE distro_series (
			id                       BIGSERIAL NOT NULL PRIMARY KEY,
			distribution_id          BIGINT    NOT NULL REFERENCES distributions ON DELETE RESTRICT,
			name                     TEXT      NOT NULL,
			display_name             TEXT      NOT NULL DEFAULT '',
			status                   TEXT      NOT NULL,
			permitted_source_formats TEXT[]    NOT NULL DEFAULT '{}',
			nominated_arch_indep_tag TEXT      NOT NULL DEFAULT '',
			UNIQUE (distribution_id, name)
		);

		CREATE TABLE distro_arch_series (
			id               BIGSERIAL NOT NULL PRIMARY KEY,
			series_id        BIGINT    NOT NULL REFERENCES distro_series ON DELETE RESTRICT,
			architecture_tag TEXT      NOT NULL,
			is_enabled       BOOLEAN   NOT NULL DEFAULT TRUE,
			UNIQUE (series_id, architecture_tag)
		);

		CREATE TABLE stored_files (
			id            BIGSERIAL   NOT NULL PRIMARY KEY,
			filename      TEXT        NOT NULL,
			digest        TEXT        NOT NULL,
			size_bytes    BIGINT      NOT NULL,
			is_restricted BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMPTZ NOT NULL,
			expires_at    TIMESTAMPTZ DEFAULT NULL
		);
		CREATE INDEX stored_files_filename_idx ON stored_files (filename);

		CREATE TABLE source_releases (
			id                BIGSERIAL   NOT NULL PRIMARY KEY,
			name              TEXT        NOT NULL,
			version           TEXT        NOT NULL,
			format            TEXT        NOT NULL,
			component         TEXT        NOT NULL,
			section           TEXT        NOT NULL,
			architecture_hint TEXT        NOT NULL,
			maintainer        TEXT        NOT NULL DEFAULT '',
			created_at        TIMESTAMPTZ NOT NULL,
			changelog_file_id BIGINT      DEFAULT NULL REFERENCES stored_files ON DELETE RESTRICT,
			changes_file_id   BIGINT      DEFAULT NULL REFERENCES stored_files ON DELETE RESTRICT
		);

		CREATE TABLE source_release_files (
			source_release_id BIGINT NOT NULL REFERENCES source_releases ON DELETE CASCADE,
			file_id           BIGINT NOT NULL REFERENCES stored_files ON DELETE RESTRICT,
			PRIMARY KEY (source_release_id, file_id)
		);

		CREATE TABLE package_diffs (
			id              BIGSERIAL NOT NULL PRIMARY KEY,
			from_release_id BIGINT    NOT NULL REFERENCES source_releases ON DELETE CASCADE,
			to_release_id   BIGINT    NOT NULL REFERENCES source_releases ON DELETE CASCADE,
			file_id         BIGINT    DEFAULT NULL REFERENCES stored_files ON DELETE RESTRICT
		);

		CREATE TABLE builds (
			id                    BIGSERIAL   NOT NULL PRIMARY KEY,
			source_release_id     BIGINT      NOT NULL REFERENCES source_releases ON DELETE RESTRICT,
			distro_arch_series_id BIGINT      NOT NULL REFERENCES distro_arch_series ON DELETE RESTRICT,
			archive_id            BIGINT      NOT NULL REFERENCES archives ON DELETE RESTRICT,
			pocket                TEXT        NOT NULL,
			status                TEXT        NOT NULL,
			title                 TEXT        NOT NULL DEFAULT '',
			is_suspended          BOOLEAN     NOT NULL DEFAULT FALSE,
			log_file_id           BIGINT      DEFAULT NULL REFERENCES stored_files ON DELETE RESTRICT,
			changes_file_id       BIGINT      DEFAULT NULL REFERENCES stored_files ON DELETE RESTRICT,
			created_at            TIMESTAMPTZ NOT NULL,
			finished_at           TIMESTAMPTZ DEFAULT NULL,
			UNIQUE (source_release_id, distro_arch_series_id, archive_id, pocket)
		);

		CREATE TABLE binary_releases (
			id               BIGSERIAL NOT NULL PRIMARY KEY,
			build_id         BIGINT    NOT NULL REFERENCES builds ON DELETE RESTRICT,
			name             TEXT      NOT NULL,
			version          TEXT      NOT NULL,
			format           TEXT      NOT NULL,
			is_arch_specific BOOLEAN   NOT NULL,
			component        TEXT      NOT NULL,
			section          TEXT      NOT NULL,
			priority         TEXT      NOT NULL,
			debug_release_id BIGINT    DEFAULT NULL REFERENCES binary_releases ON DELETE SET NULL
		);

		CREATE TABLE binary_release_files (
			binary_release_id BIGINT NOT NULL REFERENCES binary_releases ON DELETE CASCADE,
			file_id           BIGINT NOT NULL REFERENCES stored_files ON DELETE RESTRICT,
			PRIMARY KEY (binary_release_id, file_id)
		);

		CREATE TABLE source_publications (
			id                BIGSERIAL   NOT NULL PRIMARY KEY,
			archive_id        BIGINT      NOT NULL REFERENCES archives ON DELETE RESTRICT,
			series_id         BIGINT      NOT NULL REFERENCES distro_series ON DELETE RESTRICT,
			pocket            TEXT        NOT NULL,
			source_release_id BIGINT      NOT NULL REFERENCES source_releases ON DELETE RESTRICT,
			package_name      TEXT        NOT NULL,
			version           TEXT        NOT NULL,
			component         TEXT        NOT NULL,
			section           TEXT        NOT NULL,
			status            TEXT        NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL,
			published_at      TIMESTAMPTZ DEFAULT NULL,
			creator_name      TEXT        NOT NULL DEFAULT '',
			sponsor_name      TEXT        NOT NULL DEFAULT '',
			ancestor_id       BIGINT      DEFAULT NULL REFERENCES source_publications ON DELETE SET NULL
		);
		CREATE INDEX source_publications_name_idx ON source_publications (archive_id, package_name, version);
		CREATE UNIQUE INDEX source_publications_active_idx ON source_publications (archive_id, series_id, source_release_id, pocket)
			WHERE status IN ('PENDING', 'PUBLISHED');

		CREATE TABLE binary_publications (
			id                       BIGSERIAL   NOT NULL PRIMARY KEY,
			archive_id               BIGINT      NOT NULL REFERENCES archives ON DELETE RESTRICT,
			distro_arch_series_id    BIGINT      NOT NULL REFERENCES distro_arch_series ON DELETE RESTRICT,
			pocket                   TEXT        NOT NULL,
			binary_release_id        BIGINT      NOT NULL REFERENCES binary_releases ON DELETE RESTRICT,
			package_name             TEXT        NOT NULL,
			version                  TEXT        NOT NULL,
			component                TEXT        NOT NULL,
			section                  TEXT        NOT NULL,
			priority                 TEXT        NOT NULL,
			status                   TEXT        NOT NULL,
			created_at               TIMESTAMPTZ NOT NULL,
			published_at             TIMESTAMPTZ DEFAULT NULL,
			creator_name             TEXT        NOT NULL DEFAULT '',
			phased_update_percentage SMALLINT    DEFAULT NULL
		);
		CREATE INDEX binary_publications_name_idx ON binary_publications (archive_id, package_name, version);
		CREATE UNIQUE INDEX binary_publications_active_idx ON binary_publications (archive_id, distro_arch_series_id, binary_release_id, pocket)
			WHERE status IN ('PENDING', 'PUBLISHED');

		CREATE TABLE package_copy_jobs (
			id                       BIGSERIAL   NOT NULL PRIMARY KEY,
			source_archive_id        BIGINT      NOT NULL REFERENCES archives ON DELETE CASCADE,
			package_name             TEXT        NOT NULL,
			package_version          TEXT        NOT NULL,
			target_archive_id        BIGINT      NOT NULL REFERENCES archives ON DELETE CASCADE,
			target_series_id         BIGINT      DEFAULT NULL REFERENCES distro_series ON DELETE CASCADE,
			target_pocket            TEXT        NOT NULL,
			include_binaries         BOOLEAN     NOT NULL DEFAULT FALSE,
			unembargo                BOOLEAN     NOT NULL DEFAULT FALSE,
			send_email               BOOLEAN     NOT NULL DEFAULT FALSE,
			check_permissions        BOOLEAN     NOT NULL DEFAULT TRUE,
			requester_name           TEXT        NOT NULL DEFAULT '',
			sponsored_name           TEXT        NOT NULL DEFAULT '',
			component_override       TEXT        NOT NULL DEFAULT '',
			section_override         TEXT        NOT NULL DEFAULT '',
			phased_update_percentage SMALLINT    DEFAULT NULL,
			status                   TEXT        NOT NULL,
			error_message            TEXT        NOT NULL DEFAULT '',
			created_at               TIMESTAMPTZ NOT NULL,
			started_at               TIMESTAMPTZ DEFAULT NULL,
			finished_at              TIMESTAMPTZ DEFAULT NULL
		);
		CREATE INDEX package_copy_jobs_status_idx ON package_copy_jobs (status, created_at);
	`,
	"001_initial.down.sql": `
		DROP TABLE package_copy_jobs;
		DROP TABLE binary_publications;
		DROP TABLE source_publications;
		DROP TABLE binary_release_files;
		DROP TABLE binary_releases;
		DROP TABLE builds;
		DROP TABLE package_diffs;
		DROP TABLE source_release_files;
		DROP TABLE source_releases;
		DROP TABLE stored_files;
		DROP TABLE distro_arch_series;
		DROP TABLE distro_series;
		DROP TABLE archives;
		DROP TABLE distributions;
	`,
}

// DB adds convenience functions on top of gorp.DbMap.
type DB struct {
	gorp.DbMap
}

// DBConfiguration returns the easypg.Configuration object that func main() needs to initialize the DB connection.
func DBConfiguration() easypg.Configuration {
	return easypg.Configuration{
		Migrations: sqlMigrations,
	}
}

// InitORM wraps a database connection into a DB instance.
func InitORM(dbConn *sql.DB) *DB {
	result := &DB{DbMap: gorp.DbMap{Db: dbConn, Dialect: gorp.PostgresDialect{}}}
	initModels(&result.DbMap)
	return result
}

func initModels(db *gorp.DbMap) {
	db.AddTableWithName(models.Distribution{}, "distributions").SetKeys(true, "id")
	db.AddTableWithName(models.Archive{}, "archives").SetKeys(true, "id")
	db.AddTableWithName(models.DistroSeries{}, "distro_series").SetKeys(true, "id")
	db.AddTableWithName(models.DistroArchSeries{}, "distro_arch_series").SetKeys(true, "id")
	db.AddTableWithName(models.StoredFile{}, "stored_files").SetKeys(true, "id")
	db.AddTableWithName(models.SourceRelease{}, "source_releases").SetKeys(true, "id")
	db.AddTableWithName(models.SourceReleaseFile{}, "source_release_files").SetKeys(false, "source_release_id", "file_id")
	db.AddTableWithName(models.PackageDiff{}, "package_diffs").SetKeys(true, "id")
	db.AddTableWithName(models.Build{}, "builds").SetKeys(true, "id")
	db.AddTableWithName(models.BinaryRelease{}, "binary_releases").SetKeys(true, "id")
	db.AddTableWithName(models.BinaryReleaseFile{}, "binary_release_files").SetKeys(false, "binary_release_id", "file_id")
	db.AddTableWithName(models.SourcePublication{}, "source_publications").SetKeys(true, "id")
	db.AddTableWithName(models.BinaryPublication{}, "binary_publications").SetKeys(true, "id")
	db.AddTableWithName(models.PackageCopyJob{}, "package_copy_jobs").SetKeys(true, "id")
}
