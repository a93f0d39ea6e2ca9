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

package processor

import (
	"database/sql"
	"errors"

	"github.com/go-gorp/gorp/v3"
	"github.com/lib/pq"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// ledger provides read access to the Publication Ledger within one checking
// or copying run. Records that do not change during a run (archives, series,
// architectures) are cached.
type ledger struct {
	db            gorp.SqlExecutor
	archives      map[int64]models.Archive
	distributions map[int64]models.Distribution
	series        map[int64]models.DistroSeries
	archs         map[int64][]models.DistroArchSeries // key = series ID
}

func newLedger(db gorp.SqlExecutor) *ledger {
	return &ledger{
		db:            db,
		archives:      make(map[int64]models.Archive),
		distributions: make(map[int64]models.Distribution),
		series:        make(map[int64]models.DistroSeries),
		archs:         make(map[int64][]models.DistroArchSeries),
	}
}

func (l *ledger) Archive(id int64) (models.Archive, error) {
	if a, ok := l.archives[id]; ok {
		return a, nil
	}
	a, err := archivist.GetArchive(l.db, id)
	if err == nil {
		l.archives[id] = a
	}
	return a, err
}

func (l *ledger) Distribution(id int64) (models.Distribution, error) {
	if d, ok := l.distributions[id]; ok {
		return d, nil
	}
	d, err := archivist.GetDistribution(l.db, id)
	if err == nil {
		l.distributions[id] = d
	}
	return d, err
}

func (l *ledger) Series(id int64) (models.DistroSeries, error) {
	if s, ok := l.series[id]; ok {
		return s, nil
	}
	s, err := archivist.GetDistroSeries(l.db, id)
	if err == nil {
		l.series[id] = s
	}
	return s, err
}

// Architectures returns all architectures of the given series, including
// disabled ones.
func (l *ledger) Architectures(seriesID int64) ([]models.DistroArchSeries, error) {
	if a, ok := l.archs[seriesID]; ok {
		return a, nil
	}
	a, err := archivist.GetArchitectures(l.db, seriesID)
	if err == nil {
		l.archs[seriesID] = a
	}
	return a, err
}

// EnabledArchitectures returns the enabled architectures of the given series.
func (l *ledger) EnabledArchitectures(seriesID int64) ([]models.DistroArchSeries, error) {
	all, err := l.Architectures(seriesID)
	if err != nil {
		return nil, err
	}
	var result []models.DistroArchSeries
	for _, das := range all {
		if das.IsEnabled {
			result = append(result, das)
		}
	}
	return result, nil
}

// Architecture returns the architecture with the given ID.
func (l *ledger) Architecture(id int64) (models.DistroArchSeries, error) {
	var das models.DistroArchSeries
	err := l.db.SelectOne(&das, "SELECT * FROM distro_arch_series WHERE id = $1", id)
	return das, err
}

////////////////////////////////////////////////////////////////////////////////
// source publications

var findActiveSourceQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM source_publications
	 WHERE archive_id = $1 AND series_id = $2 AND pocket = $3 AND package_name = $4
	   AND status IN ('PENDING', 'PUBLISHED')
	 ORDER BY id DESC LIMIT 1
`)

// FindActiveSource returns the newest active publication of the given source
// package in the given suite, or nil if there is none.
func (l *ledger) FindActiveSource(archiveID, seriesID int64, pocket models.Pocket, name string) (*models.SourcePublication, error) {
	return l.selectOneSource(findActiveSourceQuery, archiveID, seriesID, pocket, name)
}

var findActiveSourceInAnySeriesQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM source_publications
	 WHERE archive_id = $1 AND pocket = $2 AND package_name = $3
	   AND status IN ('PENDING', 'PUBLISHED')
	 ORDER BY id DESC LIMIT 1
`)

// FindActiveSourceInAnySeries is like FindActiveSource, but considers all
// series of the archive.
func (l *ledger) FindActiveSourceInAnySeries(archiveID int64, pocket models.Pocket, name string) (*models.SourcePublication, error) {
	return l.selectOneSource(findActiveSourceInAnySeriesQuery, archiveID, pocket, name)
}

var findActiveSourceInAnyPocketQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM source_publications
	 WHERE archive_id = $1 AND series_id = $2 AND package_name = $3
	   AND status IN ('PENDING', 'PUBLISHED')
	 ORDER BY id DESC LIMIT 1
`)

// FindActiveSourceInAnyPocket is like FindActiveSource, but considers all
// pockets of the series.
func (l *ledger) FindActiveSourceInAnyPocket(archiveID, seriesID int64, name string) (*models.SourcePublication, error) {
	return l.selectOneSource(findActiveSourceInAnyPocketQuery, archiveID, seriesID, name)
}

var findActiveSourceVersionQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM source_publications
	 WHERE archive_id = $1 AND series_id = $2 AND pocket = $3 AND package_name = $4 AND version = $5
	   AND status IN ('PENDING', 'PUBLISHED')
	 ORDER BY id DESC LIMIT 1
`)

// FindActiveSourceVersion returns the active publication of the given source
// package version in the given suite, or nil if there is none.
func (l *ledger) FindActiveSourceVersion(archiveID, seriesID int64, pocket models.Pocket, name, version string) (*models.SourcePublication, error) {
	return l.selectOneSource(findActiveSourceVersionQuery, archiveID, seriesID, pocket, name, version)
}

var findLatestSourceInSeriesQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM source_publications
	 WHERE archive_id = $1 AND series_id = $2 AND package_name = $3
	 ORDER BY id DESC LIMIT 1
`)

// FindLatestSourceInSeries returns the newest publication of the given source
// package in the given series, regardless of status and pocket.
func (l *ledger) FindLatestSourceInSeries(archiveID, seriesID int64, name string) (*models.SourcePublication, error) {
	return l.selectOneSource(findLatestSourceInSeriesQuery, archiveID, seriesID, name)
}

func (l *ledger) selectOneSource(query string, args ...any) (*models.SourcePublication, error) {
	var pub models.SourcePublication
	err := l.db.SelectOne(&pub, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// SourcesWithVersion returns all publications of the given source package
// version in the given archive, regardless of series, pocket and status.
func (l *ledger) SourcesWithVersion(archiveID int64, name, version string) ([]models.SourcePublication, error) {
	var result []models.SourcePublication
	_, err := l.db.Select(&result,
		"SELECT * FROM source_publications WHERE archive_id = $1 AND package_name = $2 AND version = $3 ORDER BY id",
		archiveID, name, version)
	return result, err
}

////////////////////////////////////////////////////////////////////////////////
// binary publications

var builtBinariesQuery = sqlext.SimplifyWhitespace(`
	SELECT bp.* FROM binary_publications bp
	  JOIN binary_releases br ON br.id = bp.binary_release_id
	  JOIN builds b ON b.id = br.build_id
	  JOIN distro_arch_series das ON das.id = bp.distro_arch_series_id
	 WHERE bp.archive_id = $1 AND bp.pocket = $2 AND das.series_id = $3 AND b.source_release_id = $4
	 ORDER BY bp.id
`)

// BuiltBinaries returns the binary publications that were built from the
// given source publication and that are published in the same suite. There is
// at most one publication per binary release: Architecture-independent
// binaries appear only once even though they are published on several
// architectures.
func (l *ledger) BuiltBinaries(pub models.SourcePublication) ([]models.BinaryPublication, error) {
	var all []models.BinaryPublication
	_, err := l.db.Select(&all, builtBinariesQuery, pub.ArchiveID, pub.Pocket, pub.SeriesID, pub.SourceReleaseID)
	if err != nil {
		return nil, err
	}

	var result []models.BinaryPublication
	isSeen := make(map[int64]bool)
	for _, bp := range all {
		if !isSeen[bp.BinaryReleaseID] {
			isSeen[bp.BinaryReleaseID] = true
			result = append(result, bp)
		}
	}
	return result, nil
}

var findLatestBinaryInSeriesQuery = sqlext.SimplifyWhitespace(`
	SELECT bp.* FROM binary_publications bp
	  JOIN distro_arch_series das ON das.id = bp.distro_arch_series_id
	 WHERE bp.archive_id = $1 AND das.series_id = $2 AND bp.package_name = $3
	   AND ($4::text = '' OR das.architecture_tag = $4)
	 ORDER BY bp.id DESC LIMIT 1
`)

// FindLatestBinaryInSeries returns the newest publication of the given
// binary package in the given series, regardless of status and pocket. If
// archTag is not empty, only publications on that architecture are considered.
func (l *ledger) FindLatestBinaryInSeries(archiveID, seriesID int64, name, archTag string) (*models.BinaryPublication, error) {
	var pub models.BinaryPublication
	err := l.db.SelectOne(&pub, findLatestBinaryInSeriesQuery, archiveID, seriesID, name, archTag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

var countActiveBinariesQuery = sqlext.SimplifyWhitespace(`
	SELECT COUNT(*) FROM binary_publications
	 WHERE archive_id = $1 AND distro_arch_series_id = $2 AND pocket = $3
	   AND package_name = $4 AND version = $5 AND status IN ('PENDING', 'PUBLISHED')
`)

// HasActiveBinary returns whether the given binary package version is active
// on the given architecture.
func (l *ledger) HasActiveBinary(archiveID, dasID int64, pocket models.Pocket, name, version string) (bool, error) {
	count, err := l.db.SelectInt(countActiveBinariesQuery, archiveID, dasID, pocket, name, version)
	return count > 0, err
}

////////////////////////////////////////////////////////////////////////////////
// releases and builds

func (l *ledger) BinaryRelease(id int64) (models.BinaryRelease, error) {
	var br models.BinaryRelease
	err := l.db.SelectOne(&br, "SELECT * FROM binary_releases WHERE id = $1", id)
	return br, err
}

func (l *ledger) Build(id int64) (models.Build, error) {
	var b models.Build
	err := l.db.SelectOne(&b, "SELECT * FROM builds WHERE id = $1", id)
	return b, err
}

var relevantBuildsQuery = sqlext.SimplifyWhitespace(`
	SELECT b.* FROM builds b
	  JOIN distro_arch_series das ON das.id = b.distro_arch_series_id
	 WHERE b.source_release_id = $1 AND das.series_id = $2
	   AND (b.archive_id = $3 OR EXISTS (
	     SELECT 1 FROM binary_publications bp
	       JOIN binary_releases br ON br.id = bp.binary_release_id
	      WHERE br.build_id = b.id AND bp.archive_id = $3
	   ))
	 ORDER BY b.id
`)

var countPublishedBinariesOfBuildQuery = sqlext.SimplifyWhitespace(`
	SELECT COUNT(*) FROM binary_publications bp
	  JOIN binary_releases br ON br.id = bp.binary_release_id
	  JOIN distro_arch_series das ON das.id = bp.distro_arch_series_id
	 WHERE br.build_id = $1 AND bp.archive_id = $2 AND bp.pocket = $3 AND das.series_id = $4
	   AND bp.published_at IS NOT NULL
`)

// BuildSummary computes the BuildSetStatus of the given source publication.
// The builds considered are those of the publication's source release in the
// publication's series that either belong to the publication's archive, or
// have binaries published in it (e.g. because they were copied there).
func (l *ledger) BuildSummary(pub models.SourcePublication) (models.BuildSetStatus, error) {
	var builds []models.Build
	_, err := l.db.Select(&builds, relevantBuildsQuery, pub.SourceReleaseID, pub.SeriesID, pub.ArchiveID)
	if err != nil {
		return "", err
	}
	summary := models.SummarizeBuildStatus(builds)
	if summary != models.BuildSetFullyBuilt || !pub.Status.IsActive() {
		return summary, nil
	}

	archive, err := l.Archive(pub.ArchiveID)
	if err != nil {
		return "", err
	}
	if archive.Purpose == models.CopyArchive {
		return summary, nil
	}

	// all builds succeeded, but are their binaries published yet?
	for _, b := range builds {
		if b.Status != models.FullyBuilt {
			continue
		}
		count, err := l.db.SelectInt(countPublishedBinariesOfBuildQuery, b.ID, pub.ArchiveID, pub.Pocket, pub.SeriesID)
		if err != nil {
			return "", err
		}
		if count == 0 {
			return models.BuildSetFullyBuiltPending, nil
		}
	}
	return summary, nil
}

// Arch-indep binaries are published on all architectures, but only count for
// the architecture that they were built on.
var buildWithPublishedBinariesQuery = sqlext.SimplifyWhitespace(`
	SELECT b.* FROM builds b
	  JOIN distro_arch_series bdas ON bdas.id = b.distro_arch_series_id
	  JOIN binary_releases br ON br.build_id = b.id
	  JOIN binary_publications bp ON bp.binary_release_id = br.id
	  JOIN distro_arch_series pdas ON pdas.id = bp.distro_arch_series_id
	 WHERE b.source_release_id = $1 AND bp.archive_id = $2 AND pdas.series_id = $3
	   AND pdas.architecture_tag = $4 AND bdas.architecture_tag = $4
	 ORDER BY b.id DESC LIMIT 1
`)

var latestBuildForArchTagQuery = sqlext.SimplifyWhitespace(`
	SELECT b.* FROM builds b
	  JOIN distro_arch_series das ON das.id = b.distro_arch_series_id
	 WHERE b.source_release_id = $1 AND b.archive_id = $2 AND das.architecture_tag = $3
	 ORDER BY b.id DESC LIMIT 1
`)

// FindBuildForArch finds an existing build of the given source release that
// can serve the given architecture in the given archive. Builds whose
// binaries are published in the archive and series take precedence.
// Otherwise the latest build for the same architecture tag in the archive is
// returned, regardless of series. Returns nil if there is no such build.
func (l *ledger) FindBuildForArch(sourceReleaseID, archiveID int64, das models.DistroArchSeries) (*models.Build, error) {
	for _, q := range []struct {
		query string
		args  []any
	}{
		{buildWithPublishedBinariesQuery, []any{sourceReleaseID, archiveID, das.SeriesID, das.ArchitectureTag}},
		{latestBuildForArchTagQuery, []any{sourceReleaseID, archiveID, das.ArchitectureTag}},
	} {
		var b models.Build
		err := l.db.SelectOne(&b, q.query, q.args...)
		if err == nil {
			return &b, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, nil
}

////////////////////////////////////////////////////////////////////////////////
// files

func (l *ledger) StoredFile(id int64) (models.StoredFile, error) {
	var f models.StoredFile
	err := l.db.SelectOne(&f, "SELECT * FROM stored_files WHERE id = $1", id)
	return f, err
}

var sourceFilesQuery = sqlext.SimplifyWhitespace(`
	SELECT sf.* FROM stored_files sf
	  JOIN source_release_files srf ON srf.file_id = sf.id
	 WHERE srf.source_release_id = $1
	 ORDER BY sf.filename
`)

// SourceFiles returns the package files of the given source release.
func (l *ledger) SourceFiles(sourceReleaseID int64) ([]models.StoredFile, error) {
	var result []models.StoredFile
	_, err := l.db.Select(&result, sourceFilesQuery, sourceReleaseID)
	return result, err
}

var binaryFilesQuery = sqlext.SimplifyWhitespace(`
	SELECT sf.* FROM stored_files sf
	  JOIN binary_release_files brf ON brf.file_id = sf.id
	 WHERE brf.binary_release_id = $1
	 ORDER BY sf.filename
`)

// BinaryFiles returns the package files of the given binary release.
func (l *ledger) BinaryFiles(binaryReleaseID int64) ([]models.StoredFile, error) {
	var result []models.StoredFile
	_, err := l.db.Select(&result, binaryFilesQuery, binaryReleaseID)
	return result, err
}

var packageDiffFilesQuery = sqlext.SimplifyWhitespace(`
	SELECT sf.* FROM stored_files sf
	  JOIN package_diffs pd ON pd.file_id = sf.id
	 WHERE pd.to_release_id = $1
	 ORDER BY pd.id
`)

// PackageDiffFiles returns the files of all package diffs leading up to the
// given source release.
func (l *ledger) PackageDiffFiles(sourceReleaseID int64) ([]models.StoredFile, error) {
	var result []models.StoredFile
	_, err := l.db.Select(&result, packageDiffFilesQuery, sourceReleaseID)
	return result, err
}

var archiveFileDigestsQuery = sqlext.SimplifyWhitespace(`
	SELECT DISTINCT sf.filename, sf.digest FROM stored_files sf
	  JOIN source_release_files srf ON srf.file_id = sf.id
	  JOIN source_publications sp ON sp.source_release_id = srf.source_release_id
	 WHERE sp.archive_id = $1 AND sf.filename = ANY($2) AND sf.expires_at IS NULL
`)

// ArchiveFileDigests returns the digests of the source files with the given
// filenames that are published in the given archive. Expired files are
// ignored. If the same filename appears with several digests, all of them are
// returned.
func (l *ledger) ArchiveFileDigests(archiveID int64, filenames []string) (map[string][]string, error) {
	var rows []struct {
		Filename string `db:"filename"`
		Digest   string `db:"digest"`
	}
	_, err := l.db.Select(&rows, archiveFileDigestsQuery, archiveID, pq.Array(filenames))
	if err != nil {
		return nil, err
	}
	result := make(map[string][]string, len(rows))
	for _, r := range rows {
		result[r.Filename] = append(result[r.Filename], r.Digest)
	}
	return result, nil
}
