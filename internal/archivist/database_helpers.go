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
	"errors"

	"github.com/go-gorp/gorp/v3"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/archivist/internal/models"
)

// FindDistribution works similar to db.SelectOne(), but returns nil instead
// of sql.ErrNoRows if no distribution exists with this name.
func FindDistribution(db gorp.SqlExecutor, name string) (*models.Distribution, error) {
	var dist models.Distribution
	err := db.SelectOne(&dist, "SELECT * FROM distributions WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &dist, err
}

var archiveGetByNameQuery = sqlext.SimplifyWhitespace(`
	SELECT a.*
	  FROM archives a
	  JOIN distributions d ON d.id = a.distribution_id
	 WHERE d.name = $1 AND a.owner_name = $2 AND a.name = $3
`)

// FindArchive returns the archive with the given owner and name within the
// given distribution, or nil if there is no such archive.
func FindArchive(db gorp.SqlExecutor, distributionName, ownerName, archiveName string) (*models.Archive, error) {
	var archive models.Archive
	err := db.SelectOne(&archive, archiveGetByNameQuery, distributionName, ownerName, archiveName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &archive, err
}

// GetArchive is a convenience wrapper around db.SelectOne(). If the archive in
// question does not exist, sql.ErrNoRows is returned.
func GetArchive(db gorp.SqlExecutor, id int64) (models.Archive, error) {
	var archive models.Archive
	err := db.SelectOne(&archive, "SELECT * FROM archives WHERE id = $1", id)
	return archive, err
}

// GetDistribution is a convenience wrapper around db.SelectOne(). If the
// distribution in question does not exist, sql.ErrNoRows is returned.
func GetDistribution(db gorp.SqlExecutor, id int64) (models.Distribution, error) {
	var dist models.Distribution
	err := db.SelectOne(&dist, "SELECT * FROM distributions WHERE id = $1", id)
	return dist, err
}

// FindDistroSeries returns the series with the given name within the given
// distribution, or nil if there is no such series.
func FindDistroSeries(db gorp.SqlExecutor, distributionID int64, name string) (*models.DistroSeries, error) {
	var series models.DistroSeries
	err := db.SelectOne(&series, "SELECT * FROM distro_series WHERE distribution_id = $1 AND name = $2", distributionID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &series, err
}

// GetDistroSeries is a convenience wrapper around db.SelectOne(). If the
// series in question does not exist, sql.ErrNoRows is returned.
func GetDistroSeries(db gorp.SqlExecutor, id int64) (models.DistroSeries, error) {
	var series models.DistroSeries
	err := db.SelectOne(&series, "SELECT * FROM distro_series WHERE id = $1", id)
	return series, err
}

// GetArchitectures returns all architectures of the given series, including
// disabled ones, ordered by architecture tag.
func GetArchitectures(db gorp.SqlExecutor, seriesID int64) ([]models.DistroArchSeries, error) {
	var result []models.DistroArchSeries
	_, err := db.Select(&result, "SELECT * FROM distro_arch_series WHERE series_id = $1 ORDER BY architecture_tag", seriesID)
	return result, err
}

// GetSourceRelease is a convenience wrapper around db.SelectOne(). If the
// release in question does not exist, sql.ErrNoRows is returned.
func GetSourceRelease(db gorp.SqlExecutor, id int64) (models.SourceRelease, error) {
	var release models.SourceRelease
	err := db.SelectOne(&release, "SELECT * FROM source_releases WHERE id = $1", id)
	return release, err
}

// GetSourcePublication is a convenience wrapper around db.SelectOne(). If the
// publication in question does not exist, sql.ErrNoRows is returned.
func GetSourcePublication(db gorp.SqlExecutor, id int64) (models.SourcePublication, error) {
	var pub models.SourcePublication
	err := db.SelectOne(&pub, "SELECT * FROM source_publications WHERE id = $1", id)
	return pub, err
}

var sourcePublicationByVersionQuery = sqlext.SimplifyWhitespace(`
	SELECT * FROM source_publications
	 WHERE archive_id = $1 AND package_name = $2 AND version = $3
	 -- prefer active publications, then the most recent one
	 ORDER BY status IN ('PENDING', 'PUBLISHED') DESC, id DESC
	 LIMIT 1
`)

// FindSourcePublicationByVersion returns the publication of the given source
// package version in the given archive, or nil if there is none. Active
// publications are preferred over inactive ones.
func FindSourcePublicationByVersion(db gorp.SqlExecutor, archiveID int64, name, version string) (*models.SourcePublication, error) {
	var pub models.SourcePublication
	err := db.SelectOne(&pub, sourcePublicationByVersionQuery, archiveID, name, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &pub, err
}

// FindPackageCopyJob returns the copy job with the given ID, or nil if there
// is no such job.
func FindPackageCopyJob(db gorp.SqlExecutor, id int64) (*models.PackageCopyJob, error) {
	var job models.PackageCopyJob
	err := db.SelectOne(&job, "SELECT * FROM package_copy_jobs WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &job, err
}
