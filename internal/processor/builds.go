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
	"fmt"
	"strings"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// architecturesForHint selects the enabled architectures that a source with
// the given Architecture field needs to be built on.
func architecturesForHint(hint string, archs []models.DistroArchSeries, nominatedArchIndepTag string) []models.DistroArchSeries {
	isAll := false
	isSelected := make(map[string]bool)
	for _, token := range strings.Fields(hint) {
		switch {
		case token == "any" || token == "linux-any":
			isAll = true
		case token == "all":
			isSelected[nominatedArchIndepTag] = true
		case strings.HasPrefix(token, "any-"):
			isSelected[strings.TrimPrefix(token, "any-")] = true
		case strings.HasPrefix(token, "linux-"):
			isSelected[strings.TrimPrefix(token, "linux-")] = true
		default:
			isSelected[token] = true
		}
	}

	var result []models.DistroArchSeries
	for _, das := range archs {
		if das.IsEnabled && (isAll || isSelected[das.ArchitectureTag]) {
			result = append(result, das)
		}
	}
	return result
}

var countBuildsForSuiteQuery = sqlext.SimplifyWhitespace(`
	SELECT COUNT(*) FROM builds
	 WHERE source_release_id = $1 AND distro_arch_series_id = $2 AND archive_id = $3 AND pocket = $4
`)

// createMissingBuilds creates NEEDSBUILD builds for those architectures of
// the publication's series that cannot be served by an existing build.
func (p *Processor) createMissingBuilds(l *ledger, pub models.SourcePublication) ([]models.Build, error) {
	release, err := archivist.GetSourceRelease(l.db, pub.SourceReleaseID)
	if err != nil {
		return nil, err
	}
	archive, err := l.Archive(pub.ArchiveID)
	if err != nil {
		return nil, err
	}
	series, err := l.Series(pub.SeriesID)
	if err != nil {
		return nil, err
	}
	dist, err := l.Distribution(series.DistributionID)
	if err != nil {
		return nil, err
	}
	archs, err := l.Architectures(series.ID)
	if err != nil {
		return nil, err
	}

	var result []models.Build
	for _, das := range architecturesForHint(release.ArchitectureHint, archs, series.NominatedArchIndepTag) {
		existing, err := l.FindBuildForArch(release.ID, archive.ID, das)
		if err != nil {
			return nil, err
		}
		if existing != nil && (existing.DistroArchSeriesID == das.ID || existing.Status == models.FullyBuilt) {
			continue
		}
		count, err := l.db.SelectInt(countBuildsForSuiteQuery, release.ID, das.ID, archive.ID, pub.Pocket)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}

		build := models.Build{
			SourceReleaseID:    release.ID,
			DistroArchSeriesID: das.ID,
			ArchiveID:          archive.ID,
			Pocket:             pub.Pocket,
			Status:             models.NeedsBuild,
			Title: fmt.Sprintf("%s build of %s %s in %s %s %s",
				das.ArchitectureTag, release.Name, release.Version, dist.Name, series.Name, pub.Pocket),
			IsSuspended: !archive.IsEnabled,
			CreatedAt:   p.timeNow(),
		}
		err = l.db.Insert(&build)
		if err != nil {
			return nil, err
		}
		logg.Debug("created %s", build.Title)
		result = append(result, build)
	}
	return result, nil
}
