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
	"github.com/go-gorp/gorp/v3"
	. "github.com/majewsky/gg/option"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// RequestForJob builds the CopyRequest that executes the given copy job. If
// the job's source package does not exist in the source archive, a
// *archivist.CannotCopy error of kind ErrSourceNotFound is returned.
func RequestForJob(db gorp.SqlExecutor, job models.PackageCopyJob) (CopyRequest, error) {
	source, err := archivist.FindSourcePublicationByVersion(db, job.SourceArchiveID, job.PackageName, job.PackageVersion)
	if err != nil {
		return CopyRequest{}, err
	}
	if source == nil {
		return CopyRequest{}, archivist.ErrSourceNotFound.With("Package %s %s not found.", job.PackageName, job.PackageVersion)
	}

	target := CopyTarget{Pocket: job.TargetPocket}
	target.Archive, err = archivist.GetArchive(db, job.TargetArchiveID)
	if err != nil {
		return CopyRequest{}, err
	}
	if seriesID, ok := job.TargetSeriesID.Unpack(); ok {
		series, err := archivist.GetDistroSeries(db, seriesID)
		if err != nil {
			return CopyRequest{}, err
		}
		target.Series = Some(series)
	}

	req := CopyRequest{
		Sources:                []models.SourcePublication{*source},
		Target:                 target,
		IncludeBinaries:        job.IncludeBinaries,
		Requester:              job.RequesterName,
		CheckPermissions:       job.CheckPermissions,
		SendEmail:              job.SendEmail,
		PhasedUpdatePercentage: job.PhasedUpdatePercentage,
		Unembargo:              job.Unembargo,
	}
	if job.SponsoredName != "" {
		req.Sponsored = Some(job.SponsoredName)
	}
	if job.ComponentOverride != "" || job.SectionOverride != "" {
		req.Overrides = []*Override{{Component: job.ComponentOverride, Section: job.SectionOverride}}
	}
	return req, nil
}
