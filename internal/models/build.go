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

package models

import "time"

// BuildStatus is an enum for the state of a Build.
type BuildStatus string

const (
	NeedsBuild     BuildStatus = "NEEDSBUILD"
	Building       BuildStatus = "BUILDING"
	FullyBuilt     BuildStatus = "FULLYBUILT"
	FailedToBuild  BuildStatus = "FAILEDTOBUILD"
	ChrootWait     BuildStatus = "CHROOTWAIT"
	ManualDepWait  BuildStatus = "MANUALDEPWAIT"
	Uploading      BuildStatus = "UPLOADING"
	FailedToUpload BuildStatus = "FAILEDTOUPLOAD"
)

// Build contains a record from the `builds` table.
//
// A build is unique per (source release, distro arch series, archive, pocket).
type Build struct {
	ID                 int64       `db:"id"`
	SourceReleaseID    int64       `db:"source_release_id"`
	DistroArchSeriesID int64       `db:"distro_arch_series_id"`
	ArchiveID          int64       `db:"archive_id"`
	Pocket             Pocket      `db:"pocket"`
	Status             BuildStatus `db:"status"`
	Title              string      `db:"title"`
	// IsSuspended is set for builds that were queued while their archive was
	// disabled. Those are not dispatched until the archive is enabled again.
	IsSuspended   bool       `db:"is_suspended"`
	LogFileID     *int64     `db:"log_file_id"`
	ChangesFileID *int64     `db:"changes_file_id"`
	CreatedAt     time.Time  `db:"created_at"`
	FinishedAt    *time.Time `db:"finished_at"`
}

// BuildSetStatus summarizes the states of all builds of one source publication.
type BuildSetStatus string

const (
	BuildSetNeedsBuild    BuildSetStatus = "NEEDSBUILD"
	BuildSetBuilding      BuildSetStatus = "BUILDING"
	BuildSetFullyBuilt    BuildSetStatus = "FULLYBUILT"
	BuildSetFailedToBuild BuildSetStatus = "FAILEDTOBUILD"
	// BuildSetFullyBuiltPending means that all builds succeeded, but not all
	// resulting binaries have been published yet.
	BuildSetFullyBuiltPending BuildSetStatus = "FULLYBUILT_PENDING"
)

// SummarizeBuildStatus computes the BuildSetStatus for the given builds,
// not taking binary publication state into account.
func SummarizeBuildStatus(builds []Build) BuildSetStatus {
	var hasNeedsBuild, hasFailed bool
	for _, b := range builds {
		switch b.Status {
		case Building, Uploading:
			return BuildSetBuilding
		case NeedsBuild:
			hasNeedsBuild = true
		case FailedToBuild, ManualDepWait, ChrootWait, FailedToUpload:
			hasFailed = true
		}
	}
	switch {
	case hasNeedsBuild:
		return BuildSetNeedsBuild
	case hasFailed:
		return BuildSetFailedToBuild
	default:
		return BuildSetFullyBuilt
	}
}
