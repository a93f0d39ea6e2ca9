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

import (
	"time"

	. "github.com/majewsky/gg/option"
)

// CopyJobStatus is an enum for the state of a PackageCopyJob.
type CopyJobStatus string

const (
	CopyJobWaiting   CopyJobStatus = "WAITING"
	CopyJobRunning   CopyJobStatus = "RUNNING"
	CopyJobCompleted CopyJobStatus = "COMPLETED"
	CopyJobFailed    CopyJobStatus = "FAILED"
)

// PackageCopyJob contains a record from the `package_copy_jobs` table. Each
// job copies one source package (identified by name and version) from the
// source archive into the target archive.
type PackageCopyJob struct {
	ID              int64  `db:"id"`
	SourceArchiveID int64  `db:"source_archive_id"`
	PackageName     string `db:"package_name"`
	PackageVersion  string `db:"package_version"`
	TargetArchiveID int64  `db:"target_archive_id"`
	// If TargetSeriesID is NULL, the package is copied into the series of the source publication.
	TargetSeriesID Option[int64] `db:"target_series_id"`
	TargetPocket   Pocket        `db:"target_pocket"`

	IncludeBinaries  bool   `db:"include_binaries"`
	Unembargo        bool   `db:"unembargo"`
	SendEmail        bool   `db:"send_email"`
	CheckPermissions bool   `db:"check_permissions"`
	RequesterName    string `db:"requester_name"`
	SponsoredName    string `db:"sponsored_name"`

	ComponentOverride      string        `db:"component_override"`
	SectionOverride        string        `db:"section_override"`
	PhasedUpdatePercentage Option[uint8] `db:"phased_update_percentage"`

	Status       CopyJobStatus `db:"status"`
	ErrorMessage string        `db:"error_message"`
	CreatedAt    time.Time     `db:"created_at"`
	StartedAt    *time.Time    `db:"started_at"`
	FinishedAt   *time.Time    `db:"finished_at"`
}
