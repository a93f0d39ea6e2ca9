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
	"fmt"
	"time"

	. "github.com/majewsky/gg/option"
)

// PublishingStatus is an enum for the state of a publication.
type PublishingStatus string

const (
	PendingPublication    PublishingStatus = "PENDING"
	PublishedPublication  PublishingStatus = "PUBLISHED"
	SupersededPublication PublishingStatus = "SUPERSEDED"
	DeletedPublication    PublishingStatus = "DELETED"
	ObsoletePublication   PublishingStatus = "OBSOLETE"
)

// IsActive returns whether publications in this state are (or are about to
// be) visible in the archive.
func (s PublishingStatus) IsActive() bool {
	return s == PendingPublication || s == PublishedPublication
}

// SourcePublication contains a record from the `source_publications` table.
//
// PackageName and Version are copied from the source release to allow
// lookups without a join.
type SourcePublication struct {
	ID              int64            `db:"id"`
	ArchiveID       int64            `db:"archive_id"`
	SeriesID        int64            `db:"series_id"`
	Pocket          Pocket           `db:"pocket"`
	SourceReleaseID int64            `db:"source_release_id"`
	PackageName     string           `db:"package_name"`
	Version         string           `db:"version"`
	Component       string           `db:"component"`
	Section         string           `db:"section"`
	Status          PublishingStatus `db:"status"`
	CreatedAt       time.Time        `db:"created_at"`
	PublishedAt     *time.Time       `db:"published_at"`
	CreatorName     string           `db:"creator_name"`
	SponsorName     string           `db:"sponsor_name"`
	// AncestorID refers to the publication that this one was copied from.
	AncestorID *int64 `db:"ancestor_id"`
}

// DisplayName returns a string like "foo 1.0-1 in breezy".
func (p SourcePublication) DisplayName(series DistroSeries) string {
	return fmt.Sprintf("%s %s in %s", p.PackageName, p.Version, series.Name)
}

// BinaryPublication contains a record from the `binary_publications` table.
type BinaryPublication struct {
	ID                 int64            `db:"id"`
	ArchiveID          int64            `db:"archive_id"`
	DistroArchSeriesID int64            `db:"distro_arch_series_id"`
	Pocket             Pocket           `db:"pocket"`
	BinaryReleaseID    int64            `db:"binary_release_id"`
	PackageName        string           `db:"package_name"`
	Version            string           `db:"version"`
	Component          string           `db:"component"`
	Section            string           `db:"section"`
	Priority           string           `db:"priority"`
	Status             PublishingStatus `db:"status"`
	CreatedAt          time.Time        `db:"created_at"`
	PublishedAt        *time.Time       `db:"published_at"`
	CreatorName        string           `db:"creator_name"`
	// PhasedUpdatePercentage limits the share of users that receive this
	// publication. NULL means 100%.
	PhasedUpdatePercentage Option[uint8] `db:"phased_update_percentage"`
}

// Publication is either a *SourcePublication or a *BinaryPublication. This is
// what copy operations return.
type Publication interface {
	isPublication()
}

func (*SourcePublication) isPublication() {}
func (*BinaryPublication) isPublication() {}
