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
	"slices"
	"strings"

	"github.com/lib/pq"
)

// SeriesStatus is an enum for the lifecycle state of a DistroSeries.
type SeriesStatus string

const (
	ExperimentalSeries SeriesStatus = "EXPERIMENTAL"
	DevelopmentSeries  SeriesStatus = "DEVELOPMENT"
	FrozenSeries       SeriesStatus = "FROZEN"
	CurrentSeries      SeriesStatus = "CURRENT"
	SupportedSeries    SeriesStatus = "SUPPORTED"
	ObsoleteSeries     SeriesStatus = "OBSOLETE"
)

// IsStable returns whether the series has been released. Uploads into the
// RELEASE pocket of a released series are not permitted.
func (s SeriesStatus) IsStable() bool {
	return s == CurrentSeries || s == SupportedSeries
}

// Pocket is an enum for the sub-channels of a DistroSeries.
type Pocket string

const (
	ReleasePocket   Pocket = "RELEASE"
	SecurityPocket  Pocket = "SECURITY"
	UpdatesPocket   Pocket = "UPDATES"
	ProposedPocket  Pocket = "PROPOSED"
	BackportsPocket Pocket = "BACKPORTS"
)

// AllPockets contains all valid values for type Pocket.
var AllPockets = []Pocket{ReleasePocket, SecurityPocket, UpdatesPocket, ProposedPocket, BackportsPocket}

// IsValid returns whether this is one of the known pockets.
func (p Pocket) IsValid() bool {
	return slices.Contains(AllPockets, p)
}

// DistroSeries contains a record from the `distro_series` table.
type DistroSeries struct {
	ID             int64        `db:"id"`
	DistributionID int64        `db:"distribution_id"`
	Name           string       `db:"name"`
	DisplayName    string       `db:"display_name"`
	Status         SeriesStatus `db:"status"`
	// PermittedSourceFormats lists the source formats (e.g. "1.0" or
	// "3.0 (quilt)") that may be published in this series.
	PermittedSourceFormats pq.StringArray `db:"permitted_source_formats"`
	// NominatedArchIndepTag is the architecture tag on which
	// architecture-independent binaries are built.
	NominatedArchIndepTag string `db:"nominated_arch_indep_tag"`
}

// IsSourceFormatPermitted returns whether sources with the given format can
// be published in this series.
func (s DistroSeries) IsSourceFormatPermitted(format string) bool {
	return slices.Contains([]string(s.PermittedSourceFormats), format)
}

// SuiteName returns the name of the suite formed by this series and the
// given pocket, e.g. "breezy" or "breezy-updates".
func (s DistroSeries) SuiteName(pocket Pocket) string {
	if pocket == ReleasePocket {
		return s.Name
	}
	return s.Name + "-" + strings.ToLower(string(pocket))
}

// DistroArchSeries contains a record from the `distro_arch_series` table.
type DistroArchSeries struct {
	ID              int64  `db:"id"`
	SeriesID        int64  `db:"series_id"`
	ArchitectureTag string `db:"architecture_tag"`
	IsEnabled       bool   `db:"is_enabled"`
}
