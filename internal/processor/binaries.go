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
	"slices"

	. "github.com/majewsky/gg/option"

	"github.com/sapcc/archivist/internal/models"
)

// binaryCopy holds the parameters of a copyBinaries() call.
type binaryCopy struct {
	Archive                models.Archive
	Series                 models.DistroSeries
	Pocket                 models.Pocket
	Override               *Override
	PhasedUpdatePercentage Option[uint8]
	CreatorName            string
}

// copyBinaries publishes the binaries built from the given source publication
// in the destination suite. Arch-independent binaries go on every enabled
// architecture of the destination series. Arch-specific binaries only go on
// the architecture they were built on, if the destination series has that
// architecture enabled. Binaries that are already active in the destination
// are skipped.
func (p *Processor) copyBinaries(l *ledger, source models.SourcePublication, bc binaryCopy) ([]models.Publication, error) {
	bpubs, err := l.BuiltBinaries(source)
	if err != nil {
		return nil, err
	}
	archs, err := l.EnabledArchitectures(bc.Series.ID)
	if err != nil {
		return nil, err
	}

	type item struct {
		Publication models.BinaryPublication
		Release     models.BinaryRelease
	}
	items := make([]item, 0, len(bpubs))
	for _, bp := range bpubs {
		br, err := l.BinaryRelease(bp.BinaryReleaseID)
		if err != nil {
			return nil, err
		}
		items = append(items, item{bp, br})
	}
	// DDEBs go last, so that they can take their placement from their DEB
	slices.SortStableFunc(items, func(lhs, rhs item) int {
		return boolToInt(lhs.Release.Format == models.DdebFormat) - boolToInt(rhs.Release.Format == models.DdebFormat)
	})

	var result []models.Publication
	debugOverrides := make(map[int64]Override) // key = ID of DDEB release
	for _, it := range items {
		var targets []models.DistroArchSeries
		if it.Release.IsArchSpecific {
			build, err := l.Build(it.Release.BuildID)
			if err != nil {
				return nil, err
			}
			buildDAS, err := l.Architecture(build.DistroArchSeriesID)
			if err != nil {
				return nil, err
			}
			for _, das := range archs {
				if das.ArchitectureTag == buildDAS.ArchitectureTag {
					targets = append(targets, das)
				}
			}
		} else {
			targets = archs
		}

		for _, das := range targets {
			exists, err := l.HasActiveBinary(bc.Archive.ID, das.ID, bc.Pocket, it.Publication.PackageName, it.Publication.Version)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}

			explicit := bc.Override
			if o, ok := debugOverrides[it.Release.ID]; ok {
				explicit = &o
			}
			o, err := resolveBinaryOverride(l, bc.Archive, bc.Series, das, it.Release, it.Publication, explicit)
			if err != nil {
				return nil, err
			}
			if it.Release.DebugReleaseID != nil {
				debugOverrides[*it.Release.DebugReleaseID] = o
			}

			pub := models.BinaryPublication{
				ArchiveID:              bc.Archive.ID,
				DistroArchSeriesID:     das.ID,
				Pocket:                 bc.Pocket,
				BinaryReleaseID:        it.Release.ID,
				PackageName:            it.Publication.PackageName,
				Version:                it.Publication.Version,
				Component:              o.Component,
				Section:                o.Section,
				Priority:               o.Priority,
				Status:                 models.PendingPublication,
				CreatedAt:              p.timeNow(),
				CreatorName:            bc.CreatorName,
				PhasedUpdatePercentage: bc.PhasedUpdatePercentage,
			}
			err = l.db.Insert(&pub)
			if err != nil {
				return nil, err
			}
			result = append(result, &pub)
		}
	}
	return result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
