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
	"github.com/sapcc/archivist/internal/models"
)

// Override is the placement of a publication within its archive. Empty fields
// are filled from the publication that is being copied.
type Override struct {
	Component string `json:"component,omitempty" yaml:"component,omitempty"`
	Section   string `json:"section,omitempty" yaml:"section,omitempty"`
	Priority  string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Packages that are new to a main archive go into this component, unless
// their original component is listed in unknownComponentMappings.
const defaultUnknownComponent = "universe"

var unknownComponentMappings = map[string]string{
	"contrib":  "multiverse",
	"non-free": "multiverse",
}

func defaultComponentFor(component string) string {
	if mapped, ok := unknownComponentMappings[component]; ok {
		return mapped
	}
	return defaultUnknownComponent
}

func (o Override) withDefaults(component, section, priority string) Override {
	if o.Component == "" {
		o.Component = component
	}
	if o.Section == "" {
		o.Section = section
	}
	if o.Priority == "" {
		o.Priority = priority
	}
	return o
}

// resolveSourceOverride computes the placement of a new source publication
// in the given destination archive and series.
func resolveSourceOverride(l *ledger, archive models.Archive, series models.DistroSeries, source models.SourcePublication, explicit *Override) (Override, error) {
	var result Override
	switch archive.Purpose {
	case models.PersonalArchive:
		if explicit != nil {
			result = *explicit
		}

	case models.PrimaryArchive, models.PartnerArchive, models.CopyArchive:
		existing, err := l.FindLatestSourceInSeries(archive.ID, series.ID, source.PackageName)
		if err != nil {
			return Override{}, err
		}
		switch {
		case existing != nil:
			result = Override{Component: existing.Component, Section: existing.Section}
		case explicit != nil:
			result = *explicit
		default:
			result = Override{Component: defaultComponentFor(source.Component)}
		}
	}

	result = result.withDefaults(source.Component, source.Section, "")
	result.Priority = ""
	result.Component = archive.ClampComponent(result.Component)
	return result, nil
}

// resolveBinaryOverride computes the placement of a new binary publication
// in the given destination archive and series. Arch-specific binaries
// inherit placement only from publications on the same architecture.
func resolveBinaryOverride(l *ledger, archive models.Archive, series models.DistroSeries, das models.DistroArchSeries, release models.BinaryRelease, source models.BinaryPublication, explicit *Override) (Override, error) {
	var result Override
	switch archive.Purpose {
	case models.PersonalArchive:
		if explicit != nil {
			result = *explicit
		}

	case models.PrimaryArchive, models.PartnerArchive, models.CopyArchive:
		archTag := ""
		if release.IsArchSpecific {
			archTag = das.ArchitectureTag
		}
		existing, err := l.FindLatestBinaryInSeries(archive.ID, series.ID, source.PackageName, archTag)
		if err != nil {
			return Override{}, err
		}
		switch {
		case existing != nil:
			result = Override{Component: existing.Component, Section: existing.Section, Priority: existing.Priority}
		case explicit != nil:
			result = *explicit
		default:
			result = Override{Component: defaultComponentFor(source.Component)}
		}
	}

	result = result.withDefaults(source.Component, source.Section, source.Priority)
	result.Component = archive.ClampComponent(result.Component)
	return result, nil
}
