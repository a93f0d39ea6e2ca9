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
	"slices"
)

// ArchivePurpose is an enum that distinguishes the different kinds of archives.
type ArchivePurpose string

const (
	// PrimaryArchive is the main archive of a distribution.
	PrimaryArchive ArchivePurpose = "PRIMARY"
	// PartnerArchive holds commercial partner packages of a distribution.
	PartnerArchive ArchivePurpose = "PARTNER"
	// PersonalArchive is a personal package archive (PPA) owned by a person or team.
	PersonalArchive ArchivePurpose = "PPA"
	// CopyArchive is used for rebuilds and other test copies of a distribution.
	CopyArchive ArchivePurpose = "COPY"
)

// IsValid returns whether this is one of the known archive purposes.
func (p ArchivePurpose) IsValid() bool {
	switch p {
	case PrimaryArchive, PartnerArchive, PersonalArchive, CopyArchive:
		return true
	default:
		return false
	}
}

// IsMain returns whether archives with this purpose are part of the
// distribution proper (i.e. the primary archive or the partner archive).
func (p ArchivePurpose) IsMain() bool {
	return p == PrimaryArchive || p == PartnerArchive
}

// Distribution contains a record from the `distributions` table.
type Distribution struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	DisplayName string `db:"display_name"`
}

// Archive contains a record from the `archives` table.
//
// Archives never change IsPrivate once they hold publications. This is not
// enforced here, but the file privacy handling relies on it.
type Archive struct {
	ID             int64          `db:"id"`
	DistributionID int64          `db:"distribution_id"`
	Name           string         `db:"name"`
	DisplayName    string         `db:"display_name"`
	OwnerName      string         `db:"owner_name"`
	Purpose        ArchivePurpose `db:"purpose"`
	IsPrivate      bool           `db:"is_private"`
	IsEnabled      bool           `db:"is_enabled"`

	RequireVirtualized bool `db:"require_virtualized"`
	// BuildDebugSymbols indicates whether this archive wants DDEBs. Main
	// archives without this flag must never receive DDEB publications.
	BuildDebugSymbols bool `db:"build_debug_symbols"`
}

var (
	primaryComponents = []string{"main", "restricted", "universe", "multiverse"}
	partnerComponents = []string{"partner"}
	ppaComponents     = []string{"main"}
)

// PermittedComponents returns the components that publications in this
// archive may be filed under.
func (a Archive) PermittedComponents() []string {
	switch a.Purpose {
	case PartnerArchive:
		return partnerComponents
	case PersonalArchive:
		return ppaComponents
	default:
		return primaryComponents
	}
}

// DefaultComponent returns the component that is used in place of a
// component that this archive does not permit, or "" if there is no such
// default.
func (a Archive) DefaultComponent() string {
	switch a.Purpose {
	case PartnerArchive:
		return "partner"
	case PersonalArchive:
		return "main"
	default:
		return ""
	}
}

// ClampComponent replaces the given component with the default component of
// this archive, if the archive does not permit the given component and has a
// default. Otherwise the component is returned unchanged.
func (a Archive) ClampComponent(component string) string {
	if slices.Contains(a.PermittedComponents(), component) {
		return component
	}
	if dflt := a.DefaultComponent(); dflt != "" {
		return dflt
	}
	return component
}

// Reference returns a short string identifying this archive in logs and
// notification subjects, e.g. "PPA alice/testing" or "primary".
func (a Archive) Reference() string {
	if a.Purpose == PersonalArchive {
		return fmt.Sprintf("PPA %s/%s", a.OwnerName, a.Name)
	}
	return a.Name
}
