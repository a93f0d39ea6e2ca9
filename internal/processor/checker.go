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
	"context"
	"fmt"

	"github.com/go-gorp/gorp/v3"
	"pault.ag/go/debian/version"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// CheckedCopy is a copy that was approved by a CopyChecker, but not executed yet.
type CheckedCopy struct {
	Source models.SourcePublication
	// Series is the destination series.
	Series          models.DistroSeries
	IncludeBinaries bool
}

// Copies within one batch are tracked by source package name and version.
// The destination archive is implied by the CopyChecker.
type inventoryKey struct {
	Name    string
	Version string
}

// CopyChecker decides whether sources may be copied into one destination
// archive. Approved copies are recorded in an inventory, so that later
// candidates in the same batch are checked against them as if they had
// already been copied.
//
// A CopyChecker is not safe for concurrent use.
type CopyChecker struct {
	p               *Processor
	l               *ledger
	archive         models.Archive
	includeBinaries bool
	unembargo       bool

	inventory     map[inventoryKey][]CheckedCopy
	inventoryKeys []inventoryKey // in insertion order
}

// NewCopyChecker creates a CopyChecker for copies into the given archive.
func (p *Processor) NewCopyChecker(archive models.Archive, includeBinaries, unembargo bool) *CopyChecker {
	return p.newCopyChecker(p.db, archive, includeBinaries, unembargo)
}

func (p *Processor) newCopyChecker(db gorp.SqlExecutor, archive models.Archive, includeBinaries, unembargo bool) *CopyChecker {
	return &CopyChecker{
		p:               p,
		l:               newLedger(db),
		archive:         archive,
		includeBinaries: includeBinaries,
		unembargo:       unembargo,
		inventory:       make(map[inventoryKey][]CheckedCopy),
	}
}

// CheckedCopies returns all copies approved so far, grouped by package name
// and version, in the order in which each group was first approved.
func (c *CopyChecker) CheckedCopies() []CheckedCopy {
	var result []CheckedCopy
	for _, key := range c.inventoryKeys {
		result = append(result, c.inventory[key]...)
	}
	return result
}

func (c *CopyChecker) addCopy(cc CheckedCopy) {
	key := inventoryKey{cc.Source.PackageName, cc.Source.Version}
	if _, exists := c.inventory[key]; !exists {
		c.inventoryKeys = append(c.inventoryKeys, key)
	}
	c.inventory[key] = append(c.inventory[key], cc)
}

// sourceContents holds everything about a copy candidate that the checks
// need to look at.
type sourceContents struct {
	Release       models.SourceRelease
	Files         []models.StoredFile
	BuiltBinaries []binaryContents
}

type binaryContents struct {
	Publication models.BinaryPublication
	Release     models.BinaryRelease
	Files       []models.StoredFile
}

func (l *ledger) loadSourceContents(source models.SourcePublication) (sc sourceContents, err error) {
	sc.Release, err = archivist.GetSourceRelease(l.db, source.SourceReleaseID)
	if err != nil {
		return sc, err
	}
	sc.Files, err = l.SourceFiles(sc.Release.ID)
	if err != nil {
		return sc, err
	}
	bpubs, err := l.BuiltBinaries(source)
	if err != nil {
		return sc, err
	}
	for _, bp := range bpubs {
		bc := binaryContents{Publication: bp}
		bc.Release, err = l.BinaryRelease(bp.BinaryReleaseID)
		if err != nil {
			return sc, err
		}
		bc.Files, err = l.BinaryFiles(bp.BinaryReleaseID)
		if err != nil {
			return sc, err
		}
		sc.BuiltBinaries = append(sc.BuiltBinaries, bc)
	}
	return sc, nil
}

// CheckCopy checks whether the given source can be copied into the given
// series and pocket of the destination archive. If so, the copy is added to
// the inventory of this checker. Otherwise a *archivist.CannotCopy error is
// returned. Other errors indicate problems with the database or the drivers.
//
// If checkPermissions is true, the requester must have upload rights for the
// destination.
func (c *CopyChecker) CheckCopy(ctx context.Context, source models.SourcePublication, series models.DistroSeries, pocket models.Pocket, requester string, checkPermissions bool) error {
	if checkPermissions {
		err := c.checkPermissions(ctx, source, series, pocket, requester)
		if err != nil {
			return err
		}
	}

	if series.DistributionID != c.archive.DistributionID {
		sourceSeries, err := c.l.Series(source.SeriesID)
		if err != nil {
			return err
		}
		dist, err := c.l.Distribution(sourceSeries.DistributionID)
		if err != nil {
			return err
		}
		return archivist.ErrNoSuchDistroSeries.With("No such distro series %s in distribution %s.", series.Name, dist.Name)
	}

	sc, err := c.l.loadSourceContents(source)
	if err != nil {
		return err
	}
	if !series.IsSourceFormatPermitted(sc.Release.Format) {
		return archivist.ErrUnsupportedFormat.With("Source format '%s' not supported by target series %s.", sc.Release.Format, series.Name)
	}

	for _, f := range sc.Files {
		if f.IsExpired() {
			return archivist.ErrExpiredSource.With("source contains expired files")
		}
	}
	if c.includeBinaries {
		if len(sc.BuiltBinaries) == 0 {
			return archivist.ErrMissingBinaries.With("source has no binaries to be copied")
		}
		for _, bc := range sc.BuiltBinaries {
			for _, f := range bc.Files {
				if f.IsExpired() {
					return archivist.ErrExpiredBinaries.With("source has expired binaries")
				}
			}
		}
	}

	// this applies to source-only copies as well since the destination would
	// rebuild the DDEBs
	if c.archive.Purpose.IsMain() && !c.archive.BuildDebugSymbols {
		for _, bc := range sc.BuiltBinaries {
			if bc.Release.Format == models.DdebFormat {
				return archivist.ErrDdebToPrimary.With("Cannot copy DDEBs to a primary archive")
			}
		}
	}

	err = c.checkArchiveConflicts(source, series, sc)
	if err != nil {
		return err
	}

	ancestry, err := c.l.FindActiveSource(c.archive.ID, series.ID, pocket, source.PackageName)
	if err != nil {
		return err
	}
	if ancestry != nil {
		cmp, err := compareVersions(source.Version, ancestry.Version)
		if err != nil {
			return err
		}
		if cmp < 0 {
			ancestrySeries, err := c.l.Series(ancestry.SeriesID)
			if err != nil {
				return err
			}
			return archivist.ErrVersionConflict.With("version older than the %s published in %s",
				ancestry.DisplayName(ancestrySeries), ancestrySeries.Name)
		}
	}

	if !c.archive.IsPrivate && !c.unembargo {
		sourceArchive, err := c.l.Archive(source.ArchiveID)
		if err != nil {
			return err
		}
		if sourceArchive.IsPrivate || sc.hasRestrictedFiles(c.includeBinaries) {
			return archivist.ErrEmbargo.With("Cannot copy restricted files to a public archive without explicit unembargo option.")
		}
	}

	c.addCopy(CheckedCopy{source, series, c.includeBinaries})
	return nil
}

func (sc sourceContents) hasRestrictedFiles(includeBinaries bool) bool {
	for _, f := range sc.Files {
		if f.IsRestricted {
			return true
		}
	}
	if includeBinaries {
		for _, bc := range sc.BuiltBinaries {
			for _, f := range bc.Files {
				if f.IsRestricted {
					return true
				}
			}
		}
	}
	return false
}

// conflictCandidate is a publication of the same source package version
// in the destination archive, either persisted or from the inventory.
type conflictCandidate struct {
	Publication models.SourcePublication
	// IsSourceOnly is set for inventory entries of source-only copies. Those
	// will produce new builds once executed.
	IsSourceOnly bool
}

// Check for conflicts with publications of the same name and version in the
// destination archive (in any series, pocket or status) or in the inventory.
// Sources that have built (or will build) binaries cannot be copied without
// their binaries, since the rebuild would conflict with the existing ones.
func (c *CopyChecker) checkArchiveConflicts(source models.SourcePublication, series models.DistroSeries, sc sourceContents) error {
	persisted, err := c.l.SourcesWithVersion(c.archive.ID, source.PackageName, source.Version)
	if err != nil {
		return err
	}
	inInventory := c.inventory[inventoryKey{source.PackageName, source.Version}]
	if len(persisted) == 0 && len(inInventory) == 0 {
		return c.checkConflictingFiles(source, sc)
	}

	candidates := make([]conflictCandidate, 0, len(persisted)+len(inInventory))
	for _, pub := range persisted {
		candidates = append(candidates, conflictCandidate{pub, false})
	}
	for _, cc := range inInventory {
		candidates = append(candidates, conflictCandidate{cc.Source, !cc.IncludeBinaries})
	}

	publishedBinaryIDs := make(map[int64]bool)
	for _, cand := range candidates {
		if cand.Publication.SourceReleaseID != source.SourceReleaseID {
			return archivist.ErrDifferentOrigin.With("a different source with the same version is published in the destination archive")
		}

		// a copy with binaries within the same archive and series will not
		// create any new builds, so the build state does not matter
		if cand.Publication.SeriesID == series.ID && c.archive.ID == source.ArchiveID && c.includeBinaries {
			continue
		}

		summary := models.BuildSetNeedsBuild
		if !cand.IsSourceOnly {
			summary, err = c.l.BuildSummary(cand.Publication)
			if err != nil {
				return err
			}
		}
		candSeries, err := c.l.Series(cand.Publication.SeriesID)
		if err != nil {
			return err
		}
		switch summary {
		case models.BuildSetNeedsBuild, models.BuildSetBuilding:
			return archivist.ErrAlreadyBuilding.With("same version already building in the destination archive for %s", candSeries.DisplayName)
		case models.BuildSetFullyBuiltPending:
			return archivist.ErrUnpublishedBinaries.With(
				"same version has unpublished binaries in the destination archive for %s, please wait for them to be published before copying",
				candSeries.DisplayName)
		}

		binaries, err := c.l.BuiltBinaries(cand.Publication)
		if err != nil {
			return err
		}
		for _, bp := range binaries {
			publishedBinaryIDs[bp.BinaryReleaseID] = true
		}
	}

	if !c.includeBinaries {
		if len(publishedBinaryIDs) > 0 {
			return archivist.ErrAlreadyPublished.With("same version already has published binaries in the destination archive")
		}
	} else {
		// binaries are never rebuilt with identical contents, so the copied
		// set must contain every binary that is already published
		copiedBinaryIDs := make(map[int64]bool, len(sc.BuiltBinaries))
		for _, bc := range sc.BuiltBinaries {
			copiedBinaryIDs[bc.Release.ID] = true
		}
		for id := range publishedBinaryIDs {
			if !copiedBinaryIDs[id] {
				return archivist.ErrAlreadyPublished.With("binaries conflicting with the existing ones")
			}
		}
	}

	return c.checkConflictingFiles(source, sc)
}

func (c *CopyChecker) checkConflictingFiles(source models.SourcePublication, sc sourceContents) error {
	// within the same archive, filenames cannot conflict
	if source.ArchiveID == c.archive.ID {
		return nil
	}

	filenames := make([]string, len(sc.Files))
	for idx, f := range sc.Files {
		filenames[idx] = f.Filename
	}
	existing, err := c.l.ArchiveFileDigests(c.archive.ID, filenames)
	if err != nil {
		return err
	}
	for _, f := range sc.Files {
		for _, d := range existing[f.Filename] {
			if d != f.Digest.String() {
				return archivist.ErrFileConflict.With("%s already exists in destination archive with different contents.", f.Filename)
			}
		}
	}
	return nil
}

func (c *CopyChecker) checkPermissions(ctx context.Context, source models.SourcePublication, series models.DistroSeries, pocket models.Pocket, requester string) error {
	if requester == "" {
		return archivist.ErrPermission.With("Cannot check copy permissions (no requester).")
	}

	// the component of the package in the destination series, if any,
	// determines which component upload rights are needed
	ancestry, err := c.l.FindActiveSourceInAnyPocket(c.archive.ID, series.ID, source.PackageName)
	if err != nil {
		return err
	}
	component := ""
	if ancestry != nil {
		component = ancestry.Component
	}

	if msg := checkUploadToPocket(c.archive, series, pocket); msg != "" {
		return archivist.ErrPermission.With(msg)
	}

	target := archivist.UploadTarget{
		Archive:         c.archive,
		Series:          series,
		Pocket:          pocket,
		PackageName:     source.PackageName,
		Component:       component,
		StrictComponent: component != "",
	}
	ok, err := c.p.pd.HasUploadRights(ctx, requester, target)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	isAdmin, err := c.p.pd.IsQueueAdmin(ctx, requester, target)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}

	switch {
	case c.archive.Purpose == models.PersonalArchive:
		return archivist.ErrPermission.With("Signer has no upload rights to this PPA.")
	case component != "":
		return archivist.ErrPermission.With("Signer is not permitted to upload to the component '%s'.", component)
	default:
		return archivist.ErrPermission.With("The signer of this package has no upload rights to this distribution's primary archive. Did you mean to upload to a PPA?")
	}
}

// checkUploadToPocket returns a non-empty reason if the given pocket does not
// accept uploads.
func checkUploadToPocket(archive models.Archive, series models.DistroSeries, pocket models.Pocket) string {
	switch archive.Purpose {
	case models.PersonalArchive:
		if pocket != models.ReleasePocket {
			return "PPA uploads must be for the RELEASE pocket."
		}
	case models.PartnerArchive:
		if pocket != models.ReleasePocket && pocket != models.ProposedPocket {
			return "Partner uploads must be for the RELEASE or PROPOSED pocket."
		}
	case models.CopyArchive:
		return ""
	default:
		if !canUploadToPocket(series.Status, pocket) {
			return fmt.Sprintf("Not permitted to upload to the %s pocket in a series in the '%s' state.", pocket, series.Status)
		}
	}
	return ""
}

func canUploadToPocket(status models.SeriesStatus, pocket models.Pocket) bool {
	if status == models.FrozenSeries {
		return true
	}
	if status.IsStable() {
		// released series only take updates
		return pocket != models.ReleasePocket
	}
	return pocket != models.SecurityPocket && pocket != models.UpdatesPocket
}

func compareVersions(lhs, rhs string) (int, error) {
	lv, err := version.Parse(lhs)
	if err != nil {
		return 0, fmt.Errorf("cannot parse version %q: %w", lhs, err)
	}
	rv, err := version.Parse(rhs)
	if err != nil {
		return 0, fmt.Errorf("cannot parse version %q: %w", rhs, err)
	}
	return version.Compare(lv, rv), nil
}
