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

package processor_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/majewsky/gg/option"
	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
	"github.com/sapcc/archivist/internal/test"
)

func TestCopyIntoOtherPocketReusesBuilds(t *testing.T) {
	h := newCopyHarness(t)
	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", Pocket: models.SecurityPocket, Status: models.PublishedPublication})
	h.pub.GetPubBinaries(h.Source, test.BinaryOpts{Name: "bar-bin", Status: models.PublishedPublication})
	h.Archive = h.pub.Primary
	h.Series = h.pub.BreezyAutotest
	h.Pocket = models.UpdatesPocket

	sources, binaries := splitPublications(h.doCopy(true))
	assert.DeepEqual(t, "copied sources", len(sources), 1)
	assert.DeepEqual(t, "copied binaries", len(binaries), 2)
	for _, bp := range binaries {
		assert.DeepEqual(t, "binary pocket", bp.Pocket, models.UpdatesPocket)
		assert.DeepEqual(t, "binary status", bp.Status, models.PendingPublication)
	}
	assert.DeepEqual(t, "source ancestor", *sources[0].AncestorID, h.Source.ID)
	assert.DeepEqual(t, "number of builds", len(h.pub.Builds(h.Source.SourceReleaseID)), 1)

	// nothing left to copy on the second attempt
	assert.DeepEqual(t, "publications copied the second time", len(h.doCopy(true)), 0)
	assert.DeepEqual(t, "number of builds", len(h.pub.Builds(h.Source.SourceReleaseID)), 1)
}

func TestCopyArchSpecificBinaries(t *testing.T) {
	h := newCopyHarness(t)
	h.pub.AddArchitecture(h.pub.HoaryTest, "amd64")
	h.pub.SetArchitectureEnabled(h.pub.HoaryTest, "hppa", false)

	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", ArchitectureHint: "any", Status: models.PublishedPublication})
	h.pub.GetPubBinaries(h.Source, test.BinaryOpts{Name: "bar-bin", IsArchSpecific: true, Status: models.PublishedPublication})
	h.Archive = h.pub.Primary
	h.Series = h.pub.HoaryTest

	sources, binaries := splitPublications(h.doCopy(true))
	assert.DeepEqual(t, "copied sources", len(sources), 1)
	assert.DeepEqual(t, "copied binaries", len(binaries), 1)
	assert.DeepEqual(t, "binary architecture", binaries[0].DistroArchSeriesID, h.pub.Architecture(h.pub.HoaryTest, "i386").ID)

	// the i386 binary was copied, the disabled hppa is ignored, but amd64 needs a new build
	amd64 := h.pub.Architecture(h.pub.HoaryTest, "amd64")
	var newBuilds []models.Build
	for _, b := range h.pub.Builds(h.Source.SourceReleaseID) {
		if b.Status == models.NeedsBuild {
			newBuilds = append(newBuilds, b)
		}
	}
	assert.DeepEqual(t, "number of new builds", len(newBuilds), 1)
	assert.DeepEqual(t, "new build architecture", newBuilds[0].DistroArchSeriesID, amd64.ID)
	assert.DeepEqual(t, "new build archive", newBuilds[0].ArchiveID, h.pub.Primary.ID)
	assert.DeepEqual(t, "new build pocket", newBuilds[0].Pocket, models.ReleasePocket)
	assert.DeepEqual(t, "new build is suspended", newBuilds[0].IsSuspended, false)
}

func TestCopySourceCreatesBuilds(t *testing.T) {
	h := newCopyHarness(t)
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{IsDisabled: true})
	h.Series = h.pub.BreezyAutotest
	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", ArchitectureHint: "any"})

	sources, binaries := splitPublications(h.doCopy(false))
	assert.DeepEqual(t, "copied sources", len(sources), 1)
	assert.DeepEqual(t, "copied binaries", len(binaries), 0)

	builds := h.pub.Builds(h.Source.SourceReleaseID)
	assert.DeepEqual(t, "number of builds", len(builds), 2)
	for _, b := range builds {
		assert.DeepEqual(t, "build archive", b.ArchiveID, h.Archive.ID)
		assert.DeepEqual(t, "build status", b.Status, models.NeedsBuild)
		// builds in disabled archives are not dispatched
		assert.DeepEqual(t, "build is suspended", b.IsSuspended, true)
	}
}

func TestCopyIntoSeriesOfSource(t *testing.T) {
	h := newCopyHarness(t)
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{})
	other := h.pub.GetPubSource(test.SourceOpts{Name: "bar", Series: &h.pub.HoaryTest})

	req := h.request(false)
	req.Sources = append(req.Sources, other)
	req.Target.Series = None[models.DistroSeries]()
	pubs := must.ReturnT(h.p.DoCopy(context.Background(), req))(t)

	sources, _ := splitPublications(pubs)
	assert.DeepEqual(t, "copied sources", len(sources), 2)
	assert.DeepEqual(t, "series of foo", sources[0].SeriesID, h.pub.BreezyAutotest.ID)
	assert.DeepEqual(t, "series of bar", sources[1].SeriesID, h.pub.HoaryTest.ID)
}

////////////////////////////////////////////////////////////////////////////////
// overrides

func copyWithOverride(h *copyHarness, includeBinaries bool, o *processor.Override) []models.Publication {
	h.t.Helper()
	req := h.request(includeBinaries)
	req.Overrides = []*processor.Override{o}
	return must.ReturnT(h.p.DoCopy(context.Background(), req))(h.t)
}

func newCopyIntoPrimaryHarness(t *testing.T, component string) *copyHarness {
	h := newCopyHarness(t)
	ppa := h.pub.CreateArchive(test.ArchiveOpts{})
	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", Version: "1.0", Archive: &ppa, Component: component, Section: "net"})
	h.pub.GetPubBinaries(h.Source, test.BinaryOpts{Name: "bar-bin", Status: models.PublishedPublication})
	h.Archive = h.pub.Primary
	h.Series = h.pub.BreezyAutotest
	return h
}

func TestOverridesForNewPackageInPrimary(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "main")
	sources, binaries := splitPublications(h.doCopy(true))
	assert.DeepEqual(t, "source component", sources[0].Component, "universe")
	assert.DeepEqual(t, "source section", sources[0].Section, "net")
	for _, bp := range binaries {
		assert.DeepEqual(t, "binary component", bp.Component, "universe")
		assert.DeepEqual(t, "binary section", bp.Section, "base")
		assert.DeepEqual(t, "binary priority", bp.Priority, "standard")
	}
}

func TestOverridesForNewNonFreePackageInPrimary(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "non-free")
	sources, _ := splitPublications(h.doCopy(false))
	assert.DeepEqual(t, "source component", sources[0].Component, "multiverse")
}

func TestExplicitOverridesInPrimary(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "main")
	sources, binaries := splitPublications(copyWithOverride(h, true,
		&processor.Override{Component: "restricted", Section: "devel", Priority: "optional"}))
	assert.DeepEqual(t, "source component", sources[0].Component, "restricted")
	assert.DeepEqual(t, "source section", sources[0].Section, "devel")
	for _, bp := range binaries {
		assert.DeepEqual(t, "binary component", bp.Component, "restricted")
		assert.DeepEqual(t, "binary section", bp.Section, "devel")
		assert.DeepEqual(t, "binary priority", bp.Priority, "optional")
	}
}

func TestExistingOverridesWinInPrimary(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "main")
	h.pub.GetPubSource(test.SourceOpts{Name: "bar", Version: "0.9", Component: "multiverse", Section: "web",
		Status: models.SupersededPublication})

	sources, _ := splitPublications(copyWithOverride(h, false, &processor.Override{Component: "restricted"}))
	assert.DeepEqual(t, "source component", sources[0].Component, "multiverse")
	assert.DeepEqual(t, "source section", sources[0].Section, "web")
}

func TestOverridesInPPA(t *testing.T) {
	h := newCopyHarness(t)
	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", Component: "universe", Section: "net"})
	h.pub.GetPubBinaries(h.Source, test.BinaryOpts{Name: "bar-bin", Status: models.PublishedPublication})
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{})
	h.Series = h.pub.BreezyAutotest

	// PPAs only have the main component
	sources, binaries := splitPublications(copyWithOverride(h, true, &processor.Override{Component: "restricted", Section: "devel"}))
	assert.DeepEqual(t, "source component", sources[0].Component, "main")
	assert.DeepEqual(t, "source section", sources[0].Section, "devel")
	for _, bp := range binaries {
		assert.DeepEqual(t, "binary component", bp.Component, "main")
		assert.DeepEqual(t, "binary section", bp.Section, "devel")
	}
}

func TestOverridesInCopyArchive(t *testing.T) {
	h := newCopyHarness(t)
	ppa := h.pub.CreateArchive(test.ArchiveOpts{})
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{Owner: "ubuntutest", Name: "rebuild", Purpose: models.CopyArchive})
	h.Series = h.pub.BreezyAutotest

	// new packages get the same defaults as in the primary archive
	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", Version: "1.0", Archive: &ppa, Section: "net"})
	sources, _ := splitPublications(h.doCopy(false))
	assert.DeepEqual(t, "component of bar", sources[0].Component, "universe")
	assert.DeepEqual(t, "section of bar", sources[0].Section, "net")

	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "baz", Version: "1.0", Archive: &ppa, Component: "non-free"})
	sources, _ = splitPublications(h.doCopy(false))
	assert.DeepEqual(t, "component of baz", sources[0].Component, "multiverse")

	// existing overrides are kept as they are
	h.pub.GetPubSource(test.SourceOpts{Name: "qux", Version: "0.9", Archive: &h.Archive, Component: "restricted", Section: "devel",
		Status: models.PublishedPublication})
	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "qux", Version: "1.0", Archive: &ppa})
	sources, _ = splitPublications(h.doCopy(false))
	assert.DeepEqual(t, "component of qux", sources[0].Component, "restricted")
	assert.DeepEqual(t, "section of qux", sources[0].Section, "devel")
}

func TestDdebsTakeOverridesFromTheirDebs(t *testing.T) {
	h := newCopyHarness(t)
	ppa := h.pub.CreateArchive(test.ArchiveOpts{})
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{
		Owner:             "ubuntutest",
		Name:              "debug",
		Purpose:           models.PrimaryArchive,
		BuildDebugSymbols: true,
	})
	h.Series = h.pub.BreezyAutotest

	// only the DEB has a previous publication in the destination
	old := h.pub.GetPubSource(test.SourceOpts{Name: "bar", Version: "0.9", Archive: &h.Archive, Status: models.PublishedPublication})
	for _, bp := range h.pub.GetPubBinaries(old, test.BinaryOpts{Name: "bar-bin", Status: models.PublishedPublication}) {
		bp.Component, bp.Section = "restricted", "devel"
		must.ReturnT(h.s.DB.Update(&bp))(t)
	}

	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", Version: "1.0", Archive: &ppa, Status: models.PublishedPublication})
	h.pub.GetPubBinaries(h.Source, test.BinaryOpts{Name: "bar-bin", WithDebug: true, Status: models.PublishedPublication})

	_, binaries := splitPublications(h.doCopy(true))
	var names []string
	for _, bp := range binaries {
		names = append(names, bp.PackageName)
		assert.DeepEqual(t, "component of "+bp.PackageName, bp.Component, "restricted")
		assert.DeepEqual(t, "section of "+bp.PackageName, bp.Section, "devel")
	}
	assert.DeepEqual(t, "copied binaries", names, []string{"bar-bin", "bar-bin", "bar-bin-dbgsym", "bar-bin-dbgsym"})
}

func TestPhasedUpdatePercentage(t *testing.T) {
	h := newCopyHarness(t)
	h.Source = h.pub.GetPubSource(test.SourceOpts{Name: "bar", Pocket: models.ProposedPocket, Status: models.PublishedPublication})
	h.pub.GetPubBinaries(h.Source, test.BinaryOpts{Name: "bar-bin", Status: models.PublishedPublication})
	h.Archive = h.pub.Primary
	h.Series = h.pub.BreezyAutotest
	h.Pocket = models.UpdatesPocket

	req := h.request(true)
	req.PhasedUpdatePercentage = Some[uint8](10)
	_, binaries := splitPublications(must.ReturnT(h.p.DoCopy(context.Background(), req))(t))
	assert.DeepEqual(t, "copied binaries", len(binaries), 2)
	for _, bp := range binaries {
		assert.DeepEqual(t, "phased update percentage", bp.PhasedUpdatePercentage, Some[uint8](10))
	}
}

func TestCopyDdebsIntoPPA(t *testing.T) {
	h := newCopyHarness(t)
	other := h.pub.CreateArchive(test.ArchiveOpts{Owner: "mark"})
	h.Source = h.pub.GetPubSource(test.SourceOpts{Archive: &other})
	h.pub.GetPubBinaries(h.Source, test.BinaryOpts{WithDebug: true, Status: models.PublishedPublication})
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{})
	h.Series = h.pub.BreezyAutotest

	pubs := h.doCopy(true)
	assert.DeepEqual(t, "copied publications", len(pubs), 5)
	_, binaries := splitPublications(pubs)
	var names []string
	for _, bp := range binaries {
		names = append(names, bp.PackageName)
	}
	assert.DeepEqual(t, "copied binaries", names, []string{"foo-bin", "foo-bin", "foo-bin-dbgsym", "foo-bin-dbgsym"})
}

////////////////////////////////////////////////////////////////////////////////
// batches

func TestCopyRejectsWholeBatch(t *testing.T) {
	h := newCopyHarness(t)
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{})
	h.Series = h.pub.BreezyAutotest

	// the second copy of the same source conflicts with the first one
	req := h.request(false)
	req.Sources = append(req.Sources, h.Source)
	_, err := h.p.DoCopy(context.Background(), req)
	test.ExpectCopyError(t, err, archivist.ErrAlreadyBuilding,
		"foo 666 in breezy-autotest (same version already building in the destination archive for Breezy Badger Autotest)")

	// several refusals are reported together
	bar := h.pub.GetPubSource(test.SourceOpts{Name: "bar"})
	req = h.request(true)
	req.Sources = append(req.Sources, bar)
	_, err = h.p.DoCopy(context.Background(), req)
	test.ExpectCopyError(t, err, archivist.ErrBatchRejected,
		"foo 666 in breezy-autotest (source has no binaries to be copied)\nbar 666 in breezy-autotest (source has no binaries to be copied)")

	err = h.p.CheckCopy(context.Background(), req)
	test.ExpectCopyError(t, err, archivist.ErrBatchRejected,
		"foo 666 in breezy-autotest (source has no binaries to be copied)\nbar 666 in breezy-autotest (source has no binaries to be copied)")

	assert.DeepEqual(t, "publications in destination", countRows(t, h.s,
		"SELECT COUNT(*) FROM source_publications WHERE archive_id = $1", h.Archive.ID), int64(0))
	assert.DeepEqual(t, "builds in destination", countRows(t, h.s,
		"SELECT COUNT(*) FROM builds WHERE archive_id = $1", h.Archive.ID), int64(0))
}

func TestCopyRejectsInvalidRequests(t *testing.T) {
	h := newCopyHarness(t)
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{})
	h.Series = h.pub.BreezyAutotest

	req := h.request(false)
	req.Overrides = []*processor.Override{nil, nil}
	_, err := h.p.DoCopy(context.Background(), req)
	assert.DeepEqual(t, "error", err.Error(), "expected 1 overrides, but got 2")

	req = h.request(false)
	req.Target.Pocket = "BOGUS"
	err = h.p.CheckCopy(context.Background(), req)
	assert.DeepEqual(t, "error", err.Error(), `invalid pocket: "BOGUS"`)
}

////////////////////////////////////////////////////////////////////////////////
// notifications

func TestSponsoredCopy(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "main")
	req := h.request(false)
	req.Sponsored = Some("mark")
	req.SendEmail = true
	sources, _ := splitPublications(must.ReturnT(h.p.DoCopy(context.Background(), req))(t))

	assert.DeepEqual(t, "creator", sources[0].CreatorName, "mark")
	assert.DeepEqual(t, "sponsor", sources[0].SponsorName, "cprov")

	notifications := h.s.ND.PopNotifications()
	assert.DeepEqual(t, "number of notifications", len(notifications), 1)
	n := notifications[0]
	assert.DeepEqual(t, "action", n.Action, archivist.AcceptedAction)
	assert.DeepEqual(t, "subject", n.Subject, "[ubuntutest/breezy-autotest] bar 1.0 (Accepted)")
	assert.DeepEqual(t, "requester", n.Requester, "cprov")
	assert.DeepEqual(t, "announce from", n.AnnounceFrom, "mark")
	assert.DeepEqual(t, "summary", n.Summary, "1 publication(s) created")
	assert.DeepEqual(t, "previous version", n.PreviousVersion, "")
}

func TestCopyWithoutNotification(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "main")
	h.doCopy(false)
	assert.DeepEqual(t, "notifications", len(h.s.ND.PopNotifications()), 0)
}

func TestCopyNotifiesPreviousVersion(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "main")
	h.pub.GetPubSource(test.SourceOpts{Name: "bar", Version: "0.9", Status: models.PublishedPublication})
	req := h.request(false)
	req.SendEmail = true
	must.ReturnT(h.p.DoCopy(context.Background(), req))(t)

	notifications := h.s.ND.PopNotifications()
	assert.DeepEqual(t, "number of notifications", len(notifications), 1)
	assert.DeepEqual(t, "previous version", notifications[0].PreviousVersion, "0.9")
}

func TestRejectedCopyNotifies(t *testing.T) {
	h := newCopyHarness(t)
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{})
	h.Series = h.pub.BreezyAutotest

	req := h.request(true)
	req.SendEmail = true
	_, err := h.p.DoCopy(context.Background(), req)
	test.ExpectCopyError(t, err, archivist.ErrMissingBinaries, "foo 666 in breezy-autotest (source has no binaries to be copied)")

	notifications := h.s.ND.PopNotifications()
	assert.DeepEqual(t, "number of notifications", len(notifications), 1)
	n := notifications[0]
	assert.DeepEqual(t, "action", n.Action, archivist.RejectedAction)
	assert.DeepEqual(t, "subject", n.Subject, "[PPA cprov/ppa] [ubuntutest/breezy-autotest] foo 666 (Rejected)")
	assert.DeepEqual(t, "summary", n.Summary, "foo 666 in breezy-autotest (source has no binaries to be copied)")
}

func TestCopySucceedsWhenNotificationFails(t *testing.T) {
	h := newCopyIntoPrimaryHarness(t, "main")
	h.s.ND.FailWith = errors.New("mail server is down")
	req := h.request(false)
	req.SendEmail = true
	sources, _ := splitPublications(must.ReturnT(h.p.DoCopy(context.Background(), req))(t))
	assert.DeepEqual(t, "copied sources", len(sources), 1)
	assert.DeepEqual(t, "notifications", len(h.s.ND.PopNotifications()), 0)
}

////////////////////////////////////////////////////////////////////////////////
// bug closing

const testChanges = `Format: 1.8
Source: bar
Version: 1.0
Distribution: breezy-autotest
Launchpad-Bugs-Fixed: 1024 42
`

const testChangelog = `bar (1.1) breezy-autotest; urgency=low

  * Fix the frobnicator. (LP: #7)

 -- Foo Bar <foo@example.com>  Mon, 01 Jan 2024 12:00:00 +0000

bar (1.0) breezy-autotest; urgency=low

  * Fix the reticulator. (LP: #6)

 -- Foo Bar <foo@example.com>  Fri, 01 Dec 2023 12:00:00 +0000

bar (0.9) breezy-autotest; urgency=low

  * Initial release. (LP: #5)

 -- Foo Bar <foo@example.com>  Wed, 01 Nov 2023 12:00:00 +0000
`

func newBugClosingHarness(t *testing.T, sourceOpts test.SourceOpts) *copyHarness {
	h := newCopyHarness(t)
	ppa := h.pub.CreateArchive(test.ArchiveOpts{})
	sourceOpts.Name = "bar"
	sourceOpts.Archive = &ppa
	h.Source = h.pub.GetPubSource(sourceOpts)
	h.Archive = h.pub.Primary
	h.Series = h.pub.BreezyAutotest
	return h
}

func TestCopyClosesBugsFromChangesFile(t *testing.T) {
	h := newBugClosingHarness(t, test.SourceOpts{Version: "1.0", Changes: testChanges})
	h.doCopy(false)

	fix := archivist.BugFix{
		Distribution: "ubuntutest",
		Suite:        "breezy-autotest",
		PackageName:  "bar",
		Version:      "1.0",
	}
	assert.DeepEqual(t, "closed bugs", h.s.BD.PopClosedBugs(), []test.ClosedBug{{ID: 42, Fix: fix}, {ID: 1024, Fix: fix}})
}

func TestCopyClosesBugsFromChangelog(t *testing.T) {
	h := newBugClosingHarness(t, test.SourceOpts{Version: "1.1", Changelog: testChangelog, Changes: testChanges})
	h.pub.GetPubSource(test.SourceOpts{Name: "bar", Version: "0.9", Status: models.PublishedPublication})
	h.doCopy(false)

	fix := archivist.BugFix{
		Distribution: "ubuntutest",
		Suite:        "breezy-autotest",
		PackageName:  "bar",
		Version:      "1.1",
	}
	assert.DeepEqual(t, "closed bugs", h.s.BD.PopClosedBugs(), []test.ClosedBug{{ID: 6, Fix: fix}, {ID: 7, Fix: fix}})
}

func TestCopyDoesNotCloseBugsOutsideOfMainArchives(t *testing.T) {
	h := newBugClosingHarness(t, test.SourceOpts{Version: "1.0", Changes: testChanges})
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{Owner: "mark"})
	h.doCopy(false)
	assert.DeepEqual(t, "closed bugs", len(h.s.BD.PopClosedBugs()), 0)
}

func TestCopyDoesNotCloseBugsInProposed(t *testing.T) {
	h := newBugClosingHarness(t, test.SourceOpts{Version: "1.0", Changes: testChanges})
	h.Pocket = models.ProposedPocket
	h.doCopy(false)
	assert.DeepEqual(t, "closed bugs", len(h.s.BD.PopClosedBugs()), 0)
}

func TestCopySucceedsWhenBugClosingFails(t *testing.T) {
	h := newBugClosingHarness(t, test.SourceOpts{Version: "1.0", Changes: testChanges})
	h.s.BD.FailWith = errors.New("bug tracker is down")
	sources, _ := splitPublications(h.doCopy(false))
	assert.DeepEqual(t, "copied sources", len(sources), 1)
	assert.DeepEqual(t, "closed bugs", len(h.s.BD.PopClosedBugs()), 0)
}

////////////////////////////////////////////////////////////////////////////////
// embargoes

func TestCopyWithUnembargo(t *testing.T) {
	h := newCopyHarness(t)
	private := h.pub.CreateArchive(test.ArchiveOpts{Name: "private", IsPrivate: true})
	h.Source = h.pub.GetPubSource(test.SourceOpts{Archive: &private, Status: models.PublishedPublication})
	original := h.pub.GetPubBinaries(h.Source, test.BinaryOpts{Status: models.PublishedPublication})
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{})
	h.Series = h.pub.BreezyAutotest

	req := h.request(true)
	req.Unembargo = true
	pubs := must.ReturnT(h.p.DoCopy(context.Background(), req))(t)
	assert.DeepEqual(t, "copied publications", len(pubs), 3)

	// the files are shared with the original publications, so they are
	// public there as well
	var files []models.StoredFile
	files = append(files, h.pub.SourceFiles(h.Source)...)
	files = append(files, h.pub.BinaryFiles(original[0])...)
	for _, f := range files {
		assert.DeepEqual(t, "restricted flag of "+f.Filename, h.pub.GetFile(f).IsRestricted, false)
	}
	assert.DeepEqual(t, "restricted files", countRows(t, h.s,
		"SELECT COUNT(*) FROM stored_files WHERE is_restricted"), int64(0))
}

func TestCopyIntoPrivateArchiveKeepsRestrictedFiles(t *testing.T) {
	h := newCopyHarness(t)
	private := h.pub.CreateArchive(test.ArchiveOpts{Name: "private", IsPrivate: true})
	h.Source = h.pub.GetPubSource(test.SourceOpts{Archive: &private})
	h.Archive = h.pub.CreateArchive(test.ArchiveOpts{Owner: "mark", IsPrivate: true})
	h.Series = h.pub.BreezyAutotest

	h.doCopy(false)
	for _, f := range h.pub.SourceFiles(h.Source) {
		assert.DeepEqual(t, "restricted flag of "+f.Filename, h.pub.GetFile(f).IsRestricted, true)
	}
}
