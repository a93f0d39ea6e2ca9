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

package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/opencontainers/go-digest"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/archivist/internal/models"
)

// Publisher creates publications, releases and builds for tests. A fresh
// Publisher comes with the "ubuntutest" distribution, its primary archive, and
// the series "breezy-autotest" and "hoary-test" with the architectures i386
// (nominated for arch-indep builds) and hppa.
type Publisher struct {
	t *testing.T
	s Setup

	Distribution   models.Distribution
	Primary        models.Archive
	BreezyAutotest models.DistroSeries
	HoaryTest      models.DistroSeries
}

// NewPublisher creates a Publisher. This inserts the basic distribution
// structure into the database.
func NewPublisher(t *testing.T, s Setup) *Publisher {
	t.Helper()
	p := &Publisher{t: t, s: s}

	p.Distribution = models.Distribution{Name: "ubuntutest", DisplayName: "Ubuntu Test"}
	must.SucceedT(t, s.DB.Insert(&p.Distribution))
	p.Primary = p.CreateArchive(ArchiveOpts{
		Owner:   "ubuntutest",
		Name:    "primary",
		Purpose: models.PrimaryArchive,
	})
	p.BreezyAutotest = p.CreateSeries("breezy-autotest", "Breezy Badger Autotest", models.DevelopmentSeries)
	p.HoaryTest = p.CreateSeries("hoary-test", "Hoary Mock", models.DevelopmentSeries)
	return p
}

// ArchiveOpts contains the parameters for Publisher.CreateArchive.
type ArchiveOpts struct {
	Owner             string // default: "cprov"
	Name              string // default: "ppa"
	Purpose           models.ArchivePurpose
	IsPrivate         bool
	IsDisabled        bool
	BuildDebugSymbols bool
}

// CreateArchive creates an archive in the test distribution. By default, a
// public PPA is created.
func (p *Publisher) CreateArchive(opts ArchiveOpts) models.Archive {
	p.t.Helper()
	if opts.Owner == "" {
		opts.Owner = "cprov"
	}
	if opts.Name == "" {
		opts.Name = "ppa"
	}
	if opts.Purpose == "" {
		opts.Purpose = models.PersonalArchive
	}
	archive := models.Archive{
		DistributionID:    p.Distribution.ID,
		Name:              opts.Name,
		DisplayName:       fmt.Sprintf("%s for %s", opts.Name, opts.Owner),
		OwnerName:         opts.Owner,
		Purpose:           opts.Purpose,
		IsPrivate:         opts.IsPrivate,
		IsEnabled:         !opts.IsDisabled,
		BuildDebugSymbols: opts.BuildDebugSymbols,
	}
	must.SucceedT(p.t, p.s.DB.Insert(&archive))
	return archive
}

// CreateSeries creates a series in the test distribution with the
// architectures i386 and hppa.
func (p *Publisher) CreateSeries(name, displayName string, status models.SeriesStatus) models.DistroSeries {
	p.t.Helper()
	series := models.DistroSeries{
		DistributionID:         p.Distribution.ID,
		Name:                   name,
		DisplayName:            displayName,
		Status:                 status,
		PermittedSourceFormats: pq.StringArray{"1.0", "3.0 (quilt)"},
		NominatedArchIndepTag:  "i386",
	}
	must.SucceedT(p.t, p.s.DB.Insert(&series))
	for _, tag := range []string{"i386", "hppa"} {
		p.AddArchitecture(series, tag)
	}
	return series
}

// AddArchitecture adds an enabled architecture to the given series.
func (p *Publisher) AddArchitecture(series models.DistroSeries, tag string) models.DistroArchSeries {
	p.t.Helper()
	das := models.DistroArchSeries{
		SeriesID:        series.ID,
		ArchitectureTag: tag,
		IsEnabled:       true,
	}
	must.SucceedT(p.t, p.s.DB.Insert(&das))
	return das
}

// Architecture returns the architecture with the given tag in the given series.
func (p *Publisher) Architecture(series models.DistroSeries, tag string) models.DistroArchSeries {
	p.t.Helper()
	var das models.DistroArchSeries
	must.SucceedT(p.t, p.s.DB.SelectOne(&das,
		"SELECT * FROM distro_arch_series WHERE series_id = $1 AND architecture_tag = $2", series.ID, tag))
	return das
}

// SetArchitectureEnabled enables or disables an architecture of the given series.
func (p *Publisher) SetArchitectureEnabled(series models.DistroSeries, tag string, enabled bool) {
	p.t.Helper()
	_, err := p.s.DB.Exec("UPDATE distro_arch_series SET is_enabled = $1 WHERE series_id = $2 AND architecture_tag = $3",
		enabled, series.ID, tag)
	must.SucceedT(p.t, err)
}

// UploadFile puts the given contents into the content store, and creates a
// stored_files record for it.
func (p *Publisher) UploadFile(filename, contents string, isRestricted bool) models.StoredFile {
	p.t.Helper()
	d := digest.FromString(contents)
	must.SucceedT(p.t, p.s.SD.WriteFile(context.Background(), d, []byte(contents)))
	file := models.StoredFile{
		Filename:     filename,
		Digest:       d,
		SizeBytes:    uint64(len(contents)),
		IsRestricted: isRestricted,
		CreatedAt:    p.s.Clock.Now(),
	}
	must.SucceedT(p.t, p.s.DB.Insert(&file))
	return file
}

// GetFile reloads the given stored file from the database.
func (p *Publisher) GetFile(file models.StoredFile) models.StoredFile {
	p.t.Helper()
	var result models.StoredFile
	must.SucceedT(p.t, p.s.DB.SelectOne(&result, "SELECT * FROM stored_files WHERE id = $1", file.ID))
	return result
}

// ExpireFile marks the given stored file as expired.
func (p *Publisher) ExpireFile(file models.StoredFile) {
	p.t.Helper()
	_, err := p.s.DB.Exec("UPDATE stored_files SET expires_at = $1 WHERE id = $2", p.s.Clock.Now(), file.ID)
	must.SucceedT(p.t, err)
}

////////////////////////////////////////////////////////////////////////////////
// sources

// SourceOpts contains the parameters for Publisher.GetPubSource. All fields
// have defaults.
type SourceOpts struct {
	Name             string // default: "foo"
	Version          string // default: "666"
	Archive          *models.Archive
	Series           *models.DistroSeries
	Pocket           models.Pocket
	Status           models.PublishingStatus
	Component        string // default: "main"
	Section          string // default: "base"
	Format           string // default: "1.0"
	ArchitectureHint string // default: "all"
	// FileContents overrides the contents of the .dsc file, e.g. to provoke a
	// file conflict.
	FileContents string
	// If set, a changelog resp. a .changes file with these contents is
	// attached to the source release.
	Changelog string
	Changes   string
	// Extra stored files that are attached to the new source release.
	ExtraFiles []models.StoredFile
	// If set, no new source release is created.
	ReleaseID int64
}

// GetPubSource creates a source publication. Unless opts.ReleaseID is given,
// a new source release with one .dsc file is created for it. Files of
// releases in private archives are restricted.
func (p *Publisher) GetPubSource(opts SourceOpts) models.SourcePublication {
	p.t.Helper()
	if opts.Name == "" {
		opts.Name = "foo"
	}
	if opts.Version == "" {
		opts.Version = "666"
	}
	if opts.Archive == nil {
		opts.Archive = &p.Primary
	}
	if opts.Series == nil {
		opts.Series = &p.BreezyAutotest
	}
	if opts.Pocket == "" {
		opts.Pocket = models.ReleasePocket
	}
	if opts.Status == "" {
		opts.Status = models.PendingPublication
	}
	if opts.Component == "" {
		opts.Component = "main"
	}
	if opts.Section == "" {
		opts.Section = "base"
	}
	if opts.Format == "" {
		opts.Format = "1.0"
	}
	if opts.ArchitectureHint == "" {
		opts.ArchitectureHint = "all"
	}
	if opts.FileContents == "" {
		opts.FileContents = fmt.Sprintf("Source: %s\nVersion: %s\n", opts.Name, opts.Version)
	}
	isRestricted := opts.Archive.IsPrivate

	releaseID := opts.ReleaseID
	if releaseID == 0 {
		release := models.SourceRelease{
			Name:             opts.Name,
			Version:          opts.Version,
			Format:           opts.Format,
			Component:        opts.Component,
			Section:          opts.Section,
			ArchitectureHint: opts.ArchitectureHint,
			Maintainer:       "Foo Bar <foo@example.com>",
			CreatedAt:        p.s.Clock.Now(),
		}
		if opts.Changelog != "" {
			f := p.UploadFile("changelog", opts.Changelog, isRestricted)
			release.ChangelogFileID = &f.ID
		}
		if opts.Changes != "" {
			f := p.UploadFile(fmt.Sprintf("%s_%s_source.changes", opts.Name, opts.Version), opts.Changes, isRestricted)
			release.ChangesFileID = &f.ID
		}
		must.SucceedT(p.t, p.s.DB.Insert(&release))

		dsc := p.UploadFile(fmt.Sprintf("%s_%s.dsc", opts.Name, opts.Version), opts.FileContents, isRestricted)
		for _, f := range append([]models.StoredFile{dsc}, opts.ExtraFiles...) {
			must.SucceedT(p.t, p.s.DB.Insert(&models.SourceReleaseFile{SourceReleaseID: release.ID, FileID: f.ID}))
		}
		releaseID = release.ID
	}

	pub := models.SourcePublication{
		ArchiveID:       opts.Archive.ID,
		SeriesID:        opts.Series.ID,
		Pocket:          opts.Pocket,
		SourceReleaseID: releaseID,
		PackageName:     opts.Name,
		Version:         opts.Version,
		Component:       opts.Component,
		Section:         opts.Section,
		Status:          opts.Status,
		CreatedAt:       p.s.Clock.Now(),
		CreatorName:     "cprov",
	}
	if opts.Status == models.PublishedPublication {
		now := p.s.Clock.Now()
		pub.PublishedAt = &now
	}
	must.SucceedT(p.t, p.s.DB.Insert(&pub))
	return pub
}

// SourceRelease returns the release of the given source publication.
func (p *Publisher) SourceRelease(pub models.SourcePublication) models.SourceRelease {
	p.t.Helper()
	var release models.SourceRelease
	must.SucceedT(p.t, p.s.DB.SelectOne(&release, "SELECT * FROM source_releases WHERE id = $1", pub.SourceReleaseID))
	return release
}

// SourceFiles returns the package files of the given source publication.
func (p *Publisher) SourceFiles(pub models.SourcePublication) []models.StoredFile {
	p.t.Helper()
	var files []models.StoredFile
	_, err := p.s.DB.Select(&files, `SELECT sf.* FROM stored_files sf JOIN source_release_files srf ON srf.file_id = sf.id
		WHERE srf.source_release_id = $1 ORDER BY sf.id`, pub.SourceReleaseID)
	must.SucceedT(p.t, err)
	return files
}

////////////////////////////////////////////////////////////////////////////////
// builds and binaries

// CreateBuild returns the build of the source on the given architecture in
// the source's archive and pocket, creating it if necessary. The build's
// status is set to the given value.
func (p *Publisher) CreateBuild(source models.SourcePublication, das models.DistroArchSeries, status models.BuildStatus) models.Build {
	p.t.Helper()
	var build models.Build
	err := p.s.DB.SelectOne(&build,
		"SELECT * FROM builds WHERE source_release_id = $1 AND distro_arch_series_id = $2 AND archive_id = $3 AND pocket = $4",
		source.SourceReleaseID, das.ID, source.ArchiveID, source.Pocket)
	if err == nil {
		build.Status = status
		_, err := p.s.DB.Update(&build)
		must.SucceedT(p.t, err)
		return build
	}

	build = models.Build{
		SourceReleaseID:    source.SourceReleaseID,
		DistroArchSeriesID: das.ID,
		ArchiveID:          source.ArchiveID,
		Pocket:             source.Pocket,
		Status:             status,
		Title:              fmt.Sprintf("%s build of %s %s", das.ArchitectureTag, source.PackageName, source.Version),
		CreatedAt:          p.s.Clock.Now(),
	}
	must.SucceedT(p.t, p.s.DB.Insert(&build))
	return build
}

// Builds returns all builds of the given source release, in order of creation.
func (p *Publisher) Builds(sourceReleaseID int64) []models.Build {
	p.t.Helper()
	var builds []models.Build
	_, err := p.s.DB.Select(&builds, "SELECT * FROM builds WHERE source_release_id = $1 ORDER BY id", sourceReleaseID)
	must.SucceedT(p.t, err)
	return builds
}

// BinaryOpts contains the parameters for Publisher.GetPubBinaries. All
// fields have defaults.
type BinaryOpts struct {
	Name   string // default: "foo-bin"
	Status models.PublishingStatus
	// If set, one binary is built on each enabled architecture. Otherwise one
	// arch-indep binary is built on the nominated architecture and published
	// on all enabled architectures.
	IsArchSpecific bool
	// If set, a DDEB is built alongside each binary.
	WithDebug bool
	// Extra stored files that are attached to each binary release.
	ExtraFiles []models.StoredFile
}

// GetPubBinaries builds binaries for the given source publication and
// publishes them in the source's archive, series and pocket. The builds are
// marked as FULLYBUILT. Build logs are attached to each build.
func (p *Publisher) GetPubBinaries(source models.SourcePublication, opts BinaryOpts) []models.BinaryPublication {
	p.t.Helper()
	if opts.Name == "" {
		opts.Name = "foo-bin"
	}
	if opts.Status == "" {
		opts.Status = models.PendingPublication
	}

	var archive models.Archive
	must.SucceedT(p.t, p.s.DB.SelectOne(&archive, "SELECT * FROM archives WHERE id = $1", source.ArchiveID))
	var series models.DistroSeries
	must.SucceedT(p.t, p.s.DB.SelectOne(&series, "SELECT * FROM distro_series WHERE id = $1", source.SeriesID))
	var archs []models.DistroArchSeries
	_, err := p.s.DB.Select(&archs, "SELECT * FROM distro_arch_series WHERE series_id = $1 AND is_enabled ORDER BY id", series.ID)
	must.SucceedT(p.t, err)

	buildArchs := archs
	if !opts.IsArchSpecific {
		buildArchs = []models.DistroArchSeries{p.Architecture(series, series.NominatedArchIndepTag)}
	}

	var result []models.BinaryPublication
	for _, buildDAS := range buildArchs {
		build := p.CreateBuild(source, buildDAS, models.FullyBuilt)
		logFile := p.UploadFile(
			fmt.Sprintf("buildlog_%s_%s_%s.txt.gz", buildDAS.ArchitectureTag, source.PackageName, source.Version),
			fmt.Sprintf("build log for %s", build.Title), archive.IsPrivate)
		build.LogFileID = &logFile.ID
		_, err := p.s.DB.Update(&build)
		must.SucceedT(p.t, err)

		fileTag := "all"
		targetArchs := archs
		if opts.IsArchSpecific {
			fileTag = buildDAS.ArchitectureTag
			targetArchs = []models.DistroArchSeries{buildDAS}
		}

		var debugRelease *models.BinaryRelease
		if opts.WithDebug {
			r := p.createBinaryRelease(build, opts.Name+"-dbgsym", source.Version, models.DdebFormat, opts.IsArchSpecific,
				fmt.Sprintf("%s-dbgsym_%s_%s.ddeb", opts.Name, source.Version, fileTag), archive.IsPrivate, opts.ExtraFiles)
			debugRelease = &r
		}
		release := p.createBinaryRelease(build, opts.Name, source.Version, models.DebFormat, opts.IsArchSpecific,
			fmt.Sprintf("%s_%s_%s.deb", opts.Name, source.Version, fileTag), archive.IsPrivate, opts.ExtraFiles)
		if debugRelease != nil {
			release.DebugReleaseID = &debugRelease.ID
			_, err := p.s.DB.Update(&release)
			must.SucceedT(p.t, err)
		}

		for _, das := range targetArchs {
			result = append(result, p.publishBinary(release, archive, das, source.Pocket, opts.Status))
			if debugRelease != nil {
				result = append(result, p.publishBinary(*debugRelease, archive, das, source.Pocket, opts.Status))
			}
		}
	}
	return result
}

func (p *Publisher) createBinaryRelease(build models.Build, name, version string, format models.BinaryFormat, isArchSpecific bool, filename string, isRestricted bool, extraFiles []models.StoredFile) models.BinaryRelease {
	p.t.Helper()
	release := models.BinaryRelease{
		BuildID:        build.ID,
		Name:           name,
		Version:        version,
		Format:         format,
		IsArchSpecific: isArchSpecific,
		Component:      "main",
		Section:        "base",
		Priority:       "standard",
	}
	must.SucceedT(p.t, p.s.DB.Insert(&release))

	file := p.UploadFile(filename, fmt.Sprintf("contents of %s", filename), isRestricted)
	for _, f := range append([]models.StoredFile{file}, extraFiles...) {
		must.SucceedT(p.t, p.s.DB.Insert(&models.BinaryReleaseFile{BinaryReleaseID: release.ID, FileID: f.ID}))
	}
	return release
}

func (p *Publisher) publishBinary(release models.BinaryRelease, archive models.Archive, das models.DistroArchSeries, pocket models.Pocket, status models.PublishingStatus) models.BinaryPublication {
	p.t.Helper()
	pub := models.BinaryPublication{
		ArchiveID:          archive.ID,
		DistroArchSeriesID: das.ID,
		Pocket:             pocket,
		BinaryReleaseID:    release.ID,
		PackageName:        release.Name,
		Version:            release.Version,
		Component:          release.Component,
		Section:            release.Section,
		Priority:           release.Priority,
		Status:             status,
		CreatedAt:          p.s.Clock.Now(),
		CreatorName:        "cprov",
	}
	if status == models.PublishedPublication {
		now := p.s.Clock.Now()
		pub.PublishedAt = &now
	}
	must.SucceedT(p.t, p.s.DB.Insert(&pub))
	return pub
}

// BinaryFiles returns the package files of the given binary publication.
func (p *Publisher) BinaryFiles(pub models.BinaryPublication) []models.StoredFile {
	p.t.Helper()
	var files []models.StoredFile
	_, err := p.s.DB.Select(&files, `SELECT sf.* FROM stored_files sf JOIN binary_release_files brf ON brf.file_id = sf.id
		WHERE brf.binary_release_id = $1 ORDER BY sf.id`, pub.BinaryReleaseID)
	must.SucceedT(p.t, err)
	return files
}

// PublishPending moves all pending publications into the PUBLISHED state, like
// a run of the archive publisher would.
func (p *Publisher) PublishPending() {
	p.t.Helper()
	for _, table := range []string{"source_publications", "binary_publications"} {
		_, err := p.s.DB.Exec(
			fmt.Sprintf("UPDATE %s SET status = $1, published_at = $2 WHERE status = $3", table),
			models.PublishedPublication, p.s.Clock.Now(), models.PendingPublication)
		must.SucceedT(p.t, err)
	}
}

// SetStatus changes the status of a source publication and all binaries
// published alongside it, e.g. to simulate a deletion.
func (p *Publisher) SetStatus(source models.SourcePublication, status models.PublishingStatus) {
	p.t.Helper()
	_, err := p.s.DB.Exec("UPDATE source_publications SET status = $1 WHERE id = $2", status, source.ID)
	must.SucceedT(p.t, err)
	_, err = p.s.DB.Exec(`UPDATE binary_publications bp SET status = $1
		  FROM binary_releases br, builds b, distro_arch_series das
		 WHERE br.id = bp.binary_release_id AND b.id = br.build_id AND das.id = bp.distro_arch_series_id
		   AND b.source_release_id = $2 AND bp.archive_id = $3 AND bp.pocket = $4 AND das.series_id = $5`,
		status, source.SourceReleaseID, source.ArchiveID, source.Pocket, source.SeriesID)
	must.SucceedT(p.t, err)
}
