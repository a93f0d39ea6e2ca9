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

package tasks

import (
	"context"
	"database/sql"
	"testing"
	"time"

	. "github.com/majewsky/gg/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/test"
)

func insertCopyJob(t *testing.T, s test.Setup, job models.PackageCopyJob) models.PackageCopyJob {
	t.Helper()
	if job.TargetPocket == "" {
		job.TargetPocket = models.ReleasePocket
	}
	job.Status = models.CopyJobWaiting
	job.CreatedAt = s.Clock.Now()
	must.SucceedT(t, s.DB.Insert(&job))
	s.Clock.StepBy(time.Second)
	return job
}

func getCopyJob(t *testing.T, s test.Setup, id int64) models.PackageCopyJob {
	t.Helper()
	job := must.ReturnT(archivist.FindPackageCopyJob(s.DB, id))(t)
	if job == nil {
		t.Fatalf("copy job %d does not exist", id)
	}
	return *job
}

func countSourcePublications(t *testing.T, s test.Setup, archiveID int64) int64 {
	t.Helper()
	return must.ReturnT(s.DB.SelectInt(`SELECT COUNT(*) FROM source_publications WHERE archive_id = $1`, archiveID))(t)
}

func TestCopyJobRunner(t *testing.T) {
	w, s, pub := setup(t)
	ctx := context.Background()
	job := w.CopyJobRunner(prometheus.NewPedanticRegistry())

	// without any waiting jobs, there is nothing to do
	expectError(t, sql.ErrNoRows.Error(), job.ProcessOne(ctx))

	ppa := pub.CreateArchive(test.ArchiveOpts{})
	source := pub.GetPubSource(test.SourceOpts{})
	first := insertCopyJob(t, s, models.PackageCopyJob{
		SourceArchiveID: pub.Primary.ID,
		PackageName:     source.PackageName,
		PackageVersion:  source.Version,
		TargetArchiveID: ppa.ID,
		TargetSeriesID:  Some(pub.BreezyAutotest.ID),
		RequesterName:   "cprov",
	})
	second := insertCopyJob(t, s, models.PackageCopyJob{
		SourceArchiveID: pub.Primary.ID,
		PackageName:     "bar",
		PackageVersion:  "1.0",
		TargetArchiveID: ppa.ID,
		RequesterName:   "cprov",
	})

	// jobs are executed in order of creation
	s.Clock.StepBy(time.Minute)
	expectSuccess(t, job.ProcessOne(ctx))
	result := getCopyJob(t, s, first.ID)
	assert.DeepEqual(t, "status of first job", result.Status, models.CopyJobCompleted)
	assert.DeepEqual(t, "error message of first job", result.ErrorMessage, "")
	assert.DeepEqual(t, "start time of first job", result.StartedAt.Unix(), s.Clock.Now().Unix())
	assert.DeepEqual(t, "finish time of first job", result.FinishedAt.Unix(), s.Clock.Now().Unix())
	assert.DeepEqual(t, "publications in PPA", countSourcePublications(t, s, ppa.ID), int64(1))
	assert.DeepEqual(t, "status of second job", getCopyJob(t, s, second.ID).Status, models.CopyJobWaiting)

	// a job for a nonexistent package fails
	expectSuccess(t, job.ProcessOne(ctx))
	result = getCopyJob(t, s, second.ID)
	assert.DeepEqual(t, "status of second job", result.Status, models.CopyJobFailed)
	assert.DeepEqual(t, "error message of second job", result.ErrorMessage, "Package bar 1.0 not found.")

	expectError(t, sql.ErrNoRows.Error(), job.ProcessOne(ctx))
}

func TestCopyJobRunnerRecordsRefusal(t *testing.T) {
	w, s, pub := setup(t)
	ctx := context.Background()
	job := w.CopyJobRunner(prometheus.NewPedanticRegistry())

	ppa := pub.CreateArchive(test.ArchiveOpts{})
	source := pub.GetPubSource(test.SourceOpts{})
	j := insertCopyJob(t, s, models.PackageCopyJob{
		SourceArchiveID: pub.Primary.ID,
		PackageName:     source.PackageName,
		PackageVersion:  source.Version,
		TargetArchiveID: ppa.ID,
		IncludeBinaries: true,
		SendEmail:       true,
		RequesterName:   "cprov",
	})

	expectSuccess(t, job.ProcessOne(ctx))
	result := getCopyJob(t, s, j.ID)
	assert.DeepEqual(t, "status", result.Status, models.CopyJobFailed)
	assert.DeepEqual(t, "error message", result.ErrorMessage, "foo 666 in breezy-autotest (source has no binaries to be copied)")
	assert.DeepEqual(t, "publications in PPA", countSourcePublications(t, s, ppa.ID), int64(0))

	notifications := s.ND.PopNotifications()
	assert.DeepEqual(t, "number of notifications", len(notifications), 1)
	assert.DeepEqual(t, "notification action", notifications[0].Action, archivist.RejectedAction)
}

func TestCopyJobRunnerWithOverrides(t *testing.T) {
	w, s, pub := setup(t)
	ctx := context.Background()
	job := w.CopyJobRunner(prometheus.NewPedanticRegistry())

	ppa := pub.CreateArchive(test.ArchiveOpts{})
	source := pub.GetPubSource(test.SourceOpts{Archive: &ppa, Name: "bar", Version: "1.0"})
	j := insertCopyJob(t, s, models.PackageCopyJob{
		SourceArchiveID:   ppa.ID,
		PackageName:       source.PackageName,
		PackageVersion:    source.Version,
		TargetArchiveID:   pub.Primary.ID,
		TargetSeriesID:    Some(pub.HoaryTest.ID),
		CheckPermissions:  false,
		ComponentOverride: "universe",
		SectionOverride:   "net",
		RequesterName:     "cprov",
	})

	expectSuccess(t, job.ProcessOne(ctx))
	assert.DeepEqual(t, "status", getCopyJob(t, s, j.ID).Status, models.CopyJobCompleted)

	var copied models.SourcePublication
	must.SucceedT(t, s.DB.SelectOne(&copied,
		`SELECT * FROM source_publications WHERE archive_id = $1 AND series_id = $2 AND package_name = $3`,
		pub.Primary.ID, pub.HoaryTest.ID, "bar"))
	assert.DeepEqual(t, "component", copied.Component, "universe")
	assert.DeepEqual(t, "section", copied.Section, "net")
}

func TestCopyJobRunnerKeepsJobOnError(t *testing.T) {
	w, s, pub := setup(t)
	ctx := context.Background()
	job := w.CopyJobRunner(prometheus.NewPedanticRegistry())

	source := pub.GetPubSource(test.SourceOpts{})
	j := insertCopyJob(t, s, models.PackageCopyJob{
		SourceArchiveID: pub.Primary.ID,
		PackageName:     source.PackageName,
		PackageVersion:  source.Version,
		TargetArchiveID: pub.Primary.ID,
		TargetPocket:    models.Pocket("BOGUS"),
		RequesterName:   "cprov",
	})

	expectError(t, `while executing copy job 1 for foo 666: invalid pocket: "BOGUS"`, job.ProcessOne(ctx))
	result := getCopyJob(t, s, j.ID)
	assert.DeepEqual(t, "status", result.Status, models.CopyJobRunning)
	if result.FinishedAt != nil {
		t.Error("expected job to not be finished")
	}

	// the job is not picked up again until it is reset
	expectError(t, sql.ErrNoRows.Error(), job.ProcessOne(ctx))
}

func TestStaleCopyJobResetJob(t *testing.T) {
	w, s, pub := setup(t)
	ctx := context.Background()
	job := w.CopyJobRunner(prometheus.NewPedanticRegistry())
	resetJob := w.StaleCopyJobResetJob(prometheus.NewPedanticRegistry())

	source := pub.GetPubSource(test.SourceOpts{})
	j := insertCopyJob(t, s, models.PackageCopyJob{
		SourceArchiveID: pub.Primary.ID,
		PackageName:     source.PackageName,
		PackageVersion:  source.Version,
		TargetArchiveID: pub.Primary.ID,
		TargetPocket:    models.Pocket("BOGUS"),
		RequesterName:   "cprov",
	})
	if job.ProcessOne(ctx) == nil {
		t.Fatal("expected copy job to fail")
	}

	// a job that was only recently started is left alone
	s.Clock.StepBy(30 * time.Minute)
	expectSuccess(t, resetJob.ProcessOne(ctx))
	assert.DeepEqual(t, "status", getCopyJob(t, s, j.ID).Status, models.CopyJobRunning)

	// once it is stale, it goes back into the queue
	s.Clock.StepBy(time.Hour)
	expectSuccess(t, resetJob.ProcessOne(ctx))
	result := getCopyJob(t, s, j.ID)
	assert.DeepEqual(t, "status", result.Status, models.CopyJobWaiting)
	if result.StartedAt != nil {
		t.Error("expected start time to be reset")
	}

	// and can be claimed again
	expectError(t, `while executing copy job 1 for foo 666: invalid pocket: "BOGUS"`, job.ProcessOne(ctx))
}

const changesFixingBugs = `Format: 1.8
Source: bar
Version: 1.0
Distribution: breezy-autotest
Launchpad-Bugs-Fixed: 1024 42
`

func closedBugIDs(s test.Setup) []int64 {
	var result []int64
	for _, bug := range s.BD.PopClosedBugs() {
		result = append(result, bug.ID)
	}
	return result
}

func TestCopyJobRunnerCachesBugReferences(t *testing.T) {
	w, s, pub := setup(t)
	ctx := context.Background()
	job := w.CopyJobRunner(prometheus.NewPedanticRegistry())

	ppa := pub.CreateArchive(test.ArchiveOpts{})
	source := pub.GetPubSource(test.SourceOpts{Archive: &ppa, Name: "bar", Version: "1.0", Changes: changesFixingBugs})
	debug := pub.CreateArchive(test.ArchiveOpts{Owner: "ubuntutest", Name: "debug", Purpose: models.PrimaryArchive})
	for _, target := range []models.Archive{pub.Primary, debug} {
		insertCopyJob(t, s, models.PackageCopyJob{
			SourceArchiveID: ppa.ID,
			PackageName:     source.PackageName,
			PackageVersion:  source.Version,
			TargetArchiveID: target.ID,
			TargetSeriesID:  Some(pub.BreezyAutotest.ID),
			RequesterName:   "cprov",
		})
	}

	expectSuccess(t, job.ProcessOne(ctx))
	assert.DeepEqual(t, "bugs closed by first job", closedBugIDs(s), []int64{42, 1024})

	// once parsed, the .changes file is not read from the content store again
	changes := pub.GetFile(models.StoredFile{ID: *pub.SourceRelease(source).ChangesFileID})
	must.SucceedT(t, s.SD.DeleteFile(ctx, changes.Digest))

	expectSuccess(t, job.ProcessOne(ctx))
	assert.DeepEqual(t, "status of second job", getCopyJob(t, s, 2).Status, models.CopyJobCompleted)
	assert.DeepEqual(t, "bugs closed by second job", closedBugIDs(s), []int64{42, 1024})
}
