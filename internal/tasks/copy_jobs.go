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
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sapcc/go-bits/jobloop"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
)

// Copy jobs that have been running for this long are assumed to belong to a
// worker that died or ran into an infrastructure error.
const staleCopyJobTimeout = 1 * time.Hour

var claimCopyJobQuery = sqlext.SimplifyWhitespace(`
	UPDATE package_copy_jobs SET status = $1, started_at = $2
	 WHERE id = (
		SELECT id FROM package_copy_jobs WHERE status = $3
		ORDER BY created_at ASC, id ASC -- oldest jobs first
		FOR UPDATE SKIP LOCKED          -- do not wait for jobs claimed by other workers
		LIMIT 1                         -- one at a time
	 )
	RETURNING *
`)

// CopyJobRunner is a job. Each task claims one waiting copy job and executes
// it. Jobs whose copy is refused are marked as FAILED with the reason for the
// refusal. If the copy fails for other reasons (e.g. because the database is
// unavailable), the job stays RUNNING until StaleCopyJobResetJob puts it back
// into the queue.
func (w *Worker) CopyJobRunner(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.ProducerConsumerJob[models.PackageCopyJob]{
		Metadata: jobloop.JobMetadata{
			ReadableName:    "execute package copy jobs",
			ConcurrencySafe: true,
			CounterOpts: prometheus.CounterOpts{
				Name: "archivist_copy_job_executions",
				Help: "Counter for executions of package copy jobs.",
			},
		},
		DiscoverTask: func(ctx context.Context, _ prometheus.Labels) (job models.PackageCopyJob, err error) {
			err = w.db.WithContext(ctx).SelectOne(&job, claimCopyJobQuery,
				models.CopyJobRunning, w.timeNow(), models.CopyJobWaiting)
			return job, err
		},
		ProcessTask: w.executeCopyJob,
	}).Setup(registerer)
}

func (w *Worker) executeCopyJob(ctx context.Context, job models.PackageCopyJob, _ prometheus.Labels) error {
	db := w.db.WithContext(ctx)

	req, err := processor.RequestForJob(db, job)
	var pubs []models.Publication
	if err == nil {
		pubs, err = w.processor().DoCopy(ctx, req)
	}
	refusal, isRefusal := archivist.AsCannotCopy(err)
	if err != nil && !isRefusal {
		return fmt.Errorf("while executing copy job %d for %s %s: %w", job.ID, job.PackageName, job.PackageVersion, err)
	}

	finishedAt := w.timeNow()
	job.FinishedAt = &finishedAt
	if isRefusal {
		job.Status = models.CopyJobFailed
		job.ErrorMessage = refusal.Message
		logg.Info("copy job %d for %s %s failed: %s", job.ID, job.PackageName, job.PackageVersion, refusal.Message)
	} else {
		job.Status = models.CopyJobCompleted
		logg.Info("copy job %d for %s %s created %d publication(s)", job.ID, job.PackageName, job.PackageVersion, len(pubs))
	}
	_, err = db.Update(&job)
	if err != nil {
		return fmt.Errorf("cannot update status of copy job %d: %w", job.ID, err)
	}
	finishedCopyJobsCounter.WithLabelValues(string(job.Status)).Inc()
	return nil
}

var resetStaleCopyJobsQuery = sqlext.SimplifyWhitespace(`
	UPDATE package_copy_jobs SET status = $1, started_at = NULL
	 WHERE status = $2 AND started_at < $3
`)

// StaleCopyJobResetJob is a job. Each run puts copy jobs back into the queue
// that have been RUNNING for too long. Since each copy is executed in a single
// transaction, a copy job that did not finish has not made any changes yet.
func (w *Worker) StaleCopyJobResetJob(registerer prometheus.Registerer) jobloop.Job {
	return (&jobloop.CronJob{
		Metadata: jobloop.JobMetadata{
			ReadableName: "reset stale package copy jobs",
			CounterOpts: prometheus.CounterOpts{
				Name: "archivist_stale_copy_job_resets",
				Help: "Counter for runs of the stale copy job reset.",
			},
		},
		Interval: w.addJitter(10 * time.Minute),
		Task: func(ctx context.Context, _ prometheus.Labels) error {
			result, err := w.db.WithContext(ctx).Exec(resetStaleCopyJobsQuery,
				models.CopyJobWaiting, models.CopyJobRunning, w.timeNow().Add(-staleCopyJobTimeout))
			if err != nil {
				return err
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rowsAffected > 0 {
				logg.Info("reset %d stale copy jobs", rowsAffected)
			}
			return nil
		},
	}).Setup(registerer)
}
