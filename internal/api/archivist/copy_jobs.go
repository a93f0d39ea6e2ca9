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

package archivistv1

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	. "github.com/majewsky/gg/option"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/archivist/internal/api"
	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

// CopyJob is the API representation of a models.PackageCopyJob.
type CopyJob struct {
	ID                     int64                `json:"id"`
	Source                 SourceRef            `json:"source"`
	Target                 CopyJobTarget        `json:"target"`
	IncludeBinaries        bool                 `json:"include_binaries"`
	Unembargo              bool                 `json:"unembargo"`
	SendEmail              bool                 `json:"send_email"`
	CheckPermissions       bool                 `json:"check_permissions"`
	Requester              string               `json:"requester"`
	Sponsored              string               `json:"sponsored,omitempty"`
	ComponentOverride      string               `json:"component_override,omitempty"`
	SectionOverride        string               `json:"section_override,omitempty"`
	PhasedUpdatePercentage *uint8               `json:"phased_update_percentage,omitempty"`
	Status                 models.CopyJobStatus `json:"status"`
	ErrorMessage           string               `json:"error_message,omitempty"`
	CreatedAt              int64                `json:"created_at"`
	StartedAt              *int64               `json:"started_at,omitempty"`
	FinishedAt             *int64               `json:"finished_at,omitempty"`
}

// CopyJobTarget appears in type CopyJob.
type CopyJobTarget struct {
	Archive ArchiveRef    `json:"archive"`
	Series  string        `json:"series,omitempty"`
	Pocket  models.Pocket `json:"pocket"`
}

// CreateCopyJobRequest is the request body for POST .../copy-jobs.
type CreateCopyJobRequest struct {
	CopyJob struct {
		Source                 SourceRef     `json:"source"`
		Series                 string        `json:"series"`
		Pocket                 models.Pocket `json:"pocket"`
		IncludeBinaries        bool          `json:"include_binaries"`
		Unembargo              bool          `json:"unembargo"`
		SendEmail              bool          `json:"send_email"`
		CheckPermissions       Option[bool]  `json:"check_permissions"`
		Requester              string        `json:"requester"`
		Sponsored              string        `json:"sponsored"`
		ComponentOverride      string        `json:"component_override"`
		SectionOverride        string        `json:"section_override"`
		PhasedUpdatePercentage Option[uint8] `json:"phased_update_percentage"`
	} `json:"copy_job"`
}

func (a *API) renderCopyJob(job models.PackageCopyJob) (CopyJob, error) {
	sourceArchive, err := a.renderArchiveRef(job.SourceArchiveID)
	if err != nil {
		return CopyJob{}, err
	}
	targetArchive, err := a.renderArchiveRef(job.TargetArchiveID)
	if err != nil {
		return CopyJob{}, err
	}
	result := CopyJob{
		ID: job.ID,
		Source: SourceRef{
			Archive: sourceArchive,
			Name:    job.PackageName,
			Version: job.PackageVersion,
		},
		Target: CopyJobTarget{
			Archive: targetArchive,
			Pocket:  job.TargetPocket,
		},
		IncludeBinaries:        job.IncludeBinaries,
		Unembargo:              job.Unembargo,
		SendEmail:              job.SendEmail,
		CheckPermissions:       job.CheckPermissions,
		Requester:              job.RequesterName,
		Sponsored:              job.SponsoredName,
		ComponentOverride:      job.ComponentOverride,
		SectionOverride:        job.SectionOverride,
		PhasedUpdatePercentage: job.PhasedUpdatePercentage.AsPointer(),
		Status:                 job.Status,
		ErrorMessage:           job.ErrorMessage,
		CreatedAt:              job.CreatedAt.Unix(),
	}
	if seriesID, ok := job.TargetSeriesID.Unpack(); ok {
		series, err := archivist.GetDistroSeries(a.db, seriesID)
		if err != nil {
			return CopyJob{}, err
		}
		result.Target.Series = series.Name
	}
	if job.StartedAt != nil {
		ts := job.StartedAt.Unix()
		result.StartedAt = &ts
	}
	if job.FinishedAt != nil {
		ts := job.FinishedAt.Unix()
		result.FinishedAt = &ts
	}
	return result, nil
}

func (a *API) handlePostCopyJob(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/archivist/v1/archives/:distribution/:owner/:archive/copy-jobs")
	archive := a.findArchiveFromRequest(w, r)
	if archive == nil {
		return
	}

	var req CreateCopyJobRequest
	if !decodeJSONRequestBody(w, r.Body, &req) {
		return
	}
	in := req.CopyJob
	if !validateSourceRef(w, in.Source) {
		return
	}
	if in.Requester == "" {
		http.Error(w, "missing requester", http.StatusUnprocessableEntity)
		return
	}
	if percentage, ok := in.PhasedUpdatePercentage.Unpack(); ok && percentage > 100 {
		http.Error(w, "phased_update_percentage must be between 0 and 100", http.StatusUnprocessableEntity)
		return
	}
	if in.Pocket == "" {
		in.Pocket = models.ReleasePocket
	}
	series, ok := a.parseTarget(w, *archive, in.Series, in.Pocket)
	if !ok {
		return
	}

	sourceArchive, err := archivist.FindArchive(a.db, in.Source.Archive.Distribution, in.Source.Archive.Owner, in.Source.Archive.Name)
	if respondwith.ErrorText(w, err) {
		return
	}
	if sourceArchive == nil {
		http.Error(w, "no such source archive", http.StatusUnprocessableEntity)
		return
	}

	job := models.PackageCopyJob{
		SourceArchiveID:        sourceArchive.ID,
		PackageName:            in.Source.Name,
		PackageVersion:         in.Source.Version,
		TargetArchiveID:        archive.ID,
		TargetPocket:           in.Pocket,
		IncludeBinaries:        in.IncludeBinaries,
		Unembargo:              in.Unembargo,
		SendEmail:              in.SendEmail,
		CheckPermissions:       in.CheckPermissions.UnwrapOr(true),
		RequesterName:          in.Requester,
		SponsoredName:          in.Sponsored,
		ComponentOverride:      in.ComponentOverride,
		SectionOverride:        in.SectionOverride,
		PhasedUpdatePercentage: in.PhasedUpdatePercentage,
		Status:                 models.CopyJobWaiting,
		CreatedAt:              a.timeNow(),
	}
	if series, ok := series.Unpack(); ok {
		job.TargetSeriesID = Some(series.ID)
	}
	err = a.db.Insert(&job)
	if respondwith.ErrorText(w, err) {
		return
	}
	api.CopyJobsCreatedCounter.WithLabelValues(string(archive.Purpose)).Inc()
	logg.Info("%s requested copy job %d for %s %s", job.RequesterName, job.ID, job.PackageName, job.PackageVersion)

	rendered, err := a.renderCopyJob(job)
	if respondwith.ErrorText(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusCreated, map[string]any{"copy_job": rendered})
}

func (a *API) handleGetCopyJob(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/archivist/v1/copy-jobs/:id")
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "no such copy job", http.StatusNotFound)
		return
	}
	job, err := archivist.FindPackageCopyJob(a.db, id)
	if respondwith.ErrorText(w, err) {
		return
	}
	if job == nil {
		http.Error(w, "no such copy job", http.StatusNotFound)
		return
	}

	rendered, err := a.renderCopyJob(*job)
	if respondwith.ErrorText(w, err) {
		return
	}
	respondwith.JSON(w, http.StatusOK, map[string]any{"copy_job": rendered})
}
