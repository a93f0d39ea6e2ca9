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
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	. "github.com/majewsky/gg/option"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/bugrefs"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
)

// API contains state variables used by the Archivist V1 API implementation.
type API struct {
	cfg archivist.Configuration
	db  *archivist.DB
	sd  archivist.StorageDriver
	pd  archivist.PermissionDriver
	nd  archivist.NotificationDriver
	bd  archivist.BugTrackerDriver

	bugs *bugrefs.Extractor

	// non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow func() time.Time
}

// NewAPI constructs a new API instance.
func NewAPI(cfg archivist.Configuration, db *archivist.DB, sd archivist.StorageDriver, pd archivist.PermissionDriver, nd archivist.NotificationDriver, bd archivist.BugTrackerDriver) *API {
	return &API{cfg, db, sd, pd, nd, bd, bugrefs.NewExtractor(sd), time.Now}
}

// OverrideTimeNow replaces time.Now with a test double.
func (a *API) OverrideTimeNow(timeNow func() time.Time) *API {
	a.timeNow = timeNow
	return a
}

// AddTo implements the api.API interface.
func (a *API) AddTo(r *mux.Router) {
	archivePath := "/archivist/v1/archives/{distribution:" + models.NamePattern + "}/{owner:" + models.NamePattern + "}/{archive:" + models.NamePattern + "}"
	r.Methods("POST").Path(archivePath + "/check-copy").HandlerFunc(a.handleCheckCopy)
	r.Methods("POST").Path(archivePath + "/copy-jobs").HandlerFunc(a.handlePostCopyJob)
	r.Methods("GET").Path("/archivist/v1/copy-jobs/{id:[0-9]+}").HandlerFunc(a.handleGetCopyJob)
}

func (a *API) processor() *processor.Processor {
	return processor.New(a.cfg, a.db, a.sd, a.pd, a.nd, a.bd, a.bugs).OverrideTimeNow(a.timeNow)
}

func decodeJSONRequestBody(w http.ResponseWriter, body io.Reader, target any) bool {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(target)
	if err != nil {
		http.Error(w, "request body is not valid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// Finds the archive identified by the request path. If it does not exist, a
// 404 response is written and nil is returned.
func (a *API) findArchiveFromRequest(w http.ResponseWriter, r *http.Request) *models.Archive {
	vars := mux.Vars(r)
	archive, err := archivist.FindArchive(a.db, vars["distribution"], vars["owner"], vars["archive"])
	if respondwith.ErrorText(w, err) {
		return nil
	}
	if archive == nil {
		http.Error(w, "no such archive", http.StatusNotFound)
	}
	return archive
}

////////////////////////////////////////////////////////////////////////////////
// shared request/response types

// ArchiveRef identifies an archive in requests and responses.
type ArchiveRef struct {
	Distribution string `json:"distribution"`
	Owner        string `json:"owner"`
	Name         string `json:"name"`
}

// SourceRef identifies a source publication in requests.
type SourceRef struct {
	Archive ArchiveRef `json:"archive"`
	Name    string     `json:"name"`
	Version string     `json:"version"`
}

func (a *API) renderArchiveRef(archiveID int64) (ArchiveRef, error) {
	archive, err := archivist.GetArchive(a.db, archiveID)
	if err != nil {
		return ArchiveRef{}, err
	}
	dist, err := archivist.GetDistribution(a.db, archive.DistributionID)
	if err != nil {
		return ArchiveRef{}, err
	}
	return ArchiveRef{dist.Name, archive.OwnerName, archive.Name}, nil
}

func validateSourceRef(w http.ResponseWriter, ref SourceRef) bool {
	switch {
	case ref.Name == "" || ref.Version == "":
		http.Error(w, "missing source package name or version", http.StatusUnprocessableEntity)
		return false
	case !models.IsPackageName(ref.Name):
		http.Error(w, "malformed source package name: "+ref.Name, http.StatusUnprocessableEntity)
		return false
	case !models.IsVersion(ref.Version):
		http.Error(w, "malformed source package version: "+ref.Version, http.StatusUnprocessableEntity)
		return false
	default:
		return true
	}
}

// Resolves the target series and pocket of a copy request. If the series name
// is empty, None is returned (the sources are then copied into their own
// series). If the request is invalid, an error response is written and ok is
// false.
func (a *API) parseTarget(w http.ResponseWriter, archive models.Archive, seriesName string, pocket models.Pocket) (result Option[models.DistroSeries], ok bool) {
	if !pocket.IsValid() {
		http.Error(w, "invalid pocket: "+string(pocket), http.StatusUnprocessableEntity)
		return None[models.DistroSeries](), false
	}
	if seriesName == "" {
		return None[models.DistroSeries](), true
	}
	series, err := archivist.FindDistroSeries(a.db, archive.DistributionID, seriesName)
	if respondwith.ErrorText(w, err) {
		return None[models.DistroSeries](), false
	}
	if series == nil {
		dist, err := archivist.GetDistribution(a.db, archive.DistributionID)
		if respondwith.ErrorText(w, err) {
			return None[models.DistroSeries](), false
		}
		archivist.ErrNoSuchDistroSeries.With("No such distro series %s in distribution %s.", seriesName, dist.Name).WriteAsJSONTo(w)
		return None[models.DistroSeries](), false
	}
	return Some(*series), true
}
