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

	. "github.com/majewsky/gg/option"
	"github.com/sapcc/go-bits/httpapi"
	"github.com/sapcc/go-bits/respondwith"

	"github.com/sapcc/archivist/internal/api"
	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
)

// CheckCopyRequest is the request body for POST .../check-copy.
type CheckCopyRequest struct {
	Sources          []SourceRef   `json:"sources"`
	Series           string        `json:"series"`
	Pocket           models.Pocket `json:"pocket"`
	IncludeBinaries  bool          `json:"include_binaries"`
	Unembargo        bool          `json:"unembargo"`
	Requester        string        `json:"requester"`
	CheckPermissions Option[bool]  `json:"check_permissions"`
}

// Resolves a SourceRef into the publication it refers to. If it does not
// exist, a CannotCopy error is returned.
func (a *API) findSource(ref SourceRef) (models.SourcePublication, error) {
	notFound := archivist.ErrSourceNotFound.With("Package %s %s not found.", ref.Name, ref.Version)
	archive, err := archivist.FindArchive(a.db, ref.Archive.Distribution, ref.Archive.Owner, ref.Archive.Name)
	if err != nil {
		return models.SourcePublication{}, err
	}
	if archive == nil {
		return models.SourcePublication{}, notFound
	}
	pub, err := archivist.FindSourcePublicationByVersion(a.db, archive.ID, ref.Name, ref.Version)
	if err != nil {
		return models.SourcePublication{}, err
	}
	if pub == nil {
		return models.SourcePublication{}, notFound
	}
	return *pub, nil
}

func respondWithCopyError(w http.ResponseWriter, err error) bool {
	if cc, ok := archivist.AsCannotCopy(err); ok {
		cc.WriteAsJSONTo(w)
		return true
	}
	return respondwith.ErrorText(w, err)
}

func (a *API) handleCheckCopy(w http.ResponseWriter, r *http.Request) {
	httpapi.IdentifyEndpoint(r, "/archivist/v1/archives/:distribution/:owner/:archive/check-copy")
	archive := a.findArchiveFromRequest(w, r)
	if archive == nil {
		return
	}

	var req CheckCopyRequest
	if !decodeJSONRequestBody(w, r.Body, &req) {
		return
	}
	if len(req.Sources) == 0 {
		http.Error(w, "no sources given", http.StatusUnprocessableEntity)
		return
	}
	if req.Pocket == "" {
		req.Pocket = models.ReleasePocket
	}
	series, ok := a.parseTarget(w, *archive, req.Series, req.Pocket)
	if !ok {
		return
	}

	creq := processor.CopyRequest{
		Target:           processor.CopyTarget{Archive: *archive, Series: series, Pocket: req.Pocket},
		IncludeBinaries:  req.IncludeBinaries,
		Requester:        req.Requester,
		CheckPermissions: req.CheckPermissions.UnwrapOr(true),
		Unembargo:        req.Unembargo,
	}
	for _, ref := range req.Sources {
		if !validateSourceRef(w, ref) {
			return
		}
		source, err := a.findSource(ref)
		if respondWithCopyError(w, err) {
			return
		}
		creq.Sources = append(creq.Sources, source)
	}

	err := a.processor().CheckCopy(r.Context(), creq)
	if err == nil {
		api.CopyChecksCounter.WithLabelValues(string(archive.Purpose), "ok").Inc()
	} else if cc, ok := archivist.AsCannotCopy(err); ok {
		api.CopyChecksCounter.WithLabelValues(string(archive.Purpose), string(cc.Kind.Class())).Inc()
	}
	if respondWithCopyError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
