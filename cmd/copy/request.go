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

package copycmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-gorp/gorp/v3"
	. "github.com/majewsky/gg/option"
	"gopkg.in/yaml.v3"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
)

// batchRequest is the format of the request file for `archivist copy`.
type batchRequest struct {
	Target struct {
		archiveRef `yaml:",inline"`
		Series     string        `yaml:"series"`
		Pocket     models.Pocket `yaml:"pocket"`
	} `yaml:"target"`
	Sources                []sourceRef            `yaml:"sources"`
	IncludeBinaries        bool                   `yaml:"include_binaries"`
	Unembargo              bool                   `yaml:"unembargo"`
	SendEmail              bool                   `yaml:"send_email"`
	CheckPermissions       Option[bool]           `yaml:"check_permissions"`
	Requester              string                 `yaml:"requester"`
	Sponsored              Option[string]         `yaml:"sponsored"`
	Overrides              []*processor.Override  `yaml:"overrides"`
	PhasedUpdatePercentage Option[uint8]          `yaml:"phased_update_percentage"`
}

type archiveRef struct {
	Distribution string `yaml:"distribution"`
	Owner        string `yaml:"owner"`
	Archive      string `yaml:"archive"`
}

func (r archiveRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Distribution, r.Owner, r.Archive)
}

type sourceRef struct {
	archiveRef `yaml:",inline"`
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
}

func parseBatchRequest(buf []byte) (batchRequest, error) {
	var req batchRequest
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	err := dec.Decode(&req)
	if err != nil {
		return batchRequest{}, fmt.Errorf("cannot parse request: %w", err)
	}

	var errs []error
	if req.Target.Distribution == "" || req.Target.Owner == "" || req.Target.Archive == "" {
		errs = append(errs, errors.New("target.distribution, target.owner and target.archive must be set"))
	}
	if req.Target.Pocket == "" {
		req.Target.Pocket = models.ReleasePocket
	}
	if !req.Target.Pocket.IsValid() {
		errs = append(errs, fmt.Errorf("invalid pocket: %q", req.Target.Pocket))
	}
	if len(req.Sources) == 0 {
		errs = append(errs, errors.New("no sources given"))
	}
	for idx, s := range req.Sources {
		if s.Name == "" || s.Version == "" {
			errs = append(errs, fmt.Errorf("sources[%d] must have a name and a version", idx))
		} else if !models.IsPackageName(s.Name) || !models.IsVersion(s.Version) {
			errs = append(errs, fmt.Errorf("sources[%d] has a malformed name or version: %s %s", idx, s.Name, s.Version))
		}
		if s.Distribution == "" || s.Owner == "" || s.Archive == "" {
			errs = append(errs, fmt.Errorf("sources[%d] must have a distribution, owner and archive", idx))
		}
	}
	if len(req.Overrides) != 0 && len(req.Overrides) != len(req.Sources) {
		errs = append(errs, fmt.Errorf("expected %d overrides, but got %d", len(req.Sources), len(req.Overrides)))
	}
	if percentage, ok := req.PhasedUpdatePercentage.Unpack(); ok && percentage > 100 {
		errs = append(errs, errors.New("phased_update_percentage must be between 0 and 100"))
	}
	return req, errors.Join(errs...)
}

// Resolves all names in the request into database records.
func (req batchRequest) resolve(db gorp.SqlExecutor) (processor.CopyRequest, error) {
	result := processor.CopyRequest{
		IncludeBinaries:        req.IncludeBinaries,
		Requester:              req.Requester,
		CheckPermissions:       req.CheckPermissions.UnwrapOr(true),
		SendEmail:              req.SendEmail,
		Sponsored:              req.Sponsored,
		Overrides:              req.Overrides,
		PhasedUpdatePercentage: req.PhasedUpdatePercentage,
		Unembargo:              req.Unembargo,
	}

	archive, err := findArchive(db, req.Target.archiveRef)
	if err != nil {
		return processor.CopyRequest{}, err
	}
	result.Target = processor.CopyTarget{Archive: archive, Pocket: req.Target.Pocket}
	if req.Target.Series != "" {
		series, err := archivist.FindDistroSeries(db, archive.DistributionID, req.Target.Series)
		if err != nil {
			return processor.CopyRequest{}, err
		}
		if series == nil {
			return processor.CopyRequest{}, fmt.Errorf("no such series in %s: %q", req.Target.Distribution, req.Target.Series)
		}
		result.Target.Series = Some(*series)
	}

	for _, s := range req.Sources {
		sourceArchive, err := findArchive(db, s.archiveRef)
		if err != nil {
			return processor.CopyRequest{}, err
		}
		pub, err := archivist.FindSourcePublicationByVersion(db, sourceArchive.ID, s.Name, s.Version)
		if err != nil {
			return processor.CopyRequest{}, err
		}
		if pub == nil {
			return processor.CopyRequest{}, archivist.ErrSourceNotFound.With("Package %s %s not found.", s.Name, s.Version)
		}
		result.Sources = append(result.Sources, *pub)
	}
	return result, nil
}

func findArchive(db gorp.SqlExecutor, ref archiveRef) (models.Archive, error) {
	archive, err := archivist.FindArchive(db, ref.Distribution, ref.Owner, ref.Archive)
	if err != nil {
		return models.Archive{}, err
	}
	if archive == nil {
		return models.Archive{}, fmt.Errorf("no such archive: %s", ref)
	}
	return *archive, nil
}
