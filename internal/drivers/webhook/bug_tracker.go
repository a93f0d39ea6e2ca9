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

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/archivist/internal/archivist"
)

func init() {
	archivist.BugTrackerDriverRegistry.Add(func() archivist.BugTrackerDriver { return &BugTrackerDriver{} })
}

// BugTrackerDriver (driver ID "http") is a archivist.BugTrackerDriver that
// closes bugs by sending a POST request to "<endpoint>/bugs/<id>/fixes".
// A bug that is already closed is reported with 409 Conflict, which is not
// treated as an error.
type BugTrackerDriver struct {
	// configuration
	Endpoint string `json:"endpoint"`
	// the bearer token is read from $ARCHIVIST_BUGTRACKER_TOKEN, if set

	// state
	endpointURL *url.URL
	token       string
}

// PluginTypeID implements the archivist.BugTrackerDriver interface.
func (d *BugTrackerDriver) PluginTypeID() string { return "http" }

// Init implements the archivist.BugTrackerDriver interface.
func (d *BugTrackerDriver) Init(cfg archivist.Configuration) (err error) {
	if d.Endpoint == "" {
		return errors.New("missing required field: params.endpoint")
	}
	d.endpointURL, err = url.Parse(strings.TrimSuffix(d.Endpoint, "/"))
	if err != nil {
		return fmt.Errorf("malformed params.endpoint: %w", err)
	}
	d.token = osext.GetenvOrDefault("ARCHIVIST_BUGTRACKER_TOKEN", "")
	return nil
}

// CloseBug implements the archivist.BugTrackerDriver interface.
func (d *BugTrackerDriver) CloseBug(ctx context.Context, bugID int64, fix archivist.BugFix) error {
	reqURL := d.endpointURL.JoinPath("bugs", fmt.Sprintf("%d", bugID), "fixes")
	body, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("during POST %s: %w", reqURL.String(), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		logg.Info("closed bug %d as fixed by %s %s in %s/%s", bugID, fix.PackageName, fix.Version, fix.Distribution, fix.Suite)
		return nil
	case http.StatusConflict:
		logg.Debug("bug %d was already closed", bugID)
		return nil
	default:
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("during POST %s: expected 200/201/204, but got %s: %s",
			reqURL.String(), resp.Status, strings.TrimSpace(string(respBody)))
	}
}
