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
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/archivist/internal/archivist"
)

func TestCloseBug(t *testing.T) {
	t.Setenv("ARCHIVIST_BUGTRACKER_TOKEN", "secret")
	bd := must.ReturnT(archivist.NewBugTrackerDriver(
		`{"type":"http","params":{"endpoint":"https://bugs.example.org/api/"}}`,
		archivist.Configuration{},
	))(t)

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var received []archivist.BugFix
	httpmock.RegisterResponder(
		"POST",
		"https://bugs.example.org/api/bugs/42/fixes",
		func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("Authorization") != "Bearer secret" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, "unauthorized"), nil
			}
			var fix archivist.BugFix
			err := json.NewDecoder(r.Body).Decode(&fix)
			if err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}
			received = append(received, fix)
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		},
	)
	httpmock.RegisterResponder(
		"POST",
		"https://bugs.example.org/api/bugs/43/fixes",
		httpmock.NewStringResponder(http.StatusConflict, "already closed"),
	)
	httpmock.RegisterResponder(
		"POST",
		"https://bugs.example.org/api/bugs/44/fixes",
		httpmock.NewStringResponder(http.StatusNotFound, "no such bug"),
	)

	fix := archivist.BugFix{
		Distribution: "ubuntutest",
		Suite:        "breezy-autotest-updates",
		PackageName:  "foo",
		Version:      "1.1-1",
	}
	ctx := context.Background()
	must.SucceedT(t, bd.CloseBug(ctx, 42, fix))
	assert.DeepEqual(t, "received fixes", received, []archivist.BugFix{fix})

	// closing a bug that is already closed is not an error
	must.SucceedT(t, bd.CloseBug(ctx, 43, fix))

	err := bd.CloseBug(ctx, 44, fix)
	expected := "during POST https://bugs.example.org/api/bugs/44/fixes: expected 200/201/204, but got 404: no such bug"
	if err == nil || err.Error() != expected {
		t.Errorf("expected error %q, but got %v", expected, err)
	}
}
