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
	"testing"

	. "github.com/majewsky/gg/option"
	"github.com/sapcc/go-bits/assert"

	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
)

func TestParseBatchRequest(t *testing.T) {
	req, err := parseBatchRequest([]byte(`
target:
  distribution: ubuntutest
  owner: cprov
  archive: ppa
  series: breezy-autotest
sources:
  - { distribution: ubuntutest, owner: ubuntutest, archive: primary, name: foo, version: "666" }
  - { distribution: ubuntutest, owner: ubuntutest, archive: primary, name: bar, version: "1.0-1" }
include_binaries: true
requester: cprov
sponsored: mark
overrides:
  - { component: universe, section: net }
  - null
phased_update_percentage: 10
`))
	if err != nil {
		t.Fatal(err.Error())
	}

	assert.DeepEqual(t, "target archive", req.Target.archiveRef.String(), "ubuntutest/cprov/ppa")
	assert.DeepEqual(t, "target series", req.Target.Series, "breezy-autotest")
	assert.DeepEqual(t, "target pocket", req.Target.Pocket, models.ReleasePocket)
	assert.DeepEqual(t, "sources", req.Sources, []sourceRef{
		{archiveRef{"ubuntutest", "ubuntutest", "primary"}, "foo", "666"},
		{archiveRef{"ubuntutest", "ubuntutest", "primary"}, "bar", "1.0-1"},
	})
	assert.DeepEqual(t, "include_binaries", req.IncludeBinaries, true)
	assert.DeepEqual(t, "check_permissions", req.CheckPermissions, None[bool]())
	assert.DeepEqual(t, "sponsored", req.Sponsored, Some("mark"))
	assert.DeepEqual(t, "overrides", req.Overrides, []*processor.Override{{Component: "universe", Section: "net"}, nil})
	assert.DeepEqual(t, "phased_update_percentage", req.PhasedUpdatePercentage, Some[uint8](10))
}

func TestParseInvalidBatchRequest(t *testing.T) {
	_, err := parseBatchRequest([]byte(`
target: { distribution: ubuntutest, owner: cprov, archive: ppa, pocket: BOGUS }
sources:
  - { distribution: ubuntutest, owner: ubuntutest, archive: primary, name: foo }
overrides:
  - { component: universe }
  - { component: main }
phased_update_percentage: 200
`))
	expected := `invalid pocket: "BOGUS"` + "\n" +
		"sources[0] must have a name and a version\n" +
		"expected 1 overrides, but got 2\n" +
		"phased_update_percentage must be between 0 and 100"
	if err == nil {
		t.Fatal("expected error, but got none")
	}
	assert.DeepEqual(t, "error message", err.Error(), expected)

	_, err = parseBatchRequest([]byte("target: { distribution: ubuntutest, owner: cprov, archive: ppa }\nbogus: 42\n"))
	if err == nil {
		t.Error("expected error for unknown field, but got none")
	}
}
