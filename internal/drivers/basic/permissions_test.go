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

package basic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/models"
)

const testConfig = `{
	"rules": [
		{
			"match_person": "alice|bob",
			"match_archive": "ubuntutest/primary",
			"components": ["main", "universe"],
			"pockets": ["RELEASE", "UPDATES"]
		},
		{
			"match_person": "carol",
			"match_archive": "carol/.*"
		},
		{
			"match_person": ".*-admins",
			"queue_admin": true
		}
	]
}`

func TestPermissionDriver(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "permissions.json")
	must.SucceedT(t, os.WriteFile(configPath, []byte(testConfig), 0666))

	pd := must.ReturnT(archivist.NewPermissionDriver(
		`{"type":"basic","params":{"config_path":"`+configPath+`"}}`,
		archivist.Configuration{},
	))(t)
	ctx := context.Background()

	primary := models.Archive{OwnerName: "ubuntutest", Name: "primary", Purpose: models.PrimaryArchive}
	ppa := models.Archive{OwnerName: "carol", Name: "ppa", Purpose: models.PersonalArchive}

	testCases := []struct {
		Person   string
		Target   archivist.UploadTarget
		Expected bool
	}{
		{"alice", archivist.UploadTarget{Archive: primary, Pocket: models.ReleasePocket, PackageName: "foo"}, true},
		{"bob", archivist.UploadTarget{Archive: primary, Pocket: models.UpdatesPocket, PackageName: "foo", Component: "universe", StrictComponent: true}, true},
		// component rights are only checked when the component is known
		{"alice", archivist.UploadTarget{Archive: primary, Pocket: models.ReleasePocket, PackageName: "foo", Component: "restricted", StrictComponent: true}, false},
		{"alice", archivist.UploadTarget{Archive: primary, Pocket: models.ProposedPocket, PackageName: "foo"}, false},
		{"alice", archivist.UploadTarget{Archive: ppa, Pocket: models.ReleasePocket, PackageName: "foo"}, false},
		{"carol", archivist.UploadTarget{Archive: ppa, Pocket: models.ReleasePocket, PackageName: "foo"}, true},
		// patterns are bounded
		{"alice2", archivist.UploadTarget{Archive: primary, Pocket: models.ReleasePocket, PackageName: "foo"}, false},
	}
	for _, tc := range testCases {
		actual := must.ReturnT(pd.HasUploadRights(ctx, tc.Person, tc.Target))(t)
		if actual != tc.Expected {
			t.Errorf("expected HasUploadRights(%q, %s/%s) = %t, but got %t",
				tc.Person, tc.Target.Archive.OwnerName, tc.Target.Archive.Name, tc.Expected, actual)
		}
	}

	target := archivist.UploadTarget{Archive: primary, Pocket: models.ReleasePocket, PackageName: "foo"}
	assert.DeepEqual(t, "IsQueueAdmin(ubuntu-admins)", must.ReturnT(pd.IsQueueAdmin(ctx, "ubuntu-admins", target))(t), true)
	assert.DeepEqual(t, "IsQueueAdmin(alice)", must.ReturnT(pd.IsQueueAdmin(ctx, "alice", target))(t), false)
}

func TestPermissionDriverRequiresConfigPath(t *testing.T) {
	_, err := archivist.NewPermissionDriver(`{"type":"basic"}`, archivist.Configuration{})
	if err == nil {
		t.Fatal("expected error for missing config_path, but got none")
	}
}
