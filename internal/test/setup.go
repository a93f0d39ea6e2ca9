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

package test

import (
	"net/url"
	"testing"
	"time"

	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/logg"
	"github.com/sapcc/go-bits/mock"
	"github.com/sapcc/go-bits/must"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/drivers/trivial"
)

// Setup contains all the pieces that are needed for most tests.
type Setup struct {
	Config archivist.Configuration
	DB     *archivist.DB
	Clock  *mock.Clock
	SD     *trivial.StorageDriver
	PD     *PermissionDriver
	ND     *NotificationDriver
	BD     *BugTrackerDriver
}

var (
	tablesToClear = []string{
		// in reverse order of foreign key dependencies
		"package_copy_jobs",
		"binary_publications",
		"source_publications",
		"binary_release_files",
		"binary_releases",
		"builds",
		"package_diffs",
		"source_release_files",
		"source_releases",
		"stored_files",
		"distro_arch_series",
		"distro_series",
		"archives",
		"distributions",
	}
	tablesWithPrimaryKeys = []string{
		"package_copy_jobs",
		"binary_publications",
		"source_publications",
		"binary_releases",
		"builds",
		"package_diffs",
		"source_releases",
		"stored_files",
		"distro_arch_series",
		"distro_series",
		"archives",
		"distributions",
	}
)

// NewSetup prepares a database and a set of driver doubles for a unit test.
// The package calling this needs a TestMain that calls easypg.WithTestDB.
func NewSetup(t *testing.T) Setup {
	t.Helper()
	logg.ShowDebug = osext.GetenvBool("ARCHIVIST_DEBUG")

	apiPublicURL := must.ReturnT(url.Parse("https://archivist.example.org"))(t)
	cfg := archivist.Configuration{
		APIPublicURL: *apiPublicURL,
	}

	dbConn := easypg.ConnectForTest(t, archivist.DBConfiguration(),
		easypg.ClearTables(tablesToClear...),
		easypg.ResetPrimaryKeys(tablesWithPrimaryKeys...),
	)

	sd := must.ReturnT(archivist.NewStorageDriver(`{"type":"in-memory-for-testing"}`, cfg))(t)
	pd := must.ReturnT(archivist.NewPermissionDriver(`{"type":"unittest"}`, cfg))(t)
	nd := must.ReturnT(archivist.NewNotificationDriver(`{"type":"unittest"}`, cfg))(t)
	bd := must.ReturnT(archivist.NewBugTrackerDriver(`{"type":"unittest"}`, cfg))(t)

	clock := mock.NewClock()
	clock.StepBy(time.Hour)

	return Setup{
		Config: cfg,
		DB:     archivist.InitORM(dbConn),
		Clock:  clock,
		SD:     sd.(*trivial.StorageDriver),
		PD:     pd.(*PermissionDriver),
		ND:     nd.(*NotificationDriver),
		BD:     bd.(*BugTrackerDriver),
	}
}
