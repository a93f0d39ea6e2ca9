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

package archivist

import (
	"context"

	"github.com/sapcc/go-bits/pluggable"

	"github.com/sapcc/archivist/internal/models"
)

// UploadTarget describes where a person wants to upload (or copy) a package.
type UploadTarget struct {
	Archive     models.Archive
	Series      models.DistroSeries
	Pocket      models.Pocket
	PackageName string
	// Component is the component of the package in the target series. It is
	// empty if the package is not yet published there.
	Component string
	// StrictComponent is true if upload rights for exactly this Component are
	// required. If false, upload rights for any component suffice.
	StrictComponent bool
}

// PermissionDriver is the pluggable oracle that decides whether a person may
// upload into an archive. Archivist does not manage people or teams itself.
type PermissionDriver interface {
	pluggable.Plugin
	// Init is called before any other interface methods, and allows the plugin to
	// perform first-time initialization.
	Init(Configuration) error

	// HasUploadRights returns whether the person may upload the package into
	// the given target.
	HasUploadRights(ctx context.Context, person string, target UploadTarget) (bool, error)
	// IsQueueAdmin returns whether the person administers the upload queue of
	// the given target. Queue admins may copy packages even without upload
	// rights.
	IsQueueAdmin(ctx context.Context, person string, target UploadTarget) (bool, error)
}

// PermissionDriverRegistry is a pluggable.Registry for PermissionDriver implementations.
var PermissionDriverRegistry pluggable.Registry[PermissionDriver]

// NewPermissionDriver creates a new PermissionDriver using one of the plugins
// registered with PermissionDriverRegistry.
func NewPermissionDriver(configJSON string, cfg Configuration) (PermissionDriver, error) {
	return newDriver("permission driver", PermissionDriverRegistry, configJSON, func(pd PermissionDriver) error {
		return pd.Init(cfg)
	})
}
