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

package trivial

import (
	"context"

	"github.com/sapcc/archivist/internal/archivist"
)

func init() {
	archivist.PermissionDriverRegistry.Add(func() archivist.PermissionDriver { return &PermissionDriver{} })
}

// PermissionDriver (driver ID "trivial") is a archivist.PermissionDriver that
// grants upload rights to everyone. It is intended for single-user setups and
// for setups where copies are only requested by trusted automation.
type PermissionDriver struct{}

// PluginTypeID implements the archivist.PermissionDriver interface.
func (d PermissionDriver) PluginTypeID() string { return "trivial" }

// Init implements the archivist.PermissionDriver interface.
func (d PermissionDriver) Init(cfg archivist.Configuration) error {
	return nil
}

// HasUploadRights implements the archivist.PermissionDriver interface.
func (d PermissionDriver) HasUploadRights(ctx context.Context, person string, target archivist.UploadTarget) (bool, error) {
	return true, nil
}

// IsQueueAdmin implements the archivist.PermissionDriver interface.
func (d PermissionDriver) IsQueueAdmin(ctx context.Context, person string, target archivist.UploadTarget) (bool, error) {
	return false, nil
}
