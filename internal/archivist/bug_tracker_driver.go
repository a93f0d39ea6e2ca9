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
)

// BugFix identifies the publication that fixes a bug.
type BugFix struct {
	Distribution string `json:"distribution"`
	Suite        string `json:"suite"`
	PackageName  string `json:"package_name"`
	Version      string `json:"version"`
}

// BugTrackerDriver is the pluggable interface to the bug tracker. When a
// package gets copied into a suite that users install from, the bugs that it
// fixes are closed through this driver.
type BugTrackerDriver interface {
	pluggable.Plugin
	// Init is called before any other interface methods, and allows the plugin to
	// perform first-time initialization.
	Init(Configuration) error

	// CloseBug marks the given bug as released by the given fix. Closing a bug
	// that is already closed must not be an error.
	CloseBug(ctx context.Context, bugID int64, fix BugFix) error
}

// BugTrackerDriverRegistry is a pluggable.Registry for BugTrackerDriver implementations.
var BugTrackerDriverRegistry pluggable.Registry[BugTrackerDriver]

// NewBugTrackerDriver creates a new BugTrackerDriver using one of the plugins
// registered with BugTrackerDriverRegistry.
func NewBugTrackerDriver(configJSON string, cfg Configuration) (BugTrackerDriver, error) {
	return newDriver("bug tracker driver", BugTrackerDriverRegistry, configJSON, func(bd BugTrackerDriver) error {
		return bd.Init(cfg)
	})
}
