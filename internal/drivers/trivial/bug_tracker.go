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
	archivist.BugTrackerDriverRegistry.Add(func() archivist.BugTrackerDriver { return &BugTrackerDriver{} })
}

// BugTrackerDriver (driver ID "noop") is a archivist.BugTrackerDriver that
// does not close any bugs.
type BugTrackerDriver struct{}

// PluginTypeID implements the archivist.BugTrackerDriver interface.
func (d BugTrackerDriver) PluginTypeID() string { return "noop" }

// Init implements the archivist.BugTrackerDriver interface.
func (d BugTrackerDriver) Init(cfg archivist.Configuration) error {
	return nil
}

// CloseBug implements the archivist.BugTrackerDriver interface.
func (d BugTrackerDriver) CloseBug(ctx context.Context, bugID int64, fix archivist.BugFix) error {
	return nil
}
