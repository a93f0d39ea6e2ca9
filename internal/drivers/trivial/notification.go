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

	"github.com/sapcc/go-bits/logg"

	"github.com/sapcc/archivist/internal/archivist"
)

func init() {
	archivist.NotificationDriverRegistry.Add(func() archivist.NotificationDriver { return &NotificationDriver{} })
}

// NotificationDriver (driver ID "log") is a archivist.NotificationDriver that
// writes notifications into the log instead of delivering them.
type NotificationDriver struct{}

// PluginTypeID implements the archivist.NotificationDriver interface.
func (d NotificationDriver) PluginTypeID() string { return "log" }

// Init implements the archivist.NotificationDriver interface.
func (d NotificationDriver) Init(cfg archivist.Configuration) error {
	return nil
}

// Notify implements the archivist.NotificationDriver interface.
func (d NotificationDriver) Notify(ctx context.Context, n archivist.Notification) error {
	logg.Info("notification from %s to %s: %s", n.AnnounceFrom, n.Requester, n.Subject)
	if n.Summary != "" {
		logg.Debug("notification summary for %q: %s", n.Subject, n.Summary)
	}
	return nil
}
