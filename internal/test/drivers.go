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
	"context"
	"slices"
	"sync"

	"github.com/sapcc/archivist/internal/archivist"
)

func init() {
	archivist.PermissionDriverRegistry.Add(func() archivist.PermissionDriver { return &PermissionDriver{} })
	archivist.NotificationDriverRegistry.Add(func() archivist.NotificationDriver { return &NotificationDriver{} })
	archivist.BugTrackerDriverRegistry.Add(func() archivist.BugTrackerDriver { return &BugTrackerDriver{} })
}

////////////////////////////////////////////////////////////////////////////////
// PermissionDriver

// PermissionDriver (driver ID "unittest") is a archivist.PermissionDriver for unit tests.
type PermissionDriver struct {
	// Uploaders maps person names to the components that they may upload to.
	// An empty list grants upload rights for all components.
	Uploaders   map[string][]string
	QueueAdmins map[string]bool
}

// PluginTypeID implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) PluginTypeID() string { return "unittest" }

// Init implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) Init(cfg archivist.Configuration) error {
	d.Uploaders = make(map[string][]string)
	d.QueueAdmins = make(map[string]bool)
	return nil
}

// HasUploadRights implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) HasUploadRights(ctx context.Context, person string, target archivist.UploadTarget) (bool, error) {
	components, exists := d.Uploaders[person]
	if !exists {
		return false, nil
	}
	if len(components) == 0 || !target.StrictComponent {
		return true, nil
	}
	return slices.Contains(components, target.Component), nil
}

// IsQueueAdmin implements the archivist.PermissionDriver interface.
func (d *PermissionDriver) IsQueueAdmin(ctx context.Context, person string, target archivist.UploadTarget) (bool, error) {
	return d.QueueAdmins[person], nil
}

////////////////////////////////////////////////////////////////////////////////
// NotificationDriver

// NotificationDriver (driver ID "unittest") is a archivist.NotificationDriver
// that records all notifications.
type NotificationDriver struct {
	// If set, Notify() fails with this error.
	FailWith error

	mutex         sync.Mutex
	notifications []archivist.Notification
}

// PluginTypeID implements the archivist.NotificationDriver interface.
func (d *NotificationDriver) PluginTypeID() string { return "unittest" }

// Init implements the archivist.NotificationDriver interface.
func (d *NotificationDriver) Init(cfg archivist.Configuration) error {
	return nil
}

// Notify implements the archivist.NotificationDriver interface.
func (d *NotificationDriver) Notify(ctx context.Context, n archivist.Notification) error {
	if d.FailWith != nil {
		return d.FailWith
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.notifications = append(d.notifications, n)
	return nil
}

// PopNotifications returns all notifications sent since the last call.
func (d *NotificationDriver) PopNotifications() []archivist.Notification {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	result := d.notifications
	d.notifications = nil
	return result
}

////////////////////////////////////////////////////////////////////////////////
// BugTrackerDriver

// ClosedBug is a call to BugTrackerDriver.CloseBug() recorded by the test double.
type ClosedBug struct {
	ID  int64
	Fix archivist.BugFix
}

// BugTrackerDriver (driver ID "unittest") is a archivist.BugTrackerDriver
// that records all closed bugs.
type BugTrackerDriver struct {
	// If set, CloseBug() fails with this error.
	FailWith error

	mutex      sync.Mutex
	closedBugs []ClosedBug
}

// PluginTypeID implements the archivist.BugTrackerDriver interface.
func (d *BugTrackerDriver) PluginTypeID() string { return "unittest" }

// Init implements the archivist.BugTrackerDriver interface.
func (d *BugTrackerDriver) Init(cfg archivist.Configuration) error {
	return nil
}

// CloseBug implements the archivist.BugTrackerDriver interface.
func (d *BugTrackerDriver) CloseBug(ctx context.Context, bugID int64, fix archivist.BugFix) error {
	if d.FailWith != nil {
		return d.FailWith
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.closedBugs = append(d.closedBugs, ClosedBug{bugID, fix})
	return nil
}

// PopClosedBugs returns all bugs closed since the last call.
func (d *BugTrackerDriver) PopClosedBugs() []ClosedBug {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	result := d.closedBugs
	d.closedBugs = nil
	return result
}
