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
	"fmt"

	"github.com/sapcc/go-bits/pluggable"

	"github.com/sapcc/archivist/internal/models"
)

// NotificationAction is an enum for the kinds of notifications.
type NotificationAction string

const (
	AcceptedAction     NotificationAction = "accepted"
	RejectedAction     NotificationAction = "rejected"
	AnnouncementAction NotificationAction = "announcement"
)

// Notification describes the outcome of a copy, to be delivered to the
// people involved by a NotificationDriver.
type Notification struct {
	Action  NotificationAction
	Subject string
	// Requester is the person who asked for the copy.
	Requester string
	// AnnounceFrom is the person in whose name the notification is sent. This
	// differs from Requester for sponsored copies.
	AnnounceFrom string

	Archive         models.Archive
	Distribution    models.Distribution
	Series          models.DistroSeries
	Pocket          models.Pocket
	PackageName     string
	Version         string
	PreviousVersion string
	// Summary contains the rejection reasons for RejectedAction.
	Summary string
}

// BuildSubject computes the subject line for a notification, e.g.
// "[ubuntu/breezy-updates] foo 1.0-1 (Accepted)".
func BuildSubject(action NotificationAction, dist models.Distribution, archive models.Archive, series models.DistroSeries, pocket models.Pocket, name, version string) string {
	status := "Accepted"
	if action == RejectedAction {
		status = "Rejected"
	}
	subject := fmt.Sprintf("[%s/%s] %s %s (%s)", dist.Name, series.SuiteName(pocket), name, version, status)
	if archive.Purpose == models.PersonalArchive {
		subject = fmt.Sprintf("[%s] %s", archive.Reference(), subject)
	}
	return subject
}

// NotificationDriver delivers notifications about copies, e.g. by mail.
type NotificationDriver interface {
	pluggable.Plugin
	// Init is called before any other interface methods, and allows the plugin to
	// perform first-time initialization.
	Init(Configuration) error

	Notify(ctx context.Context, n Notification) error
}

// NotificationDriverRegistry is a pluggable.Registry for NotificationDriver implementations.
var NotificationDriverRegistry pluggable.Registry[NotificationDriver]

// NewNotificationDriver creates a new NotificationDriver using one of the
// plugins registered with NotificationDriverRegistry.
func NewNotificationDriver(configJSON string, cfg Configuration) (NotificationDriver, error) {
	return newDriver("notification driver", NotificationDriverRegistry, configJSON, func(nd NotificationDriver) error {
		return nd.Init(cfg)
	})
}
