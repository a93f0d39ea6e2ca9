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

package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/archivist/internal/archivist"
)

func init() {
	archivist.NotificationDriverRegistry.Add(func() archivist.NotificationDriver { return &NotificationDriver{} })
}

// NotificationDriver (driver ID "smtp") is a archivist.NotificationDriver
// that delivers notifications by mail. Person names are turned into mail
// addresses by appending the configured domain.
type NotificationDriver struct {
	// configuration
	ServerAddress string `json:"server"`
	Domain        string `json:"domain"`
	UserName      string `json:"username,omitempty"`
	// the password is read from $ARCHIVIST_SMTP_PASSWORD if UserName is set

	// state
	auth     smtp.Auth
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// PluginTypeID implements the archivist.NotificationDriver interface.
func (d *NotificationDriver) PluginTypeID() string { return "smtp" }

// Init implements the archivist.NotificationDriver interface.
func (d *NotificationDriver) Init(cfg archivist.Configuration) error {
	if d.ServerAddress == "" {
		return errors.New("missing required field: params.server")
	}
	if d.Domain == "" {
		return errors.New("missing required field: params.domain")
	}
	if d.UserName != "" {
		host, _, err := net.SplitHostPort(d.ServerAddress)
		if err != nil {
			return fmt.Errorf("malformed params.server: %w", err)
		}
		d.auth = smtp.PlainAuth("", d.UserName, osext.MustGetenv("ARCHIVIST_SMTP_PASSWORD"), host)
	}
	if d.sendMail == nil {
		d.sendMail = smtp.SendMail
	}
	return nil
}

func (d *NotificationDriver) addressOf(person string) string {
	return fmt.Sprintf("%s@%s", person, d.Domain)
}

// Notify implements the archivist.NotificationDriver interface.
func (d *NotificationDriver) Notify(ctx context.Context, n archivist.Notification) error {
	from := d.addressOf(n.AnnounceFrom)
	recipients := []string{d.addressOf(n.Requester)}
	if n.AnnounceFrom != n.Requester {
		recipients = append(recipients, from)
	}

	err := d.sendMail(d.ServerAddress, d.auth, from, recipients, renderMessage(from, recipients, n))
	if err != nil {
		return fmt.Errorf("cannot send mail to %s: %w", strings.Join(recipients, ", "), err)
	}
	return nil
}

func renderMessage(from string, recipients []string, n archivist.Notification) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", n.Subject)
	fmt.Fprintf(&buf, "X-Archivist-Action: %s\r\n", n.Action)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")

	switch n.Action {
	case archivist.RejectedAction:
		fmt.Fprintf(&buf, "Rejected copy of %s %s into %s:\r\n", n.PackageName, n.Version, n.Archive.Reference())
	default:
		fmt.Fprintf(&buf, "Accepted copy of %s %s into %s (%s).\r\n",
			n.PackageName, n.Version, n.Archive.Reference(), n.Series.SuiteName(n.Pocket))
		if n.PreviousVersion != "" {
			fmt.Fprintf(&buf, "This replaces version %s.\r\n", n.PreviousVersion)
		}
	}
	if n.Summary != "" {
		buf.WriteString("\r\n")
		for _, line := range strings.Split(n.Summary, "\n") {
			fmt.Fprintf(&buf, "%s\r\n", line)
		}
	}
	return buf.Bytes()
}
