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

package processor

import (
	"context"
	"time"

	"github.com/go-gorp/gorp/v3"
	"github.com/sapcc/go-bits/sqlext"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/bugrefs"
)

// Processor is a higher-level interface wrapping archivist.DB and the drivers.
// It implements checking and executing package copies, and keeps the
// Publication Ledger in lockstep with the side effects of a copy.
type Processor struct {
	cfg  archivist.Configuration
	db   *archivist.DB
	sd   archivist.StorageDriver
	pd   archivist.PermissionDriver
	nd   archivist.NotificationDriver
	bd   archivist.BugTrackerDriver
	bugs *bugrefs.Extractor

	// non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow func() time.Time
}

// New creates a new Processor. The bug reference extractor is usually shared
// between all processors of one process, so that its cache is effective.
func New(cfg archivist.Configuration, db *archivist.DB, sd archivist.StorageDriver, pd archivist.PermissionDriver, nd archivist.NotificationDriver, bd archivist.BugTrackerDriver, bugs *bugrefs.Extractor) *Processor {
	return &Processor{cfg, db, sd, pd, nd, bd, bugs, time.Now}
}

// OverrideTimeNow replaces time.Now with a test double.
func (p *Processor) OverrideTimeNow(timeNow func() time.Time) *Processor {
	p.timeNow = timeNow
	return p
}

// Executes the action callback within a database transaction. If the action
// callback returns success (i.e. a nil error), the transaction will be
// committed. If it returns an error or panics, the transaction will be rolled
// back.
func (p *Processor) insideTransaction(ctx context.Context, action func(*gorp.Transaction) error) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer sqlext.RollbackUnlessCommitted(tx)

	err = action(tx.WithContext(ctx).(*gorp.Transaction))
	if err != nil {
		return err
	}
	return tx.Commit()
}
