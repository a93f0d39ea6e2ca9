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

package tasks

import (
	"math/rand"
	"time"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/bugrefs"
	"github.com/sapcc/archivist/internal/processor"
)

// Worker contains the toolbox of the archivist-worker process.
type Worker struct {
	cfg archivist.Configuration
	db  *archivist.DB
	sd  archivist.StorageDriver
	pd  archivist.PermissionDriver
	nd  archivist.NotificationDriver
	bd  archivist.BugTrackerDriver

	bugs *bugrefs.Extractor

	// non-pure functions that can be replaced by deterministic doubles for unit tests
	timeNow   func() time.Time
	addJitter func(time.Duration) time.Duration
}

// NewWorker creates a new Worker.
func NewWorker(cfg archivist.Configuration, db *archivist.DB, sd archivist.StorageDriver, pd archivist.PermissionDriver, nd archivist.NotificationDriver, bd archivist.BugTrackerDriver) *Worker {
	w := &Worker{cfg, db, sd, pd, nd, bd, bugrefs.NewExtractor(sd), time.Now, addJitter}
	w.initializeCounters()
	return w
}

// OverrideTimeNow replaces time.Now with a test double.
func (w *Worker) OverrideTimeNow(timeNow func() time.Time) *Worker {
	w.timeNow = timeNow
	return w
}

// DisableJitter replaces addJitter with a no-op for this Worker.
func (w *Worker) DisableJitter() {
	w.addJitter = func(d time.Duration) time.Duration { return d }
}

// addJitter returns a random duration within +/- 10% of the requested value.
// This can be used to even out the load on a scheduled job over time, by
// spreading jobs that would normally be scheduled right next to each other out
// over time without corrupting the individual schedules too much.
func addJitter(duration time.Duration) time.Duration {
	//nolint:gosec // This is not crypto-relevant, so math/rand is okay.
	r := rand.Float64() //NOTE: 0 <= r < 1
	return time.Duration(float64(duration) * (0.9 + 0.2*r))
}

func (w *Worker) processor() *processor.Processor {
	return processor.New(w.cfg, w.db, w.sd, w.pd, w.nd, w.bd, w.bugs).OverrideTimeNow(w.timeNow)
}
