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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sapcc/archivist/internal/models"
)

var finishedCopyJobsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "archivist_finished_copy_jobs",
		Help: "Counter for copy jobs that ran to completion, by final status.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(finishedCopyJobsCounter)
}

func (w *Worker) initializeCounters() {
	for _, status := range []models.CopyJobStatus{models.CopyJobCompleted, models.CopyJobFailed} {
		finishedCopyJobsCounter.WithLabelValues(string(status)).Add(0)
	}
}
