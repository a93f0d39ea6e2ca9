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

package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CopyJobsCreatedCounter is a prometheus.CounterVec.
	CopyJobsCreatedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivist_created_copy_jobs",
			Help: "Counts package copy jobs that are created through the API.",
		},
		[]string{"target_archive_purpose"},
	)
	// CopyChecksCounter is a prometheus.CounterVec.
	CopyChecksCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivist_copy_checks",
			Help: "Counts copy checks that are performed through the API, by result.",
		},
		[]string{"target_archive_purpose", "result"},
	)
)

func init() {
	prometheus.MustRegister(CopyJobsCreatedCounter)
	prometheus.MustRegister(CopyChecksCounter)
}
