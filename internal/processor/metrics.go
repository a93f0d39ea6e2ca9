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

import "github.com/prometheus/client_golang/prometheus"

var (
	//CopiedPublicationsCounter is a prometheus.CounterVec.
	CopiedPublicationsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivist_copied_publications",
			Help: "Counter for publications created by package copies.",
		},
		[]string{"archive_purpose", "type"},
	)
	//RejectedCopiesCounter is a prometheus.CounterVec.
	RejectedCopiesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivist_rejected_copies",
			Help: "Counter for package copies that were refused by the copy checker.",
		},
		[]string{"archive_purpose", "kind"},
	)
	//UnrestrictedFilesCounter is a prometheus.Counter.
	UnrestrictedFilesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "archivist_unrestricted_files",
			Help: "Counter for stored files that were made public because they were copied into a public archive.",
		},
	)
	//FailedSideEffectsCounter is a prometheus.CounterVec.
	FailedSideEffectsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archivist_failed_copy_side_effects",
			Help: "Counter for bug closings and notifications that failed after a package copy was committed.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(CopiedPublicationsCounter)
	prometheus.MustRegister(RejectedCopiesCounter)
	prometheus.MustRegister(UnrestrictedFilesCounter)
	prometheus.MustRegister(FailedSideEffectsCounter)
}
