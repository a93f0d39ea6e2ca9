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

package processor_test

import (
	"context"
	"testing"

	. "github.com/majewsky/gg/option"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/bugrefs"
	"github.com/sapcc/archivist/internal/models"
	"github.com/sapcc/archivist/internal/processor"
	"github.com/sapcc/archivist/internal/test"
)

func TestMain(m *testing.M) {
	easypg.WithTestDB(m, func() int { return m.Run() })
}

func setup(t *testing.T) (test.Setup, *test.Publisher, *processor.Processor) {
	t.Helper()
	s := test.NewSetup(t)
	pub := test.NewPublisher(t, s)
	p := processor.New(s.Config, s.DB, s.SD, s.PD, s.ND, s.BD, bugrefs.NewExtractor(s.SD)).OverrideTimeNow(s.Clock.Now)
	return s, pub, p
}

// copyHarness holds the parameters of a copy that a test checks or executes
// repeatedly with small variations.
type copyHarness struct {
	t       *testing.T
	s       test.Setup
	pub     *test.Publisher
	p       *processor.Processor
	Source  models.SourcePublication
	Archive models.Archive
	Series  models.DistroSeries
	Pocket  models.Pocket
}

func newCopyHarness(t *testing.T) *copyHarness {
	t.Helper()
	s, pub, p := setup(t)
	return &copyHarness{
		t:      t,
		s:      s,
		pub:    pub,
		p:      p,
		Source: pub.GetPubSource(test.SourceOpts{}),
		Pocket: models.ReleasePocket,
	}
}

func (h *copyHarness) checkCopy(includeBinaries, unembargo bool) error {
	h.t.Helper()
	checker := h.p.NewCopyChecker(h.Archive, includeBinaries, unembargo)
	return checker.CheckCopy(context.Background(), h.Source, h.Series, h.Pocket, "", false)
}

func (h *copyHarness) assertCanCopy(includeBinaries, unembargo bool) {
	h.t.Helper()
	must.SucceedT(h.t, h.checkCopy(includeBinaries, unembargo))
}

func (h *copyHarness) assertCannotCopy(includeBinaries bool, kind archivist.CopyErrorKind, message string) {
	h.t.Helper()
	test.ExpectCopyError(h.t, h.checkCopy(includeBinaries, false), kind, message)
}

func (h *copyHarness) request(includeBinaries bool) processor.CopyRequest {
	return processor.CopyRequest{
		Sources:         []models.SourcePublication{h.Source},
		Target:          processor.CopyTarget{Archive: h.Archive, Series: Some(h.Series), Pocket: h.Pocket},
		IncludeBinaries: includeBinaries,
		Requester:       "cprov",
	}
}

func (h *copyHarness) doCopy(includeBinaries bool) []models.Publication {
	h.t.Helper()
	return must.ReturnT(h.p.DoCopy(context.Background(), h.request(includeBinaries)))(h.t)
}

// splitPublications sorts publications by type, retaining their order.
func splitPublications(pubs []models.Publication) (sources []models.SourcePublication, binaries []models.BinaryPublication) {
	for _, pub := range pubs {
		switch pub := pub.(type) {
		case *models.SourcePublication:
			sources = append(sources, *pub)
		case *models.BinaryPublication:
			binaries = append(binaries, *pub)
		}
	}
	return sources, binaries
}

func countRows(t *testing.T, s test.Setup, query string, args ...any) int64 {
	t.Helper()
	return must.ReturnT(s.DB.SelectInt(query, args...))(t)
}
