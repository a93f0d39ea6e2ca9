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

package copycmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sapcc/archivist/internal/models"
)

func TestRenderPublications(t *testing.T) {
	pubs := []models.Publication{
		&models.SourcePublication{ID: 3, PackageName: "bar", Version: "1.0", Component: "universe", Section: "net", Status: models.PendingPublication},
		&models.BinaryPublication{ID: 7, PackageName: "bar-bin", Version: "1.0", Component: "universe", Section: "base", Status: models.PendingPublication},
	}
	var buf bytes.Buffer
	renderPublications(&buf, pubs)
	output := buf.String()

	for _, expected := range []string{"source", "bar-bin", "universe", "PENDING", "2 publication(s) created"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected %q in output, but got:\n%s", expected, output)
		}
	}
	if lines := strings.Count(output, "\n"); lines < 4 {
		t.Errorf("expected at least one line per row, but got:\n%s", output)
	}
}
