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
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sapcc/archivist/internal/models"
)

// Writes a table listing the publications created by a copy.
func renderPublications(w io.Writer, pubs []models.Publication) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Type", "ID", "Package", "Version", "Component", "Section", "Status"})
	for _, pub := range pubs {
		switch pub := pub.(type) {
		case *models.SourcePublication:
			t.AppendRow(table.Row{"source", pub.ID, pub.PackageName, pub.Version, pub.Component, pub.Section, pub.Status})
		case *models.BinaryPublication:
			t.AppendRow(table.Row{"binary", pub.ID, pub.PackageName, pub.Version, pub.Component, pub.Section, pub.Status})
		}
	}
	t.SetCaption("%d publication(s) created", len(pubs))
	t.Render()
}
