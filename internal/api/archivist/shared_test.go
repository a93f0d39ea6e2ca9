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

package archivistv1

import (
	"net/http"
	"testing"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/easypg"
	"github.com/sapcc/go-bits/httpapi"

	"github.com/sapcc/archivist/internal/test"
)

func TestMain(m *testing.M) {
	easypg.WithTestDB(m, func() int { return m.Run() })
}

func setup(t *testing.T) (http.Handler, test.Setup, *test.Publisher) {
	t.Helper()
	s := test.NewSetup(t)
	pub := test.NewPublisher(t, s)
	a := NewAPI(s.Config, s.DB, s.SD, s.PD, s.ND, s.BD).OverrideTimeNow(s.Clock.Now)
	return httpapi.Compose(a, httpapi.WithoutLogging()), s, pub
}

var primaryArchiveRef = assert.JSONObject{
	"distribution": "ubuntutest",
	"owner":        "ubuntutest",
	"name":         "primary",
}
