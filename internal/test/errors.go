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

package test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sapcc/archivist/internal/archivist"
)

// CopyError implements the assert.HTTPResponseBody interface for the error
// documents that the API renders for refused copies. If Message is empty,
// only the kind is checked.
type CopyError struct {
	Kind    archivist.CopyErrorKind
	Message string
}

// AssertResponseBody implements the assert.HTTPResponseBody interface.
func (e CopyError) AssertResponseBody(t *testing.T, requestInfo string, responseBody []byte) bool {
	t.Helper()
	var data struct {
		Error struct {
			Kind    archivist.CopyErrorKind  `json:"kind"`
			Class   archivist.CopyErrorClass `json:"class"`
			Message string                   `json:"message"`
		} `json:"error"`
	}
	err := json.Unmarshal(responseBody, &data)
	if err != nil {
		t.Errorf("%s: cannot decode JSON: %s", requestInfo, err.Error())
		t.Logf("\tresponse body = %q", string(responseBody))
		return false
	}

	expectedStr := string(e.Kind)
	if e.Message != "" {
		expectedStr = fmt.Sprintf("%s with message: %s", e.Kind, e.Message)
	}

	matches := data.Error.Kind == e.Kind && data.Error.Class == e.Kind.Class()
	if matches {
		matches = e.Message == "" || data.Error.Message == e.Message
	}
	if !matches {
		t.Error(requestInfo + ": got unexpected error")
		t.Logf("\texpected = %q\n", expectedStr)
		t.Logf("\tactual = %q\n", string(responseBody))
	}
	return matches
}

// ExpectCopyError checks that err is a *archivist.CannotCopy with the given
// kind and message.
func ExpectCopyError(t *testing.T, err error, kind archivist.CopyErrorKind, message string) {
	t.Helper()
	if err == nil {
		t.Errorf("expected %s, but got no error", kind)
		return
	}
	cc, ok := archivist.AsCannotCopy(err)
	if !ok {
		t.Errorf("expected %s, but got unexpected error: %s", kind, err.Error())
		return
	}
	if cc.Kind != kind || cc.Message != message {
		t.Error("got unexpected copy error")
		t.Logf("\texpected = %s: %q", kind, message)
		t.Logf("\t  actual = %s: %q", cc.Kind, cc.Message)
	}
}
