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

	"github.com/sapcc/archivist/internal/archivist"
	"github.com/sapcc/archivist/internal/test"
)

const checkCopyPath = "/archivist/v1/archives/ubuntutest/cprov/ppa/check-copy"

func TestCheckCopy(t *testing.T) {
	h, s, pub := setup(t)
	pub.CreateArchive(test.ArchiveOpts{})
	pub.GetPubSource(test.SourceOpts{})

	fooSource := assert.JSONObject{"archive": primaryArchiveRef, "name": "foo", "version": "666"}

	// unknown archive
	assert.HTTPRequest{
		Method:       "POST",
		Path:         "/archivist/v1/archives/ubuntutest/nobody/ppa/check-copy",
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}},
		ExpectStatus: http.StatusNotFound,
		ExpectBody:   assert.StringData("no such archive\n"),
	}.Check(t, h)

	// malformed requests
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.StringData("{"),
		ExpectStatus: http.StatusBadRequest,
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}, "unknown": 42},
		ExpectStatus: http.StatusBadRequest,
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{}},
		ExpectStatus: http.StatusUnprocessableEntity,
		ExpectBody:   assert.StringData("no sources given\n"),
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}, "pocket": "BOGUS"},
		ExpectStatus: http.StatusUnprocessableEntity,
		ExpectBody:   assert.StringData("invalid pocket: BOGUS\n"),
	}.Check(t, h)

	// unknown series and sources are reported as refused copies
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}, "series": "sid"},
		ExpectStatus: http.StatusForbidden,
		ExpectBody:   test.CopyError{Kind: archivist.ErrNoSuchDistroSeries, Message: "No such distro series sid in distribution ubuntutest."},
	}.Check(t, h)
	assert.HTTPRequest{
		Method: "POST",
		Path:   checkCopyPath,
		Body: assert.JSONObject{"sources": []assert.JSONObject{
			{"archive": primaryArchiveRef, "name": "foo", "version": "1.0"},
		}},
		ExpectStatus: http.StatusUnprocessableEntity,
		ExpectBody:   test.CopyError{Kind: archivist.ErrSourceNotFound, Message: "Package foo 1.0 not found."},
	}.Check(t, h)

	// permission checks are enabled by default
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}, "requester": "bob"},
		ExpectStatus: http.StatusForbidden,
		ExpectBody:   test.CopyError{Kind: archivist.ErrPermission, Message: "Signer has no upload rights to this PPA."},
	}.Check(t, h)
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}, "requester": "bob", "check_permissions": false},
		ExpectStatus: http.StatusNoContent,
	}.Check(t, h)

	s.PD.Uploaders["bob"] = nil
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}, "requester": "bob", "series": "breezy-autotest"},
		ExpectStatus: http.StatusNoContent,
	}.Check(t, h)

	// refusals for other reasons
	assert.HTTPRequest{
		Method:       "POST",
		Path:         checkCopyPath,
		Body:         assert.JSONObject{"sources": []assert.JSONObject{fooSource}, "requester": "bob", "include_binaries": true},
		ExpectStatus: http.StatusUnprocessableEntity,
		ExpectBody:   test.CopyError{Kind: archivist.ErrMissingBinaries, Message: "foo 666 in breezy-autotest (source has no binaries to be copied)"},
	}.Check(t, h)
}
