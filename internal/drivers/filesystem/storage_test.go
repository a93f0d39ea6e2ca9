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

package filesystem

import (
	"context"
	"errors"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"

	"github.com/sapcc/archivist/internal/archivist"
)

func TestStorageDriver(t *testing.T) {
	t.Setenv("ARCHIVIST_FILESYSTEM_PATH", t.TempDir())
	sd := must.ReturnT(archivist.NewStorageDriver(`{"type":"filesystem"}`, archivist.Configuration{}))(t)
	ctx := context.Background()

	contents := []byte("Source: foo\nVersion: 1.0-1\n")
	fileDigest := digest.Canonical.FromBytes(contents)

	_, err := sd.ReadFile(ctx, fileDigest)
	if !errors.Is(err, archivist.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, but got %v", err)
	}

	// writing with a mismatching digest must fail
	err = sd.WriteFile(ctx, digest.Canonical.FromString("something else"), contents)
	if err == nil {
		t.Error("expected digest mismatch error, but got none")
	}

	must.SucceedT(t, sd.WriteFile(ctx, fileDigest, contents))
	actual := must.ReturnT(sd.ReadFile(ctx, fileDigest))(t)
	assert.DeepEqual(t, "file contents", string(actual), string(contents))

	must.SucceedT(t, sd.DeleteFile(ctx, fileDigest))
	_, err = sd.ReadFile(ctx, fileDigest)
	if !errors.Is(err, archivist.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound after delete, but got %v", err)
	}
	// deleting again is not an error
	must.SucceedT(t, sd.DeleteFile(ctx, fileDigest))
}
