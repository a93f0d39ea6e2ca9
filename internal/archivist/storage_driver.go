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

package archivist

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/sapcc/go-bits/pluggable"
)

// StorageDriver is the abstract interface for the content store that holds
// the contents of all files referenced by stored_files records. Contents are
// addressed by their digest, so each distinct content is stored only once no
// matter how many archives reference it.
type StorageDriver interface {
	pluggable.Plugin
	// Init is called before any other interface methods, and allows the plugin to
	// perform first-time initialization.
	Init(Configuration) error

	// ReadFile returns the contents of the file with the given digest. If the
	// file does not exist, ErrFileNotFound shall be returned.
	ReadFile(ctx context.Context, d digest.Digest) ([]byte, error)
	// WriteFile stores the given contents. Implementations must verify that the
	// contents match the digest.
	WriteFile(ctx context.Context, d digest.Digest, contents []byte) error
	// DeleteFile removes the file with the given digest. Deleting a file that
	// does not exist is not an error.
	DeleteFile(ctx context.Context, d digest.Digest) error
}

// ErrFileNotFound is returned by StorageDriver.ReadFile for unknown digests.
var ErrFileNotFound = errors.New("file not found in storage")

// StorageDriverRegistry is a pluggable.Registry for StorageDriver implementations.
var StorageDriverRegistry pluggable.Registry[StorageDriver]

// NewStorageDriver creates a new StorageDriver using one of the plugins
// registered with StorageDriverRegistry.
//
// The supplied config must be a JSON string like `{"type":"foo","params":{"bar":42}}`.
// The "params" key is passed to the plugin's Init method.
func NewStorageDriver(configJSON string, cfg Configuration) (StorageDriver, error) {
	return newDriver("storage driver", StorageDriverRegistry, configJSON, func(sd StorageDriver) error {
		return sd.Init(cfg)
	})
}

// VerifyDigest checks that the given contents match the given digest.
func VerifyDigest(d digest.Digest, contents []byte) error {
	err := d.Validate()
	if err != nil {
		return err
	}
	actual := d.Algorithm().FromBytes(contents)
	if actual != d {
		return fmt.Errorf("digest mismatch: expected %s, but contents have %s", d, actual)
	}
	return nil
}
