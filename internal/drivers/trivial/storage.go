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

package trivial

import (
	"context"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/sapcc/archivist/internal/archivist"
)

func init() {
	archivist.StorageDriverRegistry.Add(func() archivist.StorageDriver { return &StorageDriver{} })
}

// StorageDriver (driver ID "in-memory-for-testing") is a archivist.StorageDriver
// for use in test suites where the content store lives in RAM only, without
// any persistence.
type StorageDriver struct {
	files      map[digest.Digest][]byte
	filesMutex sync.RWMutex
}

// PluginTypeID implements the archivist.StorageDriver interface.
func (d *StorageDriver) PluginTypeID() string { return "in-memory-for-testing" }

// Init implements the archivist.StorageDriver interface.
func (d *StorageDriver) Init(cfg archivist.Configuration) error {
	d.files = make(map[digest.Digest][]byte)
	return nil
}

// ReadFile implements the archivist.StorageDriver interface.
func (d *StorageDriver) ReadFile(ctx context.Context, fileDigest digest.Digest) ([]byte, error) {
	d.filesMutex.RLock()
	defer d.filesMutex.RUnlock()
	contents, exists := d.files[fileDigest]
	if !exists {
		return nil, archivist.ErrFileNotFound
	}
	return contents, nil
}

// WriteFile implements the archivist.StorageDriver interface.
func (d *StorageDriver) WriteFile(ctx context.Context, fileDigest digest.Digest, contents []byte) error {
	err := archivist.VerifyDigest(fileDigest, contents)
	if err != nil {
		return err
	}
	d.filesMutex.Lock()
	defer d.filesMutex.Unlock()
	d.files[fileDigest] = contents
	return nil
}

// DeleteFile implements the archivist.StorageDriver interface.
func (d *StorageDriver) DeleteFile(ctx context.Context, fileDigest digest.Digest) error {
	d.filesMutex.Lock()
	defer d.filesMutex.Unlock()
	delete(d.files, fileDigest)
	return nil
}
