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
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/sapcc/go-bits/osext"

	"github.com/sapcc/archivist/internal/archivist"
)

func init() {
	archivist.StorageDriverRegistry.Add(func() archivist.StorageDriver { return &StorageDriver{} })
}

// StorageDriver (driver ID "filesystem") is a archivist.StorageDriver that stores its contents in the local filesystem.
type StorageDriver struct {
	rootPath string
}

// PluginTypeID implements the archivist.StorageDriver interface.
func (d *StorageDriver) PluginTypeID() string { return "filesystem" }

// Init implements the archivist.StorageDriver interface.
func (d *StorageDriver) Init(cfg archivist.Configuration) (err error) {
	d.rootPath, err = filepath.Abs(osext.MustGetenv("ARCHIVIST_FILESYSTEM_PATH"))
	return err
}

func (d *StorageDriver) getFilePath(fileDigest digest.Digest) (string, error) {
	err := fileDigest.Validate()
	if err != nil {
		return "", err
	}
	hex := fileDigest.Encoded()
	return fmt.Sprintf("%s/%s/%s/%s", d.rootPath, fileDigest.Algorithm(), hex[0:2], hex), nil
}

// ReadFile implements the archivist.StorageDriver interface.
func (d *StorageDriver) ReadFile(ctx context.Context, fileDigest digest.Digest) ([]byte, error) {
	path, err := d.getFilePath(fileDigest)
	if err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, archivist.ErrFileNotFound
	}
	return contents, err
}

// WriteFile implements the archivist.StorageDriver interface.
func (d *StorageDriver) WriteFile(ctx context.Context, fileDigest digest.Digest, contents []byte) error {
	err := archivist.VerifyDigest(fileDigest, contents)
	if err != nil {
		return err
	}
	path, err := d.getFilePath(fileDigest)
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	err = os.MkdirAll(filepath.Dir(tmpPath), 0777) // subject to umask
	if err != nil {
		return err
	}
	err = os.WriteFile(tmpPath, contents, 0666) // subject to umask
	if err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// DeleteFile implements the archivist.StorageDriver interface.
func (d *StorageDriver) DeleteFile(ctx context.Context, fileDigest digest.Digest) error {
	path, err := d.getFilePath(fileDigest)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
